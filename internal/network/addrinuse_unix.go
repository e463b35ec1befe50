//go:build !windows

package network

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsAddrInUse reports whether err is the "address already in use" bind failure.
func IsAddrInUse(err error) bool {
	return errors.Is(err, unix.EADDRINUSE)
}
