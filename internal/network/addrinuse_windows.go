//go:build windows

package network

import (
	"errors"

	"golang.org/x/sys/windows"
)

// IsAddrInUse reports whether err is the "address already in use" bind failure.
func IsAddrInUse(err error) bool {
	return errors.Is(err, windows.WSAEADDRINUSE)
}
