// Package network binds the local control listener and provides outbound dial helpers.
package network

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"nodeagent/internal/logger"
)

// loopback is the only interface the control listener binds to.
const loopback = "127.0.0.1"

// BindControl listens for control traffic on 127.0.0.1:port. If and only if the
// port is already in use it retries once on an OS-assigned port; every other
// failure is returned. The second return value is the port actually bound.
func BindControl(ctx context.Context, port uint16) (net.Listener, uint16, error) {
	return ControlBinder{Host: loopback}.Bind(ctx, port)
}

// ControlBinder binds control listeners on Host.
type ControlBinder struct {
	Host string
}

// Bind implements the BindControl policy on b.Host.
func (b ControlBinder) Bind(ctx context.Context, port uint16) (net.Listener, uint16, error) {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", b.addr(port))
	if err != nil {
		if port == 0 || !IsAddrInUse(err) {
			return nil, 0, fmt.Errorf("failed to bind control port %d: %w", port, err)
		}

		log := logger.WithComponent("control-bind")
		log.Warn().Uint16("port", port).Msg("control port already in use, switching to a random port")

		ln, err = lc.Listen(ctx, "tcp", b.addr(0))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to bind fallback control port: %w", err)
		}
	}

	return ln, ListenerPort(ln), nil
}

// ListenerPort returns the TCP port ln is bound to, or 0 for non-TCP listeners.
func ListenerPort(ln net.Listener) uint16 {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return uint16(addr.Port)
	}
	return 0
}

// ControlTarget is the dial target for a control port on this host.
func ControlTarget(port uint16) string {
	return net.JoinHostPort(loopback, strconv.Itoa(int(port)))
}

func (b ControlBinder) addr(port uint16) string {
	host := b.Host
	if host == "" {
		host = loopback
	}
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}
