package network

import (
	"net"
	"strconv"

	"golang.org/x/net/proxy"
)

// Proxy is the optional SOCKS5 hop in front of the two outbound connections
// a session makes: the Redis status mirror and the kafka event sink. The zero
// value, or one without a port, dials directly.
type Proxy struct {
	Host string
	Port int
}

// Enabled reports whether outbound traffic goes through the proxy.
func (p Proxy) Enabled() bool {
	return p.Host != "" && p.Port > 0
}

// Addr is the proxy's host:port.
func (p Proxy) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Dialer returns the SOCKS5 dialer sarama plugs into Net.Proxy.
func (p Proxy) Dialer() (proxy.Dialer, error) {
	return proxy.SOCKS5("tcp", p.Addr(), nil, proxy.Direct)
}

// DialFunc returns the dial function the Redis mirror uses, or nil when the
// proxy is disabled so go-redis keeps its own dialer.
func (p Proxy) DialFunc() func(network, addr string) (net.Conn, error) {
	if !p.Enabled() {
		return nil
	}
	dialer, err := p.Dialer()
	return func(network, addr string) (net.Conn, error) {
		if err != nil {
			return nil, err
		}
		return dialer.Dial(network, addr)
	}
}
