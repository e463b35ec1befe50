package network

import (
	"net"
	"strconv"
)

// AdvertisedAddrs expands a listen address into the addresses peers can use.
// An unspecified host (0.0.0.0 or ::) becomes every non-loopback IPv4 address
// of the machine that is up; a concrete host is returned as is.
func AdvertisedAddrs(listen net.Addr) []string {
	tcp, ok := listen.(*net.TCPAddr)
	if !ok {
		return []string{listen.String()}
	}
	if !tcp.IP.IsUnspecified() {
		return []string{tcp.String()}
	}

	ips, err := detectIPv4Addresses()
	if err != nil || len(ips) == 0 {
		return []string{tcp.String()}
	}
	port := strconv.Itoa(tcp.Port)
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, net.JoinHostPort(ip, port))
	}
	return addrs
}

// detectIPv4Addresses returns all non-loopback IPv4 addresses on interfaces that are up.
func detectIPv4Addresses() ([]string, error) {
	var ips []string

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}
			ips = append(ips, ip.String())
		}
	}
	return ips, nil
}
