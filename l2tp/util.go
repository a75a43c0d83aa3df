package l2tp

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// sockaddrKey renders a socket address as a stable map key.  Inbound
// control messages carry no connection id in this profile, so they are
// routed to their connection by peer address.
func sockaddrKey(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrL2TPIP:
		return net.IP(a.Addr[:]).String()
	case *unix.SockaddrL2TPIP6:
		return net.IP(a.Addr[:]).String()
	case *unix.SockaddrInet4:
		return net.IP(a.Addr[:]).String()
	case *unix.SockaddrInet6:
		return net.IP(a.Addr[:]).String()
	}
	return fmt.Sprintf("%v", sa)
}

// peerSockaddr resolves an IP address string into the sockaddr used
// for IP-encapsulated control messages.
func peerSockaddr(addr string) (unix.Sockaddr, error) {
	ip, err := net.ResolveIPAddr("ip", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %v: %v", addr, err)
	}
	if ip4 := ip.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrL2TPIP{}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	sa := &unix.SockaddrL2TPIP6{}
	copy(sa.Addr[:], ip.IP.To16())
	return sa, nil
}
