package rapidrpc

import (
	"net"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// NetAddr is the polymorphic address abstraction: IPv4, IPv6, or
// Unix-domain. Invalid textual input constructs an address whose Valid()
// returns false rather than erroring at construction time, matching
// net_addr.cc's operator bool().
type NetAddr interface {
	Network() string // "tcp4", "tcp6", or "unix"
	String() string
	Valid() bool
	SockAddr() syscall.Sockaddr
}

// IPNetAddr is an IPv4 "a.b.c.d:port" address.
type IPNetAddr struct {
	IP   string
	Port int
}

// ParseIPNetAddr parses "ip:port" into an IPv4 address.
func ParseIPNetAddr(addr string) *IPNetAddr {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return &IPNetAddr{}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return &IPNetAddr{}
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return &IPNetAddr{}
	}
	return &IPNetAddr{IP: host, Port: port}
}

func (a *IPNetAddr) Network() string { return "tcp4" }
func (a *IPNetAddr) String() string  { return a.IP + ":" + strconv.Itoa(a.Port) }

func (a *IPNetAddr) Valid() bool {
	if a.IP == "" || a.Port < 0 || a.Port > 65535 {
		return false
	}
	ip := net.ParseIP(a.IP)
	return ip != nil && ip.To4() != nil
}

func (a *IPNetAddr) SockAddr() syscall.Sockaddr {
	var b [4]byte
	copy(b[:], net.ParseIP(a.IP).To4())
	return &syscall.SockaddrInet4{Port: a.Port, Addr: b}
}

// IP6NetAddr is an IPv6 "[…]:port" address.
type IP6NetAddr struct {
	IP   string
	Port int
}

// ParseIP6NetAddr parses "[ip]:port" into an IPv6 address. An IPv6
// address written without brackets is not accepted and yields an invalid
// address.
func ParseIP6NetAddr(addr string) *IP6NetAddr {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return &IP6NetAddr{}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return &IP6NetAddr{}
	}
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() != nil {
		return &IP6NetAddr{}
	}
	return &IP6NetAddr{IP: host, Port: port}
}

func (a *IP6NetAddr) Network() string { return "tcp6" }
func (a *IP6NetAddr) String() string  { return "[" + a.IP + "]:" + strconv.Itoa(a.Port) }

func (a *IP6NetAddr) Valid() bool {
	if a.IP == "" || a.Port < 0 || a.Port > 65535 {
		return false
	}
	ip := net.ParseIP(a.IP)
	return ip != nil && ip.To4() == nil
}

func (a *IP6NetAddr) SockAddr() syscall.Sockaddr {
	var b [16]byte
	copy(b[:], net.ParseIP(a.IP).To16())
	return &syscall.SockaddrInet6{Port: a.Port, Addr: b}
}

// UnixNetAddr is a Unix-domain socket path address.
type UnixNetAddr struct {
	Path string
}

func (a *UnixNetAddr) Network() string { return "unix" }
func (a *UnixNetAddr) String() string  { return a.Path }

func (a *UnixNetAddr) Valid() bool {
	return a.Path != ""
}

func (a *UnixNetAddr) SockAddr() syscall.Sockaddr {
	return &syscall.SockaddrUnix{Name: a.Path}
}

// NetAddrFromSockaddr converts the raw unix.Sockaddr returned by
// unix.Accept/unix.Getsockname into the polymorphic NetAddr abstraction,
// the Go counterpart to net_addr.cc building an address object directly
// from a sockaddr_storage.
func NetAddrFromSockaddr(sa unix.Sockaddr) NetAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &IPNetAddr{IP: net.IP(v.Addr[:]).String(), Port: v.Port}
	case *unix.SockaddrInet6:
		return &IP6NetAddr{IP: net.IP(v.Addr[:]).String(), Port: v.Port}
	case *unix.SockaddrUnix:
		return &UnixNetAddr{Path: v.Name}
	default:
		return &IPNetAddr{}
	}
}
