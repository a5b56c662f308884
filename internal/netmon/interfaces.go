package netmon

import (
	"errors"
	"net"
	"net/netip"
	"strings"
)

var (
	// ErrNoRoute is returned when the routing table has no path to a destination.
	ErrNoRoute = errors.New("no route to destination")

	// ErrNotSupported is returned by inspectors that cannot answer a query on
	// the current platform.
	ErrNotSupported = errors.New("not supported on this platform")
)

// Kind is the link technology behind an interface.
type Kind string

const (
	KindUnknown  Kind = "unknown"
	KindLoopback Kind = "loopback"
	KindWired    Kind = "wired"
	KindWiFi     Kind = "wifi"
	KindCellular Kind = "cellular"
	KindTunnel   Kind = "tunnel"
)

// Interface is a point-in-time view of a network interface.
type Interface struct {
	Name  string
	Index int
	Kind  Kind
	// Up means administratively up with a working link.
	Up bool
	// Dormant means administratively up but waiting for an external event
	// (802.1X authentication, a modem dialing) before traffic can pass.
	Dormant bool
	Addrs   []netip.Prefix
}

// HasAddr reports whether ip is assigned to this interface.
func (i Interface) HasAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, p := range i.Addrs {
		if p.Addr().Unmap() == ip {
			return true
		}
	}
	return false
}

// OnLink reports whether ip falls inside one of the interface's subnets.
func (i Interface) OnLink(ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, p := range i.Addrs {
		if p.Masked().Contains(ip) {
			return true
		}
	}
	return false
}

// HasUsableAddr reports whether the interface holds an address other than an
// IPv6 link-local one.
func (i Interface) HasUsableAddr() bool {
	for _, p := range i.Addrs {
		a := p.Addr()
		if a.Is6() && !a.Is4In6() && a.IsLinkLocalUnicast() {
			continue
		}
		return true
	}
	return false
}

// Route is the path the host would use to reach a destination.
type Route struct {
	Dst netip.Prefix
	// Gateway is invalid for on-link destinations.
	Gateway   netip.Addr
	Interface Interface
}

// Direct reports whether the destination is reached without a gateway.
func (r Route) Direct() bool { return !r.Gateway.IsValid() }

// Inspector answers synchronous questions about local routing state. Its
// methods never send packets.
type Inspector interface {
	Interfaces() ([]Interface, error)
	RouteTo(ip netip.Addr) (Route, error)
	DefaultRoute() (Route, error)
}

var (
	cellularPrefixes = []string{"wwan", "rmnet", "ccmni", "pdp_ip", "ppp", "wwp"}
	wifiPrefixes     = []string{"wlan", "wlp", "wlx", "wl", "ath", "ra"}
	tunnelPrefixes   = []string{"utun", "tun", "tap", "wg", "ipsec", "gif", "stf", "tailscale", "zt"}
	wiredPrefixes    = []string{"eth", "enp", "eno", "ens", "enx", "en", "em", "bond", "br"}
)

// classify guesses the link technology of an interface from its name and
// flags. wireless is a platform hint that overrides the name.
func classify(name string, flags net.Flags, wireless bool) Kind {
	switch {
	case flags&net.FlagLoopback != 0 || strings.HasPrefix(name, "lo"):
		return KindLoopback
	case wireless:
		return KindWiFi
	case hasAnyPrefix(name, cellularPrefixes):
		return KindCellular
	case hasAnyPrefix(name, tunnelPrefixes):
		return KindTunnel
	case hasAnyPrefix(name, wifiPrefixes):
		return KindWiFi
	case hasAnyPrefix(name, wiredPrefixes):
		return KindWired
	case flags&net.FlagPointToPoint != 0:
		return KindTunnel
	default:
		return KindUnknown
	}
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func addrFromIP(ip net.IP) netip.Addr {
	if ip == nil {
		return netip.Addr{}
	}
	a, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return a.Unmap()
}

func prefixFromIPNet(n *net.IPNet) (netip.Prefix, bool) {
	if n == nil {
		return netip.Prefix{}, false
	}
	a := addrFromIP(n.IP)
	if !a.IsValid() {
		return netip.Prefix{}, false
	}
	ones, bits := n.Mask.Size()
	if bits == 128 && a.Is4() {
		ones -= 96
	}
	return netip.PrefixFrom(a, ones), true
}

// FindLocal returns the interface that owns ip.
func FindLocal(ifaces []Interface, ip netip.Addr) (Interface, bool) {
	for _, iface := range ifaces {
		if iface.HasAddr(ip) {
			return iface, true
		}
	}
	return Interface{}, false
}
