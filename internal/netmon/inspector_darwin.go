//go:build darwin

package netmon

import (
	"fmt"
	"math/bits"
	"net/netip"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/route"
	"golang.org/x/sys/unix"
)

type darwinInspector struct{}

// NewInspector creates a macOS inspector that reads the kernel routing table.
func NewInspector() Inspector {
	return darwinInspector{}
}

func (darwinInspector) Interfaces() ([]Interface, error) {
	return SystemInterfaces()
}

func (i darwinInspector) RouteTo(ip netip.Addr) (Route, error) {
	ip = ip.Unmap()
	ifaces, err := SystemInterfaces()
	if err != nil {
		return Route{}, err
	}
	if iface, ok := FindLocal(ifaces, ip); ok {
		return Route{Dst: hostPrefix(ip), Interface: iface}, nil
	}

	entries, err := routingTable()
	if err != nil {
		return Route{}, err
	}

	var best *ribEntry
	for idx := range entries {
		e := &entries[idx]
		if !e.dst.Contains(ip) {
			continue
		}
		if best == nil || e.dst.Bits() > best.dst.Bits() {
			best = e
		}
	}
	if best == nil {
		return Route{}, ErrNoRoute
	}
	return best.route(hostPrefix(ip), ifaces)
}

func (i darwinInspector) DefaultRoute() (Route, error) {
	ifaces, err := SystemInterfaces()
	if err != nil {
		return Route{}, err
	}
	entries, err := routingTable()
	if err != nil {
		return Route{}, err
	}
	for idx := range entries {
		e := &entries[idx]
		if e.dst.Bits() != 0 {
			continue
		}
		r, err := e.route(e.dst, ifaces)
		if err != nil || !(r.Interface.Up || r.Interface.Dormant) {
			continue
		}
		return r, nil
	}
	return Route{}, ErrNoRoute
}

type ribEntry struct {
	dst     netip.Prefix
	gateway netip.Addr
	index   int
}

func (e *ribEntry) route(dst netip.Prefix, ifaces []Interface) (Route, error) {
	for _, iface := range ifaces {
		if iface.Index == e.index {
			return Route{Dst: dst, Gateway: e.gateway, Interface: iface}, nil
		}
	}
	return Route{}, fmt.Errorf("route via unknown interface index %d: %w", e.index, ErrNoRoute)
}

func routingTable() ([]ribEntry, error) {
	rib, err := route.FetchRIB(unix.AF_UNSPEC, route.RIBTypeRoute, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch routing table: %w", err)
	}
	msgs, err := route.ParseRIB(route.RIBTypeRoute, rib)
	if err != nil {
		return nil, fmt.Errorf("parse routing table: %w", err)
	}

	entries := make([]ribEntry, 0, len(msgs))
	for _, msg := range msgs {
		m, ok := msg.(*route.RouteMessage)
		if !ok || m.Flags&unix.RTF_UP == 0 || m.Flags&(unix.RTF_REJECT|unix.RTF_BLACKHOLE) != 0 {
			continue
		}
		if len(m.Addrs) <= unix.RTAX_DST {
			continue
		}

		dst := sockAddr(m.Addrs[unix.RTAX_DST])
		if !dst.IsValid() {
			continue
		}
		ones := dst.BitLen()
		if m.Flags&unix.RTF_HOST == 0 {
			ones = 0
			if len(m.Addrs) > unix.RTAX_NETMASK {
				ones = maskBits(m.Addrs[unix.RTAX_NETMASK])
			}
		}

		e := ribEntry{dst: netip.PrefixFrom(dst, ones).Masked(), index: m.Index}
		if m.Flags&unix.RTF_GATEWAY != 0 && len(m.Addrs) > unix.RTAX_GATEWAY {
			e.gateway = sockAddr(m.Addrs[unix.RTAX_GATEWAY])
		}
		entries = append(entries, e)
	}
	log.WithField("routes", len(entries)).Trace("Loaded routing table")
	return entries, nil
}

func sockAddr(a route.Addr) netip.Addr {
	switch v := a.(type) {
	case *route.Inet4Addr:
		return netip.AddrFrom4(v.IP)
	case *route.Inet6Addr:
		return netip.AddrFrom16(v.IP)
	default:
		return netip.Addr{}
	}
}

func maskBits(a route.Addr) int {
	var raw []byte
	switch v := a.(type) {
	case *route.Inet4Addr:
		raw = v.IP[:]
	case *route.Inet6Addr:
		raw = v.IP[:]
	default:
		return 0
	}
	n := 0
	for _, b := range raw {
		n += bits.OnesCount8(b)
	}
	return n
}

func isWireless(string) bool { return false }
