//go:build linux

package netmon

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

type linuxInspector struct{}

// NewInspector creates a Linux inspector backed by netlink route queries.
func NewInspector() Inspector {
	return linuxInspector{}
}

func (linuxInspector) Interfaces() ([]Interface, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	result := make([]Interface, 0, len(links))
	for _, link := range links {
		result = append(result, interfaceFromLink(link))
	}
	return result, nil
}

func (i linuxInspector) RouteTo(ip netip.Addr) (Route, error) {
	ip = ip.Unmap()
	routes, err := netlink.RouteGet(net.IP(ip.AsSlice()))
	if err != nil {
		if errors.Is(err, unix.ENETUNREACH) || errors.Is(err, unix.EHOSTUNREACH) {
			return Route{}, ErrNoRoute
		}
		return Route{}, fmt.Errorf("route get %s: %w", ip, err)
	}
	if len(routes) == 0 {
		return Route{}, ErrNoRoute
	}

	r := routes[0]
	if r.Type == unix.RTN_UNREACHABLE || r.Type == unix.RTN_BLACKHOLE || r.Type == unix.RTN_PROHIBIT {
		return Route{}, ErrNoRoute
	}

	link, err := netlink.LinkByIndex(r.LinkIndex)
	if err != nil {
		return Route{}, fmt.Errorf("link %d: %w", r.LinkIndex, err)
	}

	return Route{
		Dst:       hostPrefix(ip),
		Gateway:   addrFromIP(r.Gw),
		Interface: interfaceFromLink(link),
	}, nil
}

// DefaultRoute returns the lowest metric default route whose interface can
// carry traffic. IPv4 routes win ties.
func (i linuxInspector) DefaultRoute() (Route, error) {
	var best *netlink.Route
	var bestLink netlink.Link

	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		routes, err := netlink.RouteList(nil, family)
		if err != nil {
			return Route{}, fmt.Errorf("list routes: %w", err)
		}
		for idx := range routes {
			r := &routes[idx]
			if !isDefaultDst(r.Dst) || r.Type != unix.RTN_UNICAST {
				continue
			}
			link, err := netlink.LinkByIndex(r.LinkIndex)
			if err != nil {
				log.WithError(err).WithField("index", r.LinkIndex).Trace("Skipping default route with missing link")
				continue
			}
			if link.Attrs().Flags&net.FlagUp == 0 {
				continue
			}
			if best == nil || r.Priority < best.Priority {
				best, bestLink = r, link
			}
		}
	}

	if best == nil {
		return Route{}, ErrNoRoute
	}

	dst := netip.PrefixFrom(netip.IPv4Unspecified(), 0)
	if best.Family == netlink.FAMILY_V6 {
		dst = netip.PrefixFrom(netip.IPv6Unspecified(), 0)
	}
	return Route{
		Dst:       dst,
		Gateway:   addrFromIP(best.Gw),
		Interface: interfaceFromLink(bestLink),
	}, nil
}

func isDefaultDst(dst *net.IPNet) bool {
	if dst == nil {
		return true
	}
	ones, _ := dst.Mask.Size()
	return ones == 0
}

func interfaceFromLink(link netlink.Link) Interface {
	attrs := link.Attrs()
	iface := Interface{
		Name:  attrs.Name,
		Index: attrs.Index,
		Kind:  classifyLink(link),
	}

	adminUp := attrs.Flags&net.FlagUp != 0
	switch attrs.OperState {
	case netlink.OperUp, netlink.OperUnknown:
		iface.Up = adminUp
	case netlink.OperDormant:
		iface.Dormant = adminUp
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		log.WithError(err).WithField("interface", attrs.Name).Trace("Failed to list addresses")
		return iface
	}
	for _, a := range addrs {
		if p, ok := prefixFromIPNet(a.IPNet); ok {
			iface.Addrs = append(iface.Addrs, p)
		}
	}
	return iface
}

func classifyLink(link netlink.Link) Kind {
	attrs := link.Attrs()
	switch link.Type() {
	case "tuntap", "wireguard", "ipip", "gre", "ip6tnl", "sit", "vti", "xfrm":
		return KindTunnel
	}
	return classify(attrs.Name, attrs.Flags, isWireless(attrs.Name))
}

func isWireless(name string) bool {
	for _, leaf := range []string{"wireless", "phy80211"} {
		if _, err := os.Stat(filepath.Join("/sys/class/net", name, leaf)); err == nil {
			return true
		}
	}
	return false
}
