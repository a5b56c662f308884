package netmon

import (
	"fmt"
	"net"
	"net/netip"

	log "github.com/sirupsen/logrus"
)

// SystemInterfaces lists the host's interfaces through the net package.
// Dormant is never reported because the portable API does not expose it.
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	result := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			log.WithError(err).WithField("interface", iface.Name).Trace("Failed to get interface addresses")
		}

		info := Interface{
			Name:  iface.Name,
			Index: iface.Index,
			Kind:  classify(iface.Name, iface.Flags, isWireless(iface.Name)),
			Up:    iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagRunning != 0,
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if p, ok := prefixFromIPNet(ipNet); ok {
				info.Addrs = append(info.Addrs, p)
			}
		}
		result = append(result, info)
	}
	return result, nil
}

// ScanInspector answers routing questions from the interface list alone. It
// is used where no routing table API is available: destinations inside a
// local subnet are on-link, anything else goes out of the best interface
// holding a usable address.
type ScanInspector struct {
	list func() ([]Interface, error)
}

func NewScanInspector(list func() ([]Interface, error)) *ScanInspector {
	if list == nil {
		list = SystemInterfaces
	}
	return &ScanInspector{list: list}
}

func (s *ScanInspector) Interfaces() ([]Interface, error) {
	return s.list()
}

func (s *ScanInspector) RouteTo(ip netip.Addr) (Route, error) {
	ifaces, err := s.list()
	if err != nil {
		return Route{}, err
	}
	ip = ip.Unmap()

	if iface, ok := FindLocal(ifaces, ip); ok {
		return Route{Dst: hostPrefix(ip), Interface: iface}, nil
	}
	for _, iface := range ifaces {
		if iface.Up && iface.Kind != KindLoopback && iface.OnLink(ip) {
			return Route{Dst: hostPrefix(ip), Interface: iface}, nil
		}
	}

	r, err := s.DefaultRoute()
	if err != nil {
		return Route{}, err
	}
	r.Dst = hostPrefix(ip)
	return r, nil
}

// DefaultRoute picks the first up interface with a usable address, preferring
// wired over WiFi over cellular. The gateway is unknown, so it is reported as
// the unspecified address to keep Direct false.
func (s *ScanInspector) DefaultRoute() (Route, error) {
	ifaces, err := s.list()
	if err != nil {
		return Route{}, err
	}

	rank := map[Kind]int{KindWired: 0, KindWiFi: 1, KindUnknown: 2, KindCellular: 3, KindTunnel: 4}
	best, bestRank := Interface{}, len(rank)
	for _, iface := range ifaces {
		r, ok := rank[iface.Kind]
		if !ok || !(iface.Up || iface.Dormant) || !iface.HasUsableAddr() {
			continue
		}
		if r < bestRank {
			best, bestRank = iface, r
		}
	}
	if bestRank == len(rank) {
		return Route{}, ErrNoRoute
	}
	return Route{
		Dst:       netip.PrefixFrom(netip.IPv4Unspecified(), 0),
		Gateway:   netip.IPv4Unspecified(),
		Interface: best,
	}, nil
}

func hostPrefix(ip netip.Addr) netip.Prefix {
	return netip.PrefixFrom(ip, ip.BitLen())
}
