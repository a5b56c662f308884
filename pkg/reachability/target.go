package reachability

import (
	"fmt"
	"net/netip"
	"strings"
)

// TargetKind says what a Monitor watches.
type TargetKind int

const (
	TargetHost TargetKind = iota
	TargetAddress
	TargetInternet
	TargetLocalWiFi
)

func (k TargetKind) String() string {
	switch k {
	case TargetHost:
		return "host"
	case TargetAddress:
		return "address"
	case TargetInternet:
		return "internet"
	case TargetLocalWiFi:
		return "local-wifi"
	default:
		return fmt.Sprintf("TargetKind(%d)", int(k))
	}
}

var (
	internetAddr  = netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
	linkLocalAddr = netip.AddrPortFrom(netip.AddrFrom4([4]byte{169, 254, 0, 0}), 0)
)

// Target is an immutable description of what to watch. Only Host is set for
// TargetHost; the other kinds carry Addr. The port is kept for callers but
// plays no part in routing.
type Target struct {
	Kind TargetKind
	Host string
	Addr netip.AddrPort
}

func hostTarget(name string) (Target, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Target{}, fmt.Errorf("%w: empty host name", ErrInvalidTarget)
	}
	return Target{Kind: TargetHost, Host: name}, nil
}

func addressTarget(addr netip.AddrPort) (Target, error) {
	if !addr.Addr().IsValid() {
		return Target{}, fmt.Errorf("%w: invalid address", ErrInvalidTarget)
	}
	return Target{Kind: TargetAddress, Addr: netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())}, nil
}

func internetTarget() Target {
	return Target{Kind: TargetInternet, Addr: internetAddr}
}

func localWiFiTarget() Target {
	return Target{Kind: TargetLocalWiFi, Addr: linkLocalAddr}
}

func (t Target) String() string {
	switch t.Kind {
	case TargetHost:
		return "host:" + t.Host
	case TargetAddress:
		return "address:" + t.Addr.Addr().String()
	default:
		return t.Kind.String()
	}
}
