package reachability

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/reachd/internal/netmon"
)

// Source is the boundary to the platform's reachability primitive for one
// target.
type Source interface {
	// Flags returns the current flags. It consults local routing state only
	// and never waits on the network.
	Flags() (Flags, error)

	// Watch subscribes to platform changes and returns once the subscription
	// is in place, or with an error if it could not be made. The callback is
	// invoked from a source-owned goroutine with freshly computed flags until
	// ctx is cancelled. Repeated identical flags are allowed.
	Watch(ctx context.Context, callback func(Flags)) error

	// Close releases the platform resources held for the target.
	Close() error
}

// SourceFactory allocates a Source for a target.
type SourceFactory func(Target) (Source, error)

const resolveTimeout = 5 * time.Second

// NetSource derives flags from the host's interfaces and routing table and
// re-evaluates them whenever the netmon watcher reports a change. Host names
// are resolved on the watch goroutine, never inside Flags.
type NetSource struct {
	target    Target
	literal   netip.Addr // set when a host target is an IP literal
	watcher   netmon.Watcher
	inspector netmon.Inspector
	resolver  netmon.Resolver

	mu       sync.Mutex
	resolved []netip.Addr
}

// NewNetSource is the default SourceFactory. It uses the platform's watcher
// and inspector, and for host names a DNS resolver configured from
// /etc/resolv.conf.
func NewNetSource(t Target) (Source, error) {
	return newNetSource(t, "")
}

func newNetSource(t Target, resolvConf string) (*NetSource, error) {
	var resolver netmon.Resolver
	if t.Kind == TargetHost && !isLiteralHost(t.Host) {
		r := &resolvConfResolver{path: resolvConf}
		if _, err := r.load(); err != nil {
			log.WithError(err).WithField("host", t.Host).Warn("No nameservers yet, will retry on the next lookup")
		}
		resolver = r
	}
	return NewNetSourceWith(t, netmon.NewWatcher(), netmon.NewInspector(), resolver), nil
}

// resolvConfResolver builds its DNSResolver from a resolv.conf file on first
// successful read. Until then every lookup retries the read.
type resolvConfResolver struct {
	path string

	mu sync.Mutex
	r  *netmon.DNSResolver
}

func (l *resolvConfResolver) load() (*netmon.DNSResolver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.r != nil {
		return l.r, nil
	}
	r, err := netmon.NewDNSResolver(l.path)
	if err != nil {
		return nil, fmt.Errorf("host resolver: %w", err)
	}
	l.r = r
	return r, nil
}

func (l *resolvConfResolver) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	r, err := l.load()
	if err != nil {
		return nil, err
	}
	return r.LookupAddrs(ctx, host)
}

// NewNetSourceWith builds a NetSource from explicit parts. The resolver is
// only used for host targets and may be nil otherwise.
func NewNetSourceWith(t Target, w netmon.Watcher, i netmon.Inspector, r netmon.Resolver) *NetSource {
	s := &NetSource{
		target:    t,
		watcher:   w,
		inspector: i,
		resolver:  r,
	}
	if t.Kind == TargetHost {
		if ip, err := netip.ParseAddr(t.Host); err == nil {
			s.literal = ip.Unmap()
		} else if strings.EqualFold(t.Host, "localhost") {
			s.literal = netip.AddrFrom4([4]byte{127, 0, 0, 1})
		}
	}
	return s
}

func isLiteralHost(host string) bool {
	_, err := netip.ParseAddr(host)
	return err == nil || strings.EqualFold(host, "localhost")
}

func (s *NetSource) Flags() (Flags, error) {
	switch s.target.Kind {
	case TargetInternet:
		return s.defaultRouteFlags()
	case TargetLocalWiFi:
		return s.localWiFiFlags()
	case TargetAddress:
		return s.addrFlags(s.target.Addr.Addr())
	case TargetHost:
		return s.hostFlags()
	default:
		return 0, fmt.Errorf("%w: unknown kind %s", ErrInvalidTarget, s.target.Kind)
	}
}

func (s *NetSource) Watch(ctx context.Context, callback func(Flags)) error {
	kick := make(chan struct{}, 1)
	err := s.watcher.Start(ctx, func(ev netmon.Event) {
		log.WithFields(log.Fields{
			"target":    s.target.String(),
			"event":     ev.Type,
			"interface": ev.InterfaceName,
		}).Trace("Network change")
		select {
		case kick <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}

	go func() {
		s.refresh(ctx, callback)
		for {
			select {
			case <-ctx.Done():
				return
			case <-kick:
				s.refresh(ctx, callback)
			}
		}
	}()
	return nil
}

func (s *NetSource) Close() error { return nil }

func (s *NetSource) refresh(ctx context.Context, callback func(Flags)) {
	if s.needsResolution() {
		s.resolve(ctx)
	}
	flags, err := s.Flags()
	if err != nil {
		log.WithError(err).WithField("target", s.target.String()).Warn("Failed to evaluate reachability")
		return
	}
	if ctx.Err() != nil {
		return
	}
	callback(flags)
}

func (s *NetSource) needsResolution() bool {
	return s.target.Kind == TargetHost && !s.literal.IsValid() && s.resolver != nil
}

func (s *NetSource) resolve(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	addrs, err := s.resolver.LookupAddrs(ctx, s.target.Host)
	if err != nil {
		// Keep the previous answer; a resolver failure usually means the
		// path is down, which the route lookup will report on its own.
		log.WithError(err).WithField("host", s.target.Host).Debug("Host resolution failed")
		return
	}

	s.mu.Lock()
	s.resolved = addrs
	s.mu.Unlock()
}

// Resolved returns the addresses from the last successful resolution.
func (s *NetSource) Resolved() []netip.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]netip.Addr(nil), s.resolved...)
}

func (s *NetSource) hostFlags() (Flags, error) {
	if s.literal.IsValid() {
		return s.addrFlags(s.literal)
	}

	addrs := s.Resolved()
	if len(addrs) == 0 {
		// Not resolved yet: the name is reachable if a lookup could leave
		// the host at all.
		flags, err := s.defaultRouteFlags()
		if err != nil || !flags.Has(FlagReachable) {
			return flags, err
		}
		return flags | FlagConnectionOnTraffic, nil
	}

	var firstErr error
	for _, ip := range addrs {
		flags, err := s.addrFlags(ip)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if flags.Has(FlagReachable) {
			return flags, nil
		}
	}
	return 0, firstErr
}

func (s *NetSource) defaultRouteFlags() (Flags, error) {
	r, err := s.inspector.DefaultRoute()
	if errors.Is(err, netmon.ErrNoRoute) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return pathFlags(r), nil
}

func (s *NetSource) addrFlags(ip netip.Addr) (Flags, error) {
	ifaces, err := s.inspector.Interfaces()
	if err != nil {
		return 0, err
	}
	if iface, ok := netmon.FindLocal(ifaces, ip); ok && (iface.Up || iface.Kind == netmon.KindLoopback) {
		return FlagReachable | FlagIsLocalAddress | FlagIsDirect, nil
	}

	r, err := s.inspector.RouteTo(ip)
	if errors.Is(err, netmon.ErrNoRoute) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return pathFlags(r), nil
}

// localWiFiFlags reports a direct path when a wireless or wired LAN
// interface is up and holds an address. Wireless interfaces are preferred.
func (s *NetSource) localWiFiFlags() (Flags, error) {
	ifaces, err := s.inspector.Interfaces()
	if err != nil {
		return 0, err
	}

	var best Flags
	for _, iface := range ifaces {
		if iface.Kind != netmon.KindWiFi && iface.Kind != netmon.KindWired {
			continue
		}
		if len(iface.Addrs) == 0 {
			continue
		}
		var flags Flags
		switch {
		case iface.Up:
			flags = FlagReachable | FlagIsDirect
		case iface.Dormant:
			flags = FlagReachable | FlagIsDirect | FlagConnectionRequired
		default:
			continue
		}
		if iface.Kind == netmon.KindWiFi && !flags.Has(FlagConnectionRequired) {
			return flags, nil
		}
		if best == 0 || best.Has(FlagConnectionRequired) {
			best = flags
		}
	}
	return best, nil
}

func pathFlags(r netmon.Route) Flags {
	iface := r.Interface
	if !iface.Up && !iface.Dormant {
		return 0
	}

	flags := FlagReachable
	if iface.Dormant {
		flags |= FlagConnectionRequired
	}
	if r.Direct() {
		flags |= FlagIsDirect
	}
	switch iface.Kind {
	case netmon.KindCellular:
		flags |= FlagIsWWAN
		if iface.Dormant {
			flags |= FlagConnectionOnTraffic
		}
	case netmon.KindLoopback:
		flags |= FlagIsLocalAddress | FlagIsDirect
	}
	return flags
}
