package netmon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
	log "github.com/sirupsen/logrus"
)

// ErrHostNotFound is returned when no server knows any address for a name.
var ErrHostNotFound = errors.New("host not found")

// Resolver turns a host name into addresses.
type Resolver interface {
	LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error)
}

const defaultResolvConf = "/etc/resolv.conf"

// DNSResolver queries A and AAAA records directly against a list of servers.
type DNSResolver struct {
	servers []string
	client  *dns.Client
}

// NewDNSResolver uses the nameservers listed in a resolv.conf file. An empty
// path reads /etc/resolv.conf.
func NewDNSResolver(resolvConf string) (*DNSResolver, error) {
	if resolvConf == "" {
		resolvConf = defaultResolvConf
	}
	cfg, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", resolvConf, err)
	}

	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	return NewDNSResolverWithServers(timeout, servers...), nil
}

// NewDNSResolverWithServers uses the given host:port servers in order.
func NewDNSResolverWithServers(timeout time.Duration, servers ...string) *DNSResolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &DNSResolver{
		servers: servers,
		client:  &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func (r *DNSResolver) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	host = strings.TrimSuffix(host, ".")
	if ip, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{ip.Unmap()}, nil
	}
	if strings.EqualFold(host, "localhost") {
		return []netip.Addr{netip.AddrFrom4([4]byte{127, 0, 0, 1}), netip.IPv6Loopback()}, nil
	}
	if len(r.servers) == 0 {
		return nil, fmt.Errorf("resolve %s: no nameservers configured", host)
	}

	var addrs []netip.Addr
	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		found, err := r.query(ctx, dns.Fqdn(host), qtype)
		if err != nil {
			lastErr = err
			continue
		}
		addrs = append(addrs, found...)
	}

	if len(addrs) == 0 {
		if lastErr != nil && !errors.Is(lastErr, ErrHostNotFound) {
			return nil, fmt.Errorf("resolve %s: %w", host, lastErr)
		}
		return nil, fmt.Errorf("resolve %s: %w", host, ErrHostNotFound)
	}

	log.WithFields(log.Fields{
		"host":  host,
		"addrs": addrs,
	}).Trace("Resolved host")
	return addrs, nil
}

// query asks each server in turn until one gives a definitive answer.
func (r *DNSResolver) query(ctx context.Context, fqdn string, qtype uint16) ([]netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(fqdn, qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		in, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			log.WithError(err).WithField("server", server).Trace("DNS exchange failed")
			lastErr = err
			continue
		}

		switch in.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			return nil, ErrHostNotFound
		default:
			lastErr = fmt.Errorf("server %s answered %s", server, dns.RcodeToString[in.Rcode])
			continue
		}

		var addrs []netip.Addr
		for _, rr := range in.Answer {
			switch v := rr.(type) {
			case *dns.A:
				addrs = append(addrs, addrFromIP(v.A))
			case *dns.AAAA:
				addrs = append(addrs, addrFromIP(v.AAAA))
			}
		}
		if len(addrs) == 0 {
			return nil, ErrHostNotFound
		}
		return addrs, nil
	}
	return nil, lastErr
}
