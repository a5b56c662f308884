// Package discovery advertises and finds reachd daemons over mDNS.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmdmdm-nz/zeroconf"
	log "github.com/sirupsen/logrus"
)

const (
	ServiceType = "_reachd._tcp"
	Domain      = "local."
)

// Advertiser registers the daemon's API while Start runs.
type Advertiser struct {
	instance string
	port     int
	text     []string

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser. An empty instance uses the host name.
func NewAdvertiser(instance string, port int, version string) *Advertiser {
	if instance == "" {
		instance, _ = os.Hostname()
	}
	return &Advertiser{
		instance: instance,
		port:     port,
		text:     []string{"version=" + version},
	}
}

func (a *Advertiser) Start(ctx context.Context) error {
	server, err := zeroconf.Register(a.instance, ServiceType, Domain, a.port, a.text, nil)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceType, err)
	}

	a.mu.Lock()
	a.server = server
	a.mu.Unlock()

	log.WithFields(log.Fields{
		"instance": a.instance,
		"service":  ServiceType,
		"port":     a.port,
	}).Info("Advertising API")

	<-ctx.Done()
	return nil
}

func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	return nil
}

// Daemon is one discovered reachd instance.
type Daemon struct {
	Instance string
	HostName string
	Addr     net.IP
	Port     int
	Version  string
}

// URL is the base URL of the daemon's API.
func (d Daemon) URL() string {
	return "http://" + net.JoinHostPort(d.Addr.String(), strconv.Itoa(d.Port))
}

// Discover browses for daemons until ctx is done or timeout elapses, and
// returns them sorted by instance name.
func Discover(ctx context.Context, timeout time.Duration) ([]Daemon, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	errCh := make(chan error, 1)
	go func() {
		errCh <- zeroconf.Browse(ctx, ServiceType, Domain, entries)
	}()

	seen := make(map[string]Daemon)
	for entry := range entries {
		d, ok := daemonFromEntry(entry)
		if !ok {
			log.WithField("instance", entry.Instance).Trace("Ignoring entry without addresses")
			continue
		}
		seen[d.Instance] = d
	}
	if err := <-errCh; err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("browse %s: %w", ServiceType, err)
	}

	daemons := make([]Daemon, 0, len(seen))
	for _, d := range seen {
		daemons = append(daemons, d)
	}
	slices.SortFunc(daemons, func(a, b Daemon) int { return strings.Compare(a.Instance, b.Instance) })
	return daemons, nil
}

// daemonFromEntry prefers an IPv4 address; IPv6 link-local addresses are
// skipped since they need a zone to be dialed.
func daemonFromEntry(e *zeroconf.ServiceEntry) (Daemon, bool) {
	d := Daemon{
		Instance: e.Instance,
		HostName: e.HostName,
		Port:     e.Port,
		Version:  textValue(e.Text, "version"),
	}
	if len(e.AddrIPv4) > 0 {
		d.Addr = e.AddrIPv4[0]
		return d, true
	}
	for _, ip := range e.AddrIPv6 {
		if ip.IsLinkLocalUnicast() {
			continue
		}
		d.Addr = ip
		return d, true
	}
	return Daemon{}, false
}

func textValue(txt []string, key string) string {
	for _, kv := range txt {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k == key {
			return v
		}
	}
	return ""
}
