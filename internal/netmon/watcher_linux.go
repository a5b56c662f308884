//go:build linux

package netmon

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

type linuxWatcher struct{}

// NewWatcher creates a Linux-specific watcher using netlink.
func NewWatcher() Watcher {
	return linuxWatcher{}
}

func (linuxWatcher) Start(ctx context.Context, callback EventHandler) error {
	linkCh := make(chan netlink.LinkUpdate, 32)
	addrCh := make(chan netlink.AddrUpdate, 32)
	routeCh := make(chan netlink.RouteUpdate, 32)
	done := make(chan struct{})

	if err := netlink.LinkSubscribe(linkCh, done); err != nil {
		close(done)
		return fmt.Errorf("subscribe to link updates: %w", err)
	}
	if err := netlink.AddrSubscribe(addrCh, done); err != nil {
		close(done)
		return fmt.Errorf("subscribe to address updates: %w", err)
	}
	if err := netlink.RouteSubscribe(routeCh, done); err != nil {
		close(done)
		return fmt.Errorf("subscribe to route updates: %w", err)
	}

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return

			case update, ok := <-linkCh:
				if !ok {
					log.Warn("Netlink link subscription closed")
					return
				}
				attrs := update.Link.Attrs()
				log.WithFields(log.Fields{
					"interface": attrs.Name,
					"flags":     attrs.Flags,
					"operState": attrs.OperState,
				}).Trace("Received link update")
				callback(Event{Type: LinkChanged, InterfaceName: attrs.Name, Index: attrs.Index})

			case update, ok := <-addrCh:
				if !ok {
					log.Warn("Netlink address subscription closed")
					return
				}
				log.WithFields(log.Fields{
					"index":   update.LinkIndex,
					"address": update.LinkAddress.String(),
					"new":     update.NewAddr,
				}).Trace("Received address update")
				callback(Event{Type: AddrChanged, Index: update.LinkIndex})

			case update, ok := <-routeCh:
				if !ok {
					log.Warn("Netlink route subscription closed")
					return
				}
				log.WithFields(log.Fields{
					"index": update.LinkIndex,
					"dst":   update.Dst,
					"type":  update.Type,
				}).Trace("Received route update")
				callback(Event{Type: RouteChanged, Index: update.LinkIndex})
			}
		}
	}()

	return nil
}
