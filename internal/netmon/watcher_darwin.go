//go:build darwin

package netmon

import (
	"context"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/route"
	"golang.org/x/sys/unix"
)

type darwinWatcher struct{}

// NewWatcher creates a macOS-specific watcher using an AF_ROUTE socket.
func NewWatcher() Watcher {
	return darwinWatcher{}
}

func (darwinWatcher) Start(ctx context.Context, callback EventHandler) error {
	fd, err := unix.Socket(unix.AF_ROUTE, unix.SOCK_RAW, unix.AF_UNSPEC)
	if err != nil {
		return fmt.Errorf("open route socket: %w", err)
	}

	// Closing the socket unblocks the pending read.
	go func() {
		<-ctx.Done()
		unix.Close(fd)
	}()

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := unix.Read(fd, buf)
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if err == unix.EBADF {
					return
				}
				log.WithError(err).Warn("Error reading from route socket")
				continue
			}

			msgs, err := route.ParseRIB(route.RIBTypeRoute, buf[:n])
			if err != nil {
				log.WithError(err).Trace("Ignoring unparseable routing message")
				continue
			}
			for _, msg := range msgs {
				if ev, ok := eventFromMessage(msg); ok {
					callback(ev)
				}
			}
		}
	}()

	return nil
}

func eventFromMessage(msg route.Message) (Event, bool) {
	var ev Event
	switch m := msg.(type) {
	case *route.RouteMessage:
		ev = Event{Type: RouteChanged, Index: m.Index}
	case *route.InterfaceMessage:
		ev = Event{Type: LinkChanged, Index: m.Index, InterfaceName: m.Name}
	case *route.InterfaceAddrMessage:
		ev = Event{Type: AddrChanged, Index: m.Index}
	default:
		return Event{}, false
	}

	if ev.InterfaceName == "" && ev.Index != 0 {
		if iface, err := net.InterfaceByIndex(ev.Index); err == nil {
			ev.InterfaceName = iface.Name
		}
	}

	log.WithFields(log.Fields{
		"type":      ev.Type,
		"index":     ev.Index,
		"interface": ev.InterfaceName,
	}).Trace("Received routing message")
	return ev, true
}
