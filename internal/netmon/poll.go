package netmon

import (
	"context"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
)

// newTimer is a factory closure for a timer channel and its Stop function.
type newTimer func(time.Duration) (<-chan time.Time, func() bool)

func defaultNewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// PollWatcher detects changes by comparing interface snapshots taken at a
// fixed interval. It works everywhere but reacts no faster than the interval.
type PollWatcher struct {
	interval time.Duration
	list     func() ([]Interface, error)
	newTimer newTimer
}

// NewPollWatcher creates a polling watcher. A nil list uses SystemInterfaces.
func NewPollWatcher(interval time.Duration, list func() ([]Interface, error)) *PollWatcher {
	if list == nil {
		list = SystemInterfaces
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &PollWatcher{
		interval: interval,
		list:     list,
		newTimer: defaultNewTimer,
	}
}

func (w *PollWatcher) Start(ctx context.Context, callback EventHandler) error {
	prev, err := w.snapshot()
	if err != nil {
		return err
	}

	go func() {
		for {
			timeCh, stop := w.newTimer(w.interval)
			select {
			case <-ctx.Done():
				stop()
				return
			case <-timeCh:
			}

			next, err := w.snapshot()
			if err != nil {
				log.WithError(err).Warn("Failed to poll network interfaces")
				continue
			}
			for _, ev := range diffSnapshots(prev, next) {
				callback(ev)
			}
			prev = next
		}
	}()
	return nil
}

func (w *PollWatcher) snapshot() (map[string]Interface, error) {
	ifaces, err := w.list()
	if err != nil {
		return nil, err
	}
	snap := make(map[string]Interface, len(ifaces))
	for _, iface := range ifaces {
		snap[iface.Name] = iface
	}
	return snap, nil
}

// diffSnapshots reports link changes for interfaces that appeared, vanished
// or changed state, and address changes for interfaces whose addresses moved.
// Events are ordered by interface name.
func diffSnapshots(prev, next map[string]Interface) []Event {
	names := make([]string, 0, len(prev)+len(next))
	for name := range prev {
		names = append(names, name)
	}
	for name := range next {
		if _, ok := prev[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var events []Event
	for _, name := range names {
		before, hadBefore := prev[name]
		after, hasAfter := next[name]

		switch {
		case !hadBefore:
			events = append(events, Event{Type: LinkChanged, InterfaceName: name, Index: after.Index})
		case !hasAfter:
			events = append(events, Event{Type: LinkChanged, InterfaceName: name, Index: before.Index})
		case before.Up != after.Up || before.Dormant != after.Dormant:
			events = append(events, Event{Type: LinkChanged, InterfaceName: name, Index: after.Index})
		case !slices.Equal(before.Addrs, after.Addrs):
			events = append(events, Event{Type: AddrChanged, InterfaceName: name, Index: after.Index})
		}
	}
	return events
}
