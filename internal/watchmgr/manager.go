package watchmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/dmdmdm-nz/reachd/internal/runtime"
	"github.com/dmdmdm-nz/reachd/pkg/notify"
	"github.com/dmdmdm-nz/reachd/pkg/reachability"
	"github.com/dmdmdm-nz/reachd/pkg/runloop"
)

var ErrDuplicateName = errors.New("duplicate target name")

type entry struct {
	monitor *reachability.Monitor
	state   TargetState
}

// Manager owns the daemon's monitors and keeps a published state per target.
type Manager struct {
	center   *notify.Center
	loop     *runloop.Loop
	now      func() time.Time
	registry *prometheus.Registry
	metrics  *metrics

	mu      sync.RWMutex
	names   []string // registration order
	entries map[string]*entry
	byID    map[uuid.UUID]string
	ready   bool
	closed  bool

	subsMu sync.Mutex
	subs   map[int]*runtime.Queue[TargetState]
	nextID int
}

// NewManager creates one monitor per definition. The options are passed to
// every monitor; the manager supplies its own center and delivery loop.
func NewManager(defs []Definition, opts ...reachability.Option) (*Manager, error) {
	registry := prometheus.NewRegistry()
	m := &Manager{
		center:   notify.NewCenter(),
		loop:     runloop.New("watchmgr"),
		now:      time.Now,
		registry: registry,
		metrics:  newMetrics(registry),
		entries:  make(map[string]*entry),
		byID:     make(map[uuid.UUID]string),
		subs:     make(map[int]*runtime.Queue[TargetState]),
	}

	monitorOpts := append(append([]reachability.Option(nil), opts...),
		reachability.WithCenter(m.center),
		reachability.WithLoop(m.loop),
	)

	for _, def := range defs {
		if err := m.add(def, monitorOpts); err != nil {
			_ = m.Close()
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) add(def Definition, opts []reachability.Option) error {
	if def.Name == "" {
		return fmt.Errorf("%w: target without a name", reachability.ErrInvalidTarget)
	}
	if _, exists := m.entries[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, def.Name)
	}

	mon, err := def.newMonitor(opts)
	if err != nil {
		return fmt.Errorf("target %s: %w", def.Name, err)
	}

	name := def.Name
	mon.AddNotificationFunc(func(r *reachability.Monitor) {
		log.WithFields(log.Fields{
			"name":       name,
			"status":     r.CurrentStatus(),
			"lastStatus": r.LastStatus(),
		}).Info("Target reachability changed")
	})

	state := stateOf(name, mon)
	now := m.now()
	state.Since, state.Updated = now, now

	m.names = append(m.names, name)
	m.entries[name] = &entry{monitor: mon, state: state}
	m.byID[mon.ID()] = name
	m.metrics.observe(state, false)
	return nil
}

// Start starts every notifier and then applies change notifications until
// ctx is cancelled. A target whose notifier cannot start is still listed,
// with Notifying false.
func (m *Manager) Start(ctx context.Context) error {
	log.Info("Starting watch manager")
	defer log.Info("Stopping watch manager")

	events, unsub := m.center.Subscribe(reachability.ChangedNotification)
	defer unsub()

	m.mu.RLock()
	names := append([]string(nil), m.names...)
	m.mu.RUnlock()

	for _, name := range names {
		m.mu.RLock()
		e, ok := m.entries[name]
		m.mu.RUnlock()
		if !ok {
			continue
		}
		if !e.monitor.StartNotifier() {
			log.WithField("name", name).Warn("Failed to start notifier for target")
		}
		m.update(name, false)
	}

	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	log.WithField("targets", len(names)).Info("Watching targets")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			mon, ok := ev.Object.(*reachability.Monitor)
			if !ok {
				continue
			}
			m.mu.RLock()
			name, known := m.byID[mon.ID()]
			m.mu.RUnlock()
			if known {
				m.update(name, true)
			}
		}
	}
}

// Close stops all monitors and subscribers.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.ready = false
	entries := make(map[string]*entry, len(m.entries))
	for name, e := range m.entries {
		entries[name] = e
	}
	m.mu.Unlock()

	var err error
	for name, e := range entries {
		log.WithField("name", name).Debug("Closing monitor")
		if cerr := e.monitor.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("target %s: %w", name, cerr))
		}
	}

	m.subsMu.Lock()
	for id, q := range m.subs {
		q.Close()
		delete(m.subs, id)
	}
	m.subsMu.Unlock()

	m.loop.Close()
	return multierr.Append(err, m.center.Close())
}

// update re-reads a monitor into its published state and fans it out.
// changed marks a delivered notification.
func (m *Manager) update(name string, changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	if !ok || m.closed {
		return
	}

	now := m.now()
	next := stateOf(name, e.monitor)
	next.Changes = e.state.Changes
	if changed {
		next.Changes++
	}
	next.Since = e.state.Since
	if next.Status != e.state.Status {
		next.Since = now
	}
	next.Updated = now
	e.state = next
	m.metrics.observe(next, changed)

	m.subsMu.Lock()
	for _, q := range m.subs {
		q.Enqueue(next)
	}
	m.subsMu.Unlock()
}

// Gatherer exposes the per-target metrics.
func (m *Manager) Gatherer() prometheus.Gatherer { return m.registry }

// Ready reports whether Start has started the notifiers.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// Snapshot returns all target states in definition order.
func (m *Manager) Snapshot() []TargetState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() []TargetState {
	states := make([]TargetState, 0, len(m.names))
	for _, name := range m.names {
		states = append(states, m.entries[name].state)
	}
	return states
}

// Get returns the state of one target.
func (m *Manager) Get(name string) (TargetState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return TargetState{}, false
	}
	return e.state, true
}

// Monitor returns the monitor behind a target.
func (m *Manager) Monitor(name string) (*reachability.Monitor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return nil, false
	}
	return e.monitor, true
}

// Subscribe delivers the current state of every target, then every update.
// The channel is closed by the returned func or by Close.
func (m *Manager) Subscribe() (<-chan TargetState, func()) {
	m.mu.RLock()
	snapshot := m.snapshotLocked()
	sub := runtime.NewQueue[TargetState](len(snapshot) + 8)

	// Registered under the read lock so no update falls between the
	// snapshot and the live stream.
	m.subsMu.Lock()
	closed := m.closed
	id := m.nextID
	if !closed {
		m.nextID++
		m.subs[id] = sub
	}
	m.subsMu.Unlock()
	m.mu.RUnlock()

	if closed {
		sub.Close()
		return sub.Chan(), func() {}
	}

	for _, state := range snapshot {
		sub.SendSnapshot(state)
	}
	sub.SetPaused(false)

	unsub := func() {
		m.subsMu.Lock()
		if q, ok := m.subs[id]; ok {
			delete(m.subs, id)
			q.Close()
		}
		m.subsMu.Unlock()
	}
	return sub.Chan(), unsub
}
