package reachability

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/reachd/pkg/notify"
	"github.com/dmdmdm-nz/reachd/pkg/runloop"
)

// ChangedNotification is posted to the monitor's notify.Center after every
// delivered change. The event Object is the *Monitor.
const ChangedNotification = "network-reachability-changed"

var (
	// ErrInvalidTarget is returned by the constructors for unusable targets.
	ErrInvalidTarget = errors.New("invalid reachability target")

	// ErrClosed is reported for operations on a closed Monitor.
	ErrClosed = errors.New("reachability monitor closed")
)

// NotificationFunc is called with the monitor whose reachability changed.
type NotificationFunc func(*Monitor)

// Monitor tracks the reachability of one Target.
//
// Notification funcs run on a single event loop, one at a time and in
// registration order, so they never overlap. They are called without any
// monitor lock held and may use every Monitor method.
type Monitor struct {
	id     uuid.UUID
	target Target
	source Source
	center *notify.Center
	loop   *runloop.Loop
	log    *log.Entry

	// startMu serializes StartNotifier, StopNotifier and Close.
	startMu sync.Mutex

	mu           sync.Mutex
	seeded       bool
	flags        Flags
	current      Status
	last         Status
	callbacks    []NotificationFunc
	invokeOnMain bool
	notifying    bool
	closed       bool
	generation   uint64
	cancel       context.CancelFunc
	deliverLoop  *runloop.Loop
	ownedLoop    *runloop.Loop
}

// ForHostName watches the path to a host name. IP literals are accepted.
func ForHostName(name string, opts ...Option) (*Monitor, error) {
	t, err := hostTarget(name)
	if err != nil {
		return nil, err
	}
	return newMonitor(t, opts)
}

// ForAddress watches the path to an IP address.
func ForAddress(addr netip.AddrPort, opts ...Option) (*Monitor, error) {
	t, err := addressTarget(addr)
	if err != nil {
		return nil, err
	}
	return newMonitor(t, opts)
}

// ForInternetConnection watches the default route. Use it when there is no
// particular host to connect to.
func ForInternetConnection(opts ...Option) (*Monitor, error) {
	return newMonitor(internetTarget(), opts)
}

// ForLocalWiFi watches whether a direct local link is available.
func ForLocalWiFi(opts ...Option) (*Monitor, error) {
	return newMonitor(localWiFiTarget(), opts)
}

func newMonitor(t Target, opts []Option) (*Monitor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	source, err := o.factory(t)
	if err != nil {
		return nil, fmt.Errorf("allocate reachability source for %s: %w", t, err)
	}

	id := uuid.New()
	logger := o.logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	return &Monitor{
		id:           id,
		target:       t,
		source:       source,
		center:       o.center,
		loop:         o.loop,
		invokeOnMain: o.invokeOnMain,
		log: logger.WithFields(log.Fields{
			"monitor": id.String(),
			"target":  t.String(),
		}),
	}, nil
}

// ID identifies the monitor in logs and broadcasts.
func (m *Monitor) ID() uuid.UUID { return m.id }

// Target returns what the monitor was created for.
func (m *Monitor) Target() Target { return m.target }

// CurrentStatus returns the current status. While notifying this is the
// value kept up to date by the platform; otherwise the platform is queried
// and a differing answer is recorded as a change without notifying anyone.
func (m *Monitor) CurrentStatus() Status {
	_, current, _ := m.state()
	return current
}

// LastStatus returns the status that preceded the most recent change, or the
// current status if there has been no change.
func (m *Monitor) LastStatus() Status {
	_, _, last := m.state()
	return last
}

// ConnectionRequired reports whether the path exists but a connection must
// be established first, such as an idle cellular radio or on-demand VPN.
func (m *Monitor) ConnectionRequired() bool {
	flags, _, _ := m.state()
	return flags.Has(FlagConnectionRequired)
}

// Flags returns the latest platform flags for the target.
func (m *Monitor) Flags() Flags {
	flags, _, _ := m.state()
	return flags
}

// IsNotifying reports whether StartNotifier succeeded and StopNotifier has
// not been called since.
func (m *Monitor) IsNotifying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifying
}

// InvokeOnMain reports whether callbacks are delivered on runloop.Main().
func (m *Monitor) InvokeOnMain() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invokeOnMain
}

// SetInvokeOnMain chooses between runloop.Main() and the loop StartNotifier
// used for delivering notifications. It applies to changes detected after
// the call.
func (m *Monitor) SetInvokeOnMain(v bool) {
	m.mu.Lock()
	m.invokeOnMain = v
	m.mu.Unlock()
}

// AddNotificationFunc registers fn to run on every change. A func may be
// added more than once; each registration runs.
func (m *Monitor) AddNotificationFunc(fn NotificationFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// RemoveAllNotificationFuncs drops every registered func.
func (m *Monitor) RemoveAllNotificationFuncs() {
	m.mu.Lock()
	m.callbacks = nil
	m.mu.Unlock()
}

// StartNotifier begins delivering changes on the loop given by WithLoop, or
// on a private loop. It reports false if the monitor is already notifying,
// has been closed, or the platform subscription could not be made.
func (m *Monitor) StartNotifier() bool {
	return m.StartNotifierOn(m.loop)
}

// StartNotifierOn is StartNotifier with an explicit delivery loop. A nil
// loop behaves like StartNotifier without WithLoop.
func (m *Monitor) StartNotifierOn(loop *runloop.Loop) bool {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.log.Debug("Cannot start notifier on closed monitor")
		return false
	}
	if m.notifying {
		m.mu.Unlock()
		m.log.Debug("Notifier already started")
		return false
	}
	m.mu.Unlock()

	var owned *runloop.Loop
	if loop == nil {
		owned = runloop.New("reachability-" + m.id.String())
		loop = owned
	}
	if loop.IsClosed() {
		m.log.WithField("loop", loop.Name()).Warn("Cannot start notifier on a closed loop")
		return false
	}

	if flags, err := m.source.Flags(); err != nil {
		m.log.WithError(err).Debug("Initial reachability query failed")
	} else {
		m.mu.Lock()
		m.applyLocked(flags)
		m.mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.deliverLoop = loop
	m.mu.Unlock()

	if err := m.source.Watch(ctx, func(f Flags) { m.handleFlags(gen, f) }); err != nil {
		cancel()
		m.mu.Lock()
		m.generation++
		m.deliverLoop = nil
		m.mu.Unlock()
		if owned != nil {
			owned.Close()
		}
		m.log.WithError(err).Warn("Failed to start reachability notifier")
		return false
	}

	m.mu.Lock()
	m.notifying = true
	m.cancel = cancel
	m.ownedLoop = owned
	status := m.current
	m.mu.Unlock()

	m.log.WithFields(log.Fields{
		"status": status,
		"loop":   loop.Name(),
	}).Info("Started reachability notifier")
	return true
}

// StopNotifier stops delivering changes. Changes already queued on the
// delivery loop are dropped. Calling it when not notifying does nothing.
func (m *Monitor) StopNotifier() {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	m.mu.Lock()
	if !m.notifying {
		m.mu.Unlock()
		return
	}
	m.generation++
	m.notifying = false
	cancel, owned := m.cancel, m.ownedLoop
	m.cancel, m.ownedLoop, m.deliverLoop = nil, nil, nil
	m.mu.Unlock()

	cancel()
	if owned != nil {
		owned.Close()
	}
	m.log.Info("Stopped reachability notifier")
}

// Close stops the notifier and releases the platform source. The monitor
// cannot be started again.
func (m *Monitor) Close() error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.stopLocked()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if err := m.source.Close(); err != nil {
		return fmt.Errorf("close reachability source: %w", err)
	}
	return nil
}

func (m *Monitor) statusFor(flags Flags) Status {
	if m.target.Kind == TargetLocalWiFi {
		return LocalWiFiStatusForFlags(flags)
	}
	return StatusForFlags(flags)
}

// state returns flags, current and last status, querying the source when no
// notifier keeps them fresh.
func (m *Monitor) state() (Flags, Status, Status) {
	m.mu.Lock()
	if m.notifying && m.seeded {
		defer m.mu.Unlock()
		return m.flags, m.current, m.last
	}
	m.mu.Unlock()

	flags, err := m.source.Flags()

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case err == nil:
		m.applyLocked(flags)
	case !m.seeded:
		m.log.WithError(err).Debug("Reachability query failed")
		m.applyLocked(0)
	default:
		m.log.WithError(err).Debug("Reachability query failed, using cached status")
	}
	return m.flags, m.current, m.last
}

// applyLocked records new flags and reports whether they differ from the
// previous ones. The first flags seed both statuses and are not a change.
// last only moves when the status itself changes.
func (m *Monitor) applyLocked(flags Flags) bool {
	status := m.statusFor(flags)
	if !m.seeded {
		m.seeded = true
		m.flags, m.current, m.last = flags, status, status
		return false
	}
	if flags == m.flags {
		return false
	}
	if status != m.current {
		m.last, m.current = m.current, status
	}
	m.flags = flags
	return true
}

func (m *Monitor) handleFlags(gen uint64, flags Flags) {
	m.mu.Lock()
	if gen != m.generation || m.closed {
		m.mu.Unlock()
		return
	}
	if !m.applyLocked(flags) {
		m.mu.Unlock()
		return
	}
	loop := m.deliverLoop
	if m.invokeOnMain {
		loop = runloop.Main()
	}
	current, last := m.current, m.last
	m.mu.Unlock()

	m.log.WithFields(log.Fields{
		"status":     current,
		"lastStatus": last,
		"flags":      flags.String(),
	}).Debug("Reachability changed")

	if !loop.Post(func() { m.deliver(gen) }) {
		m.log.WithField("loop", loop.Name()).Warn("Dropped reachability change, delivery loop closed")
	}
}

// deliver runs on the delivery loop.
func (m *Monitor) deliver(gen uint64) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	callbacks := slices.Clone(m.callbacks)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(m)
	}
	if m.center != nil {
		m.center.Post(ChangedNotification, m)
	}
}
