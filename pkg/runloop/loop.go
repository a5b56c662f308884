// Package runloop provides serial event loops: every task posted to a Loop
// runs on the loop's single goroutine, one at a time, in the order posted.
package runloop

import (
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/reachd/internal/runtime"
)

type Loop struct {
	name   string
	tasks  *runtime.Queue[func()]
	closed atomic.Bool
	done   chan struct{}
}

// New starts a loop. The name only appears in logs.
func New(name string) *Loop {
	l := &Loop{
		name:  name,
		tasks: runtime.NewQueue[func()](16),
		done:  make(chan struct{}),
	}
	l.tasks.SetPaused(false)
	go l.run()
	return l
}

func (l *Loop) Name() string { return l.name }

// Post schedules fn. It reports false if the loop has been closed.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	return l.tasks.Enqueue(fn)
}

// Sync posts fn and waits for it to finish. It reports false if the loop
// closed before fn ran.
func (l *Loop) Sync(fn func()) bool {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.done:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// Close stops the loop. Tasks that have not started are dropped; a task that
// is running finishes first.
func (l *Loop) Close() {
	l.closed.Store(true)
	l.tasks.Close()
}

// IsClosed reports whether Close has been called. The loop goroutine may
// still be finishing its current task.
func (l *Loop) IsClosed() bool { return l.closed.Load() }

// Closed is closed once the loop goroutine has exited.
func (l *Loop) Closed() <-chan struct{} { return l.done }

func (l *Loop) run() {
	defer close(l.done)
	for fn := range l.tasks.Chan() {
		if l.closed.Load() {
			continue
		}
		l.invoke(fn)
	}
	log.WithField("loop", l.name).Trace("Run loop exited")
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"loop":  l.name,
				"panic": r,
			}).Error("Recovered panic in run loop task")
		}
	}()
	fn()
}

var (
	mainOnce sync.Once
	mainLoop *Loop
)

// Main returns the process-wide main loop. It is created on first use and is
// never closed.
func Main() *Loop {
	mainOnce.Do(func() {
		mainLoop = New("main")
	})
	return mainLoop
}
