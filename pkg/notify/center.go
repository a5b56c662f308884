// Package notify is a process-wide publish/subscribe registry keyed by event
// name. Posters never block: each subscriber drains its own ordered queue.
package notify

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/reachd/internal/runtime"
)

// Event is a single posted notification. Object is the subject that posted
// it, for example the monitor whose status changed.
type Event struct {
	Name   string
	Object any
	Time   time.Time
}

type subscription struct {
	name  string
	queue *runtime.Queue[Event]
}

type Center struct {
	mu     sync.Mutex
	subs   map[int]subscription
	nextID int
	closed bool
}

func NewCenter() *Center {
	return &Center{
		subs: make(map[int]subscription),
	}
}

var (
	defaultOnce   sync.Once
	defaultCenter *Center
)

// Default returns the process-wide center.
func Default() *Center {
	defaultOnce.Do(func() {
		defaultCenter = NewCenter()
	})
	return defaultCenter
}

// Subscribe returns a channel receiving every event posted under name after
// this call, and a function that cancels the subscription and closes the
// channel. An empty name subscribes to all events. Subscribing to a closed
// center returns an already closed channel.
func (c *Center) Subscribe(name string) (<-chan Event, func()) {
	q := runtime.NewQueue[Event](8)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		q.Close()
		return q.Chan(), func() {}
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = subscription{name: name, queue: q}
	c.mu.Unlock()

	q.SetPaused(false)

	log.WithFields(log.Fields{
		"name":         name,
		"subscriberID": id,
	}).Trace("Notification subscriber added")

	unsub := func() {
		c.mu.Lock()
		if s, ok := c.subs[id]; ok {
			delete(c.subs, id)
			s.queue.Close()
		}
		c.mu.Unlock()
	}
	return q.Chan(), unsub
}

// Post delivers an event to every subscriber of name and returns how many
// subscribers it was queued for.
func (c *Center) Post(name string, object any) int {
	ev := Event{Name: name, Object: object, Time: time.Now()}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, s := range c.subs {
		if s.name != "" && s.name != name {
			continue
		}
		if s.queue.Enqueue(ev) {
			n++
		}
	}
	return n
}

// Close drops all subscribers and closes their channels.
func (c *Center) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for id, s := range c.subs {
		s.queue.Close()
		delete(c.subs, id)
	}
	return nil
}
