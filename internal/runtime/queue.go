package runtime

import (
	"sync"
)

// Queue is an unbounded, ordered hand-off between a producer that must never
// block and a single consumer reading from Chan. A dispatcher goroutine moves
// items from the in-memory backlog to the output channel.
type Queue[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	backlog []T
	closed  bool

	outCh  chan T // consumer reads from this
	done   chan struct{}
	paused bool // held back until the subscriber has its snapshot
}

// NewQueue returns a paused queue whose output channel has outBuf slots.
func NewQueue[T any](outBuf int) *Queue[T] {
	q := &Queue[T]{
		outCh:  make(chan T, outBuf),
		done:   make(chan struct{}),
		paused: true,
	}
	q.cond = sync.NewCond(&q.mu)
	go q.dispatch()
	return q
}

func (q *Queue[T]) Chan() <-chan T { return q.outCh }

// Enqueue appends ev to the backlog. It reports false once the queue is closed.
func (q *Queue[T]) Enqueue(ev T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.backlog = append(q.backlog, ev)
	q.cond.Signal()
	return true
}

// Len is the number of items not yet handed to the output channel.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

func (q *Queue[T]) SetPaused(v bool) {
	q.mu.Lock()
	q.paused = v
	q.cond.Broadcast()
	q.mu.Unlock()
}

// SendSnapshot writes ev straight to the output channel, bypassing the
// backlog. Only valid while paused and while the channel buffer still has
// room for the whole snapshot.
func (q *Queue[T]) SendSnapshot(ev T) {
	q.outCh <- ev
}

// Close stops the dispatcher. Pending items are discarded and the output
// channel is closed.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.backlog = nil
	close(q.done)
	q.cond.Broadcast()
}

func (q *Queue[T]) dispatch() {
	for {
		q.mu.Lock()
		for !q.closed && (q.paused || len(q.backlog) == 0) {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			close(q.outCh)
			return
		}
		ev := q.backlog[0]
		var zero T
		q.backlog[0] = zero
		q.backlog = q.backlog[1:]
		q.mu.Unlock()

		select {
		case q.outCh <- ev:
		case <-q.done:
			close(q.outCh)
			return
		}
	}
}
