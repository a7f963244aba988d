package xcubus

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrQueueFull   = errors.New("xcubus: delivery queue full")
	ErrQueueClosed = errors.New("xcubus: delivery queue closed")
)

// Queue is a FIFO delivery buffer of frames for one bus endpoint.
// It is safe for concurrent producers and a single consumer.
//
// A capacity of 0 means unbounded. Both ends support timeout
// semantics: a negative timeout blocks indefinitely, zero polls
// without waiting, and a positive timeout waits up to that duration.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Frame
	cap    int
	closed bool
}

// NewQueue creates a queue holding up to capacity frames, or
// unbounded when capacity is 0.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	q := &Queue{cap: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// waitLocked blocks on the queue condition, waking early at the
// deadline. Returns false once the deadline has passed. Must be
// called with q.mu held; spurious wakeups are expected and callers
// re-check their predicate in a loop.
func (q *Queue) waitLocked(deadline time.Time, timed bool) bool {
	if !timed {
		q.cond.Wait()
		return true
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	t := time.AfterFunc(remaining, q.cond.Broadcast)
	q.cond.Wait()
	t.Stop()
	return true
}

// Put appends a frame, blocking up to timeout while the queue is at
// capacity. Returns ErrQueueFull when the timeout elapses first and
// ErrQueueClosed once the queue has been closed.
func (q *Queue) Put(f Frame, timeout time.Duration) error {
	timed := timeout >= 0
	var deadline time.Time
	if timed {
		deadline = time.Now().Add(timeout)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closed {
			return ErrQueueClosed
		}
		if q.cap == 0 || len(q.items) < q.cap {
			q.items = append(q.items, f)
			q.cond.Broadcast()
			return nil
		}
		if !q.waitLocked(deadline, timed) {
			return ErrQueueFull
		}
	}
}

// Get removes and returns the oldest frame. The boolean is false when
// the timeout elapses with the queue still empty. Returns
// ErrQueueClosed once the queue has been closed and drained.
func (q *Queue) Get(timeout time.Duration) (Frame, bool, error) {
	timed := timeout >= 0
	var deadline time.Time
	if timed {
		deadline = time.Now().Add(timeout)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if len(q.items) > 0 {
			f := q.items[0]
			q.items = q.items[1:]
			q.cond.Broadcast()
			return f, true, nil
		}
		if q.closed {
			return Frame{}, false, ErrQueueClosed
		}
		if !q.waitLocked(deadline, timed) {
			return Frame{}, false, nil
		}
	}
}

// Len reports the number of buffered frames.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes all waiters. Buffered frames
// remain readable; further Put calls fail.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}
