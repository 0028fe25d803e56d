// Package event carries work from background goroutines and timers onto the
// single goroutine that owns session and UI state.
package event

import (
	"context"
	"sync"
	"time"
)

// Poster hands a callback to the UI consumer. Post reports false when the
// consumer is gone and the callback was dropped.
type Poster interface {
	Post(fn func()) bool
}

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs a callback on the UI consumer after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Clock schedules callbacks with time.AfterFunc and delivers them through
// Poster, so timer callbacks never run on the timer goroutine.
type Clock struct {
	Poster Poster
}

// AfterFunc implements Scheduler.
func (c Clock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() {
		c.Poster.Post(fn)
	})
}

// Queue is an unbounded FIFO of callbacks with a single consumer. It is the
// headless counterpart of the GUI main loop.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
	notify  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Post implements Poster.
func (q *Queue) Post(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, fn)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of queued callbacks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain runs queued callbacks until the queue is empty, including callbacks
// posted by the callbacks themselves. It returns how many ran.
func (q *Queue) Drain() int {
	n := 0
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return n
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		fn()
		n++
	}
}

// Wait blocks until at least one callback is queued or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		if q.Len() > 0 {
			return nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close makes later posts fail. Callbacks already queued stay queued.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
