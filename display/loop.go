package display

import (
	"context"
	"sync"
)

// EventLoop runs dispatches one at a time on the goroutine that called
// Display.Run. Any goroutine may queue work with Post; queued functions run
// in FIFO order, each to completion before the next starts.
type EventLoop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

func newEventLoop() *EventLoop {
	return &EventLoop{wake: make(chan struct{}, 1)}
}

// Post queues fn. It never blocks.
func (l *EventLoop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Invoke queues fn and waits until it has run or ctx is done.
func (l *EventLoop) Invoke(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued functions.
func (l *EventLoop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// DispatchPending runs every function queued so far on the calling
// goroutine and returns how many ran. It must not be called while the
// display is running.
func (l *EventLoop) DispatchPending() int {
	n := 0
	for {
		fn := l.next()
		if fn == nil {
			return n
		}
		fn()
		n++
	}
}

func (l *EventLoop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil
	}
	fn := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return fn
}

// run dispatches until stop is closed. The stop channel is checked between
// dispatches, so the in-flight function always completes.
func (l *EventLoop) run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		if fn := l.next(); fn != nil {
			fn()
			continue
		}

		select {
		case <-stop:
			return
		case <-l.wake:
		}
	}
}
