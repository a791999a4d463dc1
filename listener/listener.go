// Package listener binds typed handlers to backend signals.
//
// A Signal is an observer list owned by whoever emits on it (a backend, a
// device, an output). A Listener is one registration of a handler on one
// Signal. The handler closure captures whatever typed context it needs, so
// emitting never has to recover state from an untyped pointer.
//
// The owner of a Listener must call Remove before it is dropped:
//
//	l, err := listener.Register(dev.Pointer.Motion, func(ev *backend.PointerMotionEvent) {
//	    handle(comp, dev, ev)
//	})
//	if err != nil {
//	    return err
//	}
//	defer l.Remove()
package listener

import (
	"errors"
	"sync"
)

// ErrNilSignal is returned when registering on a signal that does not exist.
var ErrNilSignal = errors.New("listener: nil signal")

// Signal is a list of listeners notified with a value of type T.
// The zero value is ready to use.
type Signal[T any] struct {
	mu        sync.Mutex
	listeners []*Listener[T]
}

// NewSignal returns an empty signal.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{}
}

// Emit notifies every listener attached when Emit was called, in
// registration order. Listeners removed by an earlier listener during the
// same emission are skipped.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	snapshot := make([]*Listener[T], len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.Unlock()

	for _, l := range snapshot {
		if !l.Attached() {
			continue
		}
		l.notify(v)
	}
}

// Len returns the number of attached listeners.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *Signal[T]) add(l *Listener[T]) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

func (s *Signal[T]) remove(l *Listener[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.listeners {
		if cur == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Listener is a single handler registration on a Signal.
type Listener[T any] struct {
	mu     sync.Mutex
	signal *Signal[T]
	notify func(T)
}

// Register attaches notify to sig and returns the registration token.
func Register[T any](sig *Signal[T], notify func(T)) (*Listener[T], error) {
	if sig == nil {
		return nil, ErrNilSignal
	}
	if notify == nil {
		return nil, errors.New("listener: nil handler")
	}
	l := &Listener[T]{signal: sig, notify: notify}
	sig.add(l)
	return l, nil
}

// Remove detaches the listener from its signal. Calling Remove on a
// listener that is already detached does nothing.
func (l *Listener[T]) Remove() {
	if l == nil {
		return
	}
	l.mu.Lock()
	sig := l.signal
	l.signal = nil
	l.mu.Unlock()

	if sig != nil {
		sig.remove(l)
	}
}

// Attached reports whether the listener is still registered.
func (l *Listener[T]) Attached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.signal != nil
}

// Remover is implemented by every Listener regardless of payload type.
type Remover interface {
	Remove()
}

// Set groups the listeners registered by one owner so they can be
// detached together when the owner goes away.
type Set struct {
	mu        sync.Mutex
	listeners []Remover
}

// Add records a listener in the set.
func (s *Set) Add(r Remover) {
	if r == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, r)
	s.mu.Unlock()
}

// Len returns the number of listeners in the set.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// RemoveAll detaches every listener in the set, most recent first, and
// empties it.
func (s *Set) RemoveAll() {
	s.mu.Lock()
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for i := len(listeners) - 1; i >= 0; i-- {
		listeners[i].Remove()
	}
}

// Attach registers notify on sig and records the listener in set.
// It is a shorthand for Register followed by set.Add.
func Attach[T any](set *Set, sig *Signal[T], notify func(T)) (*Listener[T], error) {
	l, err := Register(sig, notify)
	if err != nil {
		return nil, err
	}
	set.Add(l)
	return l, nil
}
