// Package util holds small concurrency helpers shared by the controller
// and its viewers.
package util

import (
	"sync"
)

// AtomicEvent keeps the latest value of a stream of snapshots. Writers
// never block; readers select on Channel and then read Value. Every
// change bumps a sequence number, so a reader can tell whether it has
// already seen the current value.
type AtomicEvent[T any] struct {
	mu     sync.Mutex
	value  T
	seq    uint64
	notify chan struct{}
}

func NewAtomicEvent[T any]() *AtomicEvent[T] {
	return &AtomicEvent[T]{
		notify: make(chan struct{}, 1),
	}
}

// Send replaces the value.
func (ae *AtomicEvent[T]) Send(event T) {
	ae.Update(func(T) T { return event })
}

// Update replaces the value with fn applied to the current one. fn runs
// under the lock and must not call back into ae.
func (ae *AtomicEvent[T]) Update(fn func(T) T) {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	ae.value = fn(ae.value)
	ae.seq++
	select {
	case ae.notify <- struct{}{}:
	default:
		// a notification is already pending
	}
}

// Channel signals that the value changed since it was last drained.
func (ae *AtomicEvent[T]) Channel() <-chan struct{} {
	return ae.notify
}

func (ae *AtomicEvent[T]) Value() T {
	v, _ := ae.Snapshot()
	return v
}

// Snapshot returns the value together with its sequence number. The
// sequence number is 0 before the first Send.
func (ae *AtomicEvent[T]) Snapshot() (T, uint64) {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	return ae.value, ae.seq
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
