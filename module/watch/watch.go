// Package watch implements a single-producer, multi-consumer channel that only
// retains the most recent value. Receivers observe the latest value and can wait
// for it to change. Closing the sender is observable by every receiver.
package watch

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Receiver.Changed once the sender has been closed.
var ErrClosed = errors.New("watch channel closed")

type shared[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	changed chan struct{} // closed and replaced on every send
	closed  chan struct{}
	once    sync.Once
}

// Sender publishes values to every Receiver subscribed to it.
type Sender[T any] struct {
	shared *shared[T]
}

// Receiver observes the values published by a Sender.
type Receiver[T any] struct {
	shared *shared[T]
	seen   uint64
}

// New creates a watch channel holding initial, and returns both of its ends.
func New[T any](initial T) (*Sender[T], *Receiver[T]) {
	s := &shared[T]{
		value:   initial,
		changed: make(chan struct{}),
		closed:  make(chan struct{}),
	}
	return &Sender[T]{shared: s}, &Receiver[T]{shared: s}
}

// Send replaces the current value and wakes every waiting receiver.
// Sending on a closed channel is a no-op and returns ErrClosed.
func (s *Sender[T]) Send(value T) error {
	sh := s.shared
	sh.mu.Lock()
	defer sh.mu.Unlock()

	select {
	case <-sh.closed:
		return ErrClosed
	default:
	}

	sh.value = value
	sh.version++
	close(sh.changed)
	sh.changed = make(chan struct{})
	return nil
}

// Borrow returns the current value without marking it as seen by any receiver.
func (s *Sender[T]) Borrow() T {
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()
	return s.shared.value
}

// Subscribe returns a new receiver which considers the current value as already seen.
func (s *Sender[T]) Subscribe() *Receiver[T] {
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()
	return &Receiver[T]{shared: s.shared, seen: s.shared.version}
}

// Close closes the channel. Receivers waiting in Changed return ErrClosed and the
// channel returned by Receiver.Closed is closed. Close is idempotent.
func (s *Sender[T]) Close() {
	s.shared.once.Do(func() {
		s.shared.mu.Lock()
		defer s.shared.mu.Unlock()
		close(s.shared.closed)
	})
}

// Borrow returns the latest value without marking it as seen.
func (r *Receiver[T]) Borrow() T {
	r.shared.mu.RLock()
	defer r.shared.mu.RUnlock()
	return r.shared.value
}

// BorrowAndUpdate returns the latest value and marks it as seen.
func (r *Receiver[T]) BorrowAndUpdate() T {
	r.shared.mu.RLock()
	defer r.shared.mu.RUnlock()
	r.seen = r.shared.version
	return r.shared.value
}

// HasChanged reports whether a value newer than the last seen one has been sent.
func (r *Receiver[T]) HasChanged() bool {
	r.shared.mu.RLock()
	defer r.shared.mu.RUnlock()
	return r.shared.version != r.seen
}

// Closed returns a channel which is closed once the sender is closed.
func (r *Receiver[T]) Closed() <-chan struct{} {
	return r.shared.closed
}

// Changed blocks until a value newer than the last seen one is available, the
// sender is closed or ctx is cancelled. It marks the new value as seen.
// A pending unseen value is reported even after the sender has been closed.
func (r *Receiver[T]) Changed(ctx context.Context) error {
	for {
		r.shared.mu.RLock()
		version := r.shared.version
		changed := r.shared.changed
		r.shared.mu.RUnlock()

		if version != r.seen {
			r.seen = version
			return nil
		}

		select {
		case <-changed:
		case <-r.shared.closed:
			if r.HasChanged() {
				continue
			}
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Clone returns an independent receiver starting from the same seen version.
func (r *Receiver[T]) Clone() *Receiver[T] {
	return &Receiver[T]{shared: r.shared, seen: r.seen}
}
