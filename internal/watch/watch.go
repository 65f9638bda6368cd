// Package watch provides a last-value-wins broadcast primitive: a single
// sender publishes successive values of T, and any number of receivers can
// block until the value changes or take a non-blocking snapshot of
// whatever is current. Used by C4's display-layout notifications, C8's
// DCS-BIOS output snapshot publication, and C10's controls-stream push
// gate.
package watch

import (
	"context"
	"sync"
)

type state[T any] struct {
	mu      sync.Mutex
	value   T
	version uint64
	notify  chan struct{}
}

// Sender publishes values of T to every subscribed Receiver.
type Sender[T any] struct {
	st *state[T]
}

// Receiver observes a Sender's published values, tracking the version it
// last saw so Changed only wakes on genuinely new values.
type Receiver[T any] struct {
	st   *state[T]
	seen uint64
}

// NewChannel creates a sender/receiver pair seeded with initial.
func NewChannel[T any](initial T) (*Sender[T], *Receiver[T]) {
	st := &state[T]{value: initial, notify: make(chan struct{})}
	return &Sender[T]{st: st}, &Receiver[T]{st: st}
}

// Send publishes a new value and wakes every receiver blocked in Changed.
func (s *Sender[T]) Send(v T) {
	s.st.mu.Lock()
	s.st.value = v
	s.st.version++
	old := s.st.notify
	s.st.notify = make(chan struct{})
	s.st.mu.Unlock()
	close(old)
}

// Subscribe returns a new receiver cursored at the sender's current version,
// so it only observes values published after this call.
func (s *Sender[T]) Subscribe() *Receiver[T] {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return &Receiver[T]{st: s.st, seen: s.st.version}
}

// Borrow returns the current value without waiting for a change.
func (r *Receiver[T]) Borrow() T {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.st.value
}

// Changed blocks until a value newer than the one this receiver last
// observed is published, or ctx is done. On success the receiver's cursor
// advances to the version it just saw.
func (r *Receiver[T]) Changed(ctx context.Context) error {
	for {
		r.st.mu.Lock()
		version := r.st.version
		notify := r.st.notify
		r.st.mu.Unlock()

		if version > r.seen {
			r.seen = version
			return nil
		}

		select {
		case <-notify:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HasChanged reports whether a newer value is available without blocking or
// advancing the receiver's cursor.
func (r *Receiver[T]) HasChanged() bool {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.st.version > r.seen
}
