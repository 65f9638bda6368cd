// Package latest implements C2: a single-slot, version-stamped hand-off for
// the most recent value of a type. Writers overwrite the slot unconditionally;
// readers compare against a version they last observed and only see a value
// when it has strictly advanced, so a slow reader never blocks a fast writer
// and never replays a value twice.
package latest

import (
	"sync"
	"sync/atomic"
)

// Latest holds the most recently published value of T along with a
// monotonically increasing version counter.
type Latest[T any] struct {
	version atomic.Uint64
	mu      sync.RWMutex
	value   T
}

// New creates a Latest seeded with an initial value at version 0.
func New[T any](initial T) *Latest[T] {
	l := &Latest[T]{value: initial}
	return l
}

// Update overwrites the held value and advances the version. Safe for
// concurrent use by multiple writers, though every caller in this relay
// has exactly one.
func (l *Latest[T]) Update(v T) {
	l.mu.Lock()
	l.value = v
	l.version.Add(1)
	l.mu.Unlock()
}

// Value returns the currently held value and its version, ignoring any
// reader cursor. Useful for a reader taking its first snapshot.
func (l *Latest[T]) Value() (T, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.version.Load()
}

// Version reports the current version without touching the value, useful
// for a cheap changed-check before taking the read lock.
func (l *Latest[T]) Version() uint64 {
	return l.version.Load()
}

// Poll returns the held value and the new cursor only if version has
// advanced past since. ok is false when the caller has already observed the
// current value, in which case the zero value of T is returned.
func (l *Latest[T]) Poll(since uint64) (value T, cursor uint64, ok bool) {
	if l.version.Load() <= since {
		return value, since, false
	}
	l.mu.RLock()
	cur := l.version.Load()
	value = l.value
	l.mu.RUnlock()
	return value, cur, true
}
