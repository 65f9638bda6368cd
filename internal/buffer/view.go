package buffer

import "sync/atomic"

// View is a single-owner handle to a pool-backed byte slice. Release returns
// the backing storage to the pool; a View must not be used after Release.
type View struct {
	pool     *Pool
	data     []byte
	released bool
}

// Bytes returns the current logical contents of the view.
func (v *View) Bytes() []byte { return v.data }

// Len returns the logical length of the view.
func (v *View) Len() int { return len(v.data) }

// Resize grows or shrinks the logical length to n, reusing the existing
// backing array when it has sufficient capacity. Nothing in this codebase
// calls it; capture-link sizes its views with Pool.TakeRaw instead.
func (v *View) Resize(n int) {
	if n <= cap(v.data) {
		v.data = v.data[:n]
		return
	}
	grown := make([]byte, n)
	copy(grown, v.data)
	v.data = grown
}

// Append writes p onto the end of the view, growing the backing array if
// necessary (falls outside the pool in that case, same as append()).
func (v *View) Append(p []byte) {
	v.data = append(v.data, p...)
}

// Release returns the backing storage to the originating pool. Safe to call
// at most once; subsequent calls are no-ops.
func (v *View) Release() {
	if v.released {
		return
	}
	v.released = true
	if v.pool != nil {
		v.pool.put(v.data)
	}
}

// Shared wraps the view in a reference-counted handle suitable for handing
// to multiple concurrent readers (C3's fan-out registry, C6's encode task).
func (v *View) Shared() SharedView {
	inner := &sharedInner{view: v}
	inner.refs.Store(1)
	return SharedView{inner: inner}
}

type sharedInner struct {
	view *View
	refs atomic.Int32
}

// SharedView is a cheap-to-copy, reference-counted view over a pooled
// buffer. Go has no destructor to return storage automatically when the
// last reference goes away, so callers must call Release explicitly once
// they are done with a clone — every consumer (the display registry and
// the encode task and sample writer in internal/mfdrtc) in this codebase
// already owns its goroutine's lifetime explicitly, so this is a natural
// place to put that call.
type SharedView struct {
	inner *sharedInner
}

// NewSharedView wraps an already-owned slice with no pool backing (used for
// zero-value/empty placeholders).
func NewSharedView(data []byte) SharedView {
	inner := &sharedInner{view: &View{data: data}}
	inner.refs.Store(1)
	return SharedView{inner: inner}
}

// Clone increments the reference count and returns a handle sharing the same
// underlying storage.
func (s SharedView) Clone() SharedView {
	if s.inner != nil {
		s.inner.refs.Add(1)
	}
	return s
}

// Bytes returns the shared byte slice. Callers must not retain it past
// Release of every clone.
func (s SharedView) Bytes() []byte {
	if s.inner == nil {
		return nil
	}
	return s.inner.view.Bytes()
}

// Release decrements the reference count; on the last release the backing
// storage is returned to the pool.
func (s SharedView) Release() {
	if s.inner == nil {
		return
	}
	if s.inner.refs.Add(-1) == 0 {
		s.inner.view.Release()
	}
}
