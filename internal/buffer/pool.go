// Package buffer implements the bounded-memory, zero-copy buffer pool
// described as C1: a process-wide cache of reusable byte buffers that hands
// out pool-owned, reference-counted views and reclaims the underlying
// storage on last release.
//
// Two named pools are constructed at the call sites that need them: a
// general-purpose pool with a default cap of 30, and a capture-frame pool
// sized for roughly three displays times three in-flight buffers (cap 10)
// used by internal/capturelink.
package buffer

import "sync"

// Pool is a bounded cache of reusable byte slices.
type Pool struct {
	mu      sync.Mutex
	free    [][]byte
	maxCap  int
}

// New creates a pool that retains at most maxCap buffers on Put.
func New(maxCap int) *Pool {
	if maxCap < 1 {
		maxCap = 1
	}
	return &Pool{maxCap: maxCap}
}

// Take returns a view whose underlying capacity is at least cap and whose
// logical length is zero.
func (p *Pool) Take(capHint int) *View {
	b := p.takeBacking(capHint)
	return &View{pool: p, data: b[:0]}
}

// TakeRaw returns a view without zeroing or truncating, sized exactly to
// capHint, for overwrite paths that will fully populate it themselves
// (e.g. reading a fixed-length frame off the wire).
func (p *Pool) TakeRaw(capHint int) *View {
	b := p.takeBacking(capHint)
	b = b[:capHint]
	return &View{pool: p, data: b}
}

func (p *Pool) takeBacking(capHint int) []byte {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		return make([]byte, 0, capHint)
	}
	b := p.free[n-1]
	p.free = p.free[:n-1]
	p.mu.Unlock()

	if cap(b) < capHint {
		return make([]byte, 0, capHint)
	}
	return b
}

// put returns a backing slice to the free list if the pool is below cap.
// Zero-capacity slices (e.g. never allocated) are never retained.
func (p *Pool) put(b []byte) {
	if cap(b) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) < p.maxCap {
		p.free = append(p.free, b[:0])
	}
}

// Len reports the number of buffers currently held in the free list.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
