package display

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/mfdrelay/relay/internal/buffer"
	"github.com/mfdrelay/relay/internal/latest"
	"github.com/mfdrelay/relay/internal/watch"
)

// frameSlot holds the most recent frame for one display plus its current
// geometry. epoch increments whenever the slot is replaced wholesale (a
// resize), letting outstanding FrameReceivers detect that their cursor no
// longer applies to the object they are polling.
type frameSlot struct {
	epoch    uint64
	geometry Geometry
	value    *latest.Latest[buffer.SharedView]
	wake     *watch.Sender[struct{}]
}

func newFrameSlot(epoch uint64, geom Geometry) *frameSlot {
	sender, _ := watch.NewChannel(struct{}{})
	return &frameSlot{
		epoch:    epoch,
		geometry: geom,
		value:    latest.New(buffer.SharedView{}),
		wake:     sender,
	}
}

// Registry is C3: a process-wide table of the latest captured frame per
// display, reconciled against C4's layout whenever it changes.
type Registry struct {
	mu      sync.RWMutex
	slots   map[Kind]*frameSlot
	nextGen uint64
}

// NewRegistry returns an empty registry; call Reconcile with an initial
// layout before use.
func NewRegistry() *Registry {
	return &Registry{slots: make(map[Kind]*frameSlot)}
}

// Reconcile updates the registry to match layout: displays newly present get
// a fresh empty slot, displays no longer present are dropped, and displays
// whose geometry changed get a fresh slot (discarding any in-flight frame
// sized for the old geometry), matching insert/remove/replace
// reconciliation.
func (r *Registry) Reconcile(layout Layout) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for kind, geom := range layout.Displays {
		existing, ok := r.slots[kind]
		if !ok {
			r.nextGen++
			r.slots[kind] = newFrameSlot(r.nextGen, geom)
			continue
		}
		if existing.geometry != geom {
			r.nextGen++
			r.slots[kind] = newFrameSlot(r.nextGen, geom)
		}
	}

	for kind := range r.slots {
		if _, ok := layout.Displays[kind]; !ok {
			delete(r.slots, kind)
		}
	}
}

// Publish stores a newly captured frame for kind and wakes any receivers
// blocked waiting for it. It is a no-op if kind is not part of the current
// layout (the frame is dropped, matching behavior of
// ignoring uplink frames for displays absent from the active setup).
func (r *Registry) Publish(kind Kind, frame buffer.SharedView) {
	r.mu.RLock()
	slot, ok := r.slots[kind]
	r.mu.RUnlock()
	if !ok {
		frame.Release()
		return
	}
	slot.value.Update(frame)
	slot.wake.Send(struct{}{})
}

// Geometry returns the currently configured geometry for kind.
func (r *Registry) Geometry(kind Kind) (Geometry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slot, ok := r.slots[kind]
	if !ok {
		return Geometry{}, false
	}
	return slot.geometry, true
}

// Receiver returns a FrameReceiver tracking kind against whatever slot is
// (or later becomes) current for it. Once that slot is replaced or removed
// — a resize, or the display dropping out of the layout — the receiver is
// done: it reports end-of-stream forever rather than silently picking up
// the replacement, since a replacement slot generally carries different
// geometry that any in-flight consumer (an encoder sized for the old
// dimensions) can no longer assume.
func (r *Registry) Receiver(kind Kind) *FrameReceiver {
	return &FrameReceiver{registry: r, kind: kind}
}

// FrameReceiver is a cursor into one display's stream of captured frames.
type FrameReceiver struct {
	registry *Registry
	kind     Kind
	epoch    uint64
	cursor   uint64
	hasEpoch bool
	done     bool
}

// Next returns the next frame newer than the last one this receiver
// observed, blocking until one is published or ctx is done. It returns
// io.EOF, permanently, once the slot it is bound to is replaced (a resize)
// or removed from the layout. The caller owns the returned SharedView and
// must Release it.
func (fr *FrameReceiver) Next(ctx context.Context) (buffer.SharedView, error) {
	if fr.done {
		return buffer.SharedView{}, io.EOF
	}

	for {
		fr.registry.mu.RLock()
		slot, ok := fr.registry.slots[fr.kind]
		fr.registry.mu.RUnlock()

		if !ok {
			if fr.hasEpoch {
				fr.done = true
				return buffer.SharedView{}, io.EOF
			}
			if err := fr.waitForAnySlot(ctx); err != nil {
				return buffer.SharedView{}, err
			}
			continue
		}

		if !fr.hasEpoch {
			fr.hasEpoch = true
			fr.epoch = slot.epoch
		} else if slot.epoch != fr.epoch {
			fr.done = true
			return buffer.SharedView{}, io.EOF
		}

		// Subscribe before polling so a frame published between the poll
		// and the wait still wakes this receiver.
		waker := slot.wake.Subscribe()
		if v, cursor, ok := slot.value.Poll(fr.cursor); ok {
			fr.cursor = cursor
			return v, nil
		}

		if err := waker.Changed(ctx); err != nil {
			return buffer.SharedView{}, err
		}
	}
}

// waitForAnySlot blocks briefly until the receiver's display appears in the
// registry for the first time, or ctx is done. Used only before this
// receiver has ever observed a slot (e.g. a session created just ahead of
// the first Reconcile); once bound to a slot, its disappearance is
// end-of-stream, not a reason to wait.
func (fr *FrameReceiver) waitForAnySlot(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	timer := time.NewTimer(50 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
