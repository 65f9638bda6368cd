package display

import "github.com/mfdrelay/relay/internal/watch"

// Geometry is a display's pixel rectangle within the capture surface.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Layout is the full set of currently configured displays. Copied by value
// at publication time so subscribers always see a consistent snapshot.
type Layout struct {
	Displays map[Kind]Geometry
}

// Clone returns a deep copy, since Layout.Displays is a reference type.
func (l Layout) Clone() Layout {
	out := make(map[Kind]Geometry, len(l.Displays))
	for k, v := range l.Displays {
		out[k] = v
	}
	return Layout{Displays: out}
}

// DefaultLayout is the layout the relay starts with and sends down to the
// capture agent: a left MFCD and a right MFCD side by side, each 640x640.
func DefaultLayout() Layout {
	return Layout{
		Displays: map[Kind]Geometry{
			LeftMFCD:  {X: 0, Y: 0, Width: 640, Height: 640},
			RightMFCD: {X: 640, Y: 0, Width: 640, Height: 640},
		},
	}
}

// SetupWatcher publishes the active Layout to subscribers (the capture-link
// handler pushes the current layout to a newly connected client and again
// whenever it changes; the HTTP layer can later expose it for reconfiguration).
type SetupWatcher struct {
	sender *watch.Sender[Layout]
}

// NewSetupWatcher creates a watcher seeded with initial.
func NewSetupWatcher(initial Layout) *SetupWatcher {
	sender, _ := watch.NewChannel(initial)
	return &SetupWatcher{sender: sender}
}

// Set publishes a new layout.
func (w *SetupWatcher) Set(l Layout) {
	w.sender.Send(l)
}

// Subscribe returns a receiver cursored at the watcher's current layout, so
// the subscriber's first Changed call only fires on a future update — the
// caller is expected to fetch the current value once via Current before
// entering its change loop, matching "send on first connect
// regardless of watch state" behavior at the call site rather than here.
func (w *SetupWatcher) Subscribe() *watch.Receiver[Layout] {
	return w.sender.Subscribe()
}

// Current returns the presently active layout.
func (w *SetupWatcher) Current() Layout {
	return w.sender.Subscribe().Borrow()
}
