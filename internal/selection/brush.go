package selection

import (
	"github.com/dredgeapp/dredge/pkg/core"
)

// ViewFunc is notified with the canonical window and its fresh membership.
type ViewFunc func(w Window, r Result)

type view struct {
	name string
	fn   ViewFunc
}

// Brush owns the one interval shared by every linked view (time-series plot, location
// plot, ...). Views never update each other: they read the broadcast and may call Set,
// which goes through the same single source of truth.
type Brush struct {
	track   *core.Track
	sensors *core.SensorSeries

	window Window
	result Result
	views  []view

	broadcasting bool
	pending      *Window
}

// NewBrush creates a brush over the given tables. Either may be nil.
func NewBrush(track *core.Track, sensors *core.SensorSeries) *Brush {
	return &Brush{track: track, sensors: sensors}
}

// Subscribe registers a view. It is not called until the next change.
func (b *Brush) Subscribe(name string, fn ViewFunc) {
	b.views = append(b.views, view{name: name, fn: fn})
}

// SetTables swaps the underlying tables (after a reload) and recomputes the current window.
func (b *Brush) SetTables(track *core.Track, sensors *core.SensorSeries) {
	b.track, b.sensors = track, sensors
	if !b.window.IsZero() {
		b.apply(b.window)
	}
}

// Set moves the canonical window, recomputes membership once and notifies every view.
// A Set issued by a view while notifications are running is applied after the current
// round, and only if it differs from the canonical window. It reports whether the window changed.
func (b *Brush) Set(w Window) bool {
	if b.broadcasting {
		if !w.Equal(b.window) {
			pw := w
			b.pending = &pw
		}
		return false
	}
	if w.Equal(b.window) && !b.window.IsZero() {
		return false
	}
	b.apply(w)
	return true
}

// SetRange moves both endpoints and keeps the beacon filter.
func (b *Brush) SetRange(w Window) bool {
	w.Beacon = b.window.Beacon
	return b.Set(w)
}

// SetBeacon changes the beacon filter and keeps the endpoints.
func (b *Brush) SetBeacon(beacon string) bool {
	return b.Set(b.window.WithBeacon(beacon))
}

// Window returns the canonical window.
func (b *Brush) Window() Window {
	return b.window
}

// Result returns the membership computed for the canonical window.
func (b *Brush) Result() Result {
	return b.result
}

func (b *Brush) apply(w Window) {
	for {
		b.window = w
		b.result = Select(w, b.track, b.sensors)

		b.broadcasting = true
		for _, v := range b.views {
			v.fn(b.window, b.result)
		}
		b.broadcasting = false

		if b.pending == nil {
			return
		}
		next := *b.pending
		b.pending = nil
		if next.Equal(b.window) {
			return
		}
		w = next
	}
}
