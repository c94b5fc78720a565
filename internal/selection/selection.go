// Package selection computes which records of a position track and a sensor series fall inside a time window.
package selection

import (
	"sort"
	"time"

	"github.com/dredgeapp/dredge/pkg/core"
)

// Window is a closed time interval with an optional beacon filter.
type Window struct {
	Start  time.Time
	End    time.Time
	Beacon string
}

// NewWindow builds a window in UTC, swapping the endpoints if they arrive reversed
// (a drag to the left produces end < start).
func NewWindow(a, b time.Time) Window {
	a, b = a.UTC(), b.UTC()
	if b.Before(a) {
		a, b = b, a
	}
	return Window{Start: a, End: b}
}

// WithBeacon returns a copy of w filtered to one beacon; "" clears the filter.
func (w Window) WithBeacon(beacon string) Window {
	w.Beacon = beacon
	return w
}

// Contains reports whether t lies in [Start, End]. Both ends are inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Equal compares endpoints by instant and the beacon filter.
func (w Window) Equal(o Window) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End) && w.Beacon == o.Beacon
}

// IsZero reports whether the window has never been set.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Result holds indices into the source tables.
// Positions are ordered by timestamp (ties in file order); Sensors are in table order.
type Result struct {
	Positions []int
	Sensors   []int
}

// Select scans both tables for records inside w. Either table may be nil.
// The beacon filter applies to positions only and is ignored when the track has no beacon column.
func Select(w Window, track *core.Track, sensors *core.SensorSeries) Result {
	return Result{
		Positions: MatchPositions(w, track),
		Sensors:   MatchSensors(w, sensors),
	}
}

// MatchPositions returns the indices of matching fixes ordered by timestamp.
func MatchPositions(w Window, track *core.Track) []int {
	if track.Len() == 0 {
		return nil
	}
	filter := w.Beacon != "" && track.HasBeacon

	var out []int
	for i, r := range track.Records {
		if !w.Contains(r.Time) {
			continue
		}
		if filter && r.Beacon != w.Beacon {
			continue
		}
		out = append(out, i)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return track.Records[out[a]].Time.Before(track.Records[out[b]].Time)
	})
	return out
}

// MatchSensors returns the indices of samples inside the window.
func MatchSensors(w Window, sensors *core.SensorSeries) []int {
	if sensors.Len() == 0 {
		return nil
	}
	var out []int
	for i, s := range sensors.Samples {
		if w.Contains(s.Time) {
			out = append(out, i)
		}
	}
	return out
}

// PositionRecords resolves the matched position indices to records.
func (r Result) PositionRecords(track *core.Track) []core.Position {
	out := make([]core.Position, len(r.Positions))
	for i, idx := range r.Positions {
		out[i] = track.Records[idx]
	}
	return out
}
