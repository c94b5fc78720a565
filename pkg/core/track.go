// pkg/core/track.go
package core

import "time"

// Position2D is a planar point. For projected tracks X is easting and Y is northing, in metres.
type Position2D struct {
	X float64
	Y float64
}

// Position is a single USBL fix.
type Position struct {
	Time      time.Time
	Longitude float64
	Latitude  float64

	// Easting and Northing are only meaningful once the owning Track has a Projection.
	Easting  float64
	Northing float64

	Beacon      string
	HorErrMajor float64
	HorErrMinor float64

	// Cells holds the raw input cells, aligned with Track.Header.
	Cells []string
}

// Track is a loaded position file.
type Track struct {
	Source  string
	Records []Position

	HasCoordinates  bool
	HasBeacon       bool
	HasErrorEllipse bool

	// Header lists the input columns in file order, without stale easting/northing columns.
	Header []string
	// TimeField names the timestamp column in Header.
	TimeField string

	// Projection is nil until the track has been projected.
	Projection *ProjectionContext

	SkippedLines int
}

// BeaconCount is the number of fixes seen for one beacon.
type BeaconCount struct {
	Name  string
	Count int
}

// Len returns the number of records.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Projected reports whether easting/northing are defined.
func (t *Track) Projected() bool {
	return t != nil && t.Projection != nil
}

// Beacons returns the distinct beacon names in first-seen order with their fix counts.
// It returns nil when the track has no beacon column.
func (t *Track) Beacons() []BeaconCount {
	if t == nil || !t.HasBeacon {
		return nil
	}
	idx := make(map[string]int)
	var out []BeaconCount
	for _, r := range t.Records {
		i, ok := idx[r.Beacon]
		if !ok {
			idx[r.Beacon] = len(out)
			out = append(out, BeaconCount{Name: r.Beacon, Count: 1})
			continue
		}
		out[i].Count++
	}
	return out
}

// TimeRange returns the earliest and latest timestamps. ok is false for an empty track.
func (t *Track) TimeRange() (first, last time.Time, ok bool) {
	if t.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = t.Records[0].Time, t.Records[0].Time
	for _, r := range t.Records[1:] {
		if r.Time.Before(first) {
			first = r.Time
		}
		if r.Time.After(last) {
			last = r.Time
		}
	}
	return first, last, true
}

// Clone returns a deep copy so callers can derive new tables without mutating the original.
func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	out := *t
	out.Records = make([]Position, len(t.Records))
	for i, r := range t.Records {
		if r.Cells != nil {
			r.Cells = append([]string(nil), r.Cells...)
		}
		out.Records[i] = r
	}
	out.Header = append([]string(nil), t.Header...)
	if t.Projection != nil {
		pc := *t.Projection
		out.Projection = &pc
	}
	return &out
}
