// pkg/core/annotation.go
package core

import "time"

// Annotation is a named time window saved from a selection, with the positional
// metadata of the fixes it covered at save time.
type Annotation struct {
	ID    int
	Name  string
	Notes string

	Start time.Time
	End   time.Time

	StartLat float64
	StartLon float64
	EndLat   float64
	EndLon   float64

	StartEasting  float64
	StartNorthing float64
	EndEasting    float64
	EndNorthing   float64

	Zone       int
	Hemisphere Hemisphere

	// Count is the number of position records that matched the window.
	Count int

	// Beacon is the beacon filter active when the annotation was saved, empty for none.
	Beacon string

	Path       []Position2D
	PathLength float64

	CreatedAt time.Time
}

// Contains reports whether t lies in [Start, End].
func (a Annotation) Contains(t time.Time) bool {
	return !t.Before(a.Start) && !t.After(a.End)
}
