// Package annotation keeps the ordered list of saved time windows and their identity counter.
package annotation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dredgeapp/dredge/internal/geo"
	"github.com/dredgeapp/dredge/internal/selection"
	"github.com/dredgeapp/dredge/pkg/core"
)

var (
	// ErrEmptySelection is returned when no position record matches the window
	ErrEmptySelection = errors.New("no position records in selected window")
	// ErrInvalidName is returned when the name is empty after trimming
	ErrInvalidName = errors.New("annotation name is empty")
	// ErrNotProjected is returned when the track has no projection yet
	ErrNotProjected = errors.New("track is not projected")
)

// Snapshot is the persisted state of a registry. LastID is the highest identity ever
// assigned, which may exceed every ID still in Annotations.
type Snapshot struct {
	Annotations []core.Annotation
	LastID      int
}

// Registry is an ordered collection of annotations. IDs increase monotonically and are
// never reused, including after Delete and Clear.
type Registry struct {
	mu     sync.RWMutex
	items  []core.Annotation
	lastID int
	now    func() time.Time
}

// New creates an empty registry whose first annotation gets ID 1.
func New() *Registry {
	return &Registry{now: func() time.Time { return time.Now().UTC() }}
}

// Restore rebuilds a registry from a snapshot. The counter resumes from the larger of
// LastID and the highest stored ID.
func Restore(s Snapshot) *Registry {
	r := New()
	r.items = append([]core.Annotation(nil), s.Annotations...)
	r.lastID = s.LastID
	for _, a := range r.items {
		if a.ID > r.lastID {
			r.lastID = a.ID
		}
	}
	return r
}

// Create saves the window as a new annotation. Time bounds are the window's endpoints
// verbatim; positional fields come from the first and last matching fix by timestamp.
func (r *Registry) Create(w selection.Window, track *core.Track, name, notes string) (core.Annotation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Annotation{}, ErrInvalidName
	}

	matched := selection.MatchPositions(w, track)
	if len(matched) == 0 {
		return core.Annotation{}, fmt.Errorf("%w: %s to %s", ErrEmptySelection,
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	if !track.Projected() {
		return core.Annotation{}, ErrNotProjected
	}

	records := selection.Result{Positions: matched}.PositionRecords(track)
	first, last := records[0], records[len(records)-1]
	path := geo.PathOf(records)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	a := core.Annotation{
		ID:            r.lastID,
		Name:          name,
		Notes:         strings.TrimSpace(notes),
		Start:         w.Start,
		End:           w.End,
		StartLat:      first.Latitude,
		StartLon:      first.Longitude,
		EndLat:        last.Latitude,
		EndLon:        last.Longitude,
		StartEasting:  first.Easting,
		StartNorthing: first.Northing,
		EndEasting:    last.Easting,
		EndNorthing:   last.Northing,
		Zone:          track.Projection.Zone,
		Hemisphere:    track.Projection.Hemisphere,
		Count:         len(records),
		Beacon:        w.Beacon,
		Path:          path,
		PathLength:    geo.PathLength(path),
		CreatedAt:     r.now(),
	}
	if !track.HasBeacon {
		a.Beacon = ""
	}
	r.items = append(r.items, a)
	return a, nil
}

// Delete removes the annotation with id and reports whether one was removed.
// Remaining annotations keep their IDs.
func (r *Registry) Delete(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, a := range r.items {
		if a.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every annotation. The identity counter is kept.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// List returns the annotations in creation order.
func (r *Registry) List() []core.Annotation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]core.Annotation(nil), r.items...)
}

// Get returns the annotation with id.
func (r *Registry) Get(id int) (core.Annotation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.items {
		if a.ID == id {
			return a, true
		}
	}
	return core.Annotation{}, false
}

// Len returns the number of annotations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// LastID returns the highest ID ever assigned, 0 if none.
func (r *Registry) LastID() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastID
}

// Snapshot captures the registry for persistence.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		Annotations: append([]core.Annotation(nil), r.items...),
		LastID:      r.lastID,
	}
}
