package annotation

import (
	"errors"
	"testing"
	"time"

	"github.com/dredgeapp/dredge/internal/geo"
	"github.com/dredgeapp/dredge/internal/selection"
	"github.com/dredgeapp/dredge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

// projectedTrack has one fix per second moving north-east, stored in reverse time order.
func projectedTrack(t *testing.T, n int, beacons ...string) *core.Track {
	t.Helper()
	tr := &core.Track{Source: "usbl.csv", HasCoordinates: true, HasBeacon: len(beacons) > 0}
	for i := n - 1; i >= 0; i-- {
		p := core.Position{
			Time:      at(i),
			Longitude: -73.5 + float64(i)*1e-4,
			Latitude:  40.7 + float64(i)*1e-4,
		}
		if len(beacons) > 0 {
			p.Beacon = beacons[i%len(beacons)]
		}
		tr.Records = append(tr.Records, p)
	}
	out, _, err := geo.Project(tr)
	require.NoError(t, err)
	return out
}

func mustCreate(t *testing.T, r *Registry, tr *core.Track, from, to int, name string) core.Annotation {
	t.Helper()
	a, err := r.Create(selection.NewWindow(at(from), at(to)), tr, name, "")
	require.NoError(t, err)
	return a
}

func TestCreate_Metadata(t *testing.T) {
	tr := projectedTrack(t, 20)
	r := New()

	w := selection.NewWindow(at(5).Add(-300*time.Millisecond), at(9).Add(200*time.Millisecond))
	a, err := r.Create(w, tr, "  transit ", " slow approach ")
	require.NoError(t, err)

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, "transit", a.Name)
	assert.Equal(t, "slow approach", a.Notes)
	assert.Equal(t, w.Start, a.Start, "window endpoints are kept verbatim")
	assert.Equal(t, w.End, a.End)
	assert.Equal(t, 5, a.Count)

	// first/last by time, not by file order
	assert.InDelta(t, -73.5+5e-4, a.StartLon, 1e-12)
	assert.InDelta(t, 40.7+9e-4, a.EndLat, 1e-12)
	assert.Less(t, a.StartEasting, a.EndEasting)
	assert.Less(t, a.StartNorthing, a.EndNorthing)
	assert.Equal(t, 18, a.Zone)
	assert.Equal(t, core.North, a.Hemisphere)
	require.Len(t, a.Path, 5)
	assert.Greater(t, a.PathLength, 0.0)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestCreate_StationaryBeacon(t *testing.T) {
	tr := &core.Track{Source: "usbl.csv", HasCoordinates: true}
	for i := 0; i < 6; i++ {
		tr.Records = append(tr.Records, core.Position{Time: at(i), Longitude: -73.5, Latitude: 40.7})
	}
	tr, _, err := geo.Project(tr)
	require.NoError(t, err)

	a := mustCreate(t, New(), tr, 0, 5, "parked")
	assert.Equal(t, 6, a.Count)
	require.Len(t, a.Path, 6)
	assert.Equal(t, 0.0, a.PathLength)
}

func TestCreate_InvalidName(t *testing.T) {
	r := New()
	_, err := r.Create(selection.NewWindow(at(0), at(5)), projectedTrack(t, 10), "   ", "")
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.LastID())
}

func TestCreate_EmptySelection(t *testing.T) {
	r := New()
	_, err := r.Create(selection.NewWindow(at(100), at(200)), projectedTrack(t, 10), "late", "")
	assert.True(t, errors.Is(err, ErrEmptySelection))
	assert.Equal(t, 0, r.Len())

	mustCreate(t, r, projectedTrack(t, 10), 0, 1, "first")
	assert.Equal(t, 1, r.LastID(), "failed create does not consume an id")
}

func TestCreate_RequiresProjection(t *testing.T) {
	tr := &core.Track{HasCoordinates: true, Records: []core.Position{{Time: at(1)}}}
	_, err := New().Create(selection.NewWindow(at(0), at(5)), tr, "x", "")
	assert.ErrorIs(t, err, ErrNotProjected)
}

func TestCreate_HonoursBeaconFilter(t *testing.T) {
	tr := projectedTrack(t, 10, "A", "B")
	r := New()

	a, err := r.Create(selection.NewWindow(at(0), at(9)).WithBeacon("B"), tr, "b only", "")
	require.NoError(t, err)
	assert.Equal(t, 5, a.Count)
	assert.Equal(t, "B", a.Beacon)

	_, err = r.Create(selection.NewWindow(at(0), at(9)).WithBeacon("C"), tr, "none", "")
	assert.ErrorIs(t, err, ErrEmptySelection)
}

func TestCreate_BeaconIgnoredWithoutColumn(t *testing.T) {
	a, err := New().Create(selection.NewWindow(at(0), at(9)).WithBeacon("B"), projectedTrack(t, 10), "x", "")
	require.NoError(t, err)
	assert.Equal(t, 10, a.Count)
	assert.Empty(t, a.Beacon)
}

func TestIDs_NeverReusedAfterDelete(t *testing.T) {
	tr := projectedTrack(t, 10)
	r := New()
	for i := 0; i < 3; i++ {
		mustCreate(t, r, tr, 0, 5, "a")
	}

	assert.True(t, r.Delete(2))
	a := mustCreate(t, r, tr, 0, 5, "b")
	assert.Equal(t, 4, a.ID)

	ids := []int{}
	for _, x := range r.List() {
		ids = append(ids, x.ID)
	}
	assert.Equal(t, []int{1, 3, 4}, ids)
}

func TestIDs_ContinueAfterClear(t *testing.T) {
	tr := projectedTrack(t, 10)
	r := New()
	mustCreate(t, r, tr, 0, 5, "a")
	mustCreate(t, r, tr, 0, 5, "b")

	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.List())

	a := mustCreate(t, r, tr, 0, 5, "c")
	assert.Equal(t, 3, a.ID)
}

func TestIDs_DeleteHighestThenCreate(t *testing.T) {
	tr := projectedTrack(t, 10)
	r := New()
	mustCreate(t, r, tr, 0, 5, "a")
	mustCreate(t, r, tr, 0, 5, "b")
	require.True(t, r.Delete(2))

	assert.Equal(t, 3, mustCreate(t, r, tr, 0, 5, "c").ID)
}

func TestDelete_Unknown(t *testing.T) {
	r := New()
	assert.False(t, r.Delete(1))
}

func TestList_CreationOrderAndCopy(t *testing.T) {
	tr := projectedTrack(t, 10)
	r := New()
	mustCreate(t, r, tr, 6, 9, "zeta")
	mustCreate(t, r, tr, 0, 2, "alpha")

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "zeta", list[0].Name)
	assert.Equal(t, "alpha", list[1].Name)

	list[0].Name = "mutated"
	got, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, "zeta", got.Name)
}

func TestRestore_ResumesCounter(t *testing.T) {
	tr := projectedTrack(t, 10)
	r := New()
	mustCreate(t, r, tr, 0, 5, "a")
	mustCreate(t, r, tr, 0, 5, "b")
	r.Clear()
	mustCreate(t, r, tr, 0, 5, "c")

	snap := r.Snapshot()
	assert.Equal(t, 3, snap.LastID)
	require.Len(t, snap.Annotations, 1)

	restored := Restore(snap)
	assert.Equal(t, 4, mustCreate(t, restored, tr, 0, 5, "d").ID)
}

func TestRestore_CounterNotBelowStoredIDs(t *testing.T) {
	r := Restore(Snapshot{Annotations: []core.Annotation{{ID: 7, Name: "x"}}, LastID: 2})
	assert.Equal(t, 7, r.LastID())
}
