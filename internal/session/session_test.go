package session

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dredgeapp/dredge/internal/annotation"
	"github.com/dredgeapp/dredge/internal/export"
	"github.com/dredgeapp/dredge/internal/selection"
	"github.com/dredgeapp/dredge/internal/storage/memory"
	"github.com/dredgeapp/dredge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// writeSurvey writes a 10 minute survey: 100 fixes at 10 per minute, offset 3 s from
// the sensor clock, and 6000 sensor rows at 10 Hz behind a comment preamble.
func writeSurvey(t *testing.T) (usblPath, sensorPath string) {
	t.Helper()
	dir := t.TempDir()

	var usbl strings.Builder
	usbl.WriteString("datetime,beacon_name,longitude_deg,latitude_deg,hor_err_major,hor_err_minor\n")
	for i := 0; i < 100; i++ {
		ts := t0.Add(3*time.Second + time.Duration(i)*6*time.Second)
		fmt.Fprintf(&usbl, "%s,B1,%.6f,%.6f,1.5,0.8\n", ts.Format("2006-01-02 15:04:05"), -73.5+float64(i)*1e-5, 40.7+float64(i)*1e-5)
	}

	var sensor strings.Builder
	sensor.WriteString("# winch logger\n# rate: 10 Hz\ndatetime,depth,tension\n")
	for i := 0; i < 6000; i++ {
		ts := t0.Add(time.Duration(i) * 100 * time.Millisecond)
		fmt.Fprintf(&sensor, "%s,%.2f,%.1f\n", ts.Format(time.RFC3339Nano), 10+float64(i)*0.001, 3.5)
	}

	usblPath = filepath.Join(dir, "usbl.csv")
	sensorPath = filepath.Join(dir, "sensor.csv")
	require.NoError(t, os.WriteFile(usblPath, []byte(usbl.String()), 0644))
	require.NoError(t, os.WriteFile(sensorPath, []byte(sensor.String()), 0644))
	return usblPath, sensorPath
}

func openWorkspace(t *testing.T, opts Options) *Workspace {
	t.Helper()
	w, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

type recordingPublisher struct {
	calls int
	tags  int
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, track *core.Track, res *export.Result) (int, error) {
	p.calls++
	p.tags = len(res.Tags)
	return track.Len() + len(res.Annotations), nil
}

var errDiskFull = errors.New("disk full")

// failingStore rejects saves while failSave is set.
type failingStore struct {
	*memory.Backend
	failSave bool
}

func (s *failingStore) Save(session string, snap annotation.Snapshot) error {
	if s.failSave {
		return errDiskFull
	}
	return s.Backend.Save(session, snap)
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	usblPath, sensorPath := writeSurvey(t)
	outDir := filepath.Join(t.TempDir(), "out")
	pub := &recordingPublisher{}

	w := openWorkspace(t, Options{
		Session:    "survey-07",
		Writer:     export.Writer{OutputDir: outDir},
		TagSensors: true,
		Publisher:  pub,
	})

	track, err := w.LoadTrack(ctx, usblPath)
	require.NoError(t, err)
	assert.Equal(t, 100, track.Len())
	assert.Equal(t, 18, track.Projection.Zone)

	series, err := w.LoadSensors(ctx, sensorPath)
	require.NoError(t, err)
	assert.Equal(t, 6000, series.Len())
	assert.Equal(t, 2, series.SkippedLines)

	res := w.Select(selection.NewWindow(t0.Add(120*time.Second), t0.Add(180*time.Second)))
	assert.Len(t, res.Positions, 10)
	assert.InDelta(t, 600, len(res.Sensors), 1)

	a, err := w.SaveSelection(ctx, "transit", "")
	require.NoError(t, err)
	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 10, a.Count)

	report, err := w.Export(ctx)
	require.NoError(t, err)
	require.Len(t, report.Files, 3)
	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, 101, report.Points)

	tagged := report.Result.Tagged
	col := tagged.Column("transit")
	require.Len(t, col, 100)
	first, last, count := -1, -1, 0
	for i, v := range col {
		if v != "true" {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
		count++
	}
	assert.Equal(t, 10, count)
	assert.Equal(t, 9, last-first, "true values are contiguous")

	f, err := os.Open(filepath.Join(outDir, export.TaggedFile))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 101)
	assert.Equal(t, "transit", rows[0][len(rows[0])-1])
}

func TestSaveSelection_RequiresWindow(t *testing.T) {
	w := openWorkspace(t, Options{})
	_, err := w.SaveSelection(context.Background(), "x", "")
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestAnnotate_RequiresTrack(t *testing.T) {
	w := openWorkspace(t, Options{})
	_, err := w.Annotate(context.Background(), selection.NewWindow(t0, t0.Add(time.Minute)), "x", "")
	assert.ErrorIs(t, err, ErrNoTrack)
}

func TestExport_EmptyRegistryWritesNothing(t *testing.T) {
	ctx := context.Background()
	usblPath, _ := writeSurvey(t)
	outDir := filepath.Join(t.TempDir(), "out")

	w := openWorkspace(t, Options{Writer: export.Writer{OutputDir: outDir}})
	_, err := w.LoadTrack(ctx, usblPath)
	require.NoError(t, err)

	_, err = w.Export(ctx)
	assert.ErrorIs(t, err, export.ErrNoAnnotations)
	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRegistryPersistsAcrossWorkspaces(t *testing.T) {
	ctx := context.Background()
	usblPath, _ := writeSurvey(t)
	store := memory.New()

	w, err := Open(Options{Session: "s", Store: store})
	require.NoError(t, err)
	_, err = w.LoadTrack(ctx, usblPath)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = w.Annotate(ctx, selection.NewWindow(t0, t0.Add(time.Minute)), fmt.Sprintf("a%d", i), "")
		require.NoError(t, err)
	}
	deleted, err := w.Delete(3)
	require.NoError(t, err)
	assert.True(t, deleted)

	again, err := Open(Options{Session: "s", Store: store})
	require.NoError(t, err)
	assert.Len(t, again.Annotations(), 2)

	_, err = again.LoadTrack(ctx, usblPath)
	require.NoError(t, err)
	a, err := again.Annotate(ctx, selection.NewWindow(t0, t0.Add(time.Minute)), "next", "")
	require.NoError(t, err)
	assert.Equal(t, 4, a.ID, "ids are not reused across sessions")

	require.NoError(t, again.Clear())
	reopened, err := Open(Options{Session: "s", Store: store})
	require.NoError(t, err)
	assert.Empty(t, reopened.Annotations())
	assert.Equal(t, 4, reopened.Registry().LastID())
}

func TestAnnotate_FailedSaveRollsBack(t *testing.T) {
	ctx := context.Background()
	usblPath, _ := writeSurvey(t)
	store := &failingStore{Backend: memory.New(), failSave: true}

	w := openWorkspace(t, Options{Session: "s", Store: store})
	_, err := w.LoadTrack(ctx, usblPath)
	require.NoError(t, err)

	win := selection.NewWindow(t0, t0.Add(time.Minute))
	a, err := w.Annotate(ctx, win, "lost", "")
	assert.ErrorIs(t, err, errDiskFull)
	assert.Zero(t, a.ID)
	assert.Empty(t, w.Annotations())

	store.failSave = false
	a, err = w.Annotate(ctx, win, "kept", "")
	require.NoError(t, err)
	assert.Equal(t, 2, a.ID, "a rejected save still consumes its id")

	reopened, err := Open(Options{Session: "s", Store: store})
	require.NoError(t, err)
	require.Len(t, reopened.Annotations(), 1)
	assert.Equal(t, "kept", reopened.Annotations()[0].Name)
}

func TestBeaconsAndFilteredSelection(t *testing.T) {
	ctx := context.Background()
	usblPath, _ := writeSurvey(t)
	w := openWorkspace(t, Options{})
	_, err := w.LoadTrack(ctx, usblPath)
	require.NoError(t, err)

	assert.Equal(t, []core.BeaconCount{{Name: "B1", Count: 100}}, w.Beacons())

	win := selection.NewWindow(t0, t0.Add(10*time.Minute))
	assert.Len(t, w.Select(win.WithBeacon("B2")).Positions, 0)
	assert.Len(t, w.Select(win.WithBeacon("B1")).Positions, 100)
}

func TestDelete_Unknown(t *testing.T) {
	w := openWorkspace(t, Options{})
	deleted, err := w.Delete(42)
	require.NoError(t, err)
	assert.False(t, deleted)
}
