// Package session drives one annotation workspace: the loaded position track and
// sensor series, the shared selection brush, the annotation registry and its store,
// and the export sinks.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dredgeapp/dredge/internal/annotation"
	"github.com/dredgeapp/dredge/internal/export"
	"github.com/dredgeapp/dredge/internal/geo"
	"github.com/dredgeapp/dredge/internal/selection"
	"github.com/dredgeapp/dredge/internal/storage"
	"github.com/dredgeapp/dredge/internal/storage/memory"
	"github.com/dredgeapp/dredge/internal/timeseries"
	"github.com/dredgeapp/dredge/pkg/core"
)

var (
	// ErrNoTrack is returned when an operation needs a position track and none is loaded
	ErrNoTrack = errors.New("no position track loaded")
	// ErrNoSelection is returned by SaveSelection before any window has been selected
	ErrNoSelection = errors.New("no window selected")
)

// Publisher sends an export to a time-series sink. *influx.Manager satisfies it.
type Publisher interface {
	Publish(ctx context.Context, session string, track *core.Track, res *export.Result) (int, error)
}

// Options configures a Workspace. Zero values select the default column names,
// an in-memory store and the default logger.
type Options struct {
	Session      string
	TrackFields  timeseries.TrackFields
	SensorFields timeseries.SensorFields
	Store        storage.Backend
	Writer       export.Writer
	TagSensors   bool
	Publisher    Publisher
	Logger       *slog.Logger
}

// Report describes a completed export.
type Report struct {
	Result *export.Result
	Files  []string
	Points int
}

// Workspace holds the state of one annotation session. It is not safe for
// concurrent use apart from the registry, which guards itself.
type Workspace struct {
	opts    Options
	log     *slog.Logger
	metrics metrics

	track    *core.Track
	sensors  *core.SensorSeries
	brush    *selection.Brush
	registry *annotation.Registry
}

// Open initializes the store and restores the session's registry from it.
func Open(opts Options) (*Workspace, error) {
	if opts.Session == "" {
		opts.Session = "default"
	}
	if opts.TrackFields == (timeseries.TrackFields{}) {
		opts.TrackFields = timeseries.DefaultTrackFields()
	}
	if opts.SensorFields == (timeseries.SensorFields{}) {
		opts.SensorFields = timeseries.DefaultSensorFields()
	}
	if opts.Store == nil {
		opts.Store = memory.New()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	if err := opts.Store.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	snap, err := opts.Store.Load(opts.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %q: %w", opts.Session, err)
	}

	w := &Workspace{
		opts:     opts,
		log:      log.With("session", opts.Session),
		metrics:  newMetrics(),
		brush:    selection.NewBrush(nil, nil),
		registry: annotation.Restore(snap),
	}
	w.log.Debug("Session opened", "annotations", w.registry.Len(), "lastId", w.registry.LastID())
	return w, nil
}

// Close releases the store.
func (w *Workspace) Close() error {
	return w.opts.Store.Close()
}

// LoadTrack reads, normalizes and projects a position file.
func (w *Workspace) LoadTrack(ctx context.Context, path string) (*core.Track, error) {
	raw, err := timeseries.OpenTrack(path, w.opts.TrackFields)
	if err != nil {
		return nil, err
	}
	w.metrics.loaded(ctx, "usbl", raw.Len())
	if err := w.SetTrack(raw); err != nil {
		return nil, err
	}
	return w.track, nil
}

// SetTrack installs a track, projecting it unless it already carries a projection.
func (w *Workspace) SetTrack(track *core.Track) error {
	if !track.Projected() {
		projected, pc, err := geo.Project(track)
		if err != nil {
			return err
		}
		w.log.Info("Track projected", "source", track.Source, "rows", track.Len(), "zone", pc.String(), "epsg", pc.EPSG())
		track = projected
	}
	if track.SkippedLines > 0 {
		w.log.Debug("Skipped comment lines", "source", track.Source, "lines", track.SkippedLines)
	}
	w.track = track
	w.brush.SetTables(w.track, w.sensors)
	return nil
}

// LoadSensors reads and normalizes a sensor file.
func (w *Workspace) LoadSensors(ctx context.Context, path string) (*core.SensorSeries, error) {
	series, err := timeseries.OpenSensors(path, w.opts.SensorFields)
	if err != nil {
		return nil, err
	}
	w.metrics.loaded(ctx, "sensor", series.Len())
	if len(series.Dropped) > 0 {
		w.log.Warn("Dropped non-numeric sensor columns", "source", path, "columns", series.Dropped)
	}
	w.SetSensors(series)
	return series, nil
}

// SetSensors installs a sensor series.
func (w *Workspace) SetSensors(series *core.SensorSeries) {
	w.sensors = series
	w.brush.SetTables(w.track, w.sensors)
}

// Track returns the loaded, projected track or nil.
func (w *Workspace) Track() *core.Track { return w.track }

// Sensors returns the loaded sensor series or nil.
func (w *Workspace) Sensors() *core.SensorSeries { return w.sensors }

// Brush returns the shared selection every linked view subscribes to.
func (w *Workspace) Brush() *selection.Brush { return w.brush }

// Select moves the shared window and returns its membership.
func (w *Workspace) Select(win selection.Window) selection.Result {
	w.brush.Set(win)
	return w.brush.Result()
}

// Beacons lists the beacons of the loaded track, nil when it has no beacon column.
func (w *Workspace) Beacons() []core.BeaconCount {
	return w.track.Beacons()
}

// SaveSelection saves the brush's current window as an annotation.
func (w *Workspace) SaveSelection(ctx context.Context, name, notes string) (core.Annotation, error) {
	win := w.brush.Window()
	if win.IsZero() {
		return core.Annotation{}, ErrNoSelection
	}
	return w.Annotate(ctx, win, name, notes)
}

// Annotate saves win as an annotation and persists the registry. When the store
// rejects the save the annotation is removed again; its ID stays consumed.
func (w *Workspace) Annotate(ctx context.Context, win selection.Window, name, notes string) (core.Annotation, error) {
	if w.track.Len() == 0 {
		return core.Annotation{}, ErrNoTrack
	}
	a, err := w.registry.Create(win, w.track, name, notes)
	if err != nil {
		return core.Annotation{}, err
	}
	if err := w.persist(); err != nil {
		w.registry.Delete(a.ID)
		w.log.Warn("Annotation discarded", "id", a.ID, "name", a.Name, "error", err)
		return core.Annotation{}, err
	}
	w.metrics.annotationsCreated.Add(ctx, 1)
	w.log.Info("Annotation saved", "id", a.ID, "name", a.Name, "points", a.Count)
	return a, nil
}

// Delete removes an annotation by ID and reports whether it existed.
func (w *Workspace) Delete(id int) (bool, error) {
	if !w.registry.Delete(id) {
		return false, nil
	}
	w.log.Info("Annotation deleted", "id", id)
	return true, w.persist()
}

// Clear removes every annotation. IDs keep increasing afterwards.
func (w *Workspace) Clear() error {
	w.registry.Clear()
	w.log.Info("Annotations cleared", "lastId", w.registry.LastID())
	return w.persist()
}

// Annotations returns the annotations in creation order.
func (w *Workspace) Annotations() []core.Annotation {
	return w.registry.List()
}

// Registry exposes the annotation registry.
func (w *Workspace) Registry() *annotation.Registry {
	return w.registry
}

// Export tags the track (and the sensors when enabled), writes the CSV files and
// publishes to the configured sink. Nothing is written when a precondition fails.
func (w *Workspace) Export(ctx context.Context) (*Report, error) {
	res, err := export.Export(w.registry, w.track)
	if err != nil {
		return nil, err
	}
	if w.opts.TagSensors && w.sensors.Len() > 0 {
		if res.Sensors, err = export.TagSensors(w.registry, w.sensors); err != nil {
			return nil, err
		}
	}

	report := &Report{Result: res}
	if report.Files, err = w.opts.Writer.Write(res); err != nil {
		return report, err
	}

	if w.opts.Publisher != nil {
		if report.Points, err = w.opts.Publisher.Publish(ctx, w.opts.Session, w.track, res); err != nil {
			return report, fmt.Errorf("failed to publish export: %w", err)
		}
	}

	w.metrics.exports.Add(ctx, 1)
	w.log.Info("Export complete", "annotations", len(res.Annotations), "files", report.Files, "points", report.Points)
	return report, nil
}

func (w *Workspace) persist() error {
	if err := w.opts.Store.Save(w.opts.Session, w.registry.Snapshot()); err != nil {
		return fmt.Errorf("failed to save session %q: %w", w.opts.Session, err)
	}
	return nil
}
