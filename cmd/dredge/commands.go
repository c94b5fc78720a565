package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dredgeapp/dredge/internal/geo"
	"github.com/dredgeapp/dredge/internal/selection"
	"github.com/dredgeapp/dredge/internal/session"
	"github.com/dredgeapp/dredge/internal/timeseries"
	"github.com/dredgeapp/dredge/pkg/core"
)

var errUsblRequired = errors.New("--usbl is required")

func dispatch(ctx context.Context, cmd string, ws *session.Workspace, opts options) error {
	switch cmd {
	case "list":
		return listAnnotations(ws)
	case "delete":
		return deleteAnnotation(ws, opts.id)
	case "clear":
		if err := ws.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "cleared all annotations")
		return nil
	}

	if err := loadInputs(ctx, ws, opts); err != nil {
		return err
	}

	switch cmd {
	case "inspect":
		return inspect(ws)
	case "project":
		return project(ws, opts.point)
	case "select":
		win, err := parseWindow(opts)
		if err != nil {
			return err
		}
		printSelection(ws, ws.Select(win))
		return nil
	case "annotate":
		win, err := parseWindow(opts)
		if err != nil {
			return err
		}
		ws.Select(win)
		a, err := ws.SaveSelection(ctx, opts.name, opts.notes)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "saved annotation %d %q: %d fixes, %.1f m\n", a.ID, a.Name, a.Count, a.PathLength)
		return nil
	case "export":
		report, err := ws.Export(ctx)
		if err != nil {
			return err
		}
		for _, f := range report.Files {
			fmt.Fprintln(stdout, "wrote", f)
		}
		if report.Points > 0 {
			fmt.Fprintf(stdout, "published %d points\n", report.Points)
		}
		return nil
	}
	return fmt.Errorf("unknown command: %s", cmd)
}

// loadInputs reads the position file and, when given, the sensor file.
func loadInputs(ctx context.Context, ws *session.Workspace, opts options) error {
	if opts.usbl == "" {
		return errUsblRequired
	}
	if _, err := ws.LoadTrack(ctx, opts.usbl); err != nil {
		return err
	}
	if opts.sensor != "" {
		if _, err := ws.LoadSensors(ctx, opts.sensor); err != nil {
			return err
		}
	}
	return nil
}

// parseWindow builds the selection window from --start, --end and --beacon.
func parseWindow(opts options) (selection.Window, error) {
	if opts.start == "" || opts.end == "" {
		return selection.Window{}, errors.New("--start and --end are required")
	}
	start, err := timeseries.ParseTimestamp(opts.start)
	if err != nil {
		return selection.Window{}, fmt.Errorf("--start: %w", err)
	}
	end, err := timeseries.ParseTimestamp(opts.end)
	if err != nil {
		return selection.Window{}, fmt.Errorf("--end: %w", err)
	}
	return selection.NewWindow(start, end).WithBeacon(opts.beacon), nil
}

func inspect(ws *session.Workspace) error {
	track := ws.Track()
	fmt.Fprintf(stdout, "position file: %s\n", track.Source)
	fmt.Fprintf(stdout, "  fixes: %d\n", track.Len())
	if first, last, ok := track.TimeRange(); ok {
		fmt.Fprintf(stdout, "  time range: %s .. %s\n", formatTime(first), formatTime(last))
	}
	if track.SkippedLines > 0 {
		fmt.Fprintf(stdout, "  skipped comment lines: %d\n", track.SkippedLines)
	}
	if track.Projected() {
		fmt.Fprintf(stdout, "  utm zone: %s (EPSG:%d)\n", track.Projection, track.Projection.EPSG())
	}
	for _, b := range ws.Beacons() {
		fmt.Fprintf(stdout, "  beacon %s: %d fixes\n", b.Name, b.Count)
	}

	series := ws.Sensors()
	if series == nil {
		return nil
	}
	fmt.Fprintf(stdout, "sensor file: %s\n", series.Source)
	fmt.Fprintf(stdout, "  rows: %d\n", series.Len())
	if first, last, ok := series.TimeRange(); ok {
		fmt.Fprintf(stdout, "  time range: %s .. %s\n", formatTime(first), formatTime(last))
	}
	if series.SkippedLines > 0 {
		fmt.Fprintf(stdout, "  skipped comment lines: %d\n", series.SkippedLines)
	}
	fmt.Fprintf(stdout, "  channels: %v\n", series.Channels)
	if len(series.Dropped) > 0 {
		fmt.Fprintf(stdout, "  dropped non-numeric columns: %v\n", series.Dropped)
	}
	return nil
}

func project(ws *session.Workspace, point string) error {
	track := ws.Track()
	if !track.Projected() {
		return errors.New("track has no coordinates to project")
	}
	pc := track.Projection
	fmt.Fprintf(stdout, "utm zone %s (EPSG:%d)\n", pc, pc.EPSG())
	for _, i := range []int{0, track.Len() - 1} {
		r := track.Records[i]
		fmt.Fprintf(stdout, "  %s  lon %.6f lat %.6f  ->  E %.2f N %.2f\n",
			formatTime(r.Time), r.Longitude, r.Latitude, r.Easting, r.Northing)
	}

	if point == "" {
		return nil
	}
	pos, err := geo.Position2DFromString(point)
	if err != nil {
		return fmt.Errorf("--point %q: %w", point, err)
	}
	p, err := geo.NewProjector(*pc)
	if err != nil {
		return err
	}
	e, n := p.Forward(pos.X, pos.Y)
	fmt.Fprintf(stdout, "  point lon %.6f lat %.6f  ->  E %.2f N %.2f\n", pos.X, pos.Y, e, n)
	return nil
}

func printSelection(ws *session.Workspace, res selection.Result) {
	fmt.Fprintf(stdout, "fixes: %d\n", len(res.Positions))
	fmt.Fprintf(stdout, "sensor rows: %d\n", len(res.Sensors))
	recs := res.PositionRecords(ws.Track())
	if len(recs) == 0 {
		return
	}
	first, last := recs[0], recs[len(recs)-1]
	fmt.Fprintf(stdout, "first fix: %s (%.6f, %.6f)\n", formatTime(first.Time), first.Longitude, first.Latitude)
	fmt.Fprintf(stdout, "last fix:  %s (%.6f, %.6f)\n", formatTime(last.Time), last.Longitude, last.Latitude)
}

func listAnnotations(ws *session.Workspace) error {
	list := ws.Annotations()
	if len(list) == 0 {
		fmt.Fprintln(stdout, "no annotations")
		return nil
	}
	for _, a := range list {
		fmt.Fprintf(stdout, "%d\t%s\t%s .. %s\t%d fixes\t%.1f m%s\n",
			a.ID, a.Name, formatTime(a.Start), formatTime(a.End), a.Count, a.PathLength, beaconSuffix(a))
	}
	return nil
}

func deleteAnnotation(ws *session.Workspace, id int) error {
	deleted, err := ws.Delete(id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("annotation %d not found", id)
	}
	fmt.Fprintf(stdout, "deleted annotation %d\n", id)
	return nil
}

func beaconSuffix(a core.Annotation) string {
	if a.Beacon == "" {
		return ""
	}
	return "\tbeacon " + a.Beacon
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
