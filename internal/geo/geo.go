package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dredgeapp/dredge/pkg/core"
	"github.com/wroge/wgs84"
)

// Tracks are projected into a single WGS 84 / UTM zone chosen from the first fix.
// Fixes outside that zone are still projected with it; planar coordinates are for
// visual distance judgement across a survey, not geodetic exactness.

const epsgLonLat = 4326

var (
	// ErrEmptyTrack is returned when there is no coordinate to derive a zone from
	ErrEmptyTrack = errors.New("track has no records")
	// ErrMissingCoordinates is returned when the longitude/latitude columns are absent
	ErrMissingCoordinates = errors.New("coordinate fields missing")
	// ErrZoneOutOfRange is returned when the derived zone is not in 1..60
	ErrZoneOutOfRange = errors.New("utm zone out of range")
	// ErrTransform is returned when the transform yields a non-finite coordinate
	ErrTransform = errors.New("transform failed")
	// ErrInvalidCoordinates is returned when the coordinates are invalid
	ErrInvalidCoordinates = errors.New("invalid coordinates provided")
)

// ProjectionError describes why a track could not be projected.
type ProjectionError struct {
	Source string
	Detail string
	Err    error
}

func (e *ProjectionError) Error() string {
	msg := "projection"
	if e.Source != "" {
		msg += " of " + e.Source
	}
	msg += ": " + e.Err.Error()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *ProjectionError) Unwrap() error { return e.Err }

// ZoneFor derives the projection context for a fix.
// zone = floor((lon+180)/6)+1, no wraparound correction; north when lat >= 0.
func ZoneFor(lon, lat float64) core.ProjectionContext {
	ctx := core.ProjectionContext{
		Zone:       int(math.Floor((lon+180)/6)) + 1,
		Hemisphere: core.North,
	}
	if lat < 0 {
		ctx.Hemisphere = core.South
	}
	return ctx
}

// Projector holds the forward and inverse transforms for one context.
type Projector struct {
	forward func(a, b, c float64) (float64, float64, float64)
	inverse func(a, b, c float64) (float64, float64, float64)
}

// NewProjector builds the transforms between EPSG:4326 and the context's UTM zone.
func NewProjector(ctx core.ProjectionContext) (*Projector, error) {
	if ctx.Zone < 1 || ctx.Zone > 60 {
		return nil, &ProjectionError{Detail: fmt.Sprintf("zone %d", ctx.Zone), Err: ErrZoneOutOfRange}
	}
	epsg := wgs84.EPSG()
	return &Projector{
		forward: epsg.Transform(epsgLonLat, ctx.EPSG()),
		inverse: epsg.Transform(ctx.EPSG(), epsgLonLat),
	}, nil
}

// Forward converts longitude/latitude to easting/northing.
func (p *Projector) Forward(lon, lat float64) (easting, northing float64) {
	easting, northing, _ = p.forward(lon, lat, 0)
	return easting, northing
}

// inverseSteps and jacobianStep tune the Newton refinement in Inverse.
const (
	inverseSteps = 3
	jacobianStep = 1e-7 // degrees
)

// Inverse converts easting/northing back to longitude/latitude.
// The library inverse drifts away from the central meridian, so its result is
// refined against Forward until Inverse(Forward(lon, lat)) recovers lon, lat.
func (p *Projector) Inverse(easting, northing float64) (lon, lat float64) {
	lon, lat, _ = p.inverse(easting, northing, 0)
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return lon, lat
	}
	for i := 0; i < inverseSteps; i++ {
		e, n := p.Forward(lon, lat)
		re, rn := easting-e, northing-n

		e1, n1 := p.Forward(lon+jacobianStep, lat)
		e2, n2 := p.Forward(lon, lat+jacobianStep)
		a, b := (e1-e)/jacobianStep, (e2-e)/jacobianStep
		c, d := (n1-n)/jacobianStep, (n2-n)/jacobianStep

		det := a*d - b*c
		if det == 0 || math.IsNaN(det) {
			break
		}
		lon += (d*re - b*rn) / det
		lat += (a*rn - c*re) / det
	}
	return lon, lat
}

// Project returns a copy of track with easting/northing filled in for every record
// using the context derived from the first record. The input is not modified.
func Project(track *core.Track) (*core.Track, core.ProjectionContext, error) {
	var source string
	if track != nil {
		source = track.Source
	}
	if track.Len() == 0 {
		return nil, core.ProjectionContext{}, &ProjectionError{Source: source, Err: ErrEmptyTrack}
	}
	if !track.HasCoordinates {
		return nil, core.ProjectionContext{}, &ProjectionError{Source: source, Err: ErrMissingCoordinates}
	}

	first := track.Records[0]
	if math.IsNaN(first.Longitude) || math.IsNaN(first.Latitude) {
		return nil, core.ProjectionContext{}, &ProjectionError{
			Source: source,
			Detail: "first record has no longitude/latitude",
			Err:    ErrMissingCoordinates,
		}
	}

	ctx := ZoneFor(first.Longitude, first.Latitude)
	p, err := NewProjector(ctx)
	if err != nil {
		var pe *ProjectionError
		if errors.As(err, &pe) {
			pe.Source = source
		}
		return nil, core.ProjectionContext{}, err
	}

	out := track.Clone()
	for i := range out.Records {
		r := &out.Records[i]
		if math.IsNaN(r.Longitude) || math.IsNaN(r.Latitude) {
			r.Easting, r.Northing = math.NaN(), math.NaN()
			continue
		}
		r.Easting, r.Northing = p.Forward(r.Longitude, r.Latitude)
	}

	e0, n0 := out.Records[0].Easting, out.Records[0].Northing
	if math.IsNaN(e0) || math.IsInf(e0, 0) || math.IsNaN(n0) || math.IsInf(n0, 0) {
		return nil, core.ProjectionContext{}, &ProjectionError{
			Source: source,
			Detail: fmt.Sprintf("EPSG:%d", ctx.EPSG()),
			Err:    ErrTransform,
		}
	}

	out.Projection = &ctx
	return out, ctx, nil
}

// Position2DFromString parses a "lon,lat" string into a core.Position2D (X=lon, Y=lat).
func Position2DFromString(coords string) (core.Position2D, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	return core.Position2D{X: lon, Y: lat}, nil
}
