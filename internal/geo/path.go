package geo

import (
	"math"

	"github.com/dredgeapp/dredge/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// PathOf returns the projected points of records, skipping fixes without coordinates.
func PathOf(records []core.Position) []core.Position2D {
	path := make([]core.Position2D, 0, len(records))
	for _, r := range records {
		if math.IsNaN(r.Easting) || math.IsNaN(r.Northing) {
			continue
		}
		path = append(path, core.Position2D{X: r.Easting, Y: r.Northing})
	}
	return path
}

// PathGeometry builds a geometry for a projected path: empty, a point, a line string,
// or a multi point when every fix shares one position.
func PathGeometry(path []core.Position2D) (geom.Geometry, error) {
	if len(path) == 0 {
		return geom.NewEmptyPoint(geom.DimXY).AsGeometry(), nil
	}
	if len(path) == 1 {
		pt, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: path[0].X, Y: path[0].Y}})
		if err != nil {
			return geom.Geometry{}, err
		}
		return pt.AsGeometry(), nil
	}

	// a line string needs two distinct positions; a stationary beacon has one
	if !hasDistinctPoints(path) {
		pts := make([]geom.Point, 0, len(path))
		for _, p := range path {
			pt, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Y}})
			if err != nil {
				return geom.Geometry{}, err
			}
			pts = append(pts, pt)
		}
		return geom.NewMultiPoint(pts).AsGeometry(), nil
	}

	flatCoords := make([]float64, 0, len(path)*2)
	for _, p := range path {
		flatCoords = append(flatCoords, p.X, p.Y)
	}
	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.Geometry{}, err
	}
	return ls.AsGeometry(), nil
}

func hasDistinctPoints(path []core.Position2D) bool {
	for _, p := range path[1:] {
		if p != path[0] {
			return true
		}
	}
	return false
}

// PathLength is the planar length of the path in metres.
func PathLength(path []core.Position2D) float64 {
	if len(path) < 2 {
		return 0
	}
	g, err := PathGeometry(path)
	if err != nil {
		return 0
	}
	return g.Length()
}

// PathGeoJSON renders the path as a GeoJSON geometry in projected coordinates.
func PathGeoJSON(path []core.Position2D) ([]byte, error) {
	g, err := PathGeometry(path)
	if err != nil {
		return nil, err
	}
	return g.MarshalJSON()
}

// PathFromGeoJSON reads a path written by PathGeoJSON.
func PathFromGeoJSON(b []byte) ([]core.Position2D, error) {
	g, err := geom.UnmarshalGeoJSON(b)
	if err != nil {
		return nil, err
	}
	seq := g.DumpCoordinates()
	path := make([]core.Position2D, seq.Length())
	for i := range path {
		xy := seq.GetXY(i)
		path[i] = core.Position2D{X: xy.X, Y: xy.Y}
	}
	return path, nil
}
