// pkg/core/projection.go
package core

import "fmt"

// Hemisphere selects the northern or southern UTM false northing.
type Hemisphere int

const (
	North Hemisphere = iota
	South
)

func (h Hemisphere) String() string {
	if h == South {
		return "south"
	}
	return "north"
}

// ProjectionContext identifies the single UTM zone used for a whole track.
// It is derived once from the first record and never recomputed.
type ProjectionContext struct {
	Zone       int
	Hemisphere Hemisphere
}

// EPSG returns the WGS 84 / UTM EPSG code, 326zz for north and 327zz for south.
func (c ProjectionContext) EPSG() int {
	if c.Hemisphere == South {
		return 32700 + c.Zone
	}
	return 32600 + c.Zone
}

// String renders the context as e.g. "18N".
func (c ProjectionContext) String() string {
	if c.Hemisphere == South {
		return fmt.Sprintf("%dS", c.Zone)
	}
	return fmt.Sprintf("%dN", c.Zone)
}
