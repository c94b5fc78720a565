// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/dredgeapp/dredge/internal/geo"
	"github.com/dredgeapp/dredge/internal/model"
	"github.com/dredgeapp/dredge/pkg/core"
	"gorm.io/datatypes"
)

// nullFloat maps NaN to NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// AnnotationToModel converts a core annotation into its row for session.
func AnnotationToModel(session string, a core.Annotation) (model.Annotation, error) {
	path, err := geo.PathGeoJSON(a.Path)
	if err != nil {
		return model.Annotation{}, fmt.Errorf("failed to encode path of annotation %d: %w", a.ID, err)
	}

	return model.Annotation{
		Session:       session,
		AnnotationID:  a.ID,
		Name:          a.Name,
		Notes:         a.Notes,
		Beacon:        a.Beacon,
		StartTime:     a.Start,
		EndTime:       a.End,
		StartLat:      nullFloat(a.StartLat),
		StartLon:      nullFloat(a.StartLon),
		EndLat:        nullFloat(a.EndLat),
		EndLon:        nullFloat(a.EndLon),
		StartEasting:  nullFloat(a.StartEasting),
		StartNorthing: nullFloat(a.StartNorthing),
		EndEasting:    nullFloat(a.EndEasting),
		EndNorthing:   nullFloat(a.EndNorthing),
		UTMZone:       a.Zone,
		Hemisphere:    a.Hemisphere.String(),
		NumPoints:     a.Count,
		Path:          datatypes.JSON(path),
		PathLength:    a.PathLength,
		SavedAt:       a.CreatedAt,
	}, nil
}

// ModelToAnnotation converts a stored row back into a core annotation.
func ModelToAnnotation(m model.Annotation) (core.Annotation, error) {
	a := core.Annotation{
		ID:            m.AnnotationID,
		Name:          m.Name,
		Notes:         m.Notes,
		Beacon:        m.Beacon,
		Start:         m.StartTime.UTC(),
		End:           m.EndTime.UTC(),
		StartLat:      floatOrNaN(m.StartLat),
		StartLon:      floatOrNaN(m.StartLon),
		EndLat:        floatOrNaN(m.EndLat),
		EndLon:        floatOrNaN(m.EndLon),
		StartEasting:  floatOrNaN(m.StartEasting),
		StartNorthing: floatOrNaN(m.StartNorthing),
		EndEasting:    floatOrNaN(m.EndEasting),
		EndNorthing:   floatOrNaN(m.EndNorthing),
		Zone:          m.UTMZone,
		Hemisphere:    core.North,
		Count:         m.NumPoints,
		PathLength:    m.PathLength,
		CreatedAt:     m.SavedAt.UTC(),
	}
	if strings.EqualFold(m.Hemisphere, core.South.String()) {
		a.Hemisphere = core.South
	}

	if len(m.Path) > 0 {
		path, err := geo.PathFromGeoJSON(m.Path)
		if err != nil {
			return core.Annotation{}, fmt.Errorf("failed to decode path of annotation %d: %w", m.AnnotationID, err)
		}
		if len(path) > 0 {
			a.Path = path
		}
	}
	return a, nil
}
