package convert

import (
	"math"
	"testing"
	"time"

	"github.com/dredgeapp/dredge/internal/model"
	"github.com/dredgeapp/dredge/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func sampleAnnotation() core.Annotation {
	start := time.Date(2024, 5, 1, 12, 2, 0, 0, time.UTC)
	return core.Annotation{
		ID:            7,
		Name:          "transit",
		Notes:         "slow",
		Beacon:        "B1",
		Start:         start,
		End:           start.Add(time.Minute),
		StartLat:      -33.9,
		StartLon:      151.2,
		EndLat:        -33.8,
		EndLon:        151.3,
		StartEasting:  334000,
		StartNorthing: 6248000,
		EndEasting:    334100,
		EndNorthing:   6248100,
		Zone:          56,
		Hemisphere:    core.South,
		Count:         10,
		Path:          []core.Position2D{{X: 334000, Y: 6248000}, {X: 334100, Y: 6248100}},
		PathLength:    141.42,
		CreatedAt:     start.Add(time.Hour),
	}
}

func TestAnnotationToModel(t *testing.T) {
	m, err := AnnotationToModel("survey-07", sampleAnnotation())
	require.NoError(t, err)

	assert.Equal(t, "survey-07", m.Session)
	assert.Equal(t, 7, m.AnnotationID)
	assert.Equal(t, "south", m.Hemisphere)
	assert.Equal(t, 10, m.NumPoints)
	assert.True(t, m.StartLat.Valid)
	assert.Equal(t, -33.9, m.StartLat.Float64)
	assert.Contains(t, string(m.Path), "LineString")
	assert.Empty(t, m.UUID, "uuid is assigned on create")
}

func TestModelToAnnotation_RoundTrip(t *testing.T) {
	want := sampleAnnotation()
	m, err := AnnotationToModel("s", want)
	require.NoError(t, err)

	got, err := ModelToAnnotation(m)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNaNStoredAsNull(t *testing.T) {
	a := sampleAnnotation()
	a.StartLat = math.NaN()

	m, err := AnnotationToModel("s", a)
	require.NoError(t, err)
	assert.False(t, m.StartLat.Valid)

	back, err := ModelToAnnotation(m)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(back.StartLat))
}

func TestModelToAnnotation_BadPath(t *testing.T) {
	_, err := ModelToAnnotation(model.Annotation{AnnotationID: 1, Path: datatypes.JSON(`{"type":"Nope"}`)})
	assert.Error(t, err)
}
