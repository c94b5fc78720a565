package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&RegistryState{},
	&Annotation{},
}

// RegistryState stores the identity counter of one session's registry.
// LastID is the highest annotation ID ever assigned, including deleted ones.
type RegistryState struct {
	Session   string    `json:"session" gorm:"primaryKey;size:127"`
	LastID    int       `json:"lastId" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (*RegistryState) TableName() string {
	return "registry_states"
}

// Annotation is a saved time window. AnnotationID is the registry identity, unique per session.
type Annotation struct {
	gorm.Model
	UUID         string `json:"uuid" gorm:"uniqueIndex;size:36"`
	Session      string `json:"session" gorm:"not null;size:127;uniqueIndex:idx_session_annotation"`
	AnnotationID int    `json:"annotationId" gorm:"not null;uniqueIndex:idx_session_annotation"`
	Name         string `json:"name" gorm:"not null;size:255"`
	Notes        string `json:"notes"`
	Beacon       string `json:"beacon" gorm:"size:127"`

	StartTime time.Time `json:"startTime" gorm:"not null;index"`
	EndTime   time.Time `json:"endTime" gorm:"not null"`

	StartLat sql.NullFloat64 `json:"startLat"`
	StartLon sql.NullFloat64 `json:"startLon"`
	EndLat   sql.NullFloat64 `json:"endLat"`
	EndLon   sql.NullFloat64 `json:"endLon"`

	StartEasting  sql.NullFloat64 `json:"startEasting"`
	StartNorthing sql.NullFloat64 `json:"startNorthing"`
	EndEasting    sql.NullFloat64 `json:"endEasting"`
	EndNorthing   sql.NullFloat64 `json:"endNorthing"`

	UTMZone    int    `json:"utmZone"`
	Hemisphere string `json:"hemisphere" gorm:"size:5"`
	NumPoints  int    `json:"numUsblPoints"`

	// Path is the projected track covered by the window as a GeoJSON geometry.
	Path       datatypes.JSON `json:"path"`
	PathLength float64        `json:"pathLength"`

	SavedAt time.Time `json:"savedAt"`
}

func (*Annotation) TableName() string {
	return "annotations"
}

// BeforeCreate generates a UUID before creating a new annotation
func (a *Annotation) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.New().String()
	}
	return nil
}
