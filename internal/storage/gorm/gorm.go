// Package gormstorage implements the storage.Backend interface on a GORM database,
// SQLite or Postgres, using the tables in internal/model.
package gormstorage

import (
	"errors"
	"fmt"

	"github.com/dredgeapp/dredge/internal/annotation"
	"github.com/dredgeapp/dredge/internal/database"
	"github.com/dredgeapp/dredge/internal/model"
	"github.com/dredgeapp/dredge/internal/model/convert"
	"github.com/dredgeapp/dredge/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds what the backend needs. Manager is optional and, when set,
// owns the connection: Init runs its migration and Close closes it.
type Dependencies struct {
	DB      *gorm.DB
	Manager *database.Manager
	Logger  zerolog.Logger
}

// Backend persists registry snapshots with GORM.
type Backend struct {
	deps Dependencies
	db   *gorm.DB
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps, db: deps.DB}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.db == nil {
		return fmt.Errorf("gorm backend: %w", errNoDB)
	}
	if b.deps.Manager != nil {
		return b.deps.Manager.Setup()
	}
	if err := b.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

var errNoDB = errors.New("no database connection")

// Close releases the connection when the backend owns it.
func (b *Backend) Close() error {
	if b.deps.Manager != nil {
		return b.deps.Manager.Close()
	}
	return nil
}

// Load reads the registry of session in creation order.
func (b *Backend) Load(session string) (annotation.Snapshot, error) {
	var snap annotation.Snapshot

	var state model.RegistryState
	err := b.db.Where("session = ?", session).Limit(1).Find(&state).Error
	if err != nil {
		return snap, fmt.Errorf("failed to load registry state: %w", err)
	}
	snap.LastID = state.LastID

	var rows []model.Annotation
	err = b.db.Where("session = ?", session).Order("annotation_id").Find(&rows).Error
	if err != nil {
		return snap, fmt.Errorf("failed to load annotations: %w", err)
	}

	for _, row := range rows {
		a, err := convert.ModelToAnnotation(row)
		if err != nil {
			return annotation.Snapshot{}, err
		}
		snap.Annotations = append(snap.Annotations, a)
	}

	b.deps.Logger.Debug().
		Str("session", session).
		Int("annotations", len(snap.Annotations)).
		Int("lastId", snap.LastID).
		Msg("Loaded registry")
	return snap, nil
}

// Save writes the counter, removes annotations no longer in snap and inserts new ones.
// Stored annotations are never rewritten since they do not change after creation.
func (b *Backend) Save(session string, snap annotation.Snapshot) error {
	return b.db.Transaction(func(tx *gorm.DB) error {
		state := model.RegistryState{Session: session, LastID: snap.LastID}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_id", "updated_at"}),
		}).Create(&state).Error
		if err != nil {
			return fmt.Errorf("failed to save registry state: %w", err)
		}

		ids := make([]int, 0, len(snap.Annotations))
		for _, a := range snap.Annotations {
			ids = append(ids, a.ID)
		}

		del := tx.Unscoped().Where("session = ?", session)
		if len(ids) > 0 {
			del = del.Where("annotation_id NOT IN ?", ids)
		}
		if err := del.Delete(&model.Annotation{}).Error; err != nil {
			return fmt.Errorf("failed to delete annotations: %w", err)
		}

		var existing []int
		err = tx.Model(&model.Annotation{}).Where("session = ?", session).Pluck("annotation_id", &existing).Error
		if err != nil {
			return fmt.Errorf("failed to list annotations: %w", err)
		}
		stored := make(map[int]bool, len(existing))
		for _, id := range existing {
			stored[id] = true
		}

		var fresh []core.Annotation
		for _, a := range snap.Annotations {
			if !stored[a.ID] {
				fresh = append(fresh, a)
			}
		}
		for _, a := range fresh {
			row, err := convert.AnnotationToModel(session, a)
			if err != nil {
				return err
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert annotation %d: %w", a.ID, err)
			}
		}
		return nil
	})
}
