// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/dredgeapp/dredge/internal/config"
	"github.com/dredgeapp/dredge/internal/database"
	gormstorage "github.com/dredgeapp/dredge/internal/storage/gorm"
	"github.com/dredgeapp/dredge/internal/storage/memory"
	"github.com/rs/zerolog"
)

var (
	_ Backend = (*memory.Backend)(nil)
	_ Backend = (*gormstorage.Backend)(nil)
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		m := database.NewManager(log, cfg.Sqlite.Path)
		if err := m.Connect(); err != nil {
			return nil, err
		}
		return gormstorage.New(gormstorage.Dependencies{DB: m.DB, Manager: m, Logger: log}), nil
	case "sqlite":
		m := database.NewManager(log, cfg.Sqlite.Path)
		if err := m.ConnectSqlite(); err != nil {
			return nil, err
		}
		return gormstorage.New(gormstorage.Dependencies{DB: m.DB, Manager: m, Logger: log}), nil
	case "memory", "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
