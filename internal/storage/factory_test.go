// internal/storage/factory_test.go
package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/dredgeapp/dredge/internal/annotation"
	"github.com/dredgeapp/dredge/internal/config"
	"github.com/dredgeapp/dredge/internal/storage"
	"github.com/dredgeapp/dredge/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend_Memory(t *testing.T) {
	b, err := storage.NewBackend(config.StorageConfig{Type: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := storage.NewBackend(config.StorageConfig{Type: "redis"}, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestNewBackend_SqliteFileSurvivesReopen(t *testing.T) {
	cfg := config.StorageConfig{Type: "sqlite", Sqlite: config.SqliteConfig{Path: filepath.Join(t.TempDir(), "dredge.db")}}

	b, err := storage.NewBackend(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.Save("s", annotation.Snapshot{LastID: 5, Annotations: []core.Annotation{{ID: 5, Name: "x"}}}))
	require.NoError(t, b.Close())

	b, err = storage.NewBackend(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	snap, err := b.Load("s")
	require.NoError(t, err)
	assert.Equal(t, 5, snap.LastID)
	require.Len(t, snap.Annotations, 1)
	assert.Equal(t, "x", snap.Annotations[0].Name)
}
