// internal/storage/storage.go
package storage

import (
	"github.com/dredgeapp/dredge/internal/annotation"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Load returns the saved registry of session, or an empty snapshot.
	Load(session string) (annotation.Snapshot, error)
	// Save replaces the saved registry of session.
	Save(session string, snap annotation.Snapshot) error
}
