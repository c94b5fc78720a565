// internal/storage/memory/memory.go
package memory

import (
	"sync"

	"github.com/dredgeapp/dredge/internal/annotation"
	"github.com/dredgeapp/dredge/pkg/core"
)

// Backend keeps registry snapshots in memory for the lifetime of the process
type Backend struct {
	sessions map[string]annotation.Snapshot
	mu       sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{sessions: make(map[string]annotation.Snapshot)}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// Load returns a copy of the stored snapshot
func (b *Backend) Load(session string) (annotation.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copySnapshot(b.sessions[session]), nil
}

// Save stores a copy of snap
func (b *Backend) Save(session string, snap annotation.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[session] = copySnapshot(snap)
	return nil
}

func copySnapshot(s annotation.Snapshot) annotation.Snapshot {
	out := annotation.Snapshot{LastID: s.LastID}
	if len(s.Annotations) == 0 {
		return out
	}
	out.Annotations = make([]core.Annotation, len(s.Annotations))
	for i, a := range s.Annotations {
		a.Path = append([]core.Position2D(nil), a.Path...)
		out.Annotations[i] = a
	}
	return out
}
