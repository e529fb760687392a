// Package memory provides in-memory implementations for testing and for
// servers that do not persist snapshots across restarts.
package memory

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/artpar/modcompose/ports"
)

// SnapshotStore is an in-memory implementation of ports.SnapshotStore.
type SnapshotStore struct {
	mu     sync.RWMutex
	snaps  []ports.Snapshot // oldest first
	nextID int64
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{nextID: 1}
}

// Save stores a snapshot and returns its ID. Pass IDs must be unique.
func (s *SnapshotStore) Save(ctx context.Context, snap ports.Snapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.snaps {
		if existing.PassID == snap.PassID {
			return 0, &DuplicateError{PassID: snap.PassID}
		}
	}

	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	snap.ID = s.nextID
	s.nextID++
	s.snaps = append(s.snaps, clone(snap))
	return snap.ID, nil
}

// Get retrieves a snapshot by numeric ID or pass ID.
func (s *SnapshotStore) Get(ctx context.Context, id string) (ports.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		for _, snap := range s.snaps {
			if snap.ID == n {
				return clone(snap), nil
			}
		}
	}
	for _, snap := range s.snaps {
		if snap.PassID == id {
			return clone(snap), nil
		}
	}
	return ports.Snapshot{}, ports.ErrNotFound
}

// List returns up to limit snapshots, newest first. A limit <= 0 returns all.
func (s *SnapshotStore) List(ctx context.Context, limit int) ([]ports.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.snaps)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ports.Snapshot, 0, n)
	for i := len(s.snaps) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, clone(s.snaps[i]))
	}
	return out, nil
}

// Prune deletes all but the newest keep snapshots.
func (s *SnapshotStore) Prune(ctx context.Context, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	if len(s.snaps) <= keep {
		return 0, nil
	}
	deleted := len(s.snaps) - keep
	s.snaps = slices.Clone(s.snaps[deleted:])
	return deleted, nil
}

// Len returns the number of stored snapshots.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snaps)
}

// DuplicateError is returned when a pass ID is saved twice.
type DuplicateError struct {
	PassID string
}

func (e *DuplicateError) Error() string {
	return "snapshot for pass " + e.PassID + " already exists"
}

func clone(s ports.Snapshot) ports.Snapshot {
	s.Modules = slices.Clone(s.Modules)
	s.BackendModules = slices.Clone(s.BackendModules)
	s.Locales = slices.Clone(s.Locales)
	s.Routes = slices.Clone(s.Routes)
	return s
}

// Ensure interface compliance.
var _ ports.SnapshotStore = (*SnapshotStore)(nil)
