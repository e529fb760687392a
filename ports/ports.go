// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Composition Ports
// -----------------------------------------------------------------------------

// PassStats summarizes one composition pass.
type PassStats struct {
	PassID     string
	RootModule string
	StartedAt  time.Time
	Duration   time.Duration
	Modules    int
	Routes     int
	Locales    int
}

// CompositionObserver is notified when a composition pass ends.
type CompositionObserver interface {
	// PassCompleted is called after a pass produced a result.
	PassCompleted(stats PassStats)

	// PassFailed is called when a pass aborted. Stats hold the counts
	// reached before the failure.
	PassFailed(stats PassStats, err error)
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// Snapshot is the persisted summary of a composition pass.
type Snapshot struct {
	ID             int64
	PassID         string
	CreatedAt      time.Time
	Duration       time.Duration
	RootModule     string
	Modules        []string
	BackendModules []string
	Locales        []string

	// Routes holds the composed route tree encoded as JSON.
	Routes json.RawMessage

	// Error is set for passes that failed.
	Error string
}

// Failed reports whether the snapshot records a failed pass.
func (s Snapshot) Failed() bool {
	return s.Error != ""
}

// SnapshotStore persists composition snapshots.
type SnapshotStore interface {
	// Save stores a snapshot and returns its ID.
	Save(ctx context.Context, s Snapshot) (int64, error)

	// Get retrieves a snapshot by ID or pass ID.
	Get(ctx context.Context, id string) (Snapshot, error)

	// List returns the most recent snapshots, newest first.
	List(ctx context.Context, limit int) ([]Snapshot, error)

	// Prune deletes all but the newest keep snapshots and returns the
	// number deleted.
	Prune(ctx context.Context, keep int) (int, error)
}
