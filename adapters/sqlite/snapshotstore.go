package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/artpar/modcompose/ports"
)

// SnapshotStore implements ports.SnapshotStore using SQLite.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new SQLite snapshot store.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

const snapshotColumns = `id, pass_id, created_at, duration_ns, root_module, modules, backend_modules, locales, routes, error`

// Save stores a snapshot.
func (s *SnapshotStore) Save(ctx context.Context, snap ports.Snapshot) (int64, error) {
	modules, err := encodeList(snap.Modules)
	if err != nil {
		return 0, err
	}
	backend, err := encodeList(snap.BackendModules)
	if err != nil {
		return 0, err
	}
	locales, err := encodeList(snap.Locales)
	if err != nil {
		return 0, err
	}
	routes := string(snap.Routes)
	if routes == "" {
		routes = "[]"
	}
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (pass_id, created_at, duration_ns, root_module, modules, backend_modules, locales, routes, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.PassID, createdAt.UTC(), int64(snap.Duration), snap.RootModule,
		modules, backend, locales, routes, snap.Error)
	if err != nil {
		return 0, fmt.Errorf("save snapshot %s: %w", snap.PassID, err)
	}
	return result.LastInsertId()
}

// Get retrieves a snapshot by numeric ID or by pass ID.
func (s *SnapshotStore) Get(ctx context.Context, id string) (ports.Snapshot, error) {
	var row *sql.Row
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		row = s.db.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE id = ?`, n)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE pass_id = ?`, id)
	}
	return scanSnapshot(row)
}

// List returns the most recent snapshots, newest first. A limit of zero or
// less returns every snapshot.
func (s *SnapshotStore) List(ctx context.Context, limit int) ([]ports.Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []ports.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Prune deletes all but the newest keep snapshots.
func (s *SnapshotStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (ports.Snapshot, error) {
	var (
		snap                              ports.Snapshot
		duration                          int64
		modules, backend, locales, routes string
	)

	err := row.Scan(
		&snap.ID, &snap.PassID, &snap.CreatedAt, &duration, &snap.RootModule,
		&modules, &backend, &locales, &routes, &snap.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return ports.Snapshot{}, err
	}

	snap.Duration = time.Duration(duration)
	snap.Routes = json.RawMessage(routes)
	if snap.Modules, err = decodeList(modules); err != nil {
		return ports.Snapshot{}, err
	}
	if snap.BackendModules, err = decodeList(backend); err != nil {
		return ports.Snapshot{}, err
	}
	if snap.Locales, err = decodeList(locales); err != nil {
		return ports.Snapshot{}, err
	}
	return snap, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(data string) ([]string, error) {
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return items, nil
}

// Ensure interface compliance.
var _ ports.SnapshotStore = (*SnapshotStore)(nil)
