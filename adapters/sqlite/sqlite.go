// Package sqlite stores composition snapshots in SQLite.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/artpar/modcompose/ports"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a snapshot does not exist.
var ErrNotFound = ports.ErrNotFound

// DB is an open snapshot database.
type DB struct {
	*sql.DB
}

// Open opens the database at dsn. Plain file paths get WAL journaling and a
// busy timeout. ":memory:" opens a private database on a single connection.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", withDefaults(dsn))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dsn == ":memory:" {
		// Every connection to :memory: is a new empty database.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open database %s: %w", dsn, err)
	}
	return &DB{DB: conn}, nil
}

func withDefaults(dsn string) string {
	params := []string{"_busy_timeout=5000", "_synchronous=NORMAL", "_foreign_keys=on"}
	if dsn != ":memory:" {
		params = append(params, "_journal_mode=WAL")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

type migration struct {
	version int
	file    string
}

// pending lists the embedded migrations newer than current in version order.
// Files are named NNN_description.sql.
func pending(current int) ([]migration, error) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	var out []migration
	seen := map[int]string{}
	for _, f := range files {
		base := path.Base(f)
		prefix, _, _ := strings.Cut(base, "_")
		v, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: version prefix: %w", base, err)
		}
		if other, dup := seen[v]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, base, v)
		}
		seen[v] = base
		if v > current {
			out = append(out, migration{version: v, file: f})
		}
	}
	slices.SortFunc(out, func(a, b migration) int { return a.version - b.version })
	return out, nil
}

// Migrate brings the schema up to the newest embedded migration. Each
// migration runs in its own transaction.
func (db *DB) Migrate() error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := db.Version()
	if err != nil {
		return err
	}
	todo, err := pending(current)
	if err != nil {
		return err
	}
	for _, m := range todo {
		if err := db.apply(m); err != nil {
			return err
		}
	}
	return nil
}

// Version returns the newest applied migration, or 0 on a fresh database.
func (db *DB) Version() (int, error) {
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

func (db *DB) apply(m migration) error {
	body, err := migrations.ReadFile(m.file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.file, err)
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(body)); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, path.Base(m.file), err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, path.Base(m.file)); err != nil {
		return fmt.Errorf("migration %d: record: %w", m.version, err)
	}
	return tx.Commit()
}
