// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite" // SQLite driver.
)

const driverName = "sqlite"

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about.
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

var (
	// ErrNotFound is returned when a repository or file item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidStatus is returned when a save carries a status other than
	// typing or typed.
	ErrInvalidStatus = errors.New("invalid status")
)

// ValidationError reports a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// Store wraps SQLite access for repositories and typing progress.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, err
	}
	// One connection so the foreign_keys pragma holds for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS repositories (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			commit_hash TEXT NOT NULL,
			last_typed_at TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS extensions (
			id INTEGER PRIMARY KEY,
			repository_id INTEGER NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			file_count INTEGER NOT NULL,
			is_active INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS file_items (
			id INTEGER PRIMARY KEY,
			repository_id INTEGER NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
			parent_id INTEGER REFERENCES file_items(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			content TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS typing_progresses (
			id INTEGER PRIMARY KEY,
			file_item_id INTEGER NOT NULL UNIQUE REFERENCES file_items(id) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			column_index INTEGER NOT NULL,
			elapsed_seconds INTEGER NOT NULL,
			total_correct_type_count INTEGER NOT NULL,
			total_typo_count INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS typos (
			id INTEGER PRIMARY KEY,
			typing_progress_id INTEGER NOT NULL REFERENCES typing_progresses(id) ON DELETE CASCADE,
			row_index INTEGER NOT NULL,
			column_index INTEGER NOT NULL,
			character TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			repository_id INTEGER NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
			file_item_id INTEGER NOT NULL,
			path TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			correct INTEGER NOT NULL,
			typos INTEGER NOT NULL,
			elapsed_seconds INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_extensions_repository ON extensions(repository_id);`,
		`CREATE INDEX IF NOT EXISTS idx_file_items_repository ON file_items(repository_id);`,
		`CREATE INDEX IF NOT EXISTS idx_file_items_parent ON file_items(parent_id);`,
		`CREATE INDEX IF NOT EXISTS idx_typos_progress ON typos(typing_progress_id);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a transaction, rolling back when fn fails.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			// Best-effort rollback.
			_ = rerr
		}
		return err
	}
	return tx.Commit()
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}
