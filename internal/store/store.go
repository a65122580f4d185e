// Package store persists the code graph in SQLite.
//
// A Store is constructed explicitly and owned by its caller. Initialize opens
// the database and creates the schema, Close releases it, and Reset removes
// the database file so the next Initialize starts from an empty graph.
//
// Entities are unique on (name, type, file_path): inserting a duplicate is
// silently absorbed. Relationships are only stored when both endpoints
// resolve to existing entities; unresolved ones are reported, not stored.
// Parallel relationships are allowed.
//
// The store is meant to have a single writer. Reads may run concurrently with
// each other but see no isolation from an in-flight AddFileData batch.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// MemoryPath opens a private in-memory database instead of a file.
const MemoryPath = ":memory:"

var (
	// ErrStoreUnavailable is returned when the store is not initialized or
	// the database cannot be opened.
	ErrStoreUnavailable = errors.New("graph store unavailable")

	// ErrInvalidRecord is returned for a FileRecord without a file path.
	ErrInvalidRecord = errors.New("invalid file record")
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT NOT NULL,
	type      TEXT NOT NULL,
	file_path TEXT,
	UNIQUE(name, type, file_path)
);

CREATE TABLE IF NOT EXISTS relationships (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id INTEGER NOT NULL,
	target_id INTEGER NOT NULL,
	type      TEXT NOT NULL,
	FOREIGN KEY (source_id) REFERENCES entities(id),
	FOREIGN KEY (target_id) REFERENCES entities(id)
);

CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);
`

// Store is the SQLite-backed graph store.
type Store struct {
	path   string
	logger *zap.Logger

	mu sync.RWMutex
	db *sql.DB
}

// New returns a Store for the database file at path. Nothing is opened
// until Initialize.
func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger.Named("store")}
}

// NewWithDB wraps an already open database. The caller is responsible for
// its schema; Initialize is a no-op and Reset only closes it.
func NewWithDB(db *sql.DB, logger *zap.Logger) *Store {
	s := New("", logger)
	s.db = db
	return s
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Initialize opens the database and ensures the schema exists. Calling it on
// an initialized store does nothing.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if s.path == "" {
		return fmt.Errorf("%w: no database path configured", ErrStoreUnavailable)
	}

	if s.path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return fmt.Errorf("%w: failed to create database directory: %w", ErrStoreUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", s.path))
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %w", ErrStoreUnavailable, s.path, err)
	}
	// One connection keeps an in-memory database alive across calls and
	// serializes writers on a file database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: failed to connect to %s: %w", ErrStoreUnavailable, s.path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: failed to create schema: %w", ErrStoreUnavailable, err)
	}

	s.db = db
	s.logger.Info("graph store initialized", zap.String("path", s.path))
	return nil
}

// Close releases the database connection. It is safe to call on a store that
// was never initialized.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("failed to close graph store: %w", err)
	}
	s.logger.Debug("graph store closed", zap.String("path", s.path))
	return nil
}

// Reset destroys all persisted data. The store is closed first and the
// database file removed, so the schema is rebuilt by the next Initialize.
func (s *Store) Reset() error {
	if err := s.Close(); err != nil {
		return err
	}
	if s.path == "" || s.path == MemoryPath {
		return nil
	}

	s.logger.Warn("resetting graph store", zap.String("path", s.path))
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm", s.path + "-journal"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, fmt.Errorf("%w: not initialized", ErrStoreUnavailable)
	}
	return s.db, nil
}

// Stats holds row counts.
type Stats struct {
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
}

// Stats counts stored entities and relationships.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	db, err := s.handle()
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&st.Entities); err != nil {
		return Stats{}, fmt.Errorf("failed to count entities: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&st.Relationships); err != nil {
		return Stats{}, fmt.Errorf("failed to count relationships: %w", err)
	}
	return st, nil
}
