// Package store persists the annotation model in SQLite: documents, sections,
// per-section image and text detail annotations, and the redaction tables.
//
// A Store initializes lazily, exactly once, on first use. When the backend
// cannot be opened it degrades to a non-persistent mode: writes succeed and
// return synthesized identifiers, reads return empty results, and nothing is
// durable. The degraded flag is set once, permanently, at initialization.
//
// The underlying handle is a single shared resource. Bulk mutations run in
// one transaction; callers serialize bulk operations per opened store.
//
// The caller must blank-import the SQLite driver:
//
//	import _ "modernc.org/sqlite"
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wudi/pdfannot/observability"
)

var (
	// ErrNotFound is returned by get operations when no row matches.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidTransition is returned when a status update would move a
	// document backwards in its lifecycle.
	ErrInvalidTransition = errors.New("store: invalid status transition")
)

type config struct {
	driver      string
	busyTimeout int
	synchronous string
	mkdirAll    bool
	logger      observability.Logger
}

// Option customizes store behaviour.
type Option func(*config)

// WithDriver sets the database/sql driver name. Default: "sqlite".
func WithDriver(name string) Option { return func(c *config) { c.driver = name } }

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithLogger sets the logger. Default: NopLogger.
func WithLogger(l observability.Logger) Option { return func(c *config) { c.logger = l } }

// Store is a SQLite-backed annotation store.
type Store struct {
	path string
	cfg  config

	initOnce sync.Once
	db       *sql.DB
	degraded bool
}

// New constructs a Store for the database at path. The backend is not touched
// until the first operation (or an explicit Initialize call).
func New(path string, opts ...Option) *Store {
	cfg := config{
		driver:      "sqlite",
		busyTimeout: 10_000,
		synchronous: "NORMAL",
		logger:      observability.NopLogger{},
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &Store{path: path, cfg: cfg}
}

// Initialize opens the backend and applies pending migrations. It runs at
// most once per Store; concurrent callers block until the single attempt
// finishes and all observe its outcome. Backend unavailability is not an
// error: the store enters non-persistent fallback mode instead.
func (s *Store) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		db, err := s.open(ctx)
		if err != nil {
			s.cfg.logger.Warn("annotation store unavailable, using non-persistent fallback",
				observability.String("path", s.path),
				observability.Error("error", err))
			s.degraded = true
			return
		}
		s.db = db
	})
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	if s.cfg.mkdirAll && s.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
	}

	db, err := sql.Open(s.cfg.driver, s.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if s.path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", s.cfg.synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// Degraded reports whether the store is in non-persistent fallback mode. It
// forces initialization.
func (s *Store) Degraded(ctx context.Context) bool {
	s.Initialize(ctx)
	return s.degraded
}

// ready initializes lazily and reports whether durable operations may run.
func (s *Store) ready(ctx context.Context) bool {
	s.Initialize(ctx)
	return !s.degraded
}

// Close releases the database handle. Safe before initialization and in
// fallback mode.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// OpenMemory returns an initialized in-memory store for tests and fails the
// test if the backend cannot start. It registers cleanup to close the store.
func OpenMemory(t testing.TB, opts ...Option) *Store {
	t.Helper()
	s := New(":memory:", opts...)
	ctx := context.Background()
	if s.Degraded(ctx) {
		t.Fatal("store.OpenMemory: in-memory backend unavailable")
	}
	t.Cleanup(func() { s.Close() })
	return s
}
