// Package storage contains storage-agnostic contracts and utilities for the
// batch loader: the Repository/Tx abstraction, a backend factory keyed by
// kind, a DDL bootstrap registry, and the per-chunk replace-write loop.
//
// Concrete backends (MySQL, Postgres, SQLite, MSSQL) live in subpackages and
// register themselves with the factory at init time; importing
// storage/all (even blank) makes every built-in backend available.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a storage backend.
type Config struct {
	// Kind selects the backend implementation: "mysql", "postgres",
	// "sqlite", or "mssql".
	Kind string

	// DSN is the backend-specific connection string.
	DSN string

	// Table is the destination table name (may be schema-qualified).
	Table string

	// KeyColumn is the primary-key column used as the replace-write conflict
	// target by backends without a native REPLACE statement.
	KeyColumn string
}

// Tx is a single chunk-scoped transaction. Rows written through ReplaceRow
// become visible to readers atomically at Commit; Rollback discards them.
type Tx interface {
	// ReplaceRow idempotently persists one row: insert when the key is new,
	// full-row overwrite when a row with the same primary key exists.
	// row values align with columns; untyped nil writes NULL.
	ReplaceRow(ctx context.Context, columns []string, row []any) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository is the minimal sink contract used by the batch loader.
type Repository interface {
	// Begin opens a chunk transaction.
	Begin(ctx context.Context) (Tx, error)

	// Exec runs an arbitrary statement outside any chunk transaction
	// (typically DDL).
	Exec(ctx context.Context, query string, args ...any) error

	// Close releases the underlying connection pool.
	Close() error
}

// Factory constructs a Repository from a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) a backend factory for the given kind.
// It is typically called from backend packages' init() functions.
func Register(kind string, fn Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = fn
}

// New opens a Repository for cfg.Kind. Unknown kinds report the registered
// alternatives to shorten the debugging loop on typos.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	fn, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown storage kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return fn(ctx, cfg)
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
