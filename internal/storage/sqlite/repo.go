// Package sqlite implements a SQLite-backed storage backend using
// database/sql and the cgo-free modernc driver. Replace-writes use
// INSERT OR REPLACE, which is a full-row overwrite keyed on the primary key.
//
// SQLite is not the production sink; it exists for local runs and for
// integration-style tests that need real transaction and conflict semantics
// without a server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Config holds SQLite repository configuration.
type Config struct {
	DSN   string // file path or file: URI, e.g. "file:nyc311.db"
	Table string
}

// Repository is a SQLite-backed storage.Repository implementation.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite database and returns a Repository plus a
// close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// database/sql pooling hands each connection its own :memory: database;
	// a single connection keeps file and memory DSNs behaving identically.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// Begin opens a chunk transaction.
func (r *Repository) Begin(ctx context.Context) (*TxWriter, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	return &TxWriter{tx: tx, table: r.cfg.Table}, nil
}

// Exec executes an arbitrary statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// TxWriter writes rows inside one transaction, reusing a prepared statement.
type TxWriter struct {
	tx    *sql.Tx
	table string
	stmt  *sql.Stmt
	ncols int
}

func (t *TxWriter) ReplaceRow(ctx context.Context, columns []string, row []any) error {
	if len(row) != len(columns) {
		return fmt.Errorf("row has %d values, want %d", len(row), len(columns))
	}
	if t.stmt == nil || t.ncols != len(columns) {
		if t.stmt != nil {
			t.stmt.Close()
		}
		stmt, err := t.tx.PrepareContext(ctx, replaceSQL(t.table, columns))
		if err != nil {
			return fmt.Errorf("prepare replace: %w", err)
		}
		t.stmt = stmt
		t.ncols = len(columns)
	}
	if _, err := t.stmt.ExecContext(ctx, row...); err != nil {
		return err
	}
	return nil
}

func (t *TxWriter) Commit(ctx context.Context) error {
	if t.stmt != nil {
		t.stmt.Close()
		t.stmt = nil
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (t *TxWriter) Rollback(ctx context.Context) error {
	if t.stmt != nil {
		t.stmt.Close()
		t.stmt = nil
	}
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("sqlite: rollback: %w", err)
	}
	return nil
}

// replaceSQL builds `INSERT OR REPLACE INTO "tbl" ("c", ...) VALUES (?, ...)`.
func replaceSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = ident(c)
	}
	ph := make([]string, len(columns))
	for i := range ph {
		ph[i] = "?"
	}
	return fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		ident(table),
		strings.Join(quoted, ", "),
		strings.Join(ph, ", "),
	)
}

// ident double-quotes an identifier, doubling embedded quotes.
func ident(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
