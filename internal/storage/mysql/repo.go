// Package mysql implements the MySQL storage backend. Replace-writes use
// REPLACE INTO, which deletes any existing row sharing the primary key and
// inserts the new tuple: a full-row overwrite, never a merge.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN   string // go-sql-driver DSN, e.g. "user:pass@tcp(host:4408)/nyc311?parseTime=true"
	Table string // destination table, optionally schema-qualified
}

// Repository is a MySQL-backed storage.Repository implementation.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a connection pool and returns a Repository plus a
// close function for cleanup. It pings with a short timeout to fail fast on
// unreachable sinks.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}
	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// Begin opens a chunk transaction.
func (r *Repository) Begin(ctx context.Context) (*TxWriter, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mysql: begin tx: %w", err)
	}
	return &TxWriter{tx: tx, table: r.cfg.Table}, nil
}

// Exec runs an arbitrary statement (typically DDL) outside any chunk
// transaction.
func (r *Repository) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// TxWriter writes rows inside one transaction. The REPLACE statement is
// prepared on first use and reused for every row in the chunk.
type TxWriter struct {
	tx    *sql.Tx
	table string
	stmt  *sql.Stmt
	ncols int
}

// ReplaceRow inserts the row or fully overwrites an existing row with the
// same primary key.
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
		return fmt.Errorf("mysql: commit: %w", err)
	}
	return nil
}

func (t *TxWriter) Rollback(ctx context.Context) error {
	if t.stmt != nil {
		t.stmt.Close()
		t.stmt = nil
	}
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("mysql: rollback: %w", err)
	}
	return nil
}

// replaceSQL builds "REPLACE INTO `tbl` (`c`, ...) VALUES (?, ...)".
func replaceSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = myIdent(c)
	}
	ph := make([]string, len(columns))
	for i := range ph {
		ph[i] = "?"
	}
	return fmt.Sprintf(
		"REPLACE INTO %s (%s) VALUES (%s)",
		myFQN(table),
		strings.Join(quoted, ", "),
		strings.Join(ph, ", "),
	)
}

// myIdent backtick-quotes an identifier, doubling embedded backticks.
func myIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// myFQN quotes a possibly schema-qualified name segment by segment.
func myFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = myIdent(p)
	}
	return strings.Join(parts, ".")
}
