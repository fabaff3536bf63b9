// Package postgres implements a Postgres storage backend using pgx v5.
// Replace-writes use INSERT ... ON CONFLICT DO UPDATE with every non-key
// column set from EXCLUDED, which makes the upsert a full-row overwrite
// rather than a merge.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN       string // connection string for pgxpool, e.g. "postgres://..."
	Table     string // destination table, e.g. "public.service_requests"
	KeyColumn string // conflict target, e.g. "unique_key"
}

// Repository is a Postgres-backed storage.Repository implementation.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a close function for
// cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, closeFn, nil
}

// Begin opens a chunk transaction.
func (r *Repository) Begin(ctx context.Context) (*TxWriter, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	return &TxWriter{tx: tx, table: r.cfg.Table, keyColumn: r.cfg.KeyColumn}, nil
}

// Exec executes an arbitrary statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

// TxWriter writes rows inside one pgx transaction. The upsert SQL is built
// once per column set; pgx caches prepared statements per connection.
type TxWriter struct {
	tx        pgx.Tx
	table     string
	keyColumn string
	sql       string
	ncols     int
}

func (t *TxWriter) ReplaceRow(ctx context.Context, columns []string, row []any) error {
	if len(row) != len(columns) {
		return fmt.Errorf("row has %d values, want %d", len(row), len(columns))
	}
	if t.sql == "" || t.ncols != len(columns) {
		t.sql = upsertSQL(t.table, columns, t.keyColumn)
		t.ncols = len(columns)
	}
	if _, err := t.tx.Exec(ctx, t.sql, row...); err != nil {
		return err
	}
	return nil
}

func (t *TxWriter) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (t *TxWriter) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

// upsertSQL builds the full-row replace statement:
//
//	INSERT INTO t (c1, ...) VALUES ($1, ...)
//	ON CONFLICT (key) DO UPDATE SET c2 = EXCLUDED.c2, ...
func upsertSQL(table string, columns []string, keyColumn string) string {
	quoted := make([]string, len(columns))
	ph := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgIdent(c)
		ph[i] = fmt.Sprintf("$%d", i+1)
	}

	var sets []string
	for _, c := range columns {
		if c == keyColumn {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(c), pgIdent(c)))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		pgFQN(table),
		strings.Join(quoted, ", "),
		strings.Join(ph, ", "),
		pgIdent(keyColumn),
		strings.Join(sets, ", "),
	)
}

// pgIdent double-quotes an identifier, doubling embedded quotes.
func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// pgFQN quotes a possibly schema-qualified name segment by segment.
func pgFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}
