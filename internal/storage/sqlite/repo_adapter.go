// This adapter wires the SQLite backend into the storage-agnostic factory
// and registers its CREATE TABLE dialect.
package sqlite

import (
	"context"

	"nyc311/internal/storage"
)

var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("sqlite", func(ctx context.Context, repo storage.Repository, table string) error {
		return repo.Exec(ctx, createTableSQL(table))
	})
}

type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Begin(ctx context.Context) (storage.Tx, error) {
	return w.Repository.Begin(ctx)
}

func (w *wrappedRepo) Close() error {
	w.closeFn()
	return nil
}

// createTableSQL returns the service-request DDL in SQLite dialect. Dates
// are stored as TEXT (driver formats time.Time); coordinates as REAL.
func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + ident(table) + ` (
	unique_key     TEXT NOT NULL PRIMARY KEY,
	created_date   TEXT,
	closed_date    TEXT,
	agency         TEXT,
	complaint_type TEXT,
	descriptor     TEXT,
	borough        TEXT NOT NULL DEFAULT 'UNKNOWN',
	latitude       REAL,
	longitude      REAL
)`
}
