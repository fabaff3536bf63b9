// This adapter wires the Postgres backend into the storage-agnostic factory
// and registers its CREATE TABLE dialect.
package postgres

import (
	"context"

	"nyc311/internal/storage"
)

var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:       cfg.DSN,
			Table:     cfg.Table,
			KeyColumn: cfg.KeyColumn,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres", func(ctx context.Context, repo storage.Repository, table string) error {
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

// createTableSQL returns the service-request DDL in Postgres dialect.
func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + pgFQN(table) + ` (
	unique_key     TEXT NOT NULL PRIMARY KEY,
	created_date   TIMESTAMP NULL,
	closed_date    TIMESTAMP NULL,
	agency         TEXT NULL,
	complaint_type TEXT NULL,
	descriptor     TEXT NULL,
	borough        TEXT NOT NULL DEFAULT 'UNKNOWN',
	latitude       DOUBLE PRECISION NULL,
	longitude      DOUBLE PRECISION NULL
)`
}
