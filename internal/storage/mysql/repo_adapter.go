// This adapter wires the MySQL backend into the storage-agnostic factory
// and registers its CREATE TABLE dialect.
package mysql

import (
	"context"

	"nyc311/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("mysql", func(ctx context.Context, repo storage.Repository, table string) error {
		return repo.Exec(ctx, createTableSQL(table))
	})
}

// wrappedRepo adapts *mysql.Repository to storage.Repository and provides Close.
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

// createTableSQL returns the service-request DDL in MySQL dialect. The
// borough column is NOT NULL: cleaning guarantees a value, and the schema
// backs the invariant up.
func createTableSQL(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + myFQN(table) + ` (
	unique_key     VARCHAR(32)  NOT NULL,
	created_date   DATETIME     NULL,
	closed_date    DATETIME     NULL,
	agency         VARCHAR(32)  NULL,
	complaint_type VARCHAR(255) NULL,
	descriptor     VARCHAR(255) NULL,
	borough        VARCHAR(64)  NOT NULL DEFAULT 'UNKNOWN',
	latitude       DOUBLE       NULL,
	longitude      DOUBLE       NULL,
	PRIMARY KEY (unique_key)
)`
}
