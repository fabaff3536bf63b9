// This adapter wires the SQL Server backend into the storage-agnostic
// factory and registers its CREATE TABLE dialect.
package mssql

import (
	"context"

	"nyc311/internal/storage"
)

var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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

	storage.RegisterDDL("mssql", func(ctx context.Context, repo storage.Repository, table string) error {
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

// createTableSQL returns the service-request DDL in T-SQL dialect. The
// IF NOT EXISTS guard mirrors the other backends' idempotent bootstrap.
func createTableSQL(table string) string {
	return `IF OBJECT_ID(N'` + table + `', N'U') IS NULL
CREATE TABLE ` + msFQN(table) + ` (
	unique_key     NVARCHAR(32)  NOT NULL PRIMARY KEY,
	created_date   DATETIME2     NULL,
	closed_date    DATETIME2     NULL,
	agency         NVARCHAR(32)  NULL,
	complaint_type NVARCHAR(255) NULL,
	descriptor     NVARCHAR(255) NULL,
	borough        NVARCHAR(64)  NOT NULL DEFAULT 'UNKNOWN',
	latitude       FLOAT         NULL,
	longitude      FLOAT         NULL
)`
}
