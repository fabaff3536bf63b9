package storage

import (
	"context"
	"fmt"
	"sync"
)

// DDLBootstrapper creates the destination table for one backend dialect via
// repo.Exec (typically CREATE TABLE IF NOT EXISTS). Backends register their
// implementation for a given storage kind at init time.
type DDLBootstrapper func(ctx context.Context, repo Repository, table string) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) a DDLBootstrapper for the given
// storage kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable locates the DDLBootstrapper for kind and invokes it. Callers
// stay backend-agnostic; they pass the kind and the already-open Repository.
func EnsureTable(ctx context.Context, kind, table string, repo Repository) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage kind %q", kind)
	}
	return fn(ctx, repo, table)
}
