// Package file implements the local-filesystem extract source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a data source that opens an extract from local disk.
type Local struct{ path string }

// NewLocal returns a Local source bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open opens the configured path for reading. A context already cancelled at
// call time short-circuits without touching the filesystem. Filesystem errors
// are wrapped with the path but stay visible to errors.Is (e.g.
// os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
