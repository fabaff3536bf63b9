// Package datasource resolves the configured extract reference into a byte
// stream. A reference is either a local filesystem path or an http(s) URL;
// URLs are fetched through the retrying httpds client so a flaky portal
// endpoint does not abort a load outright.
package datasource

import (
	"context"
	"io"
	"strings"

	"nyc311/internal/datasource/file"
	"nyc311/internal/datasource/httpds"
)

var _ Source = (*file.Local)(nil)

// Open returns a reader over the extract identified by ref. The caller must
// close it.
func Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		resp, err := httpds.NewClient(httpds.Config{}).Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	}
	return file.NewLocal(ref).Open(ctx)
}
