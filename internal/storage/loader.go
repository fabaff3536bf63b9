package storage

import "context"

// Row is one bound row ready for the sink: the natural key (for error
// reporting) plus the ordered value tuple.
type Row struct {
	Key    string
	Values []any
}

// LoadChunk writes rows through tx one at a time, strictly in order. A row
// that fails to write is reported via onErr and skipped; the loop continues
// with the next row. Only context cancellation stops the chunk early.
//
// It returns the number of rows written and the context error, if any.
// Committing (or rolling back) tx is the caller's responsibility.
func LoadChunk(
	ctx context.Context,
	tx Tx,
	columns []string,
	rows []Row,
	onErr func(*WriteError),
) (int, error) {
	var written int
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if err := tx.ReplaceRow(ctx, columns, r.Values); err != nil {
			if onErr != nil {
				onErr(&WriteError{Key: r.Key, Err: err})
			}
			continue
		}
		written++
	}
	return written, nil
}
