// Package transformer defines the cleaning pipeline applied to each chunk
// before it is written. Transformers are pure with respect to I/O and must
// preserve row count: cleaning normalizes values, it never drops rows.
package transformer

import "nyc311/pkg/records"

// Transformer rewrites a batch of records in place and returns the batch.
type Transformer interface {
	Apply([]records.Record) []records.Record
}

// Chain is an ordered list of transformers.
type Chain []Transformer

func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}
