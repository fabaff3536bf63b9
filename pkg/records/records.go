// Package records defines the untyped row representation shared by the
// parser and the cleaning chain. A Record maps canonical column names to
// values; a nil value is the canonical NULL for every column type.
package records

// Record is one parsed source row keyed by canonical column name.
type Record map[string]any

// Clone returns a shallow copy of r. Transformers mutate records in place,
// so callers that need the pre-clean view must copy first.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
