package builtin

import (
	"strings"

	"nyc311/pkg/records"
)

// Default fills a single field with a fixed value whenever it is missing,
// nil, or blank. The rule only fires for records that carry the field key;
// absent columns are filled at bind time instead.
type Default struct {
	Field string
	Value string
}

func (d Default) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		v, ok := r[d.Field]
		if !ok {
			continue
		}
		if v == nil {
			r[d.Field] = d.Value
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			r[d.Field] = d.Value
		}
	}
	return in
}
