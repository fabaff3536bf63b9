package builtin

import (
	"strings"

	"nyc311/pkg/records"
)

// missingMarkers are the textual "no value" spellings seen in 311 extracts.
// Comparison is case-insensitive after trimming.
var missingMarkers = map[string]struct{}{
	"":     {},
	"nan":  {},
	"n/a":  {},
	"na":   {},
	"null": {},
	"none": {},
}

// Normalize trims string values and collapses every missing-value marker to
// the canonical nil, so downstream stages see exactly one NULL sentinel
// regardless of column type.
type Normalize struct{}

func (Normalize) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		for k, v := range r {
			s, ok := v.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if _, missing := missingMarkers[strings.ToLower(s)]; missing {
				r[k] = nil
				continue
			}
			r[k] = s
		}
	}
	return in
}
