package builtin

import (
	"strconv"
	"time"

	"nyc311/pkg/records"
)

// Coerce parses string fields into typed values. A field that fails to parse
// becomes nil rather than an error: bad dates and coordinates must not block
// the row, they are stored as NULL.
type Coerce struct {
	// Types maps field name -> one of: "date", "float", "int", "string".
	Types map[string]string

	// Layouts are tried in order for "date" fields. When empty, DateLayouts
	// is used.
	Layouts []string
}

// DateLayouts covers the formats seen in 311 extracts: the portal's
// US-style timestamps plus ISO datetime and date forms.
var DateLayouts = []string{
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (c Coerce) Apply(in []records.Record) []records.Record {
	if len(c.Types) == 0 {
		return in
	}
	layouts := c.Layouts
	if len(layouts) == 0 {
		layouts = DateLayouts
	}
	for _, r := range in {
		for field, typ := range c.Types {
			v, ok := r[field]
			if !ok || v == nil {
				continue
			}
			s, isStr := v.(string)
			if !isStr {
				continue
			}
			switch typ {
			case "date":
				r[field] = parseDate(s, layouts)
			case "float":
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					r[field] = f
				} else {
					r[field] = nil
				}
			case "int":
				if i, err := strconv.ParseInt(s, 10, 64); err == nil {
					r[field] = i
				} else {
					r[field] = nil
				}
			case "string":
				// already string
			}
		}
	}
	return in
}

// parseDate tries each layout in order; unparseable input yields nil.
func parseDate(s string, layouts []string) any {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return nil
}
