// Package probe samples the head of a CSV source and reports its shape:
// original and normalized column names, a best-effort SQL-ish type per
// column, and a stable fingerprint of the header row.
//
// The probe is advisory. The loader prints its output before a run and a
// separate csvprobe command exposes it as JSON; a probe failure never fails
// a load.
package probe

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Options control sampling behavior. The zero value is usable.
type Options struct {
	// Delimiter is the CSV field separator. Zero means ','.
	Delimiter rune

	// MaxRows caps how many data rows are sampled for type inference.
	// Zero means 100.
	MaxRows int
}

// Column describes one sampled column.
type Column struct {
	// Name is the original header text.
	Name string `json:"name"`

	// Normalized is the lowercase snake_case identifier derived from Name.
	Normalized string `json:"normalized"`

	// Type is the inferred type: "integer", "real", "boolean", "date",
	// "timestamp", or "text".
	Type string `json:"type"`
}

// Result is the outcome of sampling one source.
type Result struct {
	Columns []Column `json:"columns"`

	// Rows is the number of data rows that informed type inference.
	Rows int `json:"rows"`

	// Fingerprint is an xxh3 hash of the normalized header row, hex encoded.
	// Two sources with the same column set in the same order share a
	// fingerprint regardless of row content.
	Fingerprint string `json:"fingerprint"`
}

// Names returns the original header names in column order.
func (r Result) Names() []string {
	out := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		out[i] = c.Name
	}
	return out
}

// Sample reads the header plus up to opt.MaxRows data rows from r and infers
// the source's shape. Misaligned or malformed rows are skipped; only a
// missing or unreadable header is an error.
func Sample(r io.Reader, opt Options) (Result, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = ','
	}
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = 100
	}

	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	headers, err := readHeader(cr)
	if err != nil {
		return Result{}, err
	}

	rows := make([][]string, 0, maxRows)
	want := len(headers)
	for len(rows) < maxRows {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(rec) != want {
			// Misaligned rows would skew inference; drop them.
			continue
		}
		rows = append(rows, rec)
	}

	cols := make([]Column, len(headers))
	normalized := make([]string, len(headers))
	for i, h := range headers {
		n := NormalizeFieldName(h)
		normalized[i] = n
		cols[i] = Column{
			Name:       h,
			Normalized: n,
			Type:       inferColumnType(columnValues(rows, i)),
		}
	}

	return Result{
		Columns:     cols,
		Rows:        len(rows),
		Fingerprint: fingerprint(normalized),
	}, nil
}

// readHeader skips malformed or empty leading lines until a usable header
// row appears.
func readHeader(cr *csv.Reader) ([]string, error) {
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil, fmt.Errorf("probe: no header row found")
		}
		if err != nil || len(rec) == 0 {
			continue
		}
		rec[0] = strings.TrimPrefix(rec[0], "\uFEFF")
		return rec, nil
	}
}

// fingerprint hashes the normalized header row. Headers are joined with a
// separator that cannot appear in a normalized name, so ["a_b","c"] and
// ["a","b_c"] hash differently.
func fingerprint(normalized []string) string {
	h := xxh3.Hash([]byte(strings.Join(normalized, "\x1f")))
	return strconv.FormatUint(h, 16)
}

func columnValues(rows [][]string, i int) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		v := strings.TrimSpace(row[i])
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// inferColumnType guesses a SQL-friendly type among integer, boolean, real,
// date, timestamp, and text. All non-empty values must satisfy the narrower
// type; columns with no data stay "text".
func inferColumnType(values []string) string {
	if len(values) == 0 {
		return "text"
	}
	if allMatch(values, isInt) {
		return "integer"
	}
	if allMatch(values, isBool) {
		return "boolean"
	}
	if allMatch(values, isFloat) {
		return "real"
	}

	allDate := true
	anyTime := false
	for _, v := range values {
		ok, hasTime := parseDateOrTimestamp(v)
		if !ok {
			allDate = false
			break
		}
		if hasTime {
			anyTime = true
		}
	}
	if allDate {
		if anyTime {
			return "timestamp"
		}
		return "date"
	}
	return "text"
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

func isBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "t", "f", "yes", "no", "y", "n":
		return true
	default:
		return false
	}
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// isFloat accepts decimal or scientific notation. Values that parse as int
// are not floats, keeping integer columns narrow.
func isFloat(s string) bool {
	if isInt(s) {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

var timestampLayouts = []string{
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

var dateLayouts = []string{
	"01/02/2006",
	"2006-01-02",
}

func parseDateOrTimestamp(s string) (ok bool, hasTime bool) {
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true, true
		}
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true, false
		}
	}
	return false, false
}

// NormalizeFieldName converts arbitrary header text into a lowercase ASCII
// identifier suitable for SQL schemas:
//  1. lowercase
//  2. strip accents (NFD, remove Mn, NFC)
//  3. keep [a-z0-9_]; convert space/dash/dot to underscore; drop others
//  4. fall back to "col" if nothing survives
func NormalizeFieldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "col"
	}
	return name
}
