// Package csv implements a streaming, chunked CSV reader for large extracts.
// It never buffers the whole file: rows are pulled through encoding/csv and
// handed out in bounded chunks, so multi-GB inputs stay at O(chunk) memory.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"nyc311/pkg/records"
)

// Options configures the reader. All fields are optional; sensible defaults
// are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value.
	TrimSpace bool

	// HeaderMap maps source header names to canonical keys, consulted after
	// the default normalization (fold diacritics, lowercase, underscores).
	HeaderMap map[string]string

	// SkipLogLimit caps the number of skipped-row log lines. Zero means the
	// default of 400.
	SkipLogLimit int
}

const defaultSkipLogLimit = 400

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// ChunkReader pulls fixed-size chunks of records from a CSV stream. The
// sequence is finite and forward-only; a reader cannot be rewound mid-run.
type ChunkReader struct {
	cr        *csv.Reader
	opt       Options
	headers   []string
	line      int // 1-based data line counter (header is line 1)
	chunkSize int
	skipped   int
}

// NewChunkReader wraps r, consumes the header row, and returns a reader that
// yields up to chunkSize records per Next call.
func NewChunkReader(r io.Reader, chunkSize int, opt Options) (*ChunkReader, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0 (got %d)", chunkSize)
	}

	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	// Real-world 311 extracts carry unescaped quotes inside free-text
	// descriptors; stay lenient and enforce width ourselves.
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	h, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	return &ChunkReader{
		cr:        cr,
		opt:       opt,
		headers:   NormalizeHeaders(h, opt.HeaderMap),
		line:      1,
		chunkSize: chunkSize,
	}, nil
}

// Headers returns the canonical column names discovered in the header row.
func (c *ChunkReader) Headers() []string { return c.headers }

// Skipped reports how many malformed rows have been dropped so far.
func (c *ChunkReader) Skipped() int { return c.skipped }

// Next returns the next chunk of records. The last chunk may be shorter than
// the configured size; after the final chunk, Next returns io.EOF. Malformed
// rows and rows with the wrong field count are soft-failed: skipped, counted,
// and logged up to the configured limit.
func (c *ChunkReader) Next() ([]records.Record, error) {
	limit := c.opt.SkipLogLimit
	if limit <= 0 {
		limit = defaultSkipLogLimit
	}

	out := make([]records.Record, 0, c.chunkSize)
	for len(out) < c.chunkSize {
		row, err := c.cr.Read()
		c.line++
		if err == io.EOF {
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}
		if err != nil {
			if c.skipped < limit {
				log.Printf("skipping row %d: %v", c.line, err)
			}
			c.skipped++
			continue
		}
		if len(row) != len(c.headers) {
			if c.skipped < limit {
				log.Printf("skipping row %d: incorrect number of fields (expected %d, got %d)",
					c.line, len(c.headers), len(row))
			}
			c.skipped++
			continue
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if c.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[c.headers[i]] = emptyToNil(val)
		}
		out = append(out, rec)
	}
	return out, nil
}

// emptyToNil converts an empty string to nil; all other values pass through.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// foldMarks strips combining marks after NFD decomposition, turning accented
// letters into their base form so header keys stay plain ASCII.
var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeHeaders produces canonical header keys: BOM strip on the first
// cell, diacritics folded, lowercased, spaces collapsed to underscores.
// headerMap overrides win over the default normalization, keyed by the raw
// (trimmed) source name. "Unique Key" becomes "unique_key".
func NormalizeHeaders(h []string, headerMap map[string]string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if headerMap != nil {
			if m, ok := headerMap[c]; ok && m != "" {
				res[i] = m
				continue
			}
		}
		if folded, _, err := transform.String(foldMarks, c); err == nil {
			c = folded
		}
		c = strings.ToLower(c)
		c = strings.Join(strings.Fields(c), "_")
		res[i] = c
	}
	return res
}
