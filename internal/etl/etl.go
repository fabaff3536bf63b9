// Package etl drives the batch load: read the 311 extract in chunks, clean
// each chunk, and replace-write it into the configured repository, one
// transaction per chunk.
//
// The loop is deliberately single threaded. Chunks are processed strictly in
// file order so a failed run leaves a clean prefix of committed chunks behind
// and a rerun converges on the same final state (writes are keyed replaces).
package etl

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"nyc311/internal/config"
	"nyc311/internal/datasource"
	"nyc311/internal/metrics"
	csvparser "nyc311/internal/parser/csv"
	"nyc311/internal/probe"
	"nyc311/internal/schema"
	"nyc311/internal/storage"
	"nyc311/internal/transformer"
	"nyc311/internal/transformer/builtin"
	"nyc311/pkg/records"
)

// job labels every metric emitted by a load run.
const job = "nyc311_load"

// Summary describes one completed (or aborted) run.
type Summary struct {
	// TotalRows counts input rows handed to the writer, including rows whose
	// individual write failed. Duplicate keys count once per occurrence.
	TotalRows int

	// ErrorCount is the number of rows that could not be bound or written.
	ErrorCount int

	Duration time.Duration
}

// Speed returns the row throughput in rows per second, 0 for an empty or
// instantaneous run.
func (s Summary) Speed() float64 {
	secs := s.Duration.Seconds()
	if secs == 0 {
		return 0
	}
	return float64(s.TotalRows) / secs
}

// Fprint writes the statistics block shown at the end of a run.
func (s Summary) Fprint(w io.Writer) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "ETL COMPLETE - Statistics:")
	fmt.Fprintf(w, "  Total rows processed: %d\n", s.TotalRows)
	fmt.Fprintf(w, "  Errors encountered: %d\n", s.ErrorCount)
	fmt.Fprintf(w, "  Duration: %.2f seconds\n", s.Duration.Seconds())
	fmt.Fprintf(w, "  Speed: %.2f rows/second\n", s.Speed())
	fmt.Fprintln(w, rule)
}

// cleanChain builds the per-chunk cleaning pipeline: canonicalize missing
// markers, default the borough, then parse dates and coordinates. Unparseable
// values become nil (stored as NULL) without dropping the row.
func cleanChain() transformer.Chain {
	return transformer.Chain{
		builtin.Normalize{},
		builtin.Default{Field: "borough", Value: schema.UnknownBorough},
		builtin.Coerce{Types: map[string]string{
			"created_date": "date",
			"closed_date":  "date",
			"latitude":     "float",
			"longitude":    "float",
		}},
	}
}

// Run executes one load against repo. Progress and the first ErrorLogLimit
// row errors go to out. Row-level failures are tolerated and counted; an
// error return means the run aborted, with the in-flight chunk rolled back
// and earlier chunks still committed.
func Run(ctx context.Context, cfg *config.Config, repo storage.Repository, out io.Writer) (Summary, error) {
	fmt.Fprintln(out, "Starting ETL process...")
	start := time.Now()
	sum := Summary{}

	finish := func(err error) (Summary, error) {
		sum.Duration = time.Since(start)
		metrics.RecordStage(job, "run", err, sum.Duration)
		return sum, err
	}

	if cfg.AutoCreateTable {
		if err := storage.EnsureTable(ctx, cfg.DBKind, cfg.Table, repo); err != nil {
			return finish(fmt.Errorf("ensure table %s: %w", cfg.Table, err))
		}
	}

	printColumns(ctx, cfg.CSVFile, out)

	f, err := datasource.Open(ctx, cfg.CSVFile)
	if err != nil {
		return finish(fmt.Errorf("open csv: %w", err))
	}
	defer f.Close()

	reader, err := csvparser.NewChunkReader(f, cfg.ChunkSize, csvparser.Options{TrimSpace: true})
	if err != nil {
		return finish(err)
	}

	clean := cleanChain()
	errs := &errAgg{limit: cfg.ErrorLogLimit, out: out}
	chunkNum := 0

	for {
		chunk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return finish(fmt.Errorf("read chunk %d: %w", chunkNum+1, err))
		}
		chunkNum++
		fmt.Fprintf(out, "Processing chunk %d (%d rows)...\n", chunkNum, len(chunk))

		chunk = clean.Apply(chunk)
		rows := bindRows(chunk, errs)

		tx, err := repo.Begin(ctx)
		if err != nil {
			return finish(fmt.Errorf("begin chunk %d: %w", chunkNum, err))
		}
		written, err := storage.LoadChunk(ctx, tx, schema.Columns(), rows, errs.observe)
		if err != nil {
			tx.Rollback(ctx)
			return finish(fmt.Errorf("write chunk %d: %w", chunkNum, err))
		}
		if err := tx.Commit(ctx); err != nil {
			tx.Rollback(ctx)
			return finish(fmt.Errorf("commit chunk %d: %w", chunkNum, err))
		}

		sum.TotalRows += len(chunk)
		sum.ErrorCount = errs.count
		metrics.RecordRows(job, "processed", int64(len(chunk)))
		metrics.RecordRows(job, "replaced", int64(written))
		metrics.RecordChunks(job, 1)

		fmt.Fprintf(out, "  Inserted %d rows (Total: %d)\n", len(chunk), sum.TotalRows)
	}

	sum.ErrorCount = errs.count
	metrics.RecordRows(job, "row_errors", int64(errs.count))
	if skipped := reader.Skipped(); skipped > 0 {
		metrics.RecordRows(job, "skipped", int64(skipped))
	}
	sum.Duration = time.Since(start)
	sum.Fprint(out)
	metrics.RecordStage(job, "run", nil, sum.Duration)
	return sum, nil
}

// printColumns samples the extract header and reports the discovered columns.
// This is diagnostic output only; sampling problems are logged and ignored.
func printColumns(ctx context.Context, path string, out io.Writer) {
	f, err := datasource.Open(ctx, path)
	if err != nil {
		return // the main open will surface the error
	}
	defer f.Close()

	res, err := probe.Sample(f, probe.Options{MaxRows: 1})
	if err != nil {
		log.Printf("probe %s: %v", path, err)
		return
	}
	fmt.Fprintf(out, "CSV Columns: %v\n\n", res.Names())
}

// bindRows converts cleaned records into ordered storage rows. Records that
// cannot be bound (missing unique key) count as row errors and are skipped.
func bindRows(chunk []records.Record, errs *errAgg) []storage.Row {
	rows := make([]storage.Row, 0, len(chunk))
	for _, rec := range chunk {
		sr, err := schema.FromRecord(rec)
		if err != nil {
			errs.observe(&storage.WriteError{
				Key: fmt.Sprintf("%v", rec[schema.KeyColumn]),
				Err: err,
			})
			continue
		}
		rows = append(rows, storage.Row{Key: sr.UniqueKey, Values: sr.Values()})
	}
	return rows
}

// errAgg counts row-level errors and prints the first limit of them.
type errAgg struct {
	limit int
	count int
	out   io.Writer
}

func (a *errAgg) observe(we *storage.WriteError) {
	a.count++
	if a.count <= a.limit {
		fmt.Fprintf(a.out, "Error inserting row %s: %v\n", we.Key, we.Err)
	}
}
