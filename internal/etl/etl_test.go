package etl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nyc311/internal/config"
	"nyc311/internal/storage"
)

// memRepo is an in-memory storage.Repository. Committed rows land in rows,
// keyed by unique key; a replace of an existing key overwrites the values.
type memRepo struct {
	rows map[string][]any

	failKeys    map[string]bool // ReplaceRow fails for these keys
	failCommit  int             // commit of the Nth transaction fails (1-based)
	beginCount  int
	commitCount int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string][]any{}}
}

func (m *memRepo) Begin(context.Context) (storage.Tx, error) {
	m.beginCount++
	return &memTx{repo: m, pending: map[string][]any{}, n: m.beginCount}, nil
}

func (m *memRepo) Exec(context.Context, string, ...any) error { return nil }
func (m *memRepo) Close() error                               { return nil }

type memTx struct {
	repo    *memRepo
	pending map[string][]any
	n       int
	done    bool
}

func (t *memTx) ReplaceRow(_ context.Context, columns []string, row []any) error {
	key := fmt.Sprintf("%v", row[0])
	if t.repo.failKeys[key] {
		return errors.New("constraint violation")
	}
	vals := make([]any, len(row))
	copy(vals, row)
	t.pending[key] = vals
	return nil
}

func (t *memTx) Commit(context.Context) error {
	if t.repo.failCommit != 0 && t.n == t.repo.failCommit {
		return errors.New("server gone away")
	}
	for k, v := range t.pending {
		t.repo.rows[k] = v
	}
	t.repo.commitCount++
	t.done = true
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	t.pending = map[string][]any{}
	return nil
}

const testCSV = `Unique Key,Created Date,Closed Date,Agency,Complaint Type,Descriptor,Borough,Latitude,Longitude
1001,01/15/2024 10:30:00 AM,,NYPD,Noise - Residential,Loud Music,BROOKLYN,40.678900,-73.944200
1002,bad-date,,DOT,Street Condition,Pothole,,not-a-number,-73.794900
1001,01/16/2024 09:00:00 AM,01/16/2024 10:00:00 AM,DSNY,Noise - Residential,Loud Music,BROOKLYN,40.700000,-73.900000
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func testConfig(csvFile string, chunkSize int) *config.Config {
	return &config.Config{
		CSVFile:       csvFile,
		ChunkSize:     chunkSize,
		DBKind:        "mysql",
		Table:         "service_requests",
		ErrorLogLimit: 10,
	}
}

// Column offsets within schema.Columns() order.
const (
	colCreated = 1
	colAgency  = 3
	colBorough = 6
	colLat     = 7
)

func TestRunEndToEnd(t *testing.T) {
	repo := newMemRepo()
	cfg := testConfig(writeCSV(t, testCSV), 10000)

	var out strings.Builder
	sum, err := Run(context.Background(), cfg, repo, &out)
	if err != nil {
		t.Fatalf("Run: %v\noutput:\n%s", err, out.String())
	}

	// Input rows count, not distinct keys.
	if sum.TotalRows != 3 {
		t.Fatalf("TotalRows = %d, want 3", sum.TotalRows)
	}
	if sum.ErrorCount != 0 {
		t.Fatalf("ErrorCount = %d, want 0", sum.ErrorCount)
	}
	if len(repo.rows) != 2 {
		t.Fatalf("stored keys = %d, want 2", len(repo.rows))
	}

	// Duplicate key: the later row overwrites the whole earlier row.
	r1001 := repo.rows["1001"]
	if got := r1001[colAgency]; got != "DSNY" {
		t.Fatalf("1001 agency = %v, want DSNY (last write wins)", got)
	}

	// Blank borough defaults, unparseable date/number stored as NULL.
	r1002 := repo.rows["1002"]
	if got := r1002[colBorough]; got != "UNKNOWN" {
		t.Fatalf("1002 borough = %v, want UNKNOWN", got)
	}
	if r1002[colCreated] != nil {
		t.Fatalf("1002 created_date = %v, want nil", r1002[colCreated])
	}
	if r1002[colLat] != nil {
		t.Fatalf("1002 latitude = %v, want nil", r1002[colLat])
	}

	text := out.String()
	for _, want := range []string{
		"Starting ETL process...",
		"CSV Columns: [Unique Key Created Date",
		"Processing chunk 1 (3 rows)...",
		"  Inserted 3 rows (Total: 3)",
		"ETL COMPLETE - Statistics:",
		"  Total rows processed: 3",
		"  Errors encountered: 0",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunToleratesRowErrors(t *testing.T) {
	repo := newMemRepo()
	repo.failKeys = map[string]bool{"1002": true}
	cfg := testConfig(writeCSV(t, testCSV), 10000)

	var out strings.Builder
	sum, err := Run(context.Background(), cfg, repo, &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.TotalRows != 3 {
		t.Fatalf("TotalRows = %d, want 3", sum.TotalRows)
	}
	if sum.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1", sum.ErrorCount)
	}
	if _, ok := repo.rows["1001"]; !ok {
		t.Fatal("row 1001 missing: siblings of a failed row must persist")
	}
	if _, ok := repo.rows["1002"]; ok {
		t.Fatal("row 1002 present despite write failure")
	}
	if !strings.Contains(out.String(), "Error inserting row 1002:") {
		t.Fatalf("output missing row error line:\n%s", out.String())
	}
}

func TestRunErrorLogLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Unique Key,Created Date,Closed Date,Agency,Complaint Type,Descriptor,Borough,Latitude,Longitude\n")
	repo := newMemRepo()
	repo.failKeys = map[string]bool{}
	for i := 0; i < 15; i++ {
		key := fmt.Sprintf("9%03d", i)
		sb.WriteString(key + ",,,NYPD,Noise,,QUEENS,,\n")
		repo.failKeys[key] = true
	}

	cfg := testConfig(writeCSV(t, sb.String()), 10000)
	cfg.ErrorLogLimit = 2

	var out strings.Builder
	sum, err := Run(context.Background(), cfg, repo, &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.ErrorCount != 15 {
		t.Fatalf("ErrorCount = %d, want 15", sum.ErrorCount)
	}
	if got := strings.Count(out.String(), "Error inserting row"); got != 2 {
		t.Fatalf("logged %d row errors, want 2", got)
	}
	if sum.TotalRows != 15 {
		t.Fatalf("TotalRows = %d, want 15 (failed rows still count)", sum.TotalRows)
	}
}

func TestRunMissingKeyCountsAsError(t *testing.T) {
	csv := "Unique Key,Created Date,Closed Date,Agency,Complaint Type,Descriptor,Borough,Latitude,Longitude\n" +
		",,,NYPD,Noise,,QUEENS,,\n" +
		"2001,,,DOT,Street,,BRONX,,\n"
	repo := newMemRepo()
	cfg := testConfig(writeCSV(t, csv), 10000)

	var out strings.Builder
	sum, err := Run(context.Background(), cfg, repo, &out)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1", sum.ErrorCount)
	}
	if sum.TotalRows != 2 {
		t.Fatalf("TotalRows = %d, want 2", sum.TotalRows)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("stored keys = %d, want 1", len(repo.rows))
	}
}

// A commit failure aborts the run; earlier chunks stay committed, the
// in-flight chunk is discarded.
func TestRunCommitFailureIsFatal(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Unique Key,Created Date,Closed Date,Agency,Complaint Type,Descriptor,Borough,Latitude,Longitude\n")
	for i := 0; i < 4; i++ {
		sb.WriteString(fmt.Sprintf("%d,,,NYPD,Noise,,QUEENS,,\n", 3000+i))
	}

	repo := newMemRepo()
	repo.failCommit = 2
	cfg := testConfig(writeCSV(t, sb.String()), 2)

	var out strings.Builder
	sum, err := Run(context.Background(), cfg, repo, &out)
	if err == nil {
		t.Fatal("Run should fail when a chunk commit fails")
	}
	if !strings.Contains(err.Error(), "commit chunk 2") {
		t.Fatalf("err = %v, want commit chunk 2 failure", err)
	}
	if len(repo.rows) != 2 {
		t.Fatalf("stored keys = %d, want 2 (first chunk only)", len(repo.rows))
	}
	if sum.TotalRows != 2 {
		t.Fatalf("TotalRows = %d, want 2", sum.TotalRows)
	}
}

func TestRunMissingFileIsFatal(t *testing.T) {
	repo := newMemRepo()
	cfg := testConfig(filepath.Join(t.TempDir(), "absent.csv"), 100)

	if _, err := Run(context.Background(), cfg, repo, &strings.Builder{}); err == nil {
		t.Fatal("Run should fail when the extract does not exist")
	}
}

func TestSummarySpeed(t *testing.T) {
	if got := (Summary{TotalRows: 100}).Speed(); got != 0 {
		t.Fatalf("zero-duration Speed = %v, want 0", got)
	}
	s := Summary{TotalRows: 100, Duration: 2 * time.Second}
	if got := s.Speed(); got != 50 {
		t.Fatalf("Speed = %v, want 50", got)
	}
}

func TestSummaryFprint(t *testing.T) {
	var out strings.Builder
	s := Summary{TotalRows: 42, ErrorCount: 3, Duration: 1500 * time.Millisecond}
	s.Fprint(&out)

	text := out.String()
	for _, want := range []string{
		strings.Repeat("=", 50),
		"ETL COMPLETE - Statistics:",
		"  Total rows processed: 42",
		"  Errors encountered: 3",
		"  Duration: 1.50 seconds",
		"  Speed: 28.00 rows/second",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary missing %q:\n%s", want, text)
		}
	}
}
