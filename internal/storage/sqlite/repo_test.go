package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nyc311/internal/storage"
)

func openTestRepo(t *testing.T) storage.Repository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "nyc311_test.db")
	repo, err := storage.New(context.Background(), storage.Config{
		Kind:  "sqlite",
		DSN:   dsn,
		Table: "service_requests",
	})
	if err != nil {
		t.Fatalf("open sqlite repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	if err := storage.EnsureTable(context.Background(), "sqlite", "service_requests", repo); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	return repo
}

var srColumns = []string{
	"unique_key", "created_date", "closed_date", "agency",
	"complaint_type", "descriptor", "borough", "latitude", "longitude",
}

func srRow(key, agency, borough string) []any {
	created := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return []any{key, created, nil, agency, "Noise", nil, borough, 40.7128, nil}
}

// queryAgency reads agency and borough back for a key through a raw query.
func queryAgency(t *testing.T, repo storage.Repository, key string) (string, string) {
	t.Helper()
	w, ok := repo.(*wrappedRepo)
	if !ok {
		t.Fatalf("repo is %T, want *wrappedRepo", repo)
	}
	var agency, borough string
	err := w.Repository.db.QueryRowContext(context.Background(),
		`SELECT agency, borough FROM service_requests WHERE unique_key = ?`, key).
		Scan(&agency, &borough)
	if err != nil {
		t.Fatalf("query key %s: %v", key, err)
	}
	return agency, borough
}

func countRows(t *testing.T, repo storage.Repository) int {
	t.Helper()
	w := repo.(*wrappedRepo)
	var n int
	if err := w.Repository.db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM service_requests`).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func TestReplaceIsIdempotent(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	write := func(agency string) {
		tx, err := repo.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := tx.ReplaceRow(ctx, srColumns, srRow("1001", agency, "MANHATTAN")); err != nil {
			t.Fatalf("replace: %v", err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	write("NYPD")
	write("DOT") // same key, later write wins

	if n := countRows(t, repo); n != 1 {
		t.Fatalf("row count = %d, want 1", n)
	}
	agency, _ := queryAgency(t, repo, "1001")
	if agency != "DOT" {
		t.Fatalf("agency = %q, want %q (last write wins)", agency, "DOT")
	}
}

func TestRollbackDiscardsChunk(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, key := range []string{"1", "2", "3"} {
		if err := tx.ReplaceRow(ctx, srColumns, srRow(key, "NYPD", "QUEENS")); err != nil {
			t.Fatalf("replace %s: %v", key, err)
		}
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if n := countRows(t, repo); n != 0 {
		t.Fatalf("row count after rollback = %d, want 0", n)
	}
}

func TestCommitIsChunkAtomic(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	rows := []storage.Row{
		{Key: "10", Values: srRow("10", "DEP", "BRONX")},
		{Key: "11", Values: srRow("11", "DEP", "BRONX")},
	}
	n, err := storage.LoadChunk(ctx, tx, srColumns, rows, nil)
	if err != nil {
		t.Fatalf("load chunk: %v", err)
	}
	if n != 2 {
		t.Fatalf("written = %d, want 2", n)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := countRows(t, repo); got != 2 {
		t.Fatalf("row count = %d, want 2", got)
	}
}

func TestNullColumnsRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	row := []any{"77", nil, nil, nil, nil, nil, "UNKNOWN", nil, nil}
	if err := tx.ReplaceRow(ctx, srColumns, row); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	w := repo.(*wrappedRepo)
	var lat sql.NullFloat64
	var agency sql.NullString
	var borough string
	err = w.Repository.db.QueryRowContext(ctx,
		`SELECT agency, borough, latitude FROM service_requests WHERE unique_key = '77'`).
		Scan(&agency, &borough, &lat)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if agency.Valid {
		t.Fatalf("agency = %v, want NULL", agency.String)
	}
	if lat.Valid {
		t.Fatalf("latitude = %v, want NULL", lat.Float64)
	}
	if borough != "UNKNOWN" {
		t.Fatalf("borough = %q, want UNKNOWN", borough)
	}
}

func TestReplaceSQL(t *testing.T) {
	got := replaceSQL("service_requests", []string{"unique_key", "agency"})
	want := `INSERT OR REPLACE INTO "service_requests" ("unique_key", "agency") VALUES (?, ?)`
	if got != want {
		t.Fatalf("replaceSQL =\n  %s\nwant\n  %s", got, want)
	}
}

func TestCreateTableSQLHasKeyAndDefault(t *testing.T) {
	ddl := createTableSQL("service_requests")
	for _, frag := range []string{"PRIMARY KEY", `DEFAULT 'UNKNOWN'`, "unique_key"} {
		if !strings.Contains(ddl, frag) {
			t.Fatalf("DDL missing %q:\n%s", frag, ddl)
		}
	}
}
