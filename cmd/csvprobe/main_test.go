package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const sampleCSV = "Unique Key,Borough\n1,BRONX\n"

func TestSampleSourceLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	res, err := sampleSource(context.Background(), path, ',', 10)
	if err != nil {
		t.Fatalf("sampleSource: %v", err)
	}
	if len(res.Columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(res.Columns))
	}
	if res.Columns[0].Normalized != "unique_key" {
		t.Fatalf("first column = %q, want unique_key", res.Columns[0].Normalized)
	}
}

// TestSampleSourceHTTPURL checks the probe reads http(s) sources through the
// same dispatch as the loader.
func TestSampleSourceHTTPURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	res, err := sampleSource(context.Background(), srv.URL, ',', 10)
	if err != nil {
		t.Fatalf("sampleSource: %v", err)
	}
	if len(res.Columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(res.Columns))
	}
	if res.Fingerprint == "" {
		t.Fatalf("fingerprint is empty")
	}
}

func TestSampleSourceMissingFile(t *testing.T) {
	if _, err := sampleSource(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), ',', 10); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
