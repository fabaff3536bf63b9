package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeTx records writes and fails on configured keys (value index 0).
type fakeTx struct {
	written    [][]any
	failKeys   map[string]bool
	committed  bool
	rolledBack bool
}

func (f *fakeTx) ReplaceRow(_ context.Context, columns []string, row []any) error {
	key := fmt.Sprintf("%v", row[0])
	if f.failKeys[key] {
		return errors.New("constraint violation")
	}
	f.written = append(f.written, row)
	return nil
}

func (f *fakeTx) Commit(context.Context) error   { f.committed = true; return nil }
func (f *fakeTx) Rollback(context.Context) error { f.rolledBack = true; return nil }

func rowsFor(keys ...string) []Row {
	out := make([]Row, len(keys))
	for i, k := range keys {
		out[i] = Row{Key: k, Values: []any{k, "DOT"}}
	}
	return out
}

var testColumns = []string{"unique_key", "agency"}

func TestLoadChunkWritesAll(t *testing.T) {
	tx := &fakeTx{}
	n, err := LoadChunk(context.Background(), tx, testColumns, rowsFor("1", "2", "3"), nil)
	if err != nil {
		t.Fatalf("LoadChunk: %v", err)
	}
	if n != 3 {
		t.Fatalf("written = %d, want 3", n)
	}
	if len(tx.written) != 3 {
		t.Fatalf("tx saw %d rows, want 3", len(tx.written))
	}
}

// TestLoadChunkPartialFailure is the core fail-soft property: a failing row
// is reported and skipped, its siblings before and after still land.
func TestLoadChunkPartialFailure(t *testing.T) {
	tx := &fakeTx{failKeys: map[string]bool{"2": true}}

	var errs []*WriteError
	n, err := LoadChunk(context.Background(), tx, testColumns, rowsFor("1", "2", "3"), func(we *WriteError) {
		errs = append(errs, we)
	})
	if err != nil {
		t.Fatalf("LoadChunk: %v", err)
	}
	if n != 2 {
		t.Fatalf("written = %d, want 2", n)
	}
	if len(errs) != 1 {
		t.Fatalf("errors = %d, want 1", len(errs))
	}
	if errs[0].Key != "2" {
		t.Fatalf("error key = %q, want %q", errs[0].Key, "2")
	}
	// The row after the failure was still processed.
	if got := fmt.Sprintf("%v", tx.written[1][0]); got != "3" {
		t.Fatalf("row after failure = %v, want 3", got)
	}
}

func TestLoadChunkCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tx := &fakeTx{}
	n, err := LoadChunk(ctx, tx, testColumns, rowsFor("1", "2"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n != 0 {
		t.Fatalf("written = %d, want 0", n)
	}
}

func TestWriteErrorUnwrap(t *testing.T) {
	cause := errors.New("duplicate entry")
	we := &WriteError{Key: "42", Err: cause}
	if !errors.Is(we, cause) {
		t.Fatalf("errors.Is failed to reach the cause")
	}
	want := "replace row 42: duplicate entry"
	if we.Error() != want {
		t.Fatalf("Error() = %q, want %q", we.Error(), want)
	}
}
