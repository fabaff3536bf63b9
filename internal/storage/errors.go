package storage

import "fmt"

// WriteError is a row-scoped write failure. It carries the row's natural key
// and the underlying cause so callers can count, sample, and keep going.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("replace row %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
