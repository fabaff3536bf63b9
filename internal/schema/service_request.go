// Package schema defines the typed row model for the service_requests table
// and the binding from cleaned records to driver-ready value tuples.
//
// Nullable columns are pointer fields; a nil pointer is the canonical NULL.
// The column order is fixed and shared by every storage backend.
package schema

import (
	"fmt"
	"strings"
	"time"

	"nyc311/pkg/records"
)

// UnknownBorough is stored whenever the source borough is missing or blank.
const UnknownBorough = "UNKNOWN"

// ServiceRequest is one 311 complaint row. UniqueKey is the natural primary
// key; re-ingesting the same key fully overwrites the stored row.
type ServiceRequest struct {
	UniqueKey     string     `db:"unique_key"`
	CreatedDate   *time.Time `db:"created_date"`
	ClosedDate    *time.Time `db:"closed_date"`
	Agency        *string    `db:"agency"`
	ComplaintType *string    `db:"complaint_type"`
	Descriptor    *string    `db:"descriptor"`
	Borough       string     `db:"borough"`
	Latitude      *float64   `db:"latitude"`
	Longitude     *float64   `db:"longitude"`
}

// columns is the fixed write order for the 9-field tuple.
var columns = []string{
	"unique_key",
	"created_date",
	"closed_date",
	"agency",
	"complaint_type",
	"descriptor",
	"borough",
	"latitude",
	"longitude",
}

// Columns returns the destination column names in write order. Callers must
// not mutate the returned slice.
func Columns() []string { return columns }

// KeyColumn is the conflict target for replace-writes.
const KeyColumn = "unique_key"

// FromRecord binds a cleaned record to a typed row. Missing columns are
// treated as NULL. A missing or blank unique_key is an error; everything
// else degrades to NULL (or UNKNOWN for borough) rather than rejecting the
// row.
func FromRecord(rec records.Record) (ServiceRequest, error) {
	sr := ServiceRequest{
		CreatedDate:   timeField(rec, "created_date"),
		ClosedDate:    timeField(rec, "closed_date"),
		Agency:        stringField(rec, "agency"),
		ComplaintType: stringField(rec, "complaint_type"),
		Descriptor:    stringField(rec, "descriptor"),
		Latitude:      floatField(rec, "latitude"),
		Longitude:     floatField(rec, "longitude"),
	}

	key := stringField(rec, "unique_key")
	if key == nil || strings.TrimSpace(*key) == "" {
		return ServiceRequest{}, fmt.Errorf("record has no unique_key")
	}
	sr.UniqueKey = strings.TrimSpace(*key)

	// The cleaning chain already defaults the borough; doing it again here
	// keeps the never-NULL invariant even for records that bypassed cleaning.
	if b := stringField(rec, "borough"); b != nil && strings.TrimSpace(*b) != "" {
		sr.Borough = *b
	} else {
		sr.Borough = UnknownBorough
	}

	return sr, nil
}

// Values returns the ordered driver-ready tuple aligned with Columns().
// Nil pointers surface as untyped nils, which every backend writes as NULL.
func (sr ServiceRequest) Values() []any {
	vals := make([]any, len(columns))
	vals[0] = sr.UniqueKey
	vals[1] = deref(sr.CreatedDate)
	vals[2] = deref(sr.ClosedDate)
	vals[3] = deref(sr.Agency)
	vals[4] = deref(sr.ComplaintType)
	vals[5] = deref(sr.Descriptor)
	vals[6] = sr.Borough
	vals[7] = deref(sr.Latitude)
	vals[8] = deref(sr.Longitude)
	return vals
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// stringField reads rec[key] as a string. Non-string values are rendered
// with %v so numeric unique keys survive the binding.
func stringField(rec records.Record, key string) *string {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil
	}
	switch s := v.(type) {
	case string:
		return &s
	default:
		str := fmt.Sprintf("%v", v)
		return &str
	}
}

func timeField(rec records.Record, key string) *time.Time {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil
	}
	if t, ok := v.(time.Time); ok {
		return &t
	}
	return nil
}

func floatField(rec records.Record, key string) *float64 {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	}
	return nil
}
