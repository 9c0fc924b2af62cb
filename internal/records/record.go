// Package records holds the generic record value, the error taxonomy shared
// by every record operation, and the engine that validates partial updates
// and renders representations from a schema manifest.
package records

import "maps"

// Record is one row of any registered type. Values are keyed by storage
// column and hold canonical Go values (int64, decimal.Decimal, bool, string,
// time.Time or nil).
type Record struct {
	Type   string
	ID     int64
	Values map[string]any
}

// New returns an empty record of the given type.
func New(typ string) *Record {
	return &Record{Type: typ, Values: make(map[string]any)}
}

// Get returns the value stored under column.
func (r *Record) Get(column string) any {
	return r.Values[column]
}

// Set stores v under column.
func (r *Record) Set(column string, v any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	r.Values[column] = v
}

// Int returns an integer value. ok is false for null or non-integer values.
func (r *Record) Int(column string) (int64, bool) {
	n, ok := r.Values[column].(int64)
	return n, ok
}

// Bool returns a boolean value, false when absent.
func (r *Record) Bool(column string) bool {
	b, _ := r.Values[column].(bool)
	return b
}

// String returns a text value, empty when absent.
func (r *Record) String(column string) string {
	s, _ := r.Values[column].(string)
	return s
}

// Clone returns a copy whose Values can be changed independently.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{Type: r.Type, ID: r.ID, Values: maps.Clone(r.Values)}
}
