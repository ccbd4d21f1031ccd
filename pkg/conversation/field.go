package conversation

import (
	"bytes"
	"encoding/json"
)

// Field is a JSON value that remembers whether its key was present in the
// decoded object. A key that is absent leaves Set false, a key that is present
// with a JSON null sets both Set and Null, and Value stays at its zero value.
//
// Records are sparse patches: only fields with Set true are applied.
type Field[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Some returns a present, non-null field.
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// Null returns a field that is present with a JSON null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		f.Value = zero
		f.Null = true
		return nil
	}
	f.Null = false
	return json.Unmarshal(b, &f.Value)
}

// MarshalJSON writes null for absent and null fields.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set || f.Null {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Get returns the value and whether the field was present.
func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Set
}

// Apply writes the field into dst when it was present.
func (f Field[T]) Apply(dst *T) {
	if f.Set {
		*dst = f.Value
	}
}
