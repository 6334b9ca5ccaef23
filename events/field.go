/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package events

import (
	"bytes"
	"encoding/json"
)

// Field is a partial-update value with three states: absent (the zero
// value), cleared, and set.
type Field[T any] struct {
	present bool
	value   *T
}

// Set returns a Field carrying v.
func Set[T any](v T) Field[T] {
	return Field[T]{present: true, value: &v}
}

// Clear returns a Field that is present with no value.
func Clear[T any]() Field[T] {
	return Field[T]{present: true}
}

// IsZero reports whether the field is absent; used by omitzero.
func (f Field[T]) IsZero() bool { return !f.present }

// Changed reports whether the field is present, cleared or set.
func (f Field[T]) Changed() bool { return f.present }

// Cleared reports whether the field is present without a value.
func (f Field[T]) Cleared() bool { return f.present && f.value == nil }

// Get returns the value and whether one is set.
func (f Field[T]) Get() (T, bool) {
	if f.value == nil {
		var zero T
		return zero, false
	}
	return *f.value, true
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*f.value)
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.value = nil
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.value = &v
	return nil
}
