package settings

import (
	"bytes"
	"encoding/json"
)

var jsonNull = []byte("null")

// Optional is a partial-update field: either unset (the key was absent) or set
// to a value. A JSON null marks the field set with its zero value and records
// the null, so nullable fields use Optional[*T] and non-nullable fields reject it
// during validation.
type Optional[T any] struct {
	set   bool
	null  bool
	value T
}

// Some returns an Optional set to v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{set: true, value: v}
}

// Null returns an Optional that is set to an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{set: true, null: true}
}

// IsSet reports whether the field was present in the request.
func (o Optional[T]) IsSet() bool { return o.set }

// IsZero reports whether the field is unset, so `omitzero` drops it when encoding.
func (o Optional[T]) IsZero() bool { return !o.set }

// IsNull reports whether the field was present with an explicit null.
func (o Optional[T]) IsNull() bool { return o.set && o.null }

// Value returns the value and whether it was set.
func (o Optional[T]) Value() (T, bool) { return o.value, o.set }

// UnmarshalJSON marks the field as set. encoding/json only calls it when the key is present.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		o.null = true
		var zero T
		o.value = zero
		return nil
	}
	return json.Unmarshal(data, &o.value)
}

// MarshalJSON writes the value, or null when unset.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set || o.null {
		return jsonNull, nil
	}
	return json.Marshal(o.value)
}
