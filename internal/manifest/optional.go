package manifest

import (
	"bytes"
	"encoding/json"
)

// Opt is a manifest field that is either unset or holds a value. An
// explicitly present empty string or false is set; only an absent field or
// JSON null is unset.
type Opt[T comparable] struct {
	v   T
	set bool
}

// Some returns a set Opt holding v.
func Some[T comparable](v T) Opt[T] {
	return Opt[T]{v: v, set: true}
}

// Get returns the value and whether it is set.
func (o Opt[T]) Get() (T, bool) { return o.v, o.set }

// Value returns the value, or T's zero value when unset.
func (o Opt[T]) Value() T { return o.v }

// IsSet reports whether the field is populated.
func (o Opt[T]) IsSet() bool { return o.set }

// IsZero lets encoding/json's omitzero drop unset fields.
func (o Opt[T]) IsZero() bool { return !o.set }

// MarshalJSON implements json.Marshaler.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.v)
}

// UnmarshalJSON implements json.Unmarshaler. JSON null leaves the field unset.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// fill copies src into dst when dst is unset. A present empty string or
// false is a value, so an earlier manifest that sets it keeps it.
func fill[T comparable](dst *Opt[T], src Opt[T]) {
	if !dst.set && src.set {
		*dst = src
	}
}
