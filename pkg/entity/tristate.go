package entity

import (
	"encoding/json"
	"fmt"
)

// Tristate is a three-valued boolean for attributes whose truth may be
// genuinely unknown. The zero value is Unknown; it is never collapsed to
// false and never serialized as a string. Serialization enforces the
// distinction at the data-model boundary: true, false, or null.
type Tristate uint8

// Tristate values. Unknown is the zero value by design: a freshly decoded
// record that never mentions the field stays Unknown.
const (
	Unknown Tristate = iota
	True
	False
)

// TristateOf converts a known boolean into a Tristate.
func TristateOf(b bool) Tristate {
	if b {
		return True
	}
	return False
}

// Bool returns the underlying value and whether it is known.
func (t Tristate) Bool() (value, known bool) {
	switch t {
	case True:
		return true, true
	case False:
		return false, true
	default:
		return false, false
	}
}

// IsTrue reports whether the value is known true.
func (t Tristate) IsTrue() bool { return t == True }

// IsFalse reports whether the value is known false.
func (t Tristate) IsFalse() bool { return t == False }

// IsUnknown reports whether the value is unknown.
func (t Tristate) IsUnknown() bool { return t == Unknown }

// String implements fmt.Stringer.
func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler. Unknown serializes as null.
func (t Tristate) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tristate) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("tristate must be true, false, or null: %w", err)
	}
	if b == nil {
		*t = Unknown
	} else {
		*t = TristateOf(*b)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler. Unknown serializes as null.
func (t Tristate) MarshalYAML() (any, error) {
	value, known := t.Bool()
	if !known {
		return nil, nil
	}
	return value, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Tristate) UnmarshalYAML(unmarshal func(any) error) error {
	var b *bool
	if err := unmarshal(&b); err != nil {
		return fmt.Errorf("tristate must be true, false, or null: %w", err)
	}
	if b == nil {
		*t = Unknown
	} else {
		*t = TristateOf(*b)
	}
	return nil
}

// Ptr returns the value as a nullable bool pointer, nil when unknown.
// Used at columnar serialization boundaries.
func (t Tristate) Ptr() *bool {
	value, known := t.Bool()
	if !known {
		return nil
	}
	return &value
}

// TristateFromPtr converts a nullable bool pointer into a Tristate.
func TristateFromPtr(b *bool) Tristate {
	if b == nil {
		return Unknown
	}
	return TristateOf(*b)
}
