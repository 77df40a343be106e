package types

import (
	"encoding/json"
	"fmt"
)

// MetaKind enumerates the scalar variants a MetaValue may hold.
type MetaKind string

const (
	MetaString MetaKind = "string"
	MetaInt    MetaKind = "int"
	MetaFloat  MetaKind = "float"
	MetaBool   MetaKind = "bool"
)

// MetaValue is a closed scalar variant for chunk metadata. Arbitrary nested
// structures are rejected at the boundary; anything richer belongs in a
// first-class field.
type MetaValue struct {
	Kind  MetaKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// StringValue wraps a string as a MetaValue.
func StringValue(v string) MetaValue { return MetaValue{Kind: MetaString, Str: v} }

// IntValue wraps an integer as a MetaValue.
func IntValue(v int64) MetaValue { return MetaValue{Kind: MetaInt, Int: v} }

// FloatValue wraps a float as a MetaValue.
func FloatValue(v float64) MetaValue { return MetaValue{Kind: MetaFloat, Float: v} }

// BoolValue wraps a bool as a MetaValue.
func BoolValue(v bool) MetaValue { return MetaValue{Kind: MetaBool, Bool: v} }

// Value returns the wrapped scalar as an untyped value.
func (m MetaValue) Value() any {
	switch m.Kind {
	case MetaInt:
		return m.Int
	case MetaFloat:
		return m.Float
	case MetaBool:
		return m.Bool
	default:
		return m.Str
	}
}

// MarshalJSON encodes the wrapped scalar directly, so metadata maps
// round-trip as plain JSON objects.
func (m MetaValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Value())
}

// UnmarshalJSON accepts JSON scalars only; arrays and objects are rejected.
func (m *MetaValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := MetaValueOf(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MetaValueOf validates an untyped value into a MetaValue. Only string, bool
// and numeric values are accepted.
func MetaValueOf(v any) (MetaValue, error) {
	switch val := v.(type) {
	case string:
		return StringValue(val), nil
	case bool:
		return BoolValue(val), nil
	case int:
		return IntValue(int64(val)), nil
	case int64:
		return IntValue(val), nil
	case float64:
		// JSON numbers arrive as float64; keep integral values as ints.
		if val == float64(int64(val)) {
			return IntValue(int64(val)), nil
		}
		return FloatValue(val), nil
	default:
		return MetaValue{}, &ValidationError{
			Field:  "extra",
			Reason: fmt.Sprintf("unsupported metadata value type %T", v),
		}
	}
}
