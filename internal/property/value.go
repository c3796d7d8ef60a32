package property

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Kind discriminates the closed set of value types a property row can hold.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindJSON:
		return "json"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a kind name from a definitions file onto a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "string":
		return KindString, nil
	case "int":
		return KindInt, nil
	case "float":
		return KindFloat, nil
	case "bool":
		return KindBool, nil
	case "json":
		return KindJSON, nil
	default:
		return 0, fmt.Errorf("unknown property kind: %s", name)
	}
}

// ErrUnsupportedValue marks a runtime value the codec cannot represent,
// such as a function, a channel, or a cyclic structure.
var ErrUnsupportedValue = errors.New("unsupported property value")

// Value is a tagged union over the five representable kinds. Exactly one
// variant is populated; Kind reports which.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	bit  bool
	raw  json.RawMessage
}

func String(v string) Value  { return Value{kind: KindString, str: v} }
func Int(v int64) Value      { return Value{kind: KindInt, num: v} }
func Float(v float64) Value  { return Value{kind: KindFloat, flt: v} }
func Bool(v bool) Value      { return Value{kind: KindBool, bit: v} }
func JSON(raw json.RawMessage) Value {
	return Value{kind: KindJSON, raw: raw}
}

func (v Value) Kind() Kind               { return v.kind }
func (v Value) AsString() string         { return v.str }
func (v Value) AsInt() int64             { return v.num }
func (v Value) AsFloat() float64         { return v.flt }
func (v Value) AsBool() bool             { return v.bit }
func (v Value) AsJSON() json.RawMessage  { return v.raw }

// Numeric returns the value as a float64 for range checks. The second
// return is false for non-numeric kinds.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.num), true
	case KindFloat:
		return v.flt, true
	default:
		return 0, false
	}
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindInt:
		return v.num == o.num
	case KindFloat:
		return v.flt == o.flt
	case KindBool:
		return v.bit == o.bit
	case KindJSON:
		return bytes.Equal(v.raw, o.raw)
	default:
		return false
	}
}

// FromAny classifies a runtime value into the union. Integer widths are
// normalized to int64 and float32 to float64; composite values (maps,
// structs, nested slices) are preserved as a single JSON blob. Unsigned
// integers past the int64 range and values that cannot be marshaled fail
// with ErrUnsupportedValue.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: uint %d overflows int64", ErrUnsupportedValue, t)
		}
		return Int(int64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: uint64 %d overflows int64", ErrUnsupportedValue, t)
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case json.RawMessage:
		return JSON(t), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
		}
		return JSON(raw), nil
	}
}

// Interface converts the value back to its runtime form. JSON blobs
// unmarshal to the generic map/slice shapes of encoding/json.
func (v Value) Interface() (any, error) {
	switch v.kind {
	case KindString:
		return v.str, nil
	case KindInt:
		return v.num, nil
	case KindFloat:
		return v.flt, nil
	case KindBool:
		return v.bit, nil
	case KindJSON:
		var out any
		if err := json.Unmarshal(v.raw, &out); err != nil {
			return nil, fmt.Errorf("decoding json property value: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown value kind: %v", v.kind)
	}
}
