package property

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestFromAny_NormalizesWidths(t *testing.T) {
	tests := []struct {
		in   any
		kind Kind
	}{
		{int(7), KindInt},
		{int32(7), KindInt},
		{uint16(7), KindInt},
		{float32(1.5), KindFloat},
		{float64(1.5), KindFloat},
		{"x", KindString},
		{true, KindBool},
		{json.RawMessage(`{"a":1}`), KindJSON},
		{map[string]any{"a": 1}, KindJSON},
	}
	for _, tt := range tests {
		value, err := FromAny(tt.in)
		if err != nil {
			t.Fatalf("FromAny(%v): %v", tt.in, err)
		}
		if value.Kind() != tt.kind {
			t.Errorf("FromAny(%T): expected kind %v, got %v", tt.in, tt.kind, value.Kind())
		}
	}
}

func TestFromAny_UnsignedOverflow(t *testing.T) {
	if _, err := FromAny(uint64(math.MaxInt64) + 1); !errors.Is(err, ErrUnsupportedValue) {
		t.Fatalf("expected ErrUnsupportedValue for uint64 past int64, got %v", err)
	}

	value, err := FromAny(uint64(math.MaxInt64))
	if err != nil {
		t.Fatalf("FromAny(MaxInt64): %v", err)
	}
	if value.Kind() != KindInt || value.AsInt() != math.MaxInt64 {
		t.Fatalf("expected int %d, got %v %d", int64(math.MaxInt64), value.Kind(), value.AsInt())
	}
}

func TestFromAny_Unsupported(t *testing.T) {
	if _, err := FromAny(func() {}); !errors.Is(err, ErrUnsupportedValue) {
		t.Fatalf("expected ErrUnsupportedValue, got %v", err)
	}

	// Cyclic structures cannot marshal.
	cycle := map[string]any{}
	cycle["self"] = cycle
	if _, err := FromAny(cycle); !errors.Is(err, ErrUnsupportedValue) {
		t.Fatalf("expected ErrUnsupportedValue for cycle, got %v", err)
	}
}

func TestValueEqual(t *testing.T) {
	if !Int(3).Equal(Int(3)) {
		t.Error("equal ints should match")
	}
	if Int(3).Equal(Float(3)) {
		t.Error("kinds must match")
	}
	if !JSON([]byte(`{"a":1}`)).Equal(JSON([]byte(`{"a":1}`))) {
		t.Error("equal blobs should match")
	}
}

func TestNumeric(t *testing.T) {
	if v, ok := Int(3).Numeric(); !ok || v != 3 {
		t.Errorf("expected 3, got %v %v", v, ok)
	}
	if v, ok := Float(0.5).Numeric(); !ok || v != 0.5 {
		t.Errorf("expected 0.5, got %v %v", v, ok)
	}
	if _, ok := String("3").Numeric(); ok {
		t.Error("string is not numeric")
	}
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"string", "int", "float", "bool", "json"} {
		kind, err := ParseKind(name)
		if err != nil {
			t.Fatalf("ParseKind(%s): %v", name, err)
		}
		if kind.String() != name {
			t.Errorf("ParseKind(%s) round trip gave %s", name, kind)
		}
	}
	if _, err := ParseKind("enum"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
