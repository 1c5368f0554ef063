package ir

import (
	"fmt"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing bus payload values.
// Only Null, String, Int, Float, Bool, Array, and Object implement this.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents an absent payload.
type Null struct{}

func (Null) irValue() {}

// String represents a string payload, e.g. a classification label.
type String string

func (String) irValue() {}

// Int represents an integer payload, e.g. a stimulus tier or end outcome.
type Int int64

func (Int) irValue() {}

// Float represents a real-valued payload, e.g. a classifier feature.
type Float float64

func (Float) irValue() {}

// Bool represents a boolean payload.
type Bool bool

func (Bool) irValue() {}

// Array represents an ordered list of values.
// Face detection and classification payloads arrive as arrays.
type Array []Value

func (Array) irValue() {}

// Object represents a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

// NewArray creates an Array from values.
func NewArray(vals ...Value) Array {
	return Array(vals)
}

// SortedKeys returns keys in UTF-16 code unit order so rendering is stable.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// compareKeysUTF16 compares strings by UTF-16 code units.
// Go's default string comparison uses UTF-8 which produces a different order
// for characters outside the BMP.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// AsInt extracts an integer from a payload.
// Floats with an integral value are accepted; everything else is an error.
func AsInt(v Value) (int64, error) {
	switch val := v.(type) {
	case Int:
		return int64(val), nil
	case Float:
		if float64(val) != float64(int64(val)) {
			return 0, fmt.Errorf("payload %v is not integral", float64(val))
		}
		return int64(val), nil
	case nil:
		return 0, fmt.Errorf("payload is nil")
	default:
		return 0, fmt.Errorf("payload of type %T is not an integer", v)
	}
}

// Len returns the element count of an Array payload, or 0 for any other value.
func Len(v Value) int {
	if arr, ok := v.(Array); ok {
		return len(arr)
	}
	return 0
}

// FromAny converts a decoded YAML/JSON value to a Value.
// Used when payloads come from scenario files or the interactive host.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case bool:
		return Bool(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
