package record

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind represents the type of a property value
type ValueKind uint8

const (
	KindNumber ValueKind = iota
	KindString
	KindBool
	// KindExpression is a unit-bearing expression such as "100 bar" or "20*MW".
	// The core never interprets these; only the external unit evaluator does.
	KindExpression
)

// String returns the string representation of a value kind
func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindExpression:
		return "expression"
	default:
		return "unknown"
	}
}

// Value represents a typed property value
type Value struct {
	Kind ValueKind
	num  float64
	str  string
	b    bool
}

// Constructors for typed values
func Number(f float64) Value {
	return Value{Kind: KindNumber, num: f}
}

func String(s string) Value {
	return Value{Kind: KindString, str: s}
}

func Bool(b bool) Value {
	return Value{Kind: KindBool, b: b}
}

func Expression(expr string) Value {
	return Value{Kind: KindExpression, str: expr}
}

// Decode accessors
func (v Value) AsNumber() (float64, error) {
	if v.Kind != KindNumber {
		return 0, fmt.Errorf("value is not a number")
	}
	return v.num, nil
}

func (v Value) AsString() (string, error) {
	if v.Kind != KindString {
		return "", fmt.Errorf("value is not a string")
	}
	return v.str, nil
}

func (v Value) AsBool() (bool, error) {
	if v.Kind != KindBool {
		return false, fmt.Errorf("value is not a bool")
	}
	return v.b, nil
}

func (v Value) AsExpression() (string, error) {
	if v.Kind != KindExpression {
		return "", fmt.Errorf("value is not an expression")
	}
	return v.str, nil
}

// Interface returns the value in the shape the serialization boundary writes:
// numbers as float64, bools as bool, strings and expressions as string.
func (v Value) Interface() any {
	switch v.Kind {
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return v.str
	}
}

// Equal reports whether two values have the same kind and payload
func (v Value) Equal(other Value) bool {
	return v == other
}

// String formats the value for diagnostics
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindExpression:
		return v.str
	default:
		return v.str
	}
}

// FromAny converts a decoded wire value into a typed Value. Strings that look
// like unit expressions (anything that is not a bare word) are kept opaque as
// KindExpression; plain words stay KindString. Integer wire types are widened
// to float64 like every other numeric.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case bool:
		return Bool(x), nil
	case string:
		if looksDimensioned(x) {
			return Expression(x), nil
		}
		return String(x), nil
	default:
		return Value{}, fmt.Errorf("unsupported property value type %T", raw)
	}
}

// looksDimensioned reports whether a string starts with a numeric literal,
// e.g. "100 bar", "20*MW", "1.5e3 kg/h". Such strings are treated as opaque
// unit expressions. Classification only; no parsing or unit math happens here.
// The wire format carries both kinds as plain strings, so a KindString value
// that happens to start with a digit ("100", "5 pumps") comes back as
// KindExpression after a save/load cycle. The payload is unchanged either
// way; only the classification shifts.
func looksDimensioned(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	c := s[0]
	if c == '+' || c == '-' {
		if len(s) == 1 {
			return false
		}
		c = s[1]
	}
	return c >= '0' && c <= '9'
}
