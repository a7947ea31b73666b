package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a sealed interface for the values exchanged with scripts.
// Only UnitValue, IntegerValue, FloatValue, BooleanValue, StringValue and
// ListValue implement it.
//
// ListValue is a real sequence of elements, not a single representative
// element: list defaults and list arguments share one representation.
type Value interface {
	value() // Sealed
	Kind() Kind
	String() string
}

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindUnit Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindString
	KindList
)

var kindNames = [...]string{
	KindUnit:    "unit",
	KindInteger: "integer",
	KindFloat:   "float",
	KindBoolean: "boolean",
	KindString:  "string",
	KindList:    "list",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// UnitValue is the absence of a result.
type UnitValue struct{}

func (UnitValue) value()         {}
func (UnitValue) Kind() Kind     { return KindUnit }
func (UnitValue) String() string { return "()" }

// IntegerValue is a signed integer.
type IntegerValue int64

func (IntegerValue) value()           {}
func (IntegerValue) Kind() Kind       { return KindInteger }
func (v IntegerValue) String() string { return strconv.FormatInt(int64(v), 10) }

// FloatValue is a 32-bit float.
type FloatValue float32

func (FloatValue) value()     {}
func (FloatValue) Kind() Kind { return KindFloat }
func (v FloatValue) String() string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

// BooleanValue is true or false.
type BooleanValue bool

func (BooleanValue) value()           {}
func (BooleanValue) Kind() Kind       { return KindBoolean }
func (v BooleanValue) String() string { return strconv.FormatBool(bool(v)) }

// StringValue is a UTF-8 string.
type StringValue string

func (StringValue) value()           {}
func (StringValue) Kind() Kind       { return KindString }
func (v StringValue) String() string { return strconv.Quote(string(v)) }

// ListValue is an ordered sequence of values.
type ListValue []Value

func (ListValue) value()     {}
func (ListValue) Kind() Kind { return KindList }
func (v ListValue) String() string {
	parts := make([]string, len(v))
	for i, elem := range v {
		if elem == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = elem.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Unit is the shared UnitValue.
var Unit Value = UnitValue{}

// ValueEqual reports whether two values are structurally equal.
// Floats compare by value, so NaN is never equal to itself.
func ValueEqual(a, b Value) bool {
	switch av := a.(type) {
	case UnitValue:
		_, ok := b.(UnitValue)
		return ok
	case IntegerValue:
		bv, ok := b.(IntegerValue)
		return ok && av == bv
	case FloatValue:
		bv, ok := b.(FloatValue)
		return ok && av == bv
	case BooleanValue:
		bv, ok := b.(BooleanValue)
		return ok && av == bv
	case StringValue:
		bv, ok := b.(StringValue)
		return ok && av == bv
	case ListValue:
		bv, ok := b.(ListValue)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !ValueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}

// Native converts a Value into plain Go data: nil, int64, float32, bool,
// string or []any. Used for JSON output and for handing results to scripts.
func Native(v Value) any {
	switch val := v.(type) {
	case IntegerValue:
		return int64(val)
	case FloatValue:
		return float32(val)
	case BooleanValue:
		return bool(val)
	case StringValue:
		return string(val)
	case ListValue:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Native(elem)
		}
		return out
	default:
		return nil
	}
}
