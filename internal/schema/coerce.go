package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// CoercionError reports that an input could not be converted to a Value of
// the requested type.
type CoercionError struct {
	Type   Type
	Input  any
	Reason string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce %v (%T) to %s: %s", e.Input, e.Input, e.Type, e.Reason)
}

// IsOutOfRange reports whether the coercion failed on integer bounds.
func (e *CoercionError) IsOutOfRange() bool {
	return e.Reason == reasonOutOfRange
}

const (
	reasonOutOfRange = "out of range"
	reasonWrongKind  = "wrong kind"
	reasonFraction   = "not an integral number"
)

// Coerce converts in to a Value of type t.
//
// Accepted inputs per type:
//   - IntegerType: Go integers, integral floats, json.Number, IntegerValue,
//     integral FloatValue
//   - FloatType: Go floats and integers, json.Number, FloatValue, IntegerValue
//   - BooleanType: bool, BooleanValue
//   - StringType: string, StringValue
//   - ListType: any slice or array (including ListValue), element-wise
//
// Integers are always range-checked against the declared bounds; values
// outside are rejected, never clamped.
func Coerce(t Type, in any) (Value, error) {
	switch tt := t.(type) {
	case IntegerType:
		return coerceInteger(tt, in)
	case FloatType:
		return coerceFloat(tt, in)
	case BooleanType:
		switch v := in.(type) {
		case bool:
			return BooleanValue(v), nil
		case BooleanValue:
			return v, nil
		}
		return nil, &CoercionError{Type: t, Input: in, Reason: reasonWrongKind}
	case StringType:
		switch v := in.(type) {
		case string:
			return StringValue(v), nil
		case StringValue:
			return v, nil
		}
		return nil, &CoercionError{Type: t, Input: in, Reason: reasonWrongKind}
	case ListType:
		return coerceList(tt, in)
	default:
		return nil, fmt.Errorf("coerce: unsupported type descriptor %T", t)
	}
}

func coerceInteger(t IntegerType, in any) (Value, error) {
	n, ok, reason := toInt64(in)
	if !ok {
		return nil, &CoercionError{Type: t, Input: in, Reason: reason}
	}
	if !t.Contains(n) {
		return nil, &CoercionError{Type: t, Input: in, Reason: reasonOutOfRange}
	}
	return IntegerValue(n), nil
}

// toInt64 extracts an integer from the supported numeric inputs.
func toInt64(in any) (int64, bool, string) {
	switch v := in.(type) {
	case IntegerValue:
		return int64(v), true, ""
	case int:
		return int64(v), true, ""
	case int8:
		return int64(v), true, ""
	case int16:
		return int64(v), true, ""
	case int32:
		return int64(v), true, ""
	case int64:
		return v, true, ""
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false, reasonOutOfRange
		}
		return int64(v), true, ""
	case uint8:
		return int64(v), true, ""
	case uint16:
		return int64(v), true, ""
	case uint32:
		return int64(v), true, ""
	case uint64:
		if v > math.MaxInt64 {
			return 0, false, reasonOutOfRange
		}
		return int64(v), true, ""
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case FloatValue:
		return floatToInt64(float64(v))
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true, ""
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false, reasonWrongKind
		}
		return floatToInt64(f)
	default:
		return 0, false, reasonWrongKind
	}
}

func floatToInt64(f float64) (int64, bool, string) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false, reasonFraction
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false, reasonOutOfRange
	}
	return int64(f), true, ""
}

func coerceFloat(t FloatType, in any) (Value, error) {
	switch v := in.(type) {
	case FloatValue:
		return v, nil
	case float32:
		return FloatValue(v), nil
	case float64:
		return FloatValue(float32(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, &CoercionError{Type: t, Input: in, Reason: reasonWrongKind}
		}
		return FloatValue(float32(f)), nil
	}
	if n, ok, _ := toInt64(in); ok {
		return FloatValue(float32(n)), nil
	}
	return nil, &CoercionError{Type: t, Input: in, Reason: reasonWrongKind}
}

func coerceList(t ListType, in any) (Value, error) {
	if in == nil {
		return nil, &CoercionError{Type: t, Input: in, Reason: reasonWrongKind}
	}
	if list, ok := in.(ListValue); ok {
		out := make(ListValue, len(list))
		for i, elem := range list {
			v, err := Coerce(t.Elem, elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}

	rv := reflect.ValueOf(in)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &CoercionError{Type: t, Input: in, Reason: reasonWrongKind}
	}
	out := make(ListValue, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		v, err := Coerce(t.Elem, rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Conforms reports whether v is already a valid value of type t without any
// widening: an IntegerValue within bounds for IntegerType, and so on.
func Conforms(t Type, v Value) bool {
	switch tt := t.(type) {
	case IntegerType:
		n, ok := v.(IntegerValue)
		return ok && tt.Contains(int64(n))
	case FloatType:
		_, ok := v.(FloatValue)
		return ok
	case BooleanType:
		_, ok := v.(BooleanValue)
		return ok
	case StringType:
		_, ok := v.(StringValue)
		return ok
	case ListType:
		list, ok := v.(ListValue)
		if !ok {
			return false
		}
		for _, elem := range list {
			if !Conforms(tt.Elem, elem) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
