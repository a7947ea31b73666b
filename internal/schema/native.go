package schema

import (
	"fmt"
	"math"
	"reflect"
)

// ValueOf converts plain Go data into a Value without a target type:
// integers become IntegerValue, floats FloatValue, slices ListValue.
// Values pass through unchanged. nil becomes Unit.
//
// Integers outside the 48-bit range are rejected.
func ValueOf(in any) (Value, error) {
	switch v := in.(type) {
	case nil:
		return Unit, nil
	case Value:
		return v, nil
	case bool:
		return BooleanValue(v), nil
	case string:
		return StringValue(v), nil
	case float32:
		return FloatValue(v), nil
	case float64:
		return FloatValue(float32(v)), nil
	}

	if n, ok, _ := toInt64(in); ok {
		if n < MinInteger || n > MaxInteger {
			return nil, &CoercionError{Type: FullIntegerType(), Input: in, Reason: reasonOutOfRange}
		}
		return IntegerValue(n), nil
	}

	rv := reflect.ValueOf(in)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make(ListValue, rv.Len())
		for i := range out {
			elem, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = elem
		}
		return out, nil
	}
	return nil, fmt.Errorf("no value representation for %T", in)
}

// ValuesOf converts each argument with ValueOf.
func ValuesOf(in ...any) ([]Value, error) {
	out := make([]Value, len(in))
	for i, v := range in {
		val, err := ValueOf(v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = val
	}
	return out, nil
}

// IntegralFloat reports whether f has no fractional part and fits the
// 48-bit integer range.
func IntegralFloat(f float64) bool {
	return f == math.Trunc(f) && f >= float64(MinInteger) && f <= float64(MaxInteger)
}
