package schema

import "fmt"

// Integer bounds are restricted to a signed 48-bit range so that every value
// is exactly representable in the float64 numbers of common script runtimes.
const (
	MinInteger int64 = -(1 << 47)
	MaxInteger int64 = 1<<47 - 1
)

// Type is a sealed interface describing the type of a parameter or return
// value. Only IntegerType, FloatType, BooleanType, StringType and ListType
// implement it.
type Type interface {
	typeDescriptor() // Sealed
	String() string
}

// IntegerType is a signed integer constrained to the inclusive range [Min, Max].
type IntegerType struct {
	Min int64
	Max int64
}

func (IntegerType) typeDescriptor() {}

func (t IntegerType) String() string {
	return fmt.Sprintf("integer(%d..%d)", t.Min, t.Max)
}

// Contains reports whether n lies within the inclusive bounds.
func (t IntegerType) Contains(n int64) bool {
	return n >= t.Min && n <= t.Max
}

// FullIntegerType returns an IntegerType spanning the whole 48-bit range.
func FullIntegerType() IntegerType {
	return IntegerType{Min: MinInteger, Max: MaxInteger}
}

// FloatType is a 32-bit floating point number.
type FloatType struct{}

func (FloatType) typeDescriptor() {}

func (FloatType) String() string { return "float" }

// BooleanType is true or false.
type BooleanType struct{}

func (BooleanType) typeDescriptor() {}

func (BooleanType) String() string { return "boolean" }

// StringType is a UTF-8 string.
type StringType struct{}

func (StringType) typeDescriptor() {}

func (StringType) String() string { return "string" }

// ListType is a homogeneous list. Element types may nest.
type ListType struct {
	Elem Type
}

func (ListType) typeDescriptor() {}

func (t ListType) String() string {
	if t.Elem == nil {
		return "list<?>"
	}
	return "list<" + t.Elem.String() + ">"
}

// TypeEqual reports whether two type descriptors are structurally equal.
func TypeEqual(a, b Type) bool {
	switch at := a.(type) {
	case IntegerType:
		bt, ok := b.(IntegerType)
		return ok && at == bt
	case FloatType:
		_, ok := b.(FloatType)
		return ok
	case BooleanType:
		_, ok := b.(BooleanType)
		return ok
	case StringType:
		_, ok := b.(StringType)
		return ok
	case ListType:
		bt, ok := b.(ListType)
		return ok && TypeEqual(at.Elem, bt.Elem)
	default:
		return a == nil && b == nil
	}
}

// validateType checks integer bounds and list element presence recursively.
func validateType(t Type) error {
	switch tt := t.(type) {
	case nil:
		return fmt.Errorf("type is required")
	case IntegerType:
		if tt.Min < MinInteger || tt.Max > MaxInteger {
			return fmt.Errorf("integer bounds %d..%d exceed the 48-bit range", tt.Min, tt.Max)
		}
		if tt.Min > tt.Max {
			return fmt.Errorf("integer bounds %d..%d are empty", tt.Min, tt.Max)
		}
		return nil
	case ListType:
		if tt.Elem == nil {
			return fmt.Errorf("list element type is required")
		}
		if err := validateType(tt.Elem); err != nil {
			return fmt.Errorf("list element: %w", err)
		}
		return nil
	default:
		return nil
	}
}
