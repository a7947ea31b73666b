package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce_IntegerRange(t *testing.T) {
	typ := IntegerType{Min: 0, Max: 10000}

	v, err := Coerce(typ, 1000)
	require.NoError(t, err)
	assert.Equal(t, IntegerValue(1000), v)

	v, err = Coerce(typ, 10000)
	require.NoError(t, err)
	assert.Equal(t, IntegerValue(10000), v, "max bound is inclusive")

	for _, in := range []any{-1, 10001, int64(1) << 40} {
		_, err := Coerce(typ, in)
		require.Error(t, err, "%v must be rejected, not clamped", in)
		var cerr *CoercionError
		require.True(t, errors.As(err, &cerr))
		assert.True(t, cerr.IsOutOfRange())
	}
}

func TestCoerce_IntegerInputs(t *testing.T) {
	typ := FullIntegerType()

	for _, in := range []any{int8(5), uint16(5), int32(5), float64(5), float32(5), json.Number("5"), IntegerValue(5)} {
		v, err := Coerce(typ, in)
		require.NoError(t, err, "%T", in)
		assert.Equal(t, IntegerValue(5), v)
	}

	_, err := Coerce(typ, 2.5)
	assert.Error(t, err)
	_, err = Coerce(typ, "5")
	assert.Error(t, err)
	_, err = Coerce(typ, uint64(1)<<63)
	assert.Error(t, err)
	_, err = Coerce(typ, MaxInteger+1)
	assert.Error(t, err)
}

func TestCoerce_Scalars(t *testing.T) {
	v, err := Coerce(FloatType{}, 3)
	require.NoError(t, err)
	assert.Equal(t, FloatValue(3), v)

	v, err = Coerce(FloatType{}, json.Number("0.5"))
	require.NoError(t, err)
	assert.Equal(t, FloatValue(0.5), v)

	v, err = Coerce(BooleanType{}, true)
	require.NoError(t, err)
	assert.Equal(t, BooleanValue(true), v)

	v, err = Coerce(StringType{}, "hi")
	require.NoError(t, err)
	assert.Equal(t, StringValue("hi"), v)

	_, err = Coerce(BooleanType{}, 1)
	assert.Error(t, err)
	_, err = Coerce(StringType{}, 5)
	assert.Error(t, err)
}

func TestCoerce_List(t *testing.T) {
	typ := ListType{Elem: IntegerType{Min: 0, Max: 255}}

	v, err := Coerce(typ, []any{json.Number("1"), 2, int64(3)})
	require.NoError(t, err)
	assert.Equal(t, ListValue{IntegerValue(1), IntegerValue(2), IntegerValue(3)}, v)

	v, err = Coerce(typ, []int{})
	require.NoError(t, err)
	assert.Equal(t, ListValue{}, v)

	_, err = Coerce(typ, []int{1, 256})
	require.Error(t, err)
	var cerr *CoercionError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, cerr.IsOutOfRange())

	_, err = Coerce(typ, 7)
	assert.Error(t, err)
}

func TestConforms(t *testing.T) {
	assert.True(t, Conforms(IntegerType{Min: 0, Max: 3}, IntegerValue(3)))
	assert.False(t, Conforms(IntegerType{Min: 0, Max: 3}, IntegerValue(4)))
	assert.False(t, Conforms(FloatType{}, IntegerValue(1)), "no widening")
	assert.True(t, Conforms(ListType{Elem: StringType{}}, ListValue{StringValue("a")}))
	assert.False(t, Conforms(ListType{Elem: StringType{}}, ListValue{BooleanValue(true)}))
}

func TestValueEqual(t *testing.T) {
	assert.True(t, ValueEqual(ListValue{IntegerValue(1), ListValue{}}, ListValue{IntegerValue(1), ListValue{}}))
	assert.False(t, ValueEqual(IntegerValue(1), FloatValue(1)))
	assert.True(t, ValueEqual(Unit, UnitValue{}))
}

func TestNative(t *testing.T) {
	assert.Nil(t, Native(Unit))
	assert.Equal(t, int64(7), Native(IntegerValue(7)))
	assert.Equal(t, []any{true, "x"}, Native(ListValue{BooleanValue(true), StringValue("x")}))
}

func TestValueOf(t *testing.T) {
	v, err := ValueOf([]any{int32(1), 2.5, "x", true, nil, []int64{7}})
	require.NoError(t, err)
	assert.Equal(t, ListValue{
		IntegerValue(1), FloatValue(2.5), StringValue("x"), BooleanValue(true), Unit, ListValue{IntegerValue(7)},
	}, v)

	v, err = ValueOf(IntegerValue(3))
	require.NoError(t, err)
	assert.Equal(t, IntegerValue(3), v)

	_, err = ValueOf(int64(1) << 50)
	assert.Error(t, err)
	_, err = ValueOf(map[string]int{})
	assert.Error(t, err)

	vals, err := ValuesOf(int64(1000), "red")
	require.NoError(t, err)
	assert.Equal(t, []Value{IntegerValue(1000), StringValue("red")}, vals)
}

func TestIntegralFloat(t *testing.T) {
	assert.True(t, IntegralFloat(3))
	assert.True(t, IntegralFloat(-0))
	assert.False(t, IntegralFloat(3.5))
	assert.False(t, IntegralFloat(float64(MaxInteger)+1))
}
