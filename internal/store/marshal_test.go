package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

func TestMarshalValue(t *testing.T) {
	tests := []struct {
		name  string
		value schema.Value
		want  string
	}{
		{"nil", nil, "null"},
		{"unit", schema.Unit, "null"},
		{"integer", schema.IntegerValue(-7), "-7"},
		{"float", schema.FloatValue(0.5), "0.5"},
		{"boolean", schema.BooleanValue(false), "false"},
		{"string html", schema.StringValue("<red>"), `"<red>"`},
		{"nested list", schema.ListValue{schema.ListValue{schema.IntegerValue(1)}, schema.ListValue{}}, "[[1],[]]"},
		{"nan", schema.FloatValue(float32(math.NaN())), `"NaN"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, marshalValue(tt.value))
		})
	}
}

func TestUnmarshalValues(t *testing.T) {
	values, err := unmarshalValues(`[1, 2.5, "x", true, [3]]`)
	require.NoError(t, err)
	assert.Equal(t, []schema.Value{
		schema.IntegerValue(1),
		schema.FloatValue(2.5),
		schema.StringValue("x"),
		schema.BooleanValue(true),
		schema.ListValue{schema.IntegerValue(3)},
	}, values)

	_, err = unmarshalValues(`{"x": 1}`)
	assert.Error(t, err)

	_, err = unmarshalValues(`[{"x": 1}]`)
	assert.Error(t, err)
}
