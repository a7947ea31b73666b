package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// marshalValues converts argument values to JSON TEXT for storage.
func marshalValues(values []schema.Value) string {
	return marshalValue(schema.ListValue(values))
}

// marshalValue converts a value to JSON TEXT for storage. A nil value is
// stored as null. Non-finite floats have no JSON form and are stored as
// their display string.
func marshalValue(v schema.Value) string {
	if v == nil {
		return "null"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(schema.Native(v)); err != nil {
		return strconv.Quote(v.String())
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String())
}

// EncodeValue renders v in the form response payloads are stored in.
func EncodeValue(v schema.Value) string {
	return marshalValue(v)
}

// unmarshalValues parses a stored argument list back into values.
// Integral numbers become IntegerValue; the dispatcher coerces them to
// float parameters where needed.
func unmarshalValues(data string) ([]schema.Value, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	out := make([]schema.Value, len(raw))
	for i, elem := range raw {
		v, err := fromJSON(elem)
		if err != nil {
			return nil, fmt.Errorf("unmarshal values: argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func fromJSON(in any) (schema.Value, error) {
	switch v := in.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return schema.ValueOf(n)
		}
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return schema.FloatValue(float32(f)), nil
	case []any:
		out := make(schema.ListValue, len(v))
		for i, elem := range v {
			val, err := fromJSON(elem)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	default:
		return schema.ValueOf(in)
	}
}
