package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Document field layout (JSON):
//
//	{
//	  "name": "robot",
//	  "caption": "Robot",
//	  "description": "...",
//	  "functions": {
//	    "move forward": {
//	      "caption": "Move forward",
//	      "parameters": [
//	        {"name": "duration", "type": {"integer": {"min": 0, "max": 10000}}, "default": 1000}
//	      ],
//	      "returns": {"name": "success", "type": "boolean"}
//	    }
//	  }
//	}
//
// Types are either a bare name ("integer", "float", "boolean", "string") or a
// single-key object ({"integer": {"min": a, "max": b}} with inclusive bounds,
// {"list": <type>}). Key order of "functions" is preserved.

type apiDocument struct {
	Name        string          `json:"name"`
	Caption     string          `json:"caption"`
	Description string          `json:"description"`
	Functions   json.RawMessage `json:"functions"`
}

type functionDocument struct {
	Name        string              `json:"name"`
	Caption     string              `json:"caption"`
	Description string              `json:"description"`
	Parameters  []parameterDocument `json:"parameters"`
	Returns     *parameterDocument  `json:"returns"`
}

type parameterDocument struct {
	Name        string          `json:"name"`
	Caption     string          `json:"caption"`
	Description string          `json:"description"`
	Type        json.RawMessage `json:"type"`
	Default     json.RawMessage `json:"default"`
}

type integerBounds struct {
	Min *int64 `json:"min"`
	Max *int64 `json:"max"`
}

// LoadFile reads and validates a schema document. The format is chosen by
// file extension: ".json" or ".cue".
//
// Any parse or validation problem is returned as an error; a partially
// loaded API is never returned.
func LoadFile(path string) (*API, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".json":
		return Parse(data)
	case ".cue":
		return ParseCUE(filepath.Base(path), data)
	default:
		return nil, fmt.Errorf("unsupported schema format %q (want .json or .cue)", ext)
	}
}

// Parse decodes a JSON schema document and validates it.
func Parse(data []byte) (*API, error) {
	api, errs := decodeAPI(data)
	if len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	if errs := Validate(api); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return api, nil
}

// MustParse is like Parse but panics on error. Intended for embedded schemas.
func MustParse(data []byte) *API {
	api, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("schema: %v", err))
	}
	return api
}

// decodeAPI builds an API from the document, collecting structural errors.
// Identifier and type invariants are left to Validate.
func decodeAPI(data []byte) (*API, []ValidationError) {
	var doc apiDocument
	if err := strictUnmarshal(data, &doc); err != nil {
		return nil, []ValidationError{{Field: "document", Message: err.Error(), Code: ErrMalformedDocument}}
	}

	var errs []ValidationError
	var functions []*Function

	if len(doc.Functions) > 0 && !bytes.Equal(bytes.TrimSpace(doc.Functions), []byte("null")) {
		keys, values, err := decodeOrderedObject(doc.Functions)
		if err != nil {
			return nil, []ValidationError{{Field: "functions", Message: err.Error(), Code: ErrMalformedDocument}}
		}
		seen := make(map[string]bool, len(keys))
		for i, key := range keys {
			field := "functions." + key
			if seen[key] {
				errs = append(errs, ValidationError{Field: field, Message: "function declared more than once", Code: ErrDuplicateFunction})
				continue
			}
			seen[key] = true

			fn, fnErrs := decodeFunction(field, key, values[i])
			errs = append(errs, fnErrs...)
			if fn != nil {
				functions = append(functions, fn)
			}
		}
	}

	api := NewAPI(Identifier(doc.Name), doc.Caption, doc.Description, functions...)
	return api, errs
}

func decodeFunction(field, key string, raw json.RawMessage) (*Function, []ValidationError) {
	var doc functionDocument
	if err := strictUnmarshal(raw, &doc); err != nil {
		return nil, []ValidationError{{Field: field, Message: err.Error(), Code: ErrMalformedDocument}}
	}

	var errs []ValidationError
	if doc.Name != "" && doc.Name != key {
		errs = append(errs, ValidationError{
			Field:   field + ".name",
			Message: fmt.Sprintf("name %q does not match its key %q", doc.Name, key),
			Code:    ErrFunctionKey,
		})
	}

	fn := &Function{
		Name:        Identifier(key),
		Caption:     doc.Caption,
		Description: doc.Description,
		Parameters:  make([]Parameter, 0, len(doc.Parameters)),
	}

	for i, pdoc := range doc.Parameters {
		p, perrs := decodeParameter(fmt.Sprintf("%s.parameters[%d]", field, i), pdoc)
		errs = append(errs, perrs...)
		fn.Parameters = append(fn.Parameters, p)
	}

	if doc.Returns != nil {
		p, perrs := decodeParameter(field+".returns", *doc.Returns)
		errs = append(errs, perrs...)
		fn.Returns = &p
	}

	return fn, errs
}

func decodeParameter(field string, doc parameterDocument) (Parameter, []ValidationError) {
	p := Parameter{
		Name:        Identifier(doc.Name),
		Caption:     doc.Caption,
		Description: doc.Description,
	}

	t, err := parseType(doc.Type)
	if err != nil {
		return p, []ValidationError{{Field: field + ".type", Message: err.Error(), Code: ErrInvalidType}}
	}
	p.Type = t

	if isAbsent(doc.Default) {
		return p, nil
	}

	raw, err := decodeLoose(doc.Default)
	if err != nil {
		return p, []ValidationError{{Field: field + ".default", Message: err.Error(), Code: ErrMalformedDocument}}
	}
	def, err := Coerce(t, raw)
	if err != nil {
		return p, []ValidationError{{Field: field + ".default", Message: err.Error(), Code: ErrDefaultMismatch}}
	}
	p.Default = def
	return p, nil
}

// parseType decodes the tagged type union.
func parseType(raw json.RawMessage) (Type, error) {
	if isAbsent(raw) {
		return nil, fmt.Errorf("type is required")
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		switch name {
		case "integer":
			return FullIntegerType(), nil
		case "float":
			return FloatType{}, nil
		case "boolean":
			return BooleanType{}, nil
		case "string":
			return StringType{}, nil
		case "list":
			return nil, fmt.Errorf("list type requires an element type: {\"list\": <type>}")
		default:
			return nil, fmt.Errorf("unknown type %q", name)
		}
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, fmt.Errorf("type must be a name or a single-key object: %w", err)
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("type object must have exactly one key, got %d", len(tagged))
	}

	for tag, body := range tagged {
		switch tag {
		case "integer":
			t := FullIntegerType()
			if isAbsent(body) {
				return t, nil
			}
			var bounds integerBounds
			if err := strictUnmarshal(body, &bounds); err != nil {
				return nil, fmt.Errorf("integer bounds: %w", err)
			}
			if bounds.Min != nil {
				t.Min = *bounds.Min
			}
			if bounds.Max != nil {
				t.Max = *bounds.Max
			}
			return t, nil
		case "list":
			elem, err := parseType(body)
			if err != nil {
				return nil, fmt.Errorf("list element: %w", err)
			}
			return ListType{Elem: elem}, nil
		case "float":
			return FloatType{}, nil
		case "boolean":
			return BooleanType{}, nil
		case "string":
			return StringType{}, nil
		default:
			return nil, fmt.Errorf("unknown type %q", tag)
		}
	}
	return nil, fmt.Errorf("unreachable")
}

// decodeOrderedObject returns the keys and raw values of a JSON object in
// document order. encoding/json maps would lose that order.
func decodeOrderedObject(raw json.RawMessage) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected an object, got %v", tok)
	}

	var keys []string
	var values []json.RawMessage
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected an object key, got %v", keyTok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, fmt.Errorf("value for %q: %w", key, err)
		}
		keys = append(keys, key)
		values = append(values, value)
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected trailing data")
	}
	return nil
}

// decodeLoose decodes arbitrary JSON keeping numbers as json.Number so that
// integer defaults are not routed through float64.
func decodeLoose(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
