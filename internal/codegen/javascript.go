package codegen

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// Runtime hooks the JavaScript stubs call into. The script runner installs
// an object under RuntimeObject exposing both methods.
const (
	RuntimeObject = "__gam3du"
	BlockingCall  = "call"
	AsyncCall     = "callAsync"
	AsyncSuffix   = "_async"
)

// JavaScriptGenerator emits one blocking and one Promise-returning function
// per command.
type JavaScriptGenerator struct {
	b strings.Builder
}

// Generate renders the stubs for api.
func (g *JavaScriptGenerator) Generate(api *schema.API) ([]byte, error) {
	if api == nil {
		return nil, fmt.Errorf("cannot generate stubs for nil API")
	}
	if err := checkCollisions(api, func(fn *schema.Function) []string {
		name := JSName(fn.Name)
		return []string{name, name + AsyncSuffix}
	}); err != nil {
		return nil, err
	}

	g.b.Reset()
	g.line("// %s", generatedHeader)
	g.line("// API: %s", api.Name)
	if api.Caption != "" {
		g.line("// %s", api.Caption)
	}

	for _, fn := range api.Functions {
		if err := g.function(fn); err != nil {
			return nil, fmt.Errorf("function %q: %w", fn.Name, err)
		}
	}
	return []byte(g.b.String()), nil
}

func (g *JavaScriptGenerator) function(fn *schema.Function) error {
	name := JSName(fn.Name)
	params, err := jsParams(fn.Parameters)
	if err != nil {
		return err
	}
	forward := jsForward(fn.Parameters)
	command := strconv.Quote(string(fn.Name))

	ret := "void"
	if fn.Returns != nil {
		ret = jsType(fn.Returns.Type)
	}

	g.line("")
	g.doc(fn, ret)
	g.line("function %s(%s) {", name, params)
	g.line("  return %s.%s(%s, [%s]);", RuntimeObject, BlockingCall, command, forward)
	g.line("}")

	g.line("")
	g.line("/**")
	g.line(" * Cooperative variant of %s.", name)
	g.line(" * @returns {Promise<%s>}", ret)
	g.line(" */")
	g.line("function %s%s(%s) {", name, AsyncSuffix, params)
	g.line("  return %s.%s(%s, [%s]);", RuntimeObject, AsyncCall, command, forward)
	g.line("}")
	return nil
}

func (g *JavaScriptGenerator) doc(fn *schema.Function, ret string) {
	g.line("/**")
	if fn.Caption != "" {
		g.line(" * %s", fn.Caption)
	}
	if fn.Description != "" {
		if fn.Caption != "" {
			g.line(" *")
		}
		for _, l := range strings.Split(fn.Description, "\n") {
			g.line(" * %s", strings.TrimRight(l, " "))
		}
	}
	for _, p := range fn.Parameters {
		name := JSName(p.Name)
		if p.HasDefault() {
			lit, _ := jsLiteral(p.Default)
			name = fmt.Sprintf("[%s=%s]", name, lit)
		}
		text := p.Caption
		if text == "" {
			text = p.Description
		}
		g.line("%s", strings.TrimRight(fmt.Sprintf(" * @param {%s} %s %s", jsType(p.Type), name, text), " "))
	}
	g.line(" * @returns {%s}", ret)
	g.line(" */")
}

func (g *JavaScriptGenerator) line(format string, args ...any) {
	fmt.Fprintf(&g.b, format, args...)
	g.b.WriteByte('\n')
}

func jsParams(params []schema.Parameter) (string, error) {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = JSName(p.Name)
		if p.HasDefault() {
			lit, err := jsLiteral(p.Default)
			if err != nil {
				return "", fmt.Errorf("parameter %q: %w", p.Name, err)
			}
			parts[i] += " = " + lit
		}
	}
	return strings.Join(parts, ", "), nil
}

func jsForward(params []schema.Parameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = JSName(p.Name)
	}
	return strings.Join(parts, ", ")
}

func jsType(t schema.Type) string {
	switch tt := t.(type) {
	case schema.IntegerType, schema.FloatType:
		return "number"
	case schema.BooleanType:
		return "boolean"
	case schema.StringType:
		return "string"
	case schema.ListType:
		return "Array<" + jsType(tt.Elem) + ">"
	default:
		return "*"
	}
}

// jsLiteral renders a value as a JavaScript expression.
func jsLiteral(v schema.Value) (string, error) {
	switch val := v.(type) {
	case schema.UnitValue:
		return "undefined", nil
	case schema.IntegerValue:
		return strconv.FormatInt(int64(val), 10), nil
	case schema.FloatValue:
		f := float64(val)
		switch {
		case math.IsNaN(f):
			return "NaN", nil
		case math.IsInf(f, 1):
			return "Infinity", nil
		case math.IsInf(f, -1):
			return "-Infinity", nil
		}
		return strconv.FormatFloat(f, 'g', -1, 32), nil
	case schema.BooleanValue:
		return strconv.FormatBool(bool(val)), nil
	case schema.StringValue:
		// JSON string literals are valid JavaScript.
		data, err := json.Marshal(string(val))
		if err != nil {
			return "", err
		}
		return string(data), nil
	case schema.ListValue:
		parts := make([]string, len(val))
		for i, elem := range val {
			lit, err := jsLiteral(elem)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	default:
		return "", fmt.Errorf("unsupported value type: %T", v)
	}
}
