package codegen

import (
	"fmt"
	"go/format"
	"strconv"
	"strings"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

const modulePath = "github.com/gam3du/gam3du-sub000"

// GoGenerator emits a typed client package wrapping *channel.Client.
// Blocking methods call Client.Call; the Async variants return a
// *channel.Future.
type GoGenerator struct {
	// Package overrides the package name derived from the API name.
	Package string

	b strings.Builder
}

// Generate renders and gofmts the client package for api.
func (g *GoGenerator) Generate(api *schema.API) ([]byte, error) {
	if api == nil {
		return nil, fmt.Errorf("cannot generate stubs for nil API")
	}
	if err := checkCollisions(api, func(fn *schema.Function) []string {
		name := PascalCase(fn.Name)
		return []string{name, name + "Async"}
	}); err != nil {
		return nil, err
	}
	if err := checkCollisions(api, func(fn *schema.Function) []string {
		var names []string
		for _, p := range fn.Parameters {
			if name, _, ok := defaultConst(fn, p); ok {
				names = append(names, name)
			}
		}
		return names
	}); err != nil {
		return nil, err
	}

	pkg := g.Package
	if pkg == "" {
		pkg = GoPackageName(api.Name)
	}

	needsFmt := false
	for _, fn := range api.Functions {
		if fn.Returns != nil {
			needsFmt = true
		}
	}

	g.b.Reset()
	g.line("// %s", generatedHeader)
	g.line("")
	g.line("// Package %s is a typed client for the %q API.", pkg, string(api.Name))
	g.line("package %s", pkg)
	g.line("")
	g.line("import (")
	g.line("\t\"context\"")
	if needsFmt {
		g.line("\t\"fmt\"")
	}
	g.line("")
	g.line("\t%q", modulePath+"/internal/channel")
	g.line("\t%q", modulePath+"/internal/schema")
	g.line(")")
	g.line("")
	g.line("// Client issues %s commands over a channel client.", api.Name)
	g.line("type Client struct {")
	g.line("\tch *channel.Client")
	g.line("}")
	g.line("")
	g.line("// New wraps ch.")
	g.line("func New(ch *channel.Client) *Client {")
	g.line("\treturn &Client{ch: ch}")
	g.line("}")

	for _, fn := range api.Functions {
		if err := g.function(fn); err != nil {
			return nil, fmt.Errorf("function %q: %w", fn.Name, err)
		}
	}

	out, err := format.Source([]byte(g.b.String()))
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return out, nil
}

func (g *GoGenerator) function(fn *schema.Function) error {
	name := PascalCase(fn.Name)
	command := strconv.Quote(string(fn.Name))

	params := make([]string, 0, len(fn.Parameters)+1)
	params = append(params, "ctx context.Context")
	args := make([]string, len(fn.Parameters))
	for i, p := range fn.Parameters {
		pname := GoParamName(p.Name)
		params = append(params, pname+" "+goType(p.Type))
		args[i] = goToValue(p.Type, pname)
	}
	signature := strings.Join(params, ", ")
	argList := "[]schema.Value{" + strings.Join(args, ", ") + "}"

	for _, p := range fn.Parameters {
		constName, lit, ok := defaultConst(fn, p)
		if !ok {
			continue
		}
		g.line("")
		g.line("// %s is the default %s argument of %s.", constName, p.Name, name)
		g.line("const %s %s = %s", constName, goType(p.Type), lit)
	}

	g.line("")
	g.goDoc(name, fn)
	if fn.Returns == nil {
		g.line("func (c *Client) %s(%s) error {", name, signature)
		g.line("\t_, err := c.ch.Call(ctx, %s, %s)", command, argList)
		g.line("\treturn err")
		g.line("}")
	} else {
		rt := goType(fn.Returns.Type)
		zero := goZero(fn.Returns.Type)
		g.line("func (c *Client) %s(%s) (%s, error) {", name, signature, rt)
		g.line("\tv, err := c.ch.Call(ctx, %s, %s)", command, argList)
		g.line("\tif err != nil {")
		g.line("\t\treturn %s, err", zero)
		g.line("\t}")
		g.line("\tres, ok := v.(%s)", goValueType(fn.Returns.Type))
		g.line("\tif !ok {")
		g.line("\t\treturn %s, fmt.Errorf(\"%%s: unexpected result %%v\", %s, v)", zero, command)
		g.line("\t}")
		g.line("\treturn %s, nil", goFromValue(fn.Returns.Type, "res"))
		g.line("}")
	}

	g.line("")
	g.line("// %sAsync starts %s without waiting for its result.", name, name)
	g.line("func (c *Client) %sAsync(%s) *channel.Future {", name, signature)
	g.line("\treturn c.ch.Go(ctx, %s, %s)", command, argList)
	g.line("}")
	return nil
}

func (g *GoGenerator) goDoc(name string, fn *schema.Function) {
	g.line("// %s sends %q.", name, string(fn.Name))
	text := fn.Description
	if text == "" {
		text = fn.Caption
	}
	if text == "" {
		return
	}
	g.line("//")
	for _, l := range strings.Split(text, "\n") {
		g.line("// %s", strings.TrimRight(l, " "))
	}
}

func (g *GoGenerator) line(format string, args ...any) {
	fmt.Fprintf(&g.b, format, args...)
	g.b.WriteByte('\n')
}

func goType(t schema.Type) string {
	switch t.(type) {
	case schema.IntegerType:
		return "int64"
	case schema.FloatType:
		return "float32"
	case schema.BooleanType:
		return "bool"
	case schema.StringType:
		return "string"
	default:
		return "schema.ListValue"
	}
}

func goValueType(t schema.Type) string {
	switch t.(type) {
	case schema.IntegerType:
		return "schema.IntegerValue"
	case schema.FloatType:
		return "schema.FloatValue"
	case schema.BooleanType:
		return "schema.BooleanValue"
	case schema.StringType:
		return "schema.StringValue"
	default:
		return "schema.ListValue"
	}
}

func goToValue(t schema.Type, name string) string {
	if _, ok := t.(schema.ListType); ok {
		return name
	}
	return goValueType(t) + "(" + name + ")"
}

func goFromValue(t schema.Type, name string) string {
	if _, ok := t.(schema.ListType); ok {
		return name
	}
	return goType(t) + "(" + name + ")"
}

func goZero(t schema.Type) string {
	switch t.(type) {
	case schema.IntegerType, schema.FloatType:
		return "0"
	case schema.BooleanType:
		return "false"
	case schema.StringType:
		return `""`
	default:
		return "nil"
	}
}

// goConstLiteral renders scalar defaults. Lists and non-finite floats have
// no constant form.
// defaultConst returns the name and literal of the constant holding p's
// default, if it can be expressed as a Go constant.
func defaultConst(fn *schema.Function, p schema.Parameter) (string, string, bool) {
	if !p.HasDefault() {
		return "", "", false
	}
	lit, ok := goConstLiteral(p.Default)
	if !ok {
		return "", "", false
	}
	return PascalCase(fn.Name) + PascalCase(p.Name), lit, true
}

func goConstLiteral(v schema.Value) (string, bool) {
	switch val := v.(type) {
	case schema.IntegerValue:
		return strconv.FormatInt(int64(val), 10), true
	case schema.FloatValue:
		lit, err := jsLiteral(val)
		if err != nil || strings.ContainsAny(lit, "NI") {
			return "", false
		}
		return lit, true
	case schema.BooleanValue:
		return strconv.FormatBool(bool(val)), true
	case schema.StringValue:
		return strconv.Quote(string(val)), true
	default:
		return "", false
	}
}
