package codegen

import (
	"strings"
	"unicode"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

var jsReserved = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "export": true,
	"extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "implements": true, "import": true,
	"in": true, "instanceof": true, "interface": true, "let": true,
	"new": true, "null": true, "package": true, "private": true,
	"protected": true, "public": true, "return": true, "static": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true, "arguments": true, "eval": true,
	// Runtime globals.
	"print": true, "sleep": true,
}

var goReserved = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true,
	"for": true, "func": true, "go": true, "goto": true, "if": true,
	"import": true, "interface": true, "map": true, "package": true,
	"range": true, "return": true, "select": true, "struct": true,
	"switch": true, "type": true, "var": true,
	// Names used by the generated method bodies.
	"c": true, "ctx": true, "args": true, "err": true, "v": true, "res": true,
	"fmt": true, "context": true, "channel": true, "schema": true,
}

// SnakeCase maps "move forward" to "move_forward".
func SnakeCase(id schema.Identifier) string {
	return leadingDigit(id.Join("_"), "_")
}

// PascalCase maps "robot color rgb" to "RobotColorRgb".
func PascalCase(id schema.Identifier) string {
	var b strings.Builder
	for _, w := range id.Words() {
		b.WriteString(capitalize(w))
	}
	return leadingDigit(b.String(), "X")
}

// CamelCase maps "robot color rgb" to "robotColorRgb".
func CamelCase(id schema.Identifier) string {
	words := id.Words()
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(words[0])
	for _, w := range words[1:] {
		b.WriteString(capitalize(w))
	}
	return leadingDigit(b.String(), "x")
}

// JSName is the JavaScript binding name of an identifier.
func JSName(id schema.Identifier) string {
	name := SnakeCase(id)
	if jsReserved[name] {
		return name + "_"
	}
	return name
}

// GoParamName is the Go parameter name of an identifier.
func GoParamName(id schema.Identifier) string {
	name := CamelCase(id)
	if goReserved[name] {
		return name + "_"
	}
	return name
}

// GoPackageName derives a package name from the API name.
func GoPackageName(id schema.Identifier) string {
	return leadingDigit(id.Join(""), "api")
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func leadingDigit(s, prefix string) string {
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		return prefix + s
	}
	return s
}
