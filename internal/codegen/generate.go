package codegen

import (
	"fmt"
	"strings"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

const generatedHeader = "Code generated by gam3du gen. DO NOT EDIT."

// Language selects a stub target.
type Language string

const (
	JavaScript Language = "js"
	Go         Language = "go"
)

// Languages lists the supported targets.
var Languages = []Language{JavaScript, Go}

// ParseLanguage accepts the short names plus a few common aliases.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(s) {
	case "js", "javascript":
		return JavaScript, nil
	case "go", "golang":
		return Go, nil
	default:
		return "", fmt.Errorf("unsupported language %q (want js or go)", s)
	}
}

// Extension is the conventional file extension of the target.
func (l Language) Extension() string {
	switch l {
	case JavaScript:
		return ".js"
	case Go:
		return ".go"
	default:
		return ""
	}
}

// Generate renders stubs for api in lang.
func Generate(api *schema.API, lang Language) ([]byte, error) {
	switch lang {
	case JavaScript:
		var g JavaScriptGenerator
		return g.Generate(api)
	case Go:
		var g GoGenerator
		return g.Generate(api)
	default:
		return nil, fmt.Errorf("unsupported language %q", lang)
	}
}

// checkCollisions rejects APIs whose functions mangle to the same binding.
func checkCollisions(api *schema.API, names func(*schema.Function) []string) error {
	seen := make(map[string]schema.Identifier)
	for _, fn := range api.Functions {
		for _, n := range names(fn) {
			if prev, ok := seen[n]; ok {
				return fmt.Errorf("functions %q and %q both generate %s", prev, fn.Name, n)
			}
			seen[n] = fn.Name
		}
	}
	return nil
}
