package schema

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// apiDefinition is the closed CUE shape of a schema document. It only checks
// structure; identifier rules, integer bounds and defaults are enforced by
// Validate after export.
const apiDefinition = `
#Type: "integer" | "float" | "boolean" | "string" |
	{integer: {min?: int, max?: int}} |
	{list: _}

#Parameter: {
	name:         string
	caption?:     string
	description?: string
	type:         #Type
	default?:     _
}

#Function: {
	name?:        string
	caption?:     string
	description?: string
	parameters?: [...#Parameter]
	returns?: #Parameter
}

#Api: {
	name:         string
	caption?:     string
	description?: string
	functions: [string]: #Function
}
`

// ParseCUE compiles a CUE schema document, checks it against the closed #Api
// definition and then runs the same decoding and validation as Parse.
//
// filename is only used for error positions.
func ParseCUE(filename string, data []byte) (*API, error) {
	ctx := cuecontext.New()

	def := ctx.CompileString(apiDefinition, cue.Filename("api.cue")).LookupPath(cue.ParsePath("#Api"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("schema definition: %w", err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, cueValidationErrors(err)
	}

	unified := doc.Unify(def)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueValidationErrors(err)
	}

	exported, err := unified.MarshalJSON()
	if err != nil {
		return nil, cueValidationErrors(err)
	}
	return Parse(exported)
}

// cueValidationErrors flattens CUE errors into E200 validation errors,
// keeping the path and first source position of each.
func cueValidationErrors(err error) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return ValidationErrors{{Field: "document", Message: err.Error(), Code: ErrMalformedDocument}}
	}

	out := make(ValidationErrors, 0, len(list))
	for _, e := range list {
		field := strings.Join(e.Path(), ".")
		if field == "" {
			field = "document"
		}
		msg := e.Error()
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			msg = fmt.Sprintf("%s (%s)", msg, pos[0])
		}
		out = append(out, ValidationError{Field: field, Message: msg, Code: ErrMalformedDocument})
	}
	return out
}
