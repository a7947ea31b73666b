package dispatch

import (
	"fmt"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// DecodeArguments matches args positionally against fn's parameters.
//
// Each supplied argument is coerced to its parameter type; integers outside
// the declared bounds are rejected, never clamped. Missing trailing
// arguments take their parameter default; a missing argument without a
// default is ErrCodeMissingArgument. Extra arguments are rejected.
func DecodeArguments(fn *schema.Function, args []schema.Value) ([]schema.Value, error) {
	if len(args) > len(fn.Parameters) {
		return nil, &CommandError{
			Code:    ErrCodeUnexpectedArgument,
			Command: fn.Name,
			Message: fmt.Sprintf("got %d arguments, takes at most %d", len(args), len(fn.Parameters)),
		}
	}

	out := make([]schema.Value, len(fn.Parameters))
	for i, p := range fn.Parameters {
		if i >= len(args) || args[i] == nil {
			if !p.HasDefault() {
				return nil, MissingArgument(fn.Name, p.Name)
			}
			out[i] = p.Default
			continue
		}

		v, err := schema.Coerce(p.Type, args[i])
		if err != nil {
			return nil, WrongArgumentType(fn.Name, p.Name, err)
		}
		out[i] = v
	}
	return out, nil
}
