package schema

import (
	"fmt"
	"strings"
)

// Validation error codes (E200-E299)
const (
	ErrMalformedDocument = "E200" // document does not parse
	ErrInvalidIdentifier = "E201" // name is not a valid identifier
	ErrDuplicateFunction = "E202" // function declared twice
	ErrFunctionKey       = "E203" // functions map key differs from function name
	ErrDuplicateParam    = "E204" // parameter declared twice in one function
	ErrInvalidType       = "E205" // missing type, bad integer bounds, bad list element
	ErrDefaultMismatch   = "E206" // default value does not conform to its type
	ErrDefaultOrder      = "E207" // required parameter follows a defaulted one
)

// ValidationError represents one schema load-time violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is returned by the loaders when Validate reports problems.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d schema errors: %s", len(errs), strings.Join(msgs, "; "))
}

// Validate checks the load-time invariants of an API.
// Returns all errors found (does not fail-fast).
func Validate(api *API) []ValidationError {
	var errs []ValidationError

	if !IsValidIdentifier(string(api.Name)) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("%q is not a valid identifier", api.Name),
			Code:    ErrInvalidIdentifier,
		})
	}

	seen := make(map[Identifier]bool, len(api.Functions))
	for _, fn := range api.Functions {
		field := "functions." + string(fn.Name)
		if seen[fn.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "function declared more than once",
				Code:    ErrDuplicateFunction,
			})
			continue
		}
		seen[fn.Name] = true
		errs = append(errs, validateFunction(field, fn)...)
	}

	return errs
}

func validateFunction(field string, fn *Function) []ValidationError {
	var errs []ValidationError

	if !IsValidIdentifier(string(fn.Name)) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%q is not a valid identifier", fn.Name),
			Code:    ErrInvalidIdentifier,
		})
	}

	params := make(map[Identifier]bool, len(fn.Parameters))
	sawDefault := false
	for i, p := range fn.Parameters {
		pfield := fmt.Sprintf("%s.parameters[%d]", field, i)
		if params[p.Name] {
			errs = append(errs, ValidationError{
				Field:   pfield,
				Message: fmt.Sprintf("parameter %q declared more than once", p.Name),
				Code:    ErrDuplicateParam,
			})
		}
		params[p.Name] = true

		errs = append(errs, validateParameter(pfield, p)...)

		if p.HasDefault() {
			sawDefault = true
		} else if sawDefault {
			errs = append(errs, ValidationError{
				Field:   pfield,
				Message: fmt.Sprintf("required parameter %q follows a parameter with a default", p.Name),
				Code:    ErrDefaultOrder,
			})
		}
	}

	if fn.Returns != nil {
		errs = append(errs, validateParameter(field+".returns", *fn.Returns)...)
	}

	return errs
}

func validateParameter(field string, p Parameter) []ValidationError {
	var errs []ValidationError

	if !IsValidIdentifier(string(p.Name)) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%q is not a valid identifier", p.Name),
			Code:    ErrInvalidIdentifier,
		})
	}

	if err := validateType(p.Type); err != nil {
		errs = append(errs, ValidationError{
			Field:   field + ".type",
			Message: err.Error(),
			Code:    ErrInvalidType,
		})
		return errs
	}

	if p.Default != nil && !Conforms(p.Type, p.Default) {
		errs = append(errs, ValidationError{
			Field:   field + ".default",
			Message: fmt.Sprintf("default %s does not conform to %s", p.Default, p.Type),
			Code:    ErrDefaultMismatch,
		})
	}

	return errs
}
