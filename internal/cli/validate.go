package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gam3du/gam3du-sub000/internal/codegen"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                     `json:"valid"`
	API       string                   `json:"api,omitempty"`
	Functions int                      `json:"functions,omitempty"`
	Errors    []schema.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema>",
		Short: "Validate an API schema document",
		Long: `Validate a JSON or CUE API schema document.

Checks identifiers, parameter types, integer bounds, defaults and their
order, and that the generated stub names do not collide. Every problem is
reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	api, err := loadAPI(path)
	if err != nil {
		var verrs schema.ValidationErrors
		if errors.As(err, &verrs) {
			return outputValidationErrors(formatter, verrs)
		}
		code, message := loadErrorCode(err)
		return outputValidateError(formatter, code, message, nil)
	}

	formatter.VerboseLog("Loaded API %q with %d function(s)", api.Name, len(api.Functions))

	// Stub names must be unique per target language.
	var verrs []schema.ValidationError
	for _, lang := range []codegen.Language{codegen.JavaScript, codegen.Go} {
		formatter.VerboseLog("Checking %s stub names", lang)
		if _, err := codegen.Generate(api, lang); err != nil {
			verrs = append(verrs, schema.ValidationError{
				Field:   "functions",
				Message: fmt.Sprintf("%s stubs: %v", lang, err),
				Code:    ErrCodeSchema,
			})
		}
	}
	if len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}

	return outputValidateSuccess(formatter, api)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, api *schema.API) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid:     true,
			API:       string(api.Name),
			Functions: len(api.Functions),
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ Schema %q valid (%d functions)\n", api.Name, len(api.Functions))
	return nil
}

// outputValidateError outputs a single load error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []schema.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := writeJSON(formatter.Writer, response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
