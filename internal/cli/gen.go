package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gam3du/gam3du-sub000/internal/codegen"
)

// GenOptions holds flags for the gen command.
type GenOptions struct {
	*RootOptions
	Language string // target language
	Output   string // output file path
	Package  string // Go package name override
}

// GenResult describes generated stubs.
type GenResult struct {
	API       string `json:"api"`
	Language  string `json:"language"`
	Functions int    `json:"functions"`
	Output    string `json:"output,omitempty"`
	Code      string `json:"code,omitempty"`
}

// NewGenCommand creates the gen command.
func NewGenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gen <schema>",
		Short: "Generate client stubs for an API schema",
		Long: `Generate typed client stubs from a JSON or CUE API schema.

JavaScript stubs define one blocking function and one Promise-returning
Async variant per command, with JSDoc. Go stubs are a gofmt'ed package
with one method per command on a wrapper around the channel client.

Without --output the stubs are written to stdout.

Example:
  gam3du gen robot --lang js
  gam3du gen ./door.json --lang go --package door -o door/client.go`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Language, "lang", "l", "js", "target language (js|go)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Package, "package", "", "Go package name (default derived from the API name)")

	return cmd
}

func runGen(opts *GenOptions, ref string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	lang, err := codegen.ParseLanguage(opts.Language)
	if err != nil {
		return outputGenError(formatter, ErrCodeGeneric, err.Error())
	}

	api, err := loadAPI(ref)
	if err != nil {
		code, message := loadErrorCode(err)
		return outputGenError(formatter, code, message)
	}
	formatter.VerboseLog("Generating %s stubs for %q (%d functions)", lang, api.Name, len(api.Functions))

	var code []byte
	if lang == codegen.Go {
		g := &codegen.GoGenerator{Package: opts.Package}
		code, err = g.Generate(api)
	} else {
		code, err = codegen.Generate(api, lang)
	}
	if err != nil {
		return outputGenError(formatter, ErrCodeSchema, err.Error())
	}

	result := GenResult{
		API:       string(api.Name),
		Language:  string(lang),
		Functions: len(api.Functions),
	}

	if opts.Output != "" {
		if err := writeOutput(opts.Output, code); err != nil {
			return outputGenError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
		result.Output = opts.Output
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "✓ Generated %s stubs for %q (%d functions)\n", lang, api.Name, len(api.Functions))
		fmt.Fprintf(formatter.Writer, "Output written to: %s\n", opts.Output)
		return nil
	}

	if formatter.Format == "json" {
		result.Code = string(code)
		return formatter.Success(result)
	}
	_, err = formatter.Writer.Write(code)
	return err
}

// writeOutput writes data to path, creating parent directories.
func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func outputGenError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
