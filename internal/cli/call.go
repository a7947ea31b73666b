package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gam3du/gam3du-sub000/internal/channel"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Schema   string
	Database string
	Timeout  time.Duration
}

// CallResult is the outcome of one command.
type CallResult struct {
	Command   string     `json:"command"`
	Arguments []any      `json:"arguments"`
	Result    any        `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	Robot     RobotState `json:"robot"`
	RunID     string     `json:"run_id,omitempty"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <command> [args...]",
		Short: "Send one command to a fresh robot simulation",
		Long: `Send a single command to a freshly started robot simulation and print the
response. Arguments are positional and parsed as YAML scalars or flow
lists, so 500, 0.5, true, red and "[1, 2]" all work. Quote the command
name when it has spaces.

Example:
  gam3du call "move forward" 200
  gam3du call "robot color rgb" 1 0.5 0 --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", RobotSchema, `"robot" or a robot-compatible schema file`)
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (overrides config)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "give up waiting for the response after this long")

	return cmd
}

func runCall(opts *CallOptions, name string, rawArgs []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return outputRunError(formatter, err)
	}
	if cmd.Flags().Changed("db") {
		cfg.Journal.Path = opts.Database
	}
	api, err := loadRobotAPI(opts.Schema)
	if err != nil {
		return outputRunError(formatter, err)
	}
	command, err := schema.ParseIdentifier(name)
	if err != nil {
		return outputRunError(formatter, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("command %q: %v", name, err), Err: err})
	}
	native, err := parseArgs(rawArgs)
	if err != nil {
		return outputRunError(formatter, &LoadError{Code: ErrCodeGeneric, Message: err.Error(), Err: err})
	}
	args, err := schema.ValuesOf(native...)
	if err != nil {
		return outputRunError(formatter, &LoadError{Code: ErrCodeGeneric, Message: err.Error(), Err: err})
	}

	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)
	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	sess, err := startSession(ctx, cfg, api, logger)
	if err != nil {
		return outputRunError(formatter, err)
	}

	formatter.VerboseLog("Calling %s %s", command, schema.ListValue(args))
	callCtx, cancelCall := context.WithTimeout(ctx, opts.Timeout)
	value, callErr := sess.client.Call(callCtx, command, args)
	cancelCall()

	if err := sess.Close(); err != nil {
		logger.Error("closing session", "error", err)
	}

	result := CallResult{
		Command:   string(command),
		Arguments: native,
		Robot:     sess.robotState(),
		RunID:     sess.RunID(),
	}
	if callErr != nil {
		result.Error = callErr.Error()
	} else {
		result.Result = schema.Native(value)
	}
	return outputCallResult(formatter, result, callErr)
}

func outputCallResult(formatter *OutputFormatter, result CallResult, callErr error) error {
	code := ErrCodeGeneric
	if channel.IsRemoteError(callErr) {
		code = ErrCodeCommand
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
		if callErr != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: code, Message: callErr.Error()}
		}
		if err := writeJSON(formatter.Writer, resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		args := make([]string, len(result.Arguments))
		for i, a := range result.Arguments {
			args[i] = formatValue(a)
		}
		fmt.Fprintf(w, "Request: %s [%s]\n", result.Command, strings.Join(args, ", "))
		if callErr != nil {
			fmt.Fprintf(w, "✗ Error: %v\n", callErr)
		} else if result.Result != nil {
			fmt.Fprintf(w, "✓ Response: %s\n", formatValue(result.Result))
		} else {
			fmt.Fprintln(w, "✓ Response: ()")
		}
		fmt.Fprintf(w, "Robot at %s\n", result.Robot)
		if result.RunID != "" {
			fmt.Fprintf(w, "Journal run: %s\n", result.RunID)
		}
	}

	if callErr != nil {
		return WrapExitError(ExitFailure, code, callErr)
	}
	return nil
}
