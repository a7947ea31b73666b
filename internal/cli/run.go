package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gam3du/gam3du-sub000/internal/config"
	"github.com/gam3du/gam3du-sub000/internal/schema"
	"github.com/gam3du/gam3du-sub000/internal/script"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	TickRate       int
	Transport      string
	Database       string
	MetricsAddr    string
	PendingTimeout time.Duration
	Timeout        time.Duration
	Watch          bool
}

// RunResult is the outcome of one script execution.
type RunResult struct {
	Script string     `json:"script"`
	Value  any        `json:"value,omitempty"`
	Output []string   `json:"output"`
	Robot  RobotState `json:"robot"`
	RunID  string     `json:"run_id,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <schema> <script.js>",
		Short: "Run a script against the robot simulation",
		Long: `Run a JavaScript file against a live robot simulation.

The schema is "robot" or a schema file declaring a subset of the robot's
commands. The script sees one global function per command (blocking) plus
an _async variant returning a Promise, and print().

Settings come from --config and may be overridden by flags. With --db every
request and response is journaled to SQLite for trace and replay.

Example:
  gam3du run robot ./square.js
  gam3du run robot ./square.js --db ./runs.db --metrics-addr :9090
  gam3du run ./walker.json ./walk.js --watch`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.TickRate, "tick-rate", 0, "simulation frequency in Hz (overrides config)")
	cmd.Flags().StringVar(&opts.Transport, "transport", "", "channel transport: inproc or ring (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (overrides config)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")
	cmd.Flags().DurationVar(&opts.PendingTimeout, "pending-timeout", 0, "fail commands pending longer than this (overrides config)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "stop the script after this long (0 = no limit)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "re-run the script whenever it changes")

	return cmd
}

// engineConfig loads --config and applies the flags the user set.
func (opts *RunOptions) engineConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("tick-rate") {
		cfg.Simulation.TickRate = opts.TickRate
	}
	if flags.Changed("transport") {
		cfg.Transport.Kind = opts.Transport
	}
	if flags.Changed("db") {
		cfg.Journal.Path = opts.Database
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.MetricsAddr
	}
	if flags.Changed("pending-timeout") {
		cfg.Dispatch.PendingTimeout = opts.PendingTimeout
	}
	if err := cfg.Validate(); err != nil {
		return cfg, &LoadError{Code: ErrCodeConfig, Message: err.Error(), Err: err}
	}
	return cfg, nil
}

func runScript(opts *RunOptions, ref, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.engineConfig(cmd)
	if err != nil {
		return outputRunError(formatter, err)
	}
	api, err := loadRobotAPI(ref)
	if err != nil {
		return outputRunError(formatter, err)
	}
	if _, err := os.Stat(path); err != nil {
		return outputRunError(formatter, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("script not found: %s", path), Err: err})
	}

	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)
	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	formatter.VerboseLog("Running %s against %q (%s transport, %d Hz)", path, api.Name, cfg.Transport.Kind, cfg.Simulation.TickRate)
	result, err := executeScript(ctx, cfg, api, path, opts.Timeout, formatter, logger)
	if !opts.Watch {
		return outputRunResult(formatter, result, err)
	}
	_ = outputRunResult(formatter, result, err)

	changes, err := watchFile(ctx, path, logger)
	if err != nil {
		return outputRunError(formatter, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("watch %s: %v", path, err), Err: err})
	}
	formatter.VerboseLog("Watching %s for changes", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
		}
		fmt.Fprintf(formatter.GetErrWriter(), "--- %s changed, re-running ---\n", path)
		result, err := executeScript(ctx, cfg, api, path, opts.Timeout, formatter, logger)
		_ = outputRunResult(formatter, result, err)
	}
}

// executeScript runs one script on a fresh session. The session is closed
// before returning, so the reported robot state is final.
func executeScript(ctx context.Context, cfg config.Config, api *schema.API, path string, timeout time.Duration, formatter *OutputFormatter, logger *slog.Logger) (*RunResult, error) {
	result := &RunResult{Script: path, Output: []string{}}

	src, err := os.ReadFile(path)
	if err != nil {
		return result, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("read script: %v", err), Err: err}
	}

	sess, err := startSession(ctx, cfg, api, logger)
	if err != nil {
		return result, err
	}
	result.RunID = sess.RunID()

	runner, err := script.New(sess.client,
		script.WithLogger(logger),
		script.WithOutput(func(line string) {
			result.Output = append(result.Output, line)
			if formatter.Format != "json" {
				fmt.Fprintln(formatter.Writer, line)
			}
		}))
	if err != nil {
		_ = sess.Close()
		return result, err
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	value, runErr := runner.Run(runCtx, path, string(src))

	if err := sess.Close(); err != nil {
		logger.Error("closing session", "error", err)
	}
	result.Robot = sess.robotState()
	if runErr != nil {
		result.Error = runErr.Error()
		return result, runErr
	}
	if !value.IsEmpty {
		result.Value = value.Value
	}
	return result, nil
}

// signalContext is cancelled on SIGINT/SIGTERM or when the command's own
// context ends.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func outputRunResult(formatter *OutputFormatter, result *RunResult, err error) error {
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputRunError(formatter, err)
		}
	}

	code := ""
	switch {
	case err == nil:
	case errors.Is(err, script.ErrInterrupted), script.IsScriptError(err):
		code = ErrCodeScript
	default:
		code = ErrCodeGeneric
	}

	if formatter.Format == "json" {
		if err == nil {
			return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
		}
		_ = writeJSON(formatter.Writer, CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: code, Message: err.Error()},
			RunID:  result.RunID,
		})
		return WrapExitError(ExitFailure, "script failed", err)
	}

	w := formatter.Writer
	if err != nil {
		fmt.Fprintf(w, "✗ Script failed: %v\n", err)
	} else if result.Value != nil {
		fmt.Fprintf(w, "✓ Script finished: %s\n", formatValue(result.Value))
	} else {
		fmt.Fprintln(w, "✓ Script finished")
	}
	fmt.Fprintf(w, "Robot at %s\n", result.Robot)
	if result.RunID != "" {
		fmt.Fprintf(w, "Journal run: %s\n", result.RunID)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "script failed", err)
	}
	return nil
}

func outputRunError(formatter *OutputFormatter, err error) error {
	code, message := loadErrorCode(err)
	_ = formatter.Error(code, message, nil)
	return WrapExitError(ExitCommandError, code, err)
}

// formatValue renders an exported script value as compact JSON.
func formatValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
