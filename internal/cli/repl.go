package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/gam3du/gam3du-sub000/internal/codegen"
	"github.com/gam3du/gam3du-sub000/internal/schema"
	"github.com/gam3du/gam3du-sub000/internal/script"
)

// ReplOptions holds flags for the repl command.
type ReplOptions struct {
	*RootOptions
	HistoryFile string
}

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repl [schema]",
		Short: "Interactive JavaScript prompt driving the robot",
		Long: `Start an interactive JavaScript prompt connected to a live robot simulation.

Each line is evaluated in one persistent runtime, so variables and functions
carry over. Command stubs complete with Tab. Ctrl-C interrupts a running
line; Ctrl-D or .exit leaves.

REPL commands:
  .api    list the available commands
  .help   show this help
  .exit   leave the REPL`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := RobotSchema
			if len(args) == 1 {
				ref = args[0]
			}
			return runRepl(opts, ref, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.HistoryFile, "history", defaultHistoryFile(), "history file (empty disables history)")

	return cmd
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gam3du_history")
}

func runRepl(opts *ReplOptions, ref string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return outputRunError(formatter, err)
	}
	api, err := loadRobotAPI(ref)
	if err != nil {
		return outputRunError(formatter, err)
	}

	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)
	sess, err := startSession(context.Background(), cfg, api, logger)
	if err != nil {
		return outputRunError(formatter, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Error("closing session", "error", err)
		}
	}()

	out := formatter.Writer
	runner, err := script.New(sess.client,
		script.WithLogger(logger),
		script.WithOutput(func(line string) { fmt.Fprintln(out, line) }))
	if err != nil {
		return WrapExitError(ExitFailure, "starting script runtime", err)
	}

	// SIGINT while a line is evaluating interrupts it. While reading, the
	// terminal is in raw mode and readline reports ^C itself.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()
	go func() {
		for range sigChan {
			runner.Interrupt()
		}
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "gam3du> ",
		HistoryFile:       opts.HistoryFile,
		HistoryLimit:      1000,
		AutoComplete:      newStubCompleter(api),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start line editor", err)
	}
	defer func() {
		_ = rl.Close()
	}()

	fmt.Fprintf(out, "Connected to %q (%d commands). Type .help for help.\n", api.Name, len(api.Functions))
	r := &repl{api: api, runner: runner, out: out}
	return r.loop(rl.Readline)
}

// repl evaluates input lines against one runner.
type repl struct {
	api    *schema.API
	runner *script.Runner
	out    io.Writer
	lines  int
}

// loop reads lines until EOF or .exit.
func (r *repl) loop(readLine func() (string, error)) error {
	for {
		line, err := readLine()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if r.eval(line) {
			return nil
		}
	}
}

// eval handles one line and reports whether the REPL should exit.
func (r *repl) eval(line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case line == ".exit" || line == ".quit":
		return true
	case line == ".help":
		fmt.Fprintln(r.out, "Enter JavaScript. Commands: .api, .help, .exit")
		return false
	case line == ".api":
		r.listAPI()
		return false
	case strings.HasPrefix(line, "."):
		fmt.Fprintf(r.out, "Unknown REPL command %s (try .help)\n", line)
		return false
	}

	r.lines++
	res, err := r.runner.Run(context.Background(), fmt.Sprintf("<repl:%d>", r.lines), line)
	if err != nil {
		fmt.Fprintf(r.out, "✗ %v\n", err)
		return false
	}
	if !res.IsEmpty {
		fmt.Fprintln(r.out, formatValue(res.Value))
	}
	return false
}

func (r *repl) listAPI() {
	for _, fn := range r.api.Functions {
		params := make([]string, len(fn.Parameters))
		for i, p := range fn.Parameters {
			params[i] = codegen.JSName(p.Name)
			if p.HasDefault() {
				params[i] += " = " + p.Default.String()
			}
		}
		sig := fmt.Sprintf("%s(%s)", codegen.JSName(fn.Name), strings.Join(params, ", "))
		if fn.Returns != nil {
			sig += " -> " + fn.Returns.Type.String()
		}
		if fn.Caption != "" {
			fmt.Fprintf(r.out, "  %-40s %s\n", sig, fn.Caption)
		} else {
			fmt.Fprintf(r.out, "  %s\n", sig)
		}
	}
}

// stubCompleter completes the identifier under the cursor against the
// generated stub names.
type stubCompleter struct {
	names []string
}

var _ readline.AutoCompleter = (*stubCompleter)(nil)

func newStubCompleter(api *schema.API) *stubCompleter {
	names := []string{"print", "sleep"}
	for _, fn := range api.Functions {
		name := codegen.JSName(fn.Name)
		names = append(names, name, name+codegen.AsyncSuffix)
	}
	sort.Strings(names)
	return &stubCompleter{names: names}
}

// Do implements readline.AutoCompleter.
func (c *stubCompleter) Do(line []rune, pos int) ([][]rune, int) {
	start := pos
	for start > 0 && isIdentRune(line[start-1]) {
		start--
	}
	prefix := string(line[start:pos])
	if prefix == "" {
		return nil, 0
	}

	var out [][]rune
	for _, name := range c.names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, []rune(name[len(prefix):]))
		}
	}
	return out, len([]rune(prefix))
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
