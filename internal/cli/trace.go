package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gam3du/gam3du-sub000/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Request  string // optional - filter to one request id
}

// TraceEvent is one journaled entry in the trace timeline.
type TraceEvent struct {
	Seq       int64           `json:"seq"`
	Tick      int64           `json:"tick"`
	Kind      string          `json:"kind"`
	Endpoint  int             `json:"endpoint"`
	RequestID string          `json:"request_id"`
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID    string       `json:"run_id"`
	API      string       `json:"api"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the run.
type TraceStats struct {
	TotalEntries int      `json:"total_entries"`
	Requests     int      `json:"requests"`
	Responses    int      `json:"responses"`
	Errors       int      `json:"errors"`
	Unresolved   []string `json:"unresolved,omitempty"`
	IsComplete   bool     `json:"is_complete"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journaled protocol traffic of a run",
		Long: `Show the requests, pending notices and responses journaled for a run.

The output includes:
- Timeline: every entry in dispatch order with its tick and endpoint
- Stats: request and response counts, and requests left unanswered

Without --run the most recent run is shown.

Examples:
  gam3du trace --db ./runs.db
  gam3du trace --db ./runs.db --run 6f1c...
  gam3du trace --db ./runs.db --request 0b7e... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace (default: latest run)")
	cmd.Flags().StringVar(&opts.Request, "request", "", "filter to one request id")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := context.Background()

	st, err := openJournal(opts.Database)
	if err != nil {
		return outputRunError(formatter, err)
	}
	defer st.Close()

	run, err := selectRun(ctx, st, opts.RunID)
	if err != nil {
		return outputRunError(formatter, err)
	}

	state, err := st.GetRunState(ctx, run.ID)
	if err != nil {
		return outputRunError(formatter, &LoadError{Code: ErrCodeDatabase, Message: err.Error(), Err: err})
	}

	var records []store.Record
	if opts.Request != "" {
		records, err = st.ReadRequest(ctx, opts.Request)
	} else {
		records, err = st.ReadEntries(ctx, run.ID)
	}
	if err != nil {
		return outputRunError(formatter, &LoadError{Code: ErrCodeDatabase, Message: err.Error(), Err: err})
	}

	result := TraceResult{
		RunID:    run.ID,
		API:      run.API,
		Timeline: buildTimeline(records, run.ID),
		Stats: TraceStats{
			TotalEntries: int(state.LastSeq),
			Requests:     state.Requests,
			Responses:    state.Responses,
			Errors:       state.Errors,
			Unresolved:   state.Unresolved,
			IsComplete:   state.IsComplete(),
		},
	}

	if opts.Format == "json" {
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

// openJournal opens an existing journal; a missing file is reported as
// not found rather than created.
func openJournal(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("journal not found: %s", path), Err: err}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDatabase, Message: err.Error(), Err: err}
	}
	return st, nil
}

// selectRun resolves --run, defaulting to the latest run.
func selectRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	var (
		run store.Run
		err error
	)
	if id == "" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.ReadRun(ctx, id)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		msg := "journal has no runs"
		if id != "" {
			msg = fmt.Sprintf("run not found: %s", id)
		}
		return run, &LoadError{Code: ErrCodeNotFound, Message: msg, Err: err}
	case err != nil:
		return run, &LoadError{Code: ErrCodeDatabase, Message: err.Error(), Err: err}
	}
	return run, nil
}

// buildTimeline converts records of the given run to timeline events.
func buildTimeline(records []store.Record, runID string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, r := range records {
		if r.RunID != runID {
			continue
		}
		ev := TraceEvent{
			Seq:       r.Seq,
			Tick:      r.Tick,
			Kind:      r.Kind,
			Endpoint:  r.Endpoint,
			RequestID: r.RequestID,
			Command:   r.Command,
			Code:      r.Code,
			Message:   r.Message,
		}
		if r.Payload != "" && r.Payload != "null" {
			ev.Payload = json.RawMessage(r.Payload)
		}
		timeline = append(timeline, ev)
	}
	return timeline
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Run: %s (api %q)\n", result.RunID, result.API)
	fmt.Fprintf(w, "Status: %s\n", completeStatus(result.Stats.IsComplete))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no entries)")
	}
	for _, ev := range result.Timeline {
		formatTimelineEvent(w, ev, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Entries: %d\n", result.Stats.TotalEntries)
	fmt.Fprintf(w, "  Requests:      %d\n", result.Stats.Requests)
	fmt.Fprintf(w, "  Responses:     %d\n", result.Stats.Responses)
	fmt.Fprintf(w, "  Errors:        %d\n", result.Stats.Errors)
	for _, id := range result.Stats.Unresolved {
		fmt.Fprintf(w, "  Unresolved:    %s\n", id)
	}
}

// formatTimelineEvent formats a single timeline entry for text output.
func formatTimelineEvent(w io.Writer, ev TraceEvent, verbose bool) {
	line := fmt.Sprintf("  [%d] t%d ep%d %-8s %s", ev.Seq, ev.Tick, ev.Endpoint, ev.Kind, ev.Command)
	switch ev.Kind {
	case "request":
		if ev.Payload != nil {
			line += " " + string(ev.Payload)
		}
	case "response":
		if ev.Payload != nil {
			line += " -> " + string(ev.Payload)
		} else {
			line += " -> ()"
		}
	case "error":
		line += fmt.Sprintf(" !! %s: %s", ev.Code, ev.Message)
	}
	fmt.Fprintln(w, line)
	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(ev.RequestID))
	}
}

// completeStatus returns a human-readable status string.
func completeStatus(complete bool) string {
	if complete {
		return "Complete"
	}
	return "Incomplete"
}

// truncateID shortens a request id for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:16] + "..."
}
