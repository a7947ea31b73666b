package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/gam3du/gam3du-sub000/internal/channel"
	"github.com/gam3du/gam3du-sub000/internal/dispatch"
	"github.com/gam3du/gam3du-sub000/internal/protocol"
	"github.com/gam3du/gam3du-sub000/internal/schema"
	"github.com/gam3du/gam3du-sub000/internal/sim"
	"github.com/gam3du/gam3du-sub000/internal/store"
)

const (
	// replayStep is the simulated time advanced per tick while a replayed
	// request settles.
	replayStep = 100 * time.Millisecond

	// replayMaxSteps bounds how long one request may stay unanswered.
	replayMaxSteps = 1000
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string
	Schema   string
	Width    int
	Height   int
}

// ReplayMismatch is a request whose replayed outcome differs from the
// journaled one.
type ReplayMismatch struct {
	RequestID string `json:"request_id"`
	Command   string `json:"command"`
	Recorded  string `json:"recorded"`
	Replayed  string `json:"replayed"`
}

// ReplayResult holds the outcome of replaying one run.
type ReplayResult struct {
	RunID         string           `json:"run_id"`
	API           string           `json:"api"`
	Requests      int              `json:"requests"`
	Compared      int              `json:"compared"`
	Mismatches    []ReplayMismatch `json:"mismatches"`
	Deterministic bool             `json:"deterministic"`
	Robot         RobotState       `json:"robot"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-dispatch a journaled run and verify determinism",
		Long: `Re-send the requests of a journaled run to a fresh robot world and
compare every outcome with the journal to verify determinism.

Requests are replayed one at a time under their recorded ids, stepping the
world in simulated time until each is answered. Responses must carry the
same value and errors the same message. Requests the journal never saw
answered are dispatched but not compared.

Exit codes:
  0 - Every outcome matched
  1 - Determinism verification failed (differences detected)
  2 - Command error (journal not found, etc.)

Examples:
  gam3du replay --db ./runs.db
  gam3du replay --db ./runs.db --run 6f1c... --format json
  gam3du replay --db ./runs.db --width 4 --height 4`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to replay (default: latest run)")
	cmd.Flags().StringVar(&opts.Schema, "schema", RobotSchema, "schema the run was served with")
	cmd.Flags().IntVar(&opts.Width, "width", 0, "plane width (overrides config)")
	cmd.Flags().IntVar(&opts.Height, "height", 0, "plane height (overrides config)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := context.Background()

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return outputRunError(formatter, err)
	}
	if cmd.Flags().Changed("width") {
		cfg.Simulation.PlaneWidth = opts.Width
	}
	if cmd.Flags().Changed("height") {
		cfg.Simulation.PlaneHeight = opts.Height
	}

	api, err := loadRobotAPI(opts.Schema)
	if err != nil {
		return outputRunError(formatter, err)
	}

	st, err := openJournal(opts.Database)
	if err != nil {
		return outputRunError(formatter, err)
	}
	defer st.Close()

	run, err := selectRun(ctx, st, opts.RunID)
	if err != nil {
		return outputRunError(formatter, err)
	}
	recording, err := readRecording(ctx, st, run.ID)
	if err != nil {
		return outputRunError(formatter, &LoadError{Code: ErrCodeDatabase, Message: err.Error(), Err: err})
	}

	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)
	simulation, err := sim.New(sim.Config{
		Width:  cfg.Simulation.PlaneWidth,
		Height: cfg.Simulation.PlaneHeight,
		Logger: logger,
	})
	if err != nil {
		return outputRunError(formatter, &LoadError{Code: ErrCodeConfig, Message: err.Error(), Err: err})
	}
	defer simulation.Loop().Close()

	formatter.VerboseLog("Replaying %d requests of run %s on a %dx%d plane", len(recording.requests), run.ID, cfg.Simulation.PlaneWidth, cfg.Simulation.PlaneHeight)
	replayed, err := replayRequests(ctx, simulation, api, recording)
	if err != nil {
		return outputRunError(formatter, &LoadError{Code: ErrCodeGeneric, Message: err.Error(), Err: err})
	}

	result := compareOutcomes(recording, replayed)
	result.RunID = run.ID
	result.API = run.API
	r := simulation.World().Robot()
	result.Robot = RobotState{X: r.X, Y: r.Y, Facing: r.Facing.String(), Color: r.Color[:]}

	return outputReplayResult(formatter, result)
}

// recording is a journaled run reduced to what replay needs.
type recording struct {
	requests []protocol.Request
	// endpoint of each request, by id
	endpoints map[protocol.RequestID]int
	// terminal outcome of each answered request, by id
	outcomes map[protocol.RequestID]string
	// commands by id, for reporting
	commands map[protocol.RequestID]string
}

func readRecording(ctx context.Context, st *store.Store, runID string) (*recording, error) {
	requests, err := st.ReplayRequests(ctx, runID)
	if err != nil {
		return nil, err
	}
	records, err := st.ReadEntries(ctx, runID)
	if err != nil {
		return nil, err
	}

	rec := &recording{
		requests:  requests,
		endpoints: make(map[protocol.RequestID]int),
		outcomes:  make(map[protocol.RequestID]string),
		commands:  make(map[protocol.RequestID]string),
	}
	for _, r := range records {
		id, err := protocol.ParseRequestID(r.RequestID)
		if err != nil {
			return nil, fmt.Errorf("seq %d: %w", r.Seq, err)
		}
		switch r.Kind {
		case string(dispatch.EntryRequest):
			rec.endpoints[id] = r.Endpoint
			rec.commands[id] = r.Command
		case string(dispatch.EntryResponse):
			rec.outcomes[id] = responseOutcome(r.Payload)
		case string(dispatch.EntryError):
			rec.outcomes[id] = errorOutcome(r.Message)
		}
	}
	return rec, nil
}

func responseOutcome(payload string) string { return "response " + payload }
func errorOutcome(message string) string    { return "error " + message }

// queuedIDs hands out a fixed list of ids in order.
type queuedIDs struct {
	ids []protocol.RequestID
}

func (q *queuedIDs) NewID() protocol.RequestID {
	if len(q.ids) == 0 {
		return protocol.RandomIDs{}.NewID()
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id
}

// replayRequests sends each request on a client for its recorded endpoint
// and steps the simulation until the request is answered. It returns the
// replayed outcome of every answered request.
func replayRequests(ctx context.Context, simulation *sim.Simulation, api *schema.API, rec *recording) (map[protocol.RequestID]string, error) {
	// One client per recorded endpoint, each issuing that endpoint's ids.
	perEndpoint := make(map[int][]protocol.RequestID)
	maxEndpoint := 0
	for _, req := range rec.requests {
		ep := rec.endpoints[req.ID]
		perEndpoint[ep] = append(perEndpoint[ep], req.ID)
		if ep > maxEndpoint {
			maxEndpoint = ep
		}
	}
	clients := make([]*channel.Client, maxEndpoint+1)
	for ep := range clients {
		client, server := channel.InProcess(api, channel.WithIDGenerator(&queuedIDs{ids: perEndpoint[ep]}))
		defer client.Close()
		if got := simulation.Loop().AddEndpoint(server); got != ep {
			return nil, fmt.Errorf("endpoint %d registered as %d", ep, got)
		}
		clients[ep] = client
	}

	outcomes := make(map[protocol.RequestID]string)
	for _, req := range rec.requests {
		client := clients[rec.endpoints[req.ID]]
		id, err := client.SendCommand(req.Command, req.Arguments)
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", req, err)
		}
		if id != req.ID {
			return nil, fmt.Errorf("replay %s: sent under id %s", req, id)
		}

		for step := 0; step < replayMaxSteps; step++ {
			simulation.Step(ctx, replayStep)
			outcome, done, err := pollOutcome(client, id)
			if err != nil {
				return nil, fmt.Errorf("replay %s: %w", req, err)
			}
			if done {
				outcomes[id] = outcome
				break
			}
		}
	}
	return outcomes, nil
}

// pollOutcome drains client until the answer to id arrives.
func pollOutcome(client *channel.Client, id protocol.RequestID) (string, bool, error) {
	for {
		msg, ok, err := client.PollResponse()
		if err != nil || !ok {
			return "", false, err
		}
		switch m := msg.(type) {
		case protocol.Response:
			if m.ID == id {
				return responseOutcome(store.EncodeValue(m.Result)), true, nil
			}
		case protocol.ErrorResponse:
			if m.ID == id {
				return errorOutcome(m.Message), true, nil
			}
		}
	}
}

// compareOutcomes checks every request the journal saw answered.
func compareOutcomes(rec *recording, replayed map[protocol.RequestID]string) ReplayResult {
	result := ReplayResult{
		Requests:   len(rec.requests),
		Mismatches: []ReplayMismatch{},
	}
	for _, req := range rec.requests {
		want, answered := rec.outcomes[req.ID]
		if !answered {
			continue
		}
		result.Compared++
		got, ok := replayed[req.ID]
		if !ok {
			got = "unanswered"
		}
		if got != want {
			result.Mismatches = append(result.Mismatches, ReplayMismatch{
				RequestID: req.ID.String(),
				Command:   rec.commands[req.ID],
				Recorded:  want,
				Replayed:  got,
			})
		}
	}
	result.Deterministic = len(result.Mismatches) == 0
	return result
}

func outputReplayResult(formatter *OutputFormatter, result ReplayResult) error {
	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
		if !result.Deterministic {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeDeterminism,
				Message: fmt.Sprintf("%d of %d outcomes differ", len(result.Mismatches), result.Compared),
			}
		}
		if err := writeJSON(formatter.Writer, resp); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter.Writer, result)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, fmt.Sprintf("determinism check failed: %d outcome(s) differ", len(result.Mismatches)))
	}
	return nil
}

func outputReplayText(w io.Writer, result ReplayResult) {
	fmt.Fprintf(w, "Replay of Run: %s (api %q)\n", result.RunID, result.API)
	fmt.Fprintf(w, "  Requests: %d (%d compared)\n", result.Requests, result.Compared)
	fmt.Fprintf(w, "  Robot at %s\n", result.Robot)
	fmt.Fprintln(w)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay matches the journal")
		return
	}
	fmt.Fprintf(w, "✗ %d outcome(s) differ\n", len(result.Mismatches))
	for _, m := range result.Mismatches {
		fmt.Fprintf(w, "  %s %s\n", truncateID(m.RequestID), m.Command)
		fmt.Fprintf(w, "    recorded: %s\n", m.Recorded)
		fmt.Fprintf(w, "    replayed: %s\n", m.Replayed)
	}
}
