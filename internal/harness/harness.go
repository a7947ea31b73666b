package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gam3du/gam3du-sub000/internal/channel"
	"github.com/gam3du/gam3du-sub000/internal/dispatch"
	"github.com/gam3du/gam3du-sub000/internal/event"
	"github.com/gam3du/gam3du-sub000/internal/protocol"
	"github.com/gam3du/gam3du-sub000/internal/schema"
	"github.com/gam3du/gam3du-sub000/internal/sim"
	"github.com/gam3du/gam3du-sub000/internal/testutil"
)

// Harness holds the per-scenario engine and client state.
type Harness struct {
	registry *event.Registry
	world    *sim.World
	loop     *dispatch.Loop
	clients  []*channel.Client
	clock    *event.Clock
	wall     *testutil.ManualClock
	aliases  map[protocol.RequestID]string
	ids      map[string]protocol.RequestID
	result   *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against fresh endpoints, registry and handler state.
// A non-nil error means the scenario could not be set up; step and
// assertion failures are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with a logger for the loop, world and registry.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	h, err := newHarness(scenario, logger)
	if err != nil {
		return nil, err
	}
	defer h.close()

	ctx := context.Background()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, step); err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		}
	}

	h.result.State = stateName(h.loop.State())
	for _, a := range scenario.Assertions {
		if err := evaluateAssertion(h.result, a); err != nil {
			h.result.AddError(err.Error())
		}
	}
	return h.result, nil
}

func newHarness(scenario *Scenario, logger *slog.Logger) (*Harness, error) {
	api, err := loadAPI(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	h := &Harness{
		registry: event.NewRegistry(event.CommandEffectCompleted, event.WithLogger(logger)),
		clock:    event.NewClock(),
		wall:     testutil.NewManualClock(),
		aliases:  make(map[protocol.RequestID]string),
		ids:      make(map[string]protocol.RequestID),
		result:   NewResult(),
	}

	var handler dispatch.Handler
	if len(scenario.Handlers) > 0 {
		handler, err = newScriptedHandler(scenario.Handlers)
	} else {
		w, hgt := 16, 16
		if scenario.World != nil {
			w, hgt = scenario.World.Width, scenario.World.Height
		}
		h.world, err = sim.NewWorld(w, hgt, h.registry, sim.WithWorldLogger(logger))
		handler = h.world
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithObserver(dispatch.ObserverFunc(h.record)),
		dispatch.WithNow(h.wall.Now),
	}
	if scenario.PendingTimeout > 0 {
		opts = append(opts, dispatch.WithPendingTimeout(scenario.PendingTimeout))
	}
	h.loop, err = dispatch.New(handler, h.registry, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	ids := protocol.NewSequentialIDs()
	for i := 0; i < scenario.endpointCount(); i++ {
		client, server := channel.InProcess(api, channel.WithIDGenerator(ids), channel.WithLogger(logger))
		h.loop.AddEndpoint(server)
		h.clients = append(h.clients, client)
	}
	return h, nil
}

func loadAPI(name string) (*schema.API, error) {
	if name == RobotSchema {
		return sim.RobotAPI(), nil
	}
	return schema.LoadFile(name)
}

func (h *Harness) close() {
	h.loop.Close()
	for _, c := range h.clients {
		c.Close()
	}
}

func (h *Harness) runStep(ctx context.Context, step Step) error {
	switch {
	case step.Send != nil:
		return h.send(step.Send)
	case step.Tick > 0:
		for i := 0; i < step.Tick; i++ {
			h.loop.Tick(ctx)
		}
		return nil
	case step.Advance > 0:
		h.wall.Advance(step.Advance)
		if h.world != nil {
			h.world.Update(step.Advance)
		}
		return nil
	case step.Complete:
		h.registry.Notify()
		return nil
	case step.Expect != nil:
		return h.expect(step.Expect)
	case step.ExpectState != "":
		if got := stateName(h.loop.State()); got != step.ExpectState {
			return fmt.Errorf("expected state %s, got %s", step.ExpectState, h.loop.State())
		}
		return nil
	default:
		return errors.New("empty step")
	}
}

func (h *Harness) send(s *SendStep) error {
	command, err := schema.ParseIdentifier(s.Command)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	args, err := schema.ValuesOf(s.Args...)
	if err != nil {
		return fmt.Errorf("send %s: %w", s.Command, err)
	}
	id, err := h.clients[s.Endpoint].SendCommand(command, args)
	if err != nil {
		return fmt.Errorf("send %s: %w", s.Command, err)
	}
	if s.As != "" {
		h.aliases[id] = s.As
		h.ids[s.As] = id
	}
	return nil
}

func (h *Harness) expect(e *ExpectStep) error {
	msg, ok, err := h.clients[e.Endpoint].PollResponse()
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}
	if e.None {
		if ok {
			return fmt.Errorf("expected no message on endpoint %d, got %s", e.Endpoint, msg)
		}
		return nil
	}
	if !ok {
		return fmt.Errorf("expected a message on endpoint %d, got none", e.Endpoint)
	}

	if e.ID != "" {
		want, known := h.ids[e.ID]
		if !known {
			return fmt.Errorf("unknown request alias %q", e.ID)
		}
		got, _ := msg.CorrelationID()
		if got != want {
			return fmt.Errorf("expected a message for %s, got %s", e.ID, h.label(got))
		}
	}

	switch m := msg.(type) {
	case protocol.ErrorResponse:
		if e.Error == "" {
			return fmt.Errorf("unexpected error response: %s", m.Message)
		}
		if m.Message != e.Error {
			return fmt.Errorf("expected error %q, got %q", e.Error, m.Message)
		}
	case protocol.Response:
		if e.Error != "" {
			return fmt.Errorf("expected error %q, got response %s", e.Error, m.Result)
		}
		if e.Result != nil {
			want, err := schema.ValueOf(e.Result)
			if err != nil {
				return fmt.Errorf("expected result: %w", err)
			}
			if !valuesMatch(want, m.Result) {
				return fmt.Errorf("expected result %s, got %s", want, m.Result)
			}
		}
	default:
		return fmt.Errorf("unexpected message %s", msg)
	}
	return nil
}

// record converts a loop entry into a trace event.
func (h *Harness) record(e dispatch.Entry) {
	ev := TraceEvent{
		Seq:      h.clock.Next(),
		Tick:     e.Tick,
		Kind:     string(e.Kind),
		Endpoint: e.Endpoint,
		ID:       h.label(e.ID),
		Command:  string(e.Command),
		Code:     string(e.Code),
		Message:  e.Message,
	}
	switch e.Kind {
	case dispatch.EntryRequest:
		ev.Args = schema.Native(schema.ListValue(e.Arguments))
	case dispatch.EntryResponse:
		ev.Result = schema.Native(e.Result)
	}
	h.result.Trace = append(h.result.Trace, ev)
}

func (h *Harness) label(id protocol.RequestID) string {
	if alias, ok := h.aliases[id]; ok {
		return alias
	}
	return id.String()
}

func stateName(s dispatch.State) string {
	if _, ok := s.(dispatch.Awaiting); ok {
		return "awaiting"
	}
	return "idle"
}

// valuesMatch compares values, treating integers and floats as numbers.
func valuesMatch(want, got schema.Value) bool {
	if wn, ok := number(want); ok {
		gn, ok := number(got)
		return ok && wn == gn
	}
	if wl, ok := want.(schema.ListValue); ok {
		gl, ok := got.(schema.ListValue)
		if !ok || len(wl) != len(gl) {
			return false
		}
		for i := range wl {
			if !valuesMatch(wl[i], gl[i]) {
				return false
			}
		}
		return true
	}
	return schema.ValueEqual(want, got)
}

func number(v schema.Value) (float64, bool) {
	switch n := v.(type) {
	case schema.IntegerValue:
		return float64(n), true
	case schema.FloatValue:
		return float64(n), true
	default:
		return 0, false
	}
}
