package store

import (
	"context"
	"fmt"

	"github.com/gam3du/gam3du-sub000/internal/protocol"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// RunState summarizes a run for inspection.
type RunState struct {
	Run       Run
	Requests  int
	Responses int
	Errors    int
	LastSeq   int64

	// Unresolved lists request ids that never received a terminal
	// response, in request order. A run that stopped while Awaiting has
	// exactly one.
	Unresolved []string
}

// IsComplete reports whether every request was answered.
func (s RunState) IsComplete() bool {
	return len(s.Unresolved) == 0
}

// GetRunState analyzes the entries of a run.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}
	records, err := s.ReadEntries(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}

	state := RunState{Run: run}
	answered := make(map[string]bool)
	var order []string
	for _, r := range records {
		if r.Seq > state.LastSeq {
			state.LastSeq = r.Seq
		}
		switch r.Kind {
		case "request":
			state.Requests++
			order = append(order, r.RequestID)
		case "response":
			state.Responses++
			answered[r.RequestID] = true
		case "error":
			state.Errors++
			answered[r.RequestID] = true
		}
	}
	for _, id := range order {
		if !answered[id] {
			state.Unresolved = append(state.Unresolved, id)
		}
	}
	return state, nil
}

// ReplayRequests reconstructs the requests of a run in dispatch order, for
// re-sending them against a fresh simulation.
func (s *Store) ReplayRequests(ctx context.Context, runID string) ([]protocol.Request, error) {
	records, err := s.ReadEntries(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay requests: %w", err)
	}

	requests := []protocol.Request{}
	for _, r := range records {
		if r.Kind != "request" {
			continue
		}
		id, err := protocol.ParseRequestID(r.RequestID)
		if err != nil {
			return nil, fmt.Errorf("replay requests: seq %d: %w", r.Seq, err)
		}
		args, err := unmarshalValues(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("replay requests: seq %d: %w", r.Seq, err)
		}
		requests = append(requests, protocol.Request{
			ID:        id,
			Command:   schema.Identifier(r.Command),
			Arguments: args,
		})
	}
	return requests, nil
}
