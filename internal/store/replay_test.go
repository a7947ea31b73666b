package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gam3du/gam3du-sub000/internal/dispatch"
	"github.com/gam3du/gam3du-sub000/internal/protocol"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

func TestGetRunState_Complete(t *testing.T) {
	s, j := createTestJournal(t)
	observeAll(j, moveForwardEntries()...)

	state, err := s.GetRunState(context.Background(), j.RunID())
	require.NoError(t, err)
	assert.Equal(t, 2, state.Requests)
	assert.Equal(t, 1, state.Responses)
	assert.Equal(t, 1, state.Errors)
	assert.Equal(t, int64(5), state.LastSeq)
	assert.True(t, state.IsComplete())
}

func TestGetRunState_StoppedWhileAwaiting(t *testing.T) {
	s, j := createTestJournal(t)
	observeAll(j, moveForwardEntries()[:2]...)

	state, err := s.GetRunState(context.Background(), j.RunID())
	require.NoError(t, err)
	assert.False(t, state.IsComplete())
	assert.Equal(t, []string{protocol.SequentialID(1).String()}, state.Unresolved)
}

func TestGetRunState_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetRunState(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplayRequests(t *testing.T) {
	s, j := createTestJournal(t)
	observeAll(j, append(moveForwardEntries(), dispatch.Entry{
		Kind:    dispatch.EntryRequest,
		ID:      protocol.SequentialID(3),
		Command: "robot color rgb",
		Arguments: []schema.Value{
			schema.FloatValue(0.5), schema.IntegerValue(1), schema.FloatValue(0.25),
		},
	})...)

	requests, err := s.ReplayRequests(context.Background(), j.RunID())
	require.NoError(t, err)
	require.Len(t, requests, 3)

	assert.Equal(t, protocol.SequentialID(1), requests[0].ID)
	assert.Equal(t, schema.Identifier("move forward"), requests[0].Command)
	assert.Equal(t, []schema.Value{schema.IntegerValue(1000)}, requests[0].Arguments)

	assert.Equal(t, schema.Identifier("unknown cmd"), requests[1].Command)
	assert.Empty(t, requests[1].Arguments)

	assert.Equal(t, []schema.Value{
		schema.FloatValue(0.5), schema.IntegerValue(1), schema.FloatValue(0.25),
	}, requests[2].Arguments)
}
