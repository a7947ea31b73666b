package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gam3du/gam3du-sub000/internal/store"
)

// journalRun runs a script with a journal and returns the database path
// and the run id.
func journalRun(t *testing.T, script string) (string, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	_, _, err := executeRun(t, &RootOptions{Format: "text"}, "robot", scriptPath(script), "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.LatestRun(context.Background())
	require.NoError(t, err)
	return dbPath, run.ID
}

func executeTrace(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := executeTrace(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	out, err := executeTrace(t, "text", "--db", "/nonexistent/runs.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}

func TestTraceEmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeTrace(t, "text", "--db", dbPath)
	require.Error(t, err)
	assert.Contains(t, out, "journal has no runs")
}

func TestTraceUnknownRun(t *testing.T) {
	dbPath, _ := journalRun(t, "walk.js")

	out, err := executeTrace(t, "text", "--db", dbPath, "--run", "nope")
	require.Error(t, err)
	assert.Contains(t, out, "run not found: nope")
}

func TestTraceLatestRun(t *testing.T) {
	dbPath, runID := journalRun(t, "walk.js")

	out, err := executeTrace(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for Run: "+runID+` (api "robot")`)
	assert.Contains(t, out, "Status: Complete")
	assert.Contains(t, out, "request  move forward [20]")
	assert.Contains(t, out, "pending  move forward")
	assert.Contains(t, out, "response position -> [8,7]")
	assert.Contains(t, out, "Requests:      2")
	assert.Contains(t, out, "Responses:     2")
}

func TestTraceJSON(t *testing.T) {
	dbPath, runID := journalRun(t, "walk.js")

	out, err := executeTrace(t, "json", "--db", dbPath, "--run", runID)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
		RunID  string      `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, runID, resp.RunID)
	require.Len(t, resp.Data.Timeline, 5)
	assert.Equal(t, "request", resp.Data.Timeline[0].Kind)
	assert.JSONEq(t, "[20]", string(resp.Data.Timeline[0].Payload))
	assert.Nil(t, resp.Data.Timeline[1].Payload)
	assert.JSONEq(t, "[8,7]", string(resp.Data.Timeline[4].Payload))
	assert.True(t, resp.Data.Stats.IsComplete)
	assert.Equal(t, 5, resp.Data.Stats.TotalEntries)
}

func TestTraceRequestFilter(t *testing.T) {
	dbPath, runID := journalRun(t, "walk.js")

	out, err := executeTrace(t, "json", "--db", dbPath, "--run", runID)
	require.NoError(t, err)
	var full struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &full))
	moveID := full.Data.Timeline[0].RequestID

	out, err = executeTrace(t, "json", "--db", dbPath, "--request", moveID)
	require.NoError(t, err)
	var filtered struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &filtered))

	kinds := make([]string, len(filtered.Data.Timeline))
	for i, ev := range filtered.Data.Timeline {
		assert.Equal(t, moveID, ev.RequestID)
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []string{"request", "pending", "response"}, kinds)
}

func TestTraceErrorEntry(t *testing.T) {
	dbPath, _ := journalRunAllowFail(t, "bad_color.js")

	out, err := executeTrace(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "robot color rgb !! ")
	assert.Contains(t, out, "color component red must be between 0 and 1, got 2")
	assert.Contains(t, out, "Errors:        1")
}

// journalRunAllowFail is journalRun for scripts expected to fail.
func journalRunAllowFail(t *testing.T, script string) (string, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	_, _, err := executeRun(t, &RootOptions{Format: "text"}, "robot", scriptPath(script), "--db", dbPath)
	require.Error(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.LatestRun(context.Background())
	require.NoError(t, err)
	return dbPath, run.ID
}

func TestTraceHelpText(t *testing.T) {
	out, err := executeTrace(t, "text", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--db")
	assert.Contains(t, out, "--run")
	assert.Contains(t, out, "--request")
}

func TestBuildTimelineSkipsOtherRuns(t *testing.T) {
	records := []store.Record{
		{RunID: "a", Seq: 1, Kind: "request", Command: "position", Payload: "[]"},
		{RunID: "b", Seq: 1, Kind: "request", Command: "position", Payload: "[]"},
		{RunID: "a", Seq: 2, Kind: "response", Command: "position", Payload: "null"},
	}
	timeline := buildTimeline(records, "a")
	require.Len(t, timeline, 2)
	assert.Equal(t, json.RawMessage("[]"), timeline[0].Payload)
	assert.Nil(t, timeline[1].Payload)
}

func TestFormatTimelineEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   TraceEvent
		want string
	}{
		{"request", TraceEvent{Seq: 1, Tick: 3, Kind: "request", Command: "turn left", Payload: json.RawMessage("[]")}, "  [1] t3 ep0 request  turn left []\n"},
		{"unit response", TraceEvent{Seq: 2, Tick: 3, Kind: "response", Command: "turn left"}, "  [2] t3 ep0 response turn left -> ()\n"},
		{"error", TraceEvent{Seq: 3, Tick: 4, Endpoint: 1, Kind: "error", Command: "fly", Code: "UNKNOWN_COMMAND", Message: "Unknown Command: fly"}, "  [3] t4 ep1 error    fly !! UNKNOWN_COMMAND: Unknown Command: fly\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatTimelineEvent(&buf, tt.ev, false)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "0123456789abcdef...", truncateID("0123456789abcdef0123"))
}

func TestCompleteStatus(t *testing.T) {
	assert.Equal(t, "Complete", completeStatus(true))
	assert.Equal(t, "Incomplete", completeStatus(false))
}
