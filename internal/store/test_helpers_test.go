package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gam3du/gam3du-sub000/internal/dispatch"
	"github.com/gam3du/gam3du-sub000/internal/protocol"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestJournal begins a run on a fresh store.
func createTestJournal(t *testing.T) (*Store, *Journal) {
	t.Helper()
	s := createTestStore(t)
	j, err := s.BeginRun(context.Background(), "robot", nil)
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	t.Cleanup(j.Close)
	return s, j
}

// observeAll queues entries and closes j so they are readable.
func observeAll(j *Journal, entries ...dispatch.Entry) {
	for _, e := range entries {
		j.Observe(e)
	}
	j.Close()
}

// moveForwardEntries is the journal of one pending move followed by an
// unknown command.
func moveForwardEntries() []dispatch.Entry {
	move := protocol.SequentialID(1)
	unknown := protocol.SequentialID(2)
	return []dispatch.Entry{
		{Kind: dispatch.EntryRequest, Tick: 1, ID: move, Command: "move forward", Arguments: []schema.Value{schema.IntegerValue(1000)}},
		{Kind: dispatch.EntryPending, Tick: 1, ID: move, Command: "move forward"},
		{Kind: dispatch.EntryResponse, Tick: 61, ID: move, Command: "move forward", Result: schema.BooleanValue(true)},
		{Kind: dispatch.EntryRequest, Tick: 61, Endpoint: 1, ID: unknown, Command: "unknown cmd"},
		{Kind: dispatch.EntryError, Tick: 61, Endpoint: 1, ID: unknown, Command: "unknown cmd",
			Code: dispatch.ErrCodeUnknownCommand, Message: "Unknown Command: unknown cmd"},
	}
}
