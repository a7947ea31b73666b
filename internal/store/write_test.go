package store

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/gam3du/gam3du-sub000/internal/dispatch"
	"github.com/gam3du/gam3du-sub000/internal/protocol"
	"github.com/gam3du/gam3du-sub000/internal/schema"
)

func TestBeginRun_SequencesRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.BeginRun(ctx, "robot", nil)
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	second, err := s.BeginRun(ctx, "robot", nil)
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	if first.RunID() == second.RunID() {
		t.Fatal("runs share an id")
	}

	runs, err := s.ReadRuns(ctx)
	if err != nil {
		t.Fatalf("ReadRuns() failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != first.RunID() || runs[0].Seq != 1 || runs[1].Seq != 2 {
		t.Errorf("unexpected run order: %+v", runs)
	}

	latest, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() failed: %v", err)
	}
	if latest.ID != second.RunID() {
		t.Errorf("LatestRun() = %s, want %s", latest.ID, second.RunID())
	}
}

func TestJournal_Write(t *testing.T) {
	s, j := createTestJournal(t)
	ctx := context.Background()

	observeAll(j, moveForwardEntries()...)

	records, err := s.ReadEntries(ctx, j.RunID())
	if err != nil {
		t.Fatalf("ReadEntries() failed: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("got %d records, want 5", len(records))
	}

	want := []struct {
		kind    string
		payload string
		code    string
	}{
		{"request", "[1000]", ""},
		{"pending", "null", ""},
		{"response", "true", ""},
		{"request", "[]", ""},
		{"error", "null", "UNKNOWN_COMMAND"},
	}
	for i, w := range want {
		r := records[i]
		if r.Seq != int64(i+1) {
			t.Errorf("record %d: seq = %d", i, r.Seq)
		}
		if r.Kind != w.kind || r.Payload != w.payload || r.Code != w.code {
			t.Errorf("record %d = %+v, want kind=%s payload=%s code=%s", i, r, w.kind, w.payload, w.code)
		}
	}
	if records[0].RequestID != protocol.SequentialID(1).String() {
		t.Errorf("request id = %s", records[0].RequestID)
	}
	if records[2].Tick != 61 {
		t.Errorf("response tick = %d, want 61", records[2].Tick)
	}
	if records[4].Endpoint != 1 || records[4].Message != "Unknown Command: unknown cmd" {
		t.Errorf("error record = %+v", records[4])
	}
}

func TestJournal_ObserveLogsFailures(t *testing.T) {
	s := createTestStore(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	j, err := s.BeginRun(context.Background(), "robot", logger)
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	s.Close()

	j.Observe(dispatch.Entry{Kind: dispatch.EntryRequest, ID: protocol.SequentialID(1), Command: "log"})
	j.Close()
	if !strings.Contains(buf.String(), "journal write failed") {
		t.Errorf("expected a logged failure, got %q", buf.String())
	}
}

func TestJournal_ListPayload(t *testing.T) {
	s, j := createTestJournal(t)
	ctx := context.Background()

	err := j.Write(ctx, dispatch.Entry{
		Kind:    dispatch.EntryResponse,
		ID:      protocol.SequentialID(7),
		Command: "position",
		Result:  schema.ListValue{schema.IntegerValue(4), schema.IntegerValue(3)},
	})
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	records, err := s.ReadRequest(ctx, protocol.SequentialID(7).String())
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}
	if len(records) != 1 || records[0].Payload != "[4,3]" {
		t.Errorf("records = %+v", records)
	}
}

func TestJournal_ObserveAfterClose(t *testing.T) {
	s, j := createTestJournal(t)
	ctx := context.Background()

	observeAll(j, moveForwardEntries()[:1]...)
	j.Observe(moveForwardEntries()[1])
	j.Close()

	records, err := s.ReadEntries(ctx, j.RunID())
	if err != nil {
		t.Fatalf("ReadEntries() failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
}

// Observe is called from the dispatch loop goroutine; it must return while
// the writer is stuck on a locked database.
func TestJournal_ObserveDoesNotBlock(t *testing.T) {
	s, j := createTestJournal(t)
	ctx := context.Background()

	// The store has a single connection; the open transaction holds it.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			j.Observe(dispatch.Entry{Kind: dispatch.EntryRequest, ID: protocol.SequentialID(uint64(i + 1)), Command: "log"})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Observe blocked on the database")
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	j.Close()

	records, err := s.ReadEntries(ctx, j.RunID())
	if err != nil {
		t.Fatalf("ReadEntries() failed: %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("got %d records, want 10", len(records))
	}
	for i, r := range records {
		if r.Seq != int64(i+1) {
			t.Errorf("record %d: seq = %d", i, r.Seq)
		}
	}
}
