package store

import (
	"context"
	"errors"
	"testing"

	"github.com/gam3du/gam3du-sub000/internal/protocol"
)

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadRun() error = %v, want ErrNotFound", err)
	}
	_, err = s.LatestRun(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestRun() error = %v, want ErrNotFound", err)
	}
}

func TestReadEntries_EmptyRun(t *testing.T) {
	s, j := createTestJournal(t)

	records, err := s.ReadEntries(context.Background(), j.RunID())
	if err != nil {
		t.Fatalf("ReadEntries() failed: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("ReadEntries() = %#v, want empty non-nil slice", records)
	}
}

func TestReadRequest_AcrossRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		j, err := s.BeginRun(ctx, "robot", nil)
		if err != nil {
			t.Fatalf("BeginRun() failed: %v", err)
		}
		observeAll(j, moveForwardEntries()...)
	}

	records, err := s.ReadRequest(ctx, protocol.SequentialID(1).String())
	if err != nil {
		t.Fatalf("ReadRequest() failed: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("got %d records, want 6", len(records))
	}
	if records[0].RunID == records[5].RunID {
		t.Error("expected records from both runs")
	}
	for i := 1; i < 3; i++ {
		if records[i].Seq <= records[i-1].Seq {
			t.Errorf("records out of order: %+v", records[:3])
		}
	}
}
