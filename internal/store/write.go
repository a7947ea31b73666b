package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/gam3du/gam3du-sub000/internal/dispatch"
	"github.com/gam3du/gam3du-sub000/internal/event"
)

// JournalBuffer is the number of entries a journal queues ahead of its
// writer.
const JournalBuffer = 4096

// Journal appends dispatch entries for one run. It implements
// dispatch.Observer.
//
// Observe only queues the entry; a writer goroutine inserts it. Write
// failures are logged and dropped, and a full queue drops the entry, so
// the journal never stalls the dispatch loop. Close drains the queue.
type Journal struct {
	store  *Store
	runID  string
	clock  *event.Clock
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	pending chan queuedEntry
	done    chan struct{}
}

type queuedEntry struct {
	seq   int64
	entry dispatch.Entry
}

var _ dispatch.Observer = (*Journal)(nil)

// BeginRun registers a new run for the named API and returns its journal.
// The journal must be closed before the store.
func (s *Store) BeginRun(ctx context.Context, api string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, api, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs))
	`, id.String(), api)
	if err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}

	j := &Journal{
		store:   s,
		runID:   id.String(),
		clock:   event.NewClock(),
		logger:  logger,
		pending: make(chan queuedEntry, JournalBuffer),
		done:    make(chan struct{}),
	}
	go j.drain()
	return j, nil
}

// RunID identifies the run this journal writes to.
func (j *Journal) RunID() string {
	return j.runID
}

// Observe queues e for writing. It never blocks.
func (j *Journal) Observe(e dispatch.Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		j.logger.Warn("journal closed, entry dropped",
			"run_id", j.runID,
			"request_id", e.ID.String(),
			"kind", string(e.Kind))
		return
	}

	select {
	case j.pending <- queuedEntry{seq: j.clock.Next(), entry: e}:
	default:
		j.logger.Error("journal queue full, entry dropped",
			"run_id", j.runID,
			"request_id", e.ID.String(),
			"kind", string(e.Kind))
	}
}

// Close stops accepting entries and waits until every queued entry has
// been written. It is safe to call more than once.
func (j *Journal) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.pending)
	}
	j.mu.Unlock()
	<-j.done
}

func (j *Journal) drain() {
	defer close(j.done)
	for q := range j.pending {
		if err := j.insert(context.Background(), q.seq, q.entry); err != nil {
			j.logger.Error("journal write failed",
				"run_id", j.runID,
				"request_id", q.entry.ID.String(),
				"kind", string(q.entry.Kind),
				"error", err)
		}
	}
}

// Write appends e synchronously with the next sequence number.
func (j *Journal) Write(ctx context.Context, e dispatch.Entry) error {
	return j.insert(ctx, j.clock.Next(), e)
}

func (j *Journal) insert(ctx context.Context, seq int64, e dispatch.Entry) error {
	payload := "null"
	switch e.Kind {
	case dispatch.EntryRequest:
		payload = marshalValues(e.Arguments)
	case dispatch.EntryResponse:
		payload = marshalValue(e.Result)
	}

	_, err := j.store.db.ExecContext(ctx, `
		INSERT INTO entries
		(run_id, seq, tick, kind, endpoint, request_id, command, payload, code, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		j.runID,
		seq,
		int64(e.Tick),
		string(e.Kind),
		e.Endpoint,
		e.ID.String(),
		string(e.Command),
		payload,
		string(e.Code),
		e.Message,
	)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}
