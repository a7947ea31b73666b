package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a run or entry does not exist.
var ErrNotFound = errors.New("not found")

// Run is one journaled dispatch loop lifetime.
type Run struct {
	ID  string
	API string
	Seq int64
}

// Record is one journaled entry.
//
// Payload is JSON: the argument list for request records, the result for
// response records, null otherwise.
type Record struct {
	RunID     string
	Seq       int64
	Tick      int64
	Kind      string
	Endpoint  int
	RequestID string
	Command   string
	Payload   string
	Code      string
	Message   string
}

// ReadRuns returns all runs, oldest first.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, api, seq
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.API, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns one run by id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `SELECT id, api, seq FROM runs WHERE id = ?`, id).
		Scan(&r.ID, &r.API, &r.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return r, nil
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `SELECT id, api, seq FROM runs ORDER BY seq DESC LIMIT 1`).
		Scan(&r.ID, &r.API, &r.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read latest run: %w", err)
	}
	return r, nil
}

// ReadEntries returns every record of a run in seq order.
//
// Returns an empty slice (not nil) if the run has no entries.
func (s *Store) ReadEntries(ctx context.Context, runID string) ([]Record, error) {
	return s.queryRecords(ctx, `
		SELECT run_id, seq, tick, kind, endpoint, request_id, command, payload, code, message
		FROM entries
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// ReadRequest returns the records of one request id across all runs.
func (s *Store) ReadRequest(ctx context.Context, requestID string) ([]Record, error) {
	return s.queryRecords(ctx, `
		SELECT e.run_id, e.seq, e.tick, e.kind, e.endpoint, e.request_id, e.command, e.payload, e.code, e.message
		FROM entries e
		JOIN runs r ON e.run_id = r.id
		WHERE e.request_id = ?
		ORDER BY r.seq ASC, e.seq ASC
	`, requestID)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var r Record
	err := rows.Scan(&r.RunID, &r.Seq, &r.Tick, &r.Kind, &r.Endpoint, &r.RequestID,
		&r.Command, &r.Payload, &r.Code, &r.Message)
	if err != nil {
		return Record{}, fmt.Errorf("scan entry: %w", err)
	}
	return r, nil
}
