// Package store provides a SQLite-backed command journal.
//
// Every dispatch loop step (request dequeued, pending, response, error) is
// appended to the entries table under a run. A run is one process lifetime
// of a dispatch loop.
//
// # Ordering
//
//   - Entries are ordered by seq, a per-run logical clock, never by time
//   - All queries include ORDER BY seq ASC (runs: seq ASC) so reads are
//     deterministic
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
