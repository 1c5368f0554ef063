// Package store provides the SQLite session archive.
//
// Closed session logs are imported for later analysis:
//   - sessions: one row per log file with its summary
//   - records: every log line, keyed by (session_id, seq)
//
// Imports are idempotent: a log whose content hash is already archived is
// not imported again.
//
// # Ordering
//
//   - Sessions: ORDER BY started_at ASC, id ASC COLLATE BINARY
//   - Records: ORDER BY seq ASC
//
// # Schema
//
// schema.sql creates the tables; numbered migrations on top of it are
// tracked in PRAGMA user_version. Stats reads the session_stats view.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
