package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/rtn/internal/sessionlog"
)

// Import describes the result of ImportSession.
type Import struct {
	ID       string
	Inserted bool // false when the log was already archived
}

// ImportSession archives the session log at path.
//
// The session name and start time come from the file name when it follows
// sessionlog.FileName; otherwise the base name and the file's modification
// time are used. Importing the same content twice returns the existing ID
// with Inserted=false.
func (s *Store) ImportSession(ctx context.Context, path string) (Import, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Import{}, fmt.Errorf("import session: %w", err)
	}

	records, err := sessionlog.Read(bytes.NewReader(data))
	if err != nil {
		return Import{}, fmt.Errorf("import session %s: %w", path, err)
	}
	if err := sessionlog.Validate(records); err != nil {
		return Import{}, fmt.Errorf("import session %s: %w", path, err)
	}

	name, startedAt, err := sessionlog.ParseFileName(path, time.Local)
	if err != nil {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return Import{}, fmt.Errorf("import session: %w", statErr)
		}
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		startedAt = info.ModTime()
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	summary := sessionlog.Summarize(records)

	// Use a transaction so a session never appears without its records
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Import{}, fmt.Errorf("import session: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM sessions WHERE content_hash = ?`, hash).Scan(&existing)
	switch {
	case err == nil:
		return Import{ID: existing, Inserted: false}, nil
	case err != sql.ErrNoRows:
		return Import{}, fmt.Errorf("import session: lookup: %w", err)
	}

	id := s.ids.Generate()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions
		(id, name, log_path, content_hash, started_at, outcome, records, calls, phrases,
		 completed, faces, classifications, articulated, duration_ms, response_latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		name,
		path,
		hash,
		startedAt.UTC().Format(time.RFC3339),
		summary.Outcome,
		summary.Records,
		summary.Calls,
		summary.Phrases,
		summary.Completed,
		summary.Faces,
		summary.Classifications,
		summary.Articulated,
		summary.Duration.Milliseconds(),
		summary.ResponseLatency.Milliseconds(),
	)
	if err != nil {
		return Import{}, fmt.Errorf("import session: insert session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (session_id, seq, tag, value, raw, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Import{}, fmt.Errorf("import session: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var raw sql.NullString
		if r.IsRaw {
			raw = sql.NullString{String: r.Raw, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, r.Seq, r.Tag, r.Value, raw, r.Elapsed.Milliseconds()); err != nil {
			return Import{}, fmt.Errorf("import session: insert record %d: %w", r.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Import{}, fmt.Errorf("import session: commit: %w", err)
	}
	return Import{ID: id, Inserted: true}, nil
}

// DeleteSession removes a session and its records.
// Returns false if no session has that ID.
func (s *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return n > 0, nil
}
