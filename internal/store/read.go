package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/rtn/internal/ir"
	"github.com/roach88/rtn/internal/sessionlog"
)

// ErrNotFound is returned when a session ID is not archived.
var ErrNotFound = errors.New("session not found")

// Session is an archived session with its summary.
type Session struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	LogPath     string             `json:"log_path"`
	ContentHash string             `json:"content_hash"`
	StartedAt   time.Time          `json:"started_at"`
	Summary     sessionlog.Summary `json:"summary"`
}

// Stats aggregates every archived session.
type Stats struct {
	Sessions   int `json:"sessions"`
	Responded  int `json:"responded"`
	NoResponse int `json:"no_response"`
	Incomplete int `json:"incomplete"`
	// MeanLatency is the mean response latency over responded sessions.
	MeanLatency time.Duration `json:"mean_latency"`
	// MeanCalls is the mean number of stimuli over all sessions.
	MeanCalls float64 `json:"mean_calls"`
}

const sessionColumns = `
	id, name, log_path, content_hash, started_at, outcome, records, calls, phrases,
	completed, faces, classifications, articulated, duration_ms, response_latency_ms`

// ListSessions returns every archived session in start order.
// Returns an empty slice (not nil) when the archive is empty.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns one archived session.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// ReadRecords returns a session's log records in file order.
// Returns an empty slice (not nil) if the session has no records.
func (s *Store) ReadRecords(ctx context.Context, sessionID string) ([]ir.LogRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, tag, value, raw, elapsed_ms
		FROM records
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []ir.LogRecord{}
	for rows.Next() {
		var (
			rec       ir.LogRecord
			raw       sql.NullString
			elapsedMS int64
		)
		if err := rows.Scan(&rec.Seq, &rec.Tag, &rec.Value, &raw, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if raw.Valid {
			rec.Raw = raw.String
			rec.IsRaw = true
		}
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Stats aggregates the archive.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st        Stats
		latencyMS sql.NullFloat64
		calls     sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT sessions, responded, no_response, incomplete, mean_latency_ms, mean_stimuli
		FROM session_stats
	`).Scan(
		&st.Sessions, &st.Responded, &st.NoResponse, &st.Incomplete, &latencyMS, &calls,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	if latencyMS.Valid {
		st.MeanLatency = time.Duration(latencyMS.Float64 * float64(time.Millisecond))
	}
	if calls.Valid {
		st.MeanCalls = calls.Float64
	}
	return st, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess       Session
		startedAt  string
		durationMS int64
		latencyMS  int64
		sum        = &sess.Summary
	)
	err := row.Scan(
		&sess.ID, &sess.Name, &sess.LogPath, &sess.ContentHash, &startedAt,
		&sum.Outcome, &sum.Records, &sum.Calls, &sum.Phrases, &sum.Completed,
		&sum.Faces, &sum.Classifications, &sum.Articulated, &durationMS, &latencyMS,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}

	t, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return Session{}, fmt.Errorf("scan session %s: started_at: %w", sess.ID, err)
	}
	sess.StartedAt = t
	sum.Ended = sum.Outcome != 0
	sum.Duration = time.Duration(durationMS) * time.Millisecond
	sum.ResponseLatency = time.Duration(latencyMS) * time.Millisecond
	return sess, nil
}
