package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// IDGenerator generates archive session IDs.
// Implemented by UUIDv7Generator (production) and testutil.SequentialIDGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// Store is the SQLite session archive. One archive may hold sessions from
// many hosts; a session is identified by the hash of its log content.
type Store struct {
	db  *sql.DB
	ids IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the session ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// pragma is a connection setting applied on open. Value is what
// "PRAGMA name" reports once applied.
type pragma struct {
	name  string
	set   string
	value string
}

var pragmas = []pragma{
	{name: "journal_mode", set: "WAL", value: "wal"}, // reports stay readable while the host archives
	{name: "synchronous", set: "NORMAL", value: "1"},
	{name: "busy_timeout", set: "5000", value: "5000"},
	{name: "foreign_keys", set: "ON", value: "1"}, // records cascade with their session
}

// migration upgrades the archive from version-1 to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order on top of schema.sql. PRAGMA user_version holds
// the last applied version.
var migrations = []migration{
	{
		version: 1,
		name:    "lookup indexes",
		stmt: `
			CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
			CREATE INDEX IF NOT EXISTS idx_records_tag ON records(tag);`,
	},
	{
		version: 2,
		name:    "session stats view",
		stmt: `
			CREATE VIEW IF NOT EXISTS session_stats AS
			SELECT
				COUNT(*)                                               AS sessions,
				COALESCE(SUM(outcome = 1), 0)                          AS responded,
				COALESCE(SUM(outcome = -1), 0)                         AS no_response,
				COALESCE(SUM(outcome = 0), 0)                          AS incomplete,
				AVG(CASE WHEN outcome = 1 THEN response_latency_ms END) AS mean_latency_ms,
				AVG(calls + phrases)                                   AS mean_stimuli
			FROM sessions;`,
	},
}

// schemaVersion is the version a freshly opened archive ends at.
func schemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Open creates or opens the archive at path and brings its schema up to
// date. Opening an up-to-date archive changes nothing.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to archive: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.set)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %s: %w", p.name, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, ids: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	slog.Debug("archive opened", "path", path, "schema_version", schemaVersion())
	return s, nil
}

// Close closes the archive.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate applies every migration newer than user_version, each in its own
// transaction together with the version bump.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: set user_version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		version = m.version
	}
	return nil
}

// verifyPragma checks that a pragma reports the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
