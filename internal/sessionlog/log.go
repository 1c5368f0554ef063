// Package sessionlog records the timestamped event log of one session.
//
// The log is an append-only text file, one record per line:
//
//	tag<TAB>value<TAB>secondsSinceSessionStart
//
// Writes are serialized by an internal mutex so concurrent callers never
// interleave partial lines. The log mutex is always the innermost lock in the
// process: callers may hold their own locks while appending.
package sessionlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roach88/rtn/internal/clock"
	"github.com/roach88/rtn/internal/ir"
)

var (
	// ErrClosed is returned when appending to a log that is not open.
	ErrClosed = errors.New("session log closed")

	// ErrAlreadyOpen is returned when opening a log that is already open.
	ErrAlreadyOpen = errors.New("session log already open")
)

// Log is the append-only, thread-safe session recorder.
//
// Elapsed stamps are strictly increasing: a record whose millisecond stamp
// would not exceed the previous record's is stamped 1ms after it.
type Log struct {
	mu    sync.Mutex
	clock clock.Clock
	seq   *clock.Sequence

	file  *os.File
	path  string
	start time.Time
	last  time.Duration
}

// New creates a closed log that stamps records with c.
func New(c clock.Clock) *Log {
	if c == nil {
		c = clock.System{}
	}
	return &Log{
		clock: c,
		seq:   clock.NewSequence(),
		last:  -1,
	}
}

// Open creates (or truncates) the file at path and makes start the origin
// for elapsed stamps. Parent directories are created as needed.
func (l *Log) Open(path string, start time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return fmt.Errorf("open %s: %w", path, ErrAlreadyOpen)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}

	l.file = f
	l.path = path
	l.start = start
	l.last = -1
	l.seq.Reset()
	return nil
}

// Append writes a "tag\tvalue\tseconds" record.
func (l *Log) Append(tag string, value int64) (ir.LogRecord, error) {
	return l.write(ir.LogRecord{Tag: tag, Value: value})
}

// AppendRaw writes a record whose value column is the canonical rendering of
// payload. Used for classifier feature vectors.
func (l *Log) AppendRaw(tag string, payload ir.Value) (ir.LogRecord, error) {
	raw, err := ir.Render(payload)
	if err != nil {
		return ir.LogRecord{}, fmt.Errorf("render %s payload: %w", tag, err)
	}
	return l.write(ir.LogRecord{Tag: tag, Raw: raw, IsRaw: true})
}

func (l *Log) write(rec ir.LogRecord) (ir.LogRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return ir.LogRecord{}, fmt.Errorf("append %s: %w", rec.Tag, ErrClosed)
	}

	elapsed := l.clock.Now().Sub(l.start).Truncate(time.Millisecond)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed <= l.last {
		elapsed = l.last + time.Millisecond
	}

	rec.Elapsed = elapsed
	rec.Seq = l.seq.Next()

	if _, err := l.file.WriteString(rec.Line()); err != nil {
		return ir.LogRecord{}, fmt.Errorf("append %s: %w", rec.Tag, err)
	}

	l.last = elapsed
	return rec, nil
}

// Close flushes and closes the file. Closing a log that is not open is a no-op.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	l.file = nil

	if closeErr != nil {
		return fmt.Errorf("close session log: %w", closeErr)
	}
	if syncErr != nil {
		return fmt.Errorf("sync session log: %w", syncErr)
	}
	return nil
}

// IsOpen reports whether the log currently accepts records.
func (l *Log) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file != nil
}

// Path returns the path of the current or most recently opened file.
func (l *Log) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Records returns the number of records written since the last Open.
func (l *Log) Records() int64 {
	return l.seq.Current()
}

// FileName builds the log path for a session started at t:
// dir/YYYY_M_D_HHMMSS_name.txt.
func FileName(dir, name string, t time.Time) string {
	base := fmt.Sprintf("%d_%d_%d_%02d%02d%02d_%s.txt",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), name)
	return filepath.Join(dir, base)
}

// ParseFileName recovers the session name and start time from a path built
// by FileName. The time is interpreted in loc.
func ParseFileName(path string, loc *time.Location) (string, time.Time, error) {
	base := strings.TrimSuffix(filepath.Base(path), ".txt")
	parts := strings.SplitN(base, "_", 5)
	if len(parts) != 5 || parts[4] == "" {
		return "", time.Time{}, fmt.Errorf("session log name %q: expected YYYY_M_D_HHMMSS_name.txt", filepath.Base(path))
	}
	t, err := time.ParseInLocation("2006_1_2_150405", strings.Join(parts[:4], "_"), loc)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session log name %q: %w", filepath.Base(path), err)
	}
	return parts[4], t, nil
}
