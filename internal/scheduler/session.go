package scheduler

import (
	"time"
)

// Session is a snapshot of the running session's state.
type Session struct {
	StartTime time.Time
	// Iteration counts completed stimulus presentations.
	Iteration int
	// SuccessCount counts success signals since the last stimulus completed.
	SuccessCount int
	// Presenting is set while a requested stimulus has not completed.
	Presenting bool
	// Ended is set once the session-ended event has been published.
	Ended        bool
	Outcome      int64
	LastStimulus time.Time
	LastSuccess  time.Time
	LogPath      string
}

// SessionInfo describes a session after it has been stopped.
type SessionInfo struct {
	Number    int
	StartTime time.Time
	StopTime  time.Time
	LogPath   string
	Records   int64
	// Outcome is ir.OutcomeSuccess, ir.OutcomeGaveUp, or 0 when the session
	// was stopped before it ended.
	Outcome int64
}
