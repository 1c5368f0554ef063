package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/roach88/rtn/internal/effector"
	"github.com/roach88/rtn/internal/ir"
)

// ErrInjected is returned by recording fakes configured to fail.
var ErrInjected = errors.New("injected failure")

// Indication is one recorded Indicate call.
type Indication struct {
	Color    effector.Color
	Duration time.Duration
}

// RecordingEffector records every effector call.
//
// Thread-safety: safe for concurrent use.
type RecordingEffector struct {
	mu          sync.Mutex
	stimuli     []ir.Tier
	indications []Indication

	// FailStimulus makes PresentStimulus return ErrInjected after recording.
	FailStimulus bool
}

// PresentStimulus records tier.
func (e *RecordingEffector) PresentStimulus(_ context.Context, tier ir.Tier) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stimuli = append(e.stimuli, tier)
	if e.FailStimulus {
		return ErrInjected
	}
	return nil
}

// Indicate records the indication.
func (e *RecordingEffector) Indicate(_ context.Context, color effector.Color, d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indications = append(e.indications, Indication{Color: color, Duration: d})
	return nil
}

// Stimuli returns a copy of the presented tiers in order.
func (e *RecordingEffector) Stimuli() []ir.Tier {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ir.Tier(nil), e.stimuli...)
}

// Indications returns a copy of the recorded indications in order.
func (e *RecordingEffector) Indications() []Indication {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Indication(nil), e.indications...)
}

// RecordingClassifier records classifier toggles.
//
// Thread-safety: safe for concurrent use.
type RecordingClassifier struct {
	mu        sync.Mutex
	starts    int
	stops     int
	cancelled int
	running   bool
	params    effector.ClassifierParams

	// FailStart makes Start return ErrInjected without starting.
	FailStart bool

	// OnStop, when set, runs at the top of every Stop call before anything
	// is recorded. A hook that blocks holds the caller.
	OnStop func()
}

// Start records a start.
func (c *RecordingClassifier) Start(_ context.Context, params effector.ClassifierParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailStart {
		return ErrInjected
	}
	c.starts++
	c.running = true
	c.params = params
	return nil
}

// Stop records a stop, noting whether ctx was already done.
func (c *RecordingClassifier) Stop(ctx context.Context) error {
	if c.OnStop != nil {
		c.OnStop()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	if ctx.Err() != nil {
		c.cancelled++
	}
	c.running = false
	return nil
}

// Starts returns the number of successful Start calls.
func (c *RecordingClassifier) Starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

// Stops returns the number of Stop calls.
func (c *RecordingClassifier) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

// CancelledStops returns the number of Stop calls made with a done context.
func (c *RecordingClassifier) CancelledStops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Running reports whether the last call was a successful Start.
func (c *RecordingClassifier) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Params returns the parameters of the last successful Start.
func (c *RecordingClassifier) Params() effector.ClassifierParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}
