package scheduler

import (
	"fmt"
	"time"

	"github.com/roach88/rtn/internal/bus"
	"github.com/roach88/rtn/internal/effector"
)

// Policy defaults.
const (
	DefaultSuccessThreshold = 5
	DefaultEscalationGate   = 5 * time.Second
	DefaultTickInterval     = 100 * time.Millisecond
	DefaultSessionName      = "ResponseToName"
	DefaultArticulated      = "Artikulirano"
	DefaultUnarticulated    = "Neartikulirano"
)

// Events names every bus event the routine uses.
type Events struct {
	// Owned by the routine.
	SessionStarted   string // presenter -> world, payload 1
	PresentStimulus  string // scheduler -> presenter, payload tier (1|2)
	StimulusComplete string // presenter -> scheduler, payload tier
	SessionEnded     string // scheduler -> all, payload outcome (1|-1)

	// Raised by external services.
	Trigger        string
	SuccessSignal  string
	Classification string
}

// DefaultEvents returns the routine's event names. prefix is prepended to
// the owned events only.
func DefaultEvents(prefix string) Events {
	return Events{
		SessionStarted:   prefix + "StartSession",
		PresentStimulus:  prefix + "CallChild",
		StimulusComplete: prefix + "ChildCalled",
		SessionEnded:     prefix + "EndSession",
		Trigger:          "FrontTactilTouched",
		SuccessSignal:    "FaceDetected",
		Classification:   "KlasifikacijaGovoraEvent",
	}
}

// All returns every event name in a stable order.
func (e Events) All() []string {
	return []string{
		e.SessionStarted, e.PresentStimulus, e.StimulusComplete, e.SessionEnded,
		e.Trigger, e.SuccessSignal, e.Classification,
	}
}

// Validate checks that every name is set and names are distinct.
func (e Events) Validate() error {
	seen := make(map[string]bool)
	for _, name := range e.All() {
		if name == "" {
			return fmt.Errorf("events: empty event name")
		}
		if seen[name] {
			return fmt.Errorf("events: duplicate event name %q", name)
		}
		seen[name] = true
	}
	return nil
}

// Declare declares every event on b.
func (e Events) Declare(b bus.PubSub) error {
	for _, name := range e.All() {
		if err := b.Declare(name); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}
	}
	return nil
}

// Labels maps classifier labels to SC record values.
type Labels struct {
	Articulated   string // SC 1
	Unarticulated string // SC 0
}

// Code returns the SC value for label, or false for an unknown label.
func (l Labels) Code(label string) (int64, bool) {
	switch label {
	case l.Articulated:
		return 1, true
	case l.Unarticulated:
		return 0, true
	default:
		return 0, false
	}
}

// Policy is the scheduler's parameter set. Tier boundaries are not part of
// it: they are fixed by ir.TierFor.
type Policy struct {
	SuccessThreshold int
	EscalationGate   time.Duration
	TickInterval     time.Duration

	Events     Events
	Labels     Labels
	Classifier effector.ClassifierParams

	LogDir      string
	SessionName string
}

// DefaultPolicy returns the routine's tuned parameters.
func DefaultPolicy() Policy {
	return Policy{
		SuccessThreshold: DefaultSuccessThreshold,
		EscalationGate:   DefaultEscalationGate,
		TickInterval:     DefaultTickInterval,
		Events:           DefaultEvents(""),
		Labels: Labels{
			Articulated:   DefaultArticulated,
			Unarticulated: DefaultUnarticulated,
		},
		Classifier:  effector.DefaultClassifierParams(),
		LogDir:      ".",
		SessionName: DefaultSessionName,
	}
}

// Validate rejects policies the scheduler cannot run.
func (p Policy) Validate() error {
	if p.SuccessThreshold < 1 {
		return fmt.Errorf("policy: success threshold must be >= 1, got %d", p.SuccessThreshold)
	}
	if p.EscalationGate <= 0 {
		return fmt.Errorf("policy: escalation gate must be positive, got %s", p.EscalationGate)
	}
	if p.TickInterval <= 0 {
		return fmt.Errorf("policy: tick interval must be positive, got %s", p.TickInterval)
	}
	if p.SessionName == "" {
		return fmt.Errorf("policy: session name is required")
	}
	if p.Labels.Articulated == p.Labels.Unarticulated {
		return fmt.Errorf("policy: classification labels must differ")
	}
	return p.Events.Validate()
}
