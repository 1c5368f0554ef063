// Package presenter is the interface side of the routine: it waits for the
// trigger, starts a session, plays each requested stimulus and re-arms when
// the session ends.
//
// States:
//
//	Idle --Arm--> Armed --trigger--> InSession --session ended--> Armed
//	any --Disarm--> Idle
package presenter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/rtn/internal/bus"
	"github.com/roach88/rtn/internal/effector"
	"github.com/roach88/rtn/internal/ir"
	"github.com/roach88/rtn/internal/scheduler"
)

const handlerID = "presenter"

// DefaultFade is the indicator transition time.
const DefaultFade = 1500 * time.Millisecond

// State is the presenter's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateInSession
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateInSession:
		return "in-session"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Starter starts a session. Implemented by *scheduler.Scheduler.
type Starter interface {
	Start(ctx context.Context) error
}

// Presenter reacts to the trigger and stimulus events.
//
// Thread-safety: Arm, Disarm and State are safe from any goroutine. Handlers
// run on bus goroutines.
type Presenter struct {
	bus     bus.PubSub
	eff     effector.Effector
	starter Starter
	events  scheduler.Events
	fade    time.Duration

	mu       sync.Mutex
	state    State
	ctx      context.Context
	sessions int
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithFade sets the indicator transition time. Default: DefaultFade.
func WithFade(d time.Duration) Option {
	return func(p *Presenter) {
		p.fade = d
	}
}

// New creates an idle presenter.
func New(b bus.PubSub, eff effector.Effector, starter Starter, events scheduler.Events, opts ...Option) *Presenter {
	p := &Presenter{
		bus:     b,
		eff:     eff,
		starter: starter,
		events:  events,
		fade:    DefaultFade,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Arm subscribes to the trigger. ctx is used for every effector call and
// session start until Disarm.
func (p *Presenter) Arm(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return fmt.Errorf("arm: presenter is %s", p.state)
	}
	if err := p.bus.Subscribe(p.events.Trigger, handlerID, p.onTrigger); err != nil {
		return fmt.Errorf("arm: %w", err)
	}
	p.ctx = ctx
	p.state = StateArmed
	slog.Info("presenter armed", "trigger", p.events.Trigger)
	return nil
}

// Disarm unsubscribes every presenter handler. A running session is not
// stopped. Disarming an idle presenter is a no-op.
func (p *Presenter) Disarm() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateIdle {
		return nil
	}
	for _, event := range []string{p.events.Trigger, p.events.PresentStimulus, p.events.SessionEnded} {
		if err := p.bus.Unsubscribe(event, handlerID); err != nil {
			return fmt.Errorf("disarm: %w", err)
		}
	}
	p.state = StateIdle
	slog.Info("presenter disarmed")
	return nil
}

// State returns the current state.
func (p *Presenter) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Sessions returns the number of sessions that ran to their end.
func (p *Presenter) Sessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions
}

func (p *Presenter) onTrigger(ev bus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateArmed {
		return
	}
	p.unsubscribe(p.events.Trigger)
	p.subscribe(p.events.PresentStimulus, p.onPresentStimulus)
	p.subscribe(p.events.SessionEnded, p.onSessionEnded)

	slog.Info("trigger received", "event", ev.Name, "seq", ev.Seq)
	p.indicate(effector.ColorGreen)

	if err := p.starter.Start(p.ctx); err != nil {
		slog.Error("session start failed", "error", err)
		p.indicate(effector.ColorRed)
		p.unsubscribe(p.events.PresentStimulus)
		p.unsubscribe(p.events.SessionEnded)
		p.subscribe(p.events.Trigger, p.onTrigger)
		return
	}

	p.state = StateInSession
	if err := p.bus.Publish(p.events.SessionStarted, ir.Int(1)); err != nil {
		slog.Error("publish failed", "event", p.events.SessionStarted, "error", err)
	}
}

// onPresentStimulus plays the requested stimulus and reports completion.
// Playback runs without the presenter lock so the session can end meanwhile.
func (p *Presenter) onPresentStimulus(ev bus.Event) {
	p.mu.Lock()
	if p.state != StateInSession {
		p.mu.Unlock()
		return
	}
	p.unsubscribe(ev.Name)
	ctx := p.ctx
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.state == StateInSession {
			p.subscribe(ev.Name, p.onPresentStimulus)
		}
	}()

	v, err := ir.AsInt(ev.Payload)
	if err != nil {
		slog.Error("invalid stimulus payload", "event", ev.Name, "error", err)
		return
	}
	tier, ok := ir.TierFromPayload(v)
	if !ok {
		slog.Error("unknown stimulus tier", "event", ev.Name, "value", v)
		return
	}

	if err := p.eff.PresentStimulus(ctx, tier); err != nil {
		// Completion is still reported so the session keeps its cadence
		slog.Error("present stimulus failed", "tier", tier.String(), "error", err)
	}

	if err := p.bus.Publish(p.events.StimulusComplete, ir.Int(v)); err != nil {
		slog.Error("publish failed", "event", p.events.StimulusComplete, "error", err)
	}
}

func (p *Presenter) onSessionEnded(ev bus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateInSession {
		return
	}
	p.unsubscribe(p.events.SessionEnded)
	p.unsubscribe(p.events.PresentStimulus)

	outcome, _ := ir.AsInt(ev.Payload)
	slog.Info("session ended", "outcome", outcome)
	p.indicate(effector.ColorBlue)

	p.sessions++
	p.state = StateArmed
	p.subscribe(p.events.Trigger, p.onTrigger)
}

func (p *Presenter) indicate(c effector.Color) {
	if err := p.eff.Indicate(p.ctx, c, p.fade); err != nil {
		slog.Warn("indicate failed", "color", c.String(), "error", err)
	}
}

func (p *Presenter) subscribe(event string, h bus.Handler) {
	if err := p.bus.Subscribe(event, handlerID, h); err != nil {
		slog.Error("subscribe failed", "event", event, "error", err)
	}
}

func (p *Presenter) unsubscribe(event string) {
	if err := p.bus.Unsubscribe(event, handlerID); err != nil {
		slog.Warn("unsubscribe failed", "event", event, "error", err)
	}
}
