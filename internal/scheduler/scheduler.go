package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/rtn/internal/bus"
	"github.com/roach88/rtn/internal/clock"
	"github.com/roach88/rtn/internal/effector"
	"github.com/roach88/rtn/internal/ir"
	"github.com/roach88/rtn/internal/sessionlog"
)

// handlerID is the subscriber identity of every scheduler handler.
const handlerID = "scheduler"

// Scheduler owns one session at a time.
//
// Thread-safety model:
//   - Start, Stop: safe from any goroutine, including bus handlers
//   - Step: manual mode only, one goroutine at a time
//   - Snapshot, Sessions, Active: safe from any goroutine
type Scheduler struct {
	bus        bus.PubSub
	classifier effector.Classifier
	clock      clock.Clock
	log        *sessionlog.Log
	policy     Policy
	manual     bool
	closeHook  func(SessionInfo)

	lifecycle sync.Mutex // Serializes Start and Stop

	mu       sync.Mutex // Guards everything below
	session  *Session
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	sessions int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the wall clock. Default: clock.System.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithPolicy replaces the default policy.
func WithPolicy(p Policy) Option {
	return func(s *Scheduler) {
		s.policy = p
	}
}

// WithManualTick disables the loop goroutine. Ticks run only when Step is
// called. Used by the simulation harness and tests.
func WithManualTick() Option {
	return func(s *Scheduler) {
		s.manual = true
	}
}

// WithCloseHook registers fn to run after every session is stopped and its
// log is closed. fn runs on the goroutine that called Stop.
func WithCloseHook(fn func(SessionInfo)) Option {
	return func(s *Scheduler) {
		s.closeHook = fn
	}
}

// New creates an idle scheduler publishing on b and toggling cls.
func New(b bus.PubSub, cls effector.Classifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		bus:        b,
		classifier: cls,
		clock:      clock.System{},
		policy:     DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = sessionlog.New(s.clock)
	return s
}

// Policy returns the scheduler's policy.
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// Start begins a new session.
//
// It opens the session log, subscribes the signal handlers, starts the
// classifier and launches the tick loop. On any failure everything done so
// far is rolled back and no session is active. ctx bounds the startup calls
// only; the session runs until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return newActiveError()
	}
	if err := s.policy.Validate(); err != nil {
		serr := newPolicyError(err)
		slog.Error("session start failed", "error", serr)
		return serr
	}

	now := s.clock.Now()
	path := sessionlog.FileName(s.policy.LogDir, s.policy.SessionName, now)
	if err := s.log.Open(path, now); err != nil {
		serr := newLogError(path, err)
		slog.Error("session start failed", "error", serr)
		return serr
	}

	if err := s.subscribeAll(); err != nil {
		s.rollback()
		serr := newConnectionError("subscribe to signals", err)
		slog.Error("session start failed", "error", serr)
		return serr
	}

	if err := s.classifier.Start(ctx, s.policy.Classifier); err != nil {
		s.rollback()
		serr := newConnectionError("start classifier", err)
		slog.Error("session start failed", "error", serr)
		return serr
	}

	s.sessions++
	s.session = &Session{
		StartTime:   now,
		LastSuccess: now,
		LogPath:     path,
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.done = make(chan struct{})

	if s.manual {
		close(s.done)
	} else {
		go s.loop(s.ctx, s.done)
	}

	slog.Info("session started",
		"session", s.sessions,
		"log", path,
		"threshold", s.policy.SuccessThreshold,
		"gate", s.policy.EscalationGate,
	)
	return nil
}

// Stop ends the current session: it cancels the tick loop, waits for it to
// exit, unsubscribes every handler, stops the classifier and closes the log.
// Stopping an idle scheduler is a no-op.
func (s *Scheduler) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.done
	cleanup := context.WithoutCancel(s.ctx)
	s.mu.Unlock()

	// The loop takes the state mutex on every tick, so it must not be held here
	cancel()
	<-done

	s.mu.Lock()
	s.unsubscribeAll()
	if err := s.classifier.Stop(cleanup); err != nil {
		slog.Error("stop classifier failed", "error", err)
	}

	sess := s.session
	info := SessionInfo{
		Number:    s.sessions,
		StartTime: sess.StartTime,
		StopTime:  s.clock.Now(),
		LogPath:   sess.LogPath,
		Records:   s.log.Records(),
		Outcome:   sess.Outcome,
	}
	err := s.log.Close()

	s.session = nil
	s.ctx, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()

	slog.Info("session stopped",
		"session", info.Number,
		"outcome", sessionlog.OutcomeString(info.Outcome),
		"records", info.Records,
		"log", info.LogPath,
	)

	if s.closeHook != nil {
		s.closeHook(info)
	}
	return err
}

// Step runs one tick synchronously. It is a no-op when no session is active.
func (s *Scheduler) Step() {
	s.tick()
}

// Active reports whether a session is running.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Snapshot returns a copy of the current session, or false when idle.
func (s *Scheduler) Snapshot() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// Sessions returns the number of sessions started so far.
func (s *Scheduler) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.policy.TickInterval)
	defer ticker.Stop()

	for {
		s.tick()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick evaluates the success and escalation gates once.
func (s *Scheduler) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session
	if sess == nil || sess.Ended {
		return
	}

	if sess.Iteration >= 1 && sess.SuccessCount >= s.policy.SuccessThreshold {
		s.end(ir.OutcomeSuccess)
		return
	}

	now := s.clock.Now()
	if now.Sub(sess.LastSuccess) < s.policy.EscalationGate ||
		now.Sub(sess.LastStimulus) < s.policy.EscalationGate {
		return
	}

	// The classifier must not hear the stimulus itself
	if err := s.classifier.Stop(s.ctx); err != nil {
		slog.Error("stop classifier failed", "error", err)
	}

	tier := ir.TierFor(sess.Iteration)
	switch tier {
	case ir.TierGiveUp:
		s.end(ir.OutcomeGaveUp)
		return
	case ir.TierName:
		s.record(ir.TagCallStarted, int64(sess.Iteration+1))
	case ir.TierPhrase:
		s.record(ir.TagPhraseStarted, int64(sess.Iteration-ir.NameCalls+1))
	}

	sess.SuccessCount = 0
	sess.Presenting = true
	s.publish(s.policy.Events.PresentStimulus, ir.Int(tier.Payload()))
	sess.LastStimulus = now

	slog.Debug("stimulus requested", "tier", tier.String(), "iteration", sess.Iteration)
}

// end logs and publishes the outcome. Caller holds mu.
func (s *Scheduler) end(outcome int64) {
	s.record(ir.TagSessionEnded, outcome)
	s.session.Ended = true
	s.session.Outcome = outcome
	s.publish(s.policy.Events.SessionEnded, ir.Int(outcome))
}

// record appends to the session log. Caller holds mu.
func (s *Scheduler) record(tag string, value int64) {
	if _, err := s.log.Append(tag, value); err != nil {
		slog.Error("session log append failed", "tag", tag, "value", value, "error", err)
	}
}

func (s *Scheduler) publish(event string, payload ir.Value) {
	if err := s.bus.Publish(event, payload); err != nil {
		slog.Error("publish failed", "event", event, "error", err)
	}
}

func (s *Scheduler) handlers() map[string]bus.Handler {
	ev := s.policy.Events
	return map[string]bus.Handler{
		ev.SuccessSignal:    s.onSuccessSignal,
		ev.StimulusComplete: s.onStimulusComplete,
		ev.Classification:   s.onClassification,
		ev.SessionEnded:     s.onSessionEnded,
	}
}

func (s *Scheduler) subscribeAll() error {
	for event, h := range s.handlers() {
		if err := s.bus.Subscribe(event, handlerID, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) unsubscribeAll() {
	for event := range s.handlers() {
		if err := s.bus.Unsubscribe(event, handlerID); err != nil {
			slog.Warn("unsubscribe failed", "event", event, "error", err)
		}
	}
}

// rollback undoes a partial Start. Caller holds mu.
func (s *Scheduler) rollback() {
	s.unsubscribeAll()
	if err := s.log.Close(); err != nil {
		slog.Warn("close session log failed", "error", err)
	}
}
