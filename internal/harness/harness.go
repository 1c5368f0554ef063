package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/roach88/rtn/internal/bus"
	"github.com/roach88/rtn/internal/ir"
	"github.com/roach88/rtn/internal/presenter"
	"github.com/roach88/rtn/internal/scheduler"
	"github.com/roach88/rtn/internal/sessionlog"
	"github.com/roach88/rtn/internal/testutil"
)

// SessionResult is one session produced by a run.
type SessionResult struct {
	Info    scheduler.SessionInfo
	Records []ir.LogRecord
	Summary sessionlog.Summary
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool

	// Errors contains assertion failures.
	Errors []string

	Sessions    []SessionResult
	Stimuli     []ir.Tier
	Indications []testutil.Indication
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logDir  string
	base    scheduler.Policy
	onClose func(scheduler.SessionInfo)
}

// WithLogDir keeps the session logs in dir. By default they are written to
// a temporary directory that is removed when Run returns.
func WithLogDir(dir string) Option {
	return func(c *runConfig) {
		c.logDir = dir
	}
}

// WithCloseHook calls fn for every session as it is stopped, including a
// session cut short when Run fails.
func WithCloseHook(fn func(scheduler.SessionInfo)) Option {
	return func(c *runConfig) {
		c.onClose = fn
	}
}

// WithBasePolicy sets the policy the scenario overrides are applied to.
// Default: scheduler.DefaultPolicy().
func WithBasePolicy(p scheduler.Policy) Option {
	return func(c *runConfig) {
		c.base = p
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Build the policy from the base policy and the scenario overrides
//  2. Wire scheduler and presenter to a manual bus and a fake clock
//  3. Tick through the scenario, injecting signals at their offsets
//  4. Stop any session still running at the end
//  5. Read back every closed session log and evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{base: scheduler.DefaultPolicy()}
	for _, opt := range opts {
		opt(&cfg)
	}

	policy, err := applyOverrides(cfg.base, scenario.Policy)
	if err != nil {
		return nil, err
	}

	if cfg.logDir == "" {
		dir, err := os.MkdirTemp("", "rtn-sim-*")
		if err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		defer os.RemoveAll(dir)
		cfg.logDir = dir
	}
	policy.LogDir = cfg.logDir

	clk := testutil.NewFakeClock(time.Time{})
	b := bus.New(bus.WithMode(bus.ModeManual))
	if err := policy.Events.Declare(b); err != nil {
		return nil, err
	}

	var closed []scheduler.SessionInfo
	eff := &testutil.RecordingEffector{}
	sched := scheduler.New(b, &testutil.RecordingClassifier{},
		scheduler.WithClock(clk),
		scheduler.WithPolicy(policy),
		scheduler.WithManualTick(),
		scheduler.WithCloseHook(func(info scheduler.SessionInfo) {
			closed = append(closed, info)
			if cfg.onClose != nil {
				cfg.onClose(info)
			}
		}),
	)
	pres := presenter.New(b, eff, sched, policy.Events)

	ctx := context.Background()
	if err := pres.Arm(ctx); err != nil {
		return nil, err
	}

	duration := time.Duration(scenario.DurationMS) * time.Millisecond
	pending := scenario.Signals
	for t := time.Duration(0); t <= duration; t += policy.TickInterval {
		for len(pending) > 0 && time.Duration(pending[0].AtMS)*time.Millisecond <= t {
			sig := pending[0]
			pending = pending[1:]
			clk.Set(testutil.Epoch.Add(time.Duration(sig.AtMS) * time.Millisecond))
			if err := inject(b, policy.Events, sig); err != nil {
				// The log directory may be removed on return, so the open
				// session log must be closed first
				if serr := sched.Stop(); serr != nil {
					slog.Warn("stop session failed", "error", serr)
				}
				if derr := pres.Disarm(); derr != nil {
					slog.Warn("disarm failed", "error", derr)
				}
				return nil, err
			}
			b.Flush()
		}

		clk.Set(testutil.Epoch.Add(t))
		b.Flush()
		sched.Step()
		b.Flush()
	}

	clk.Set(testutil.Epoch.Add(duration))
	if err := sched.Stop(); err != nil {
		return nil, fmt.Errorf("stop session: %w", err)
	}
	if err := pres.Disarm(); err != nil {
		return nil, err
	}

	result := &Result{
		Pass:        true,
		Errors:      []string{},
		Stimuli:     eff.Stimuli(),
		Indications: eff.Indications(),
	}
	for _, info := range closed {
		records, err := sessionlog.ReadFile(info.LogPath)
		if err != nil {
			return nil, err
		}
		result.Sessions = append(result.Sessions, SessionResult{
			Info:    info,
			Records: records,
			Summary: sessionlog.Summarize(records),
		})
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// inject publishes the bus event for sig.
func inject(b *bus.Bus, events scheduler.Events, sig Signal) error {
	var (
		event   string
		payload ir.Value
	)
	switch sig.Type {
	case SignalTrigger:
		event, payload = events.Trigger, ir.Int(1)
	case SignalFace:
		// Face detection delivers [timestamp, face info]
		event, payload = events.SuccessSignal, ir.NewArray(ir.Int(int64(sig.AtMS)), ir.Object{"faces": ir.Int(1)})
	case SignalFaceInvalid:
		event, payload = events.SuccessSignal, ir.NewArray()
	case SignalClassify:
		arr := ir.NewArray(ir.String(sig.Label))
		for _, f := range sig.Features {
			arr = append(arr, ir.Float(f))
		}
		event, payload = events.Classification, arr
	default:
		return fmt.Errorf("unknown signal type %q", sig.Type)
	}
	if err := b.Publish(event, payload); err != nil {
		return fmt.Errorf("inject %s at %dms: %w", sig.Type, sig.AtMS, err)
	}
	return nil
}

func applyOverrides(base scheduler.Policy, o PolicyOverrides) (scheduler.Policy, error) {
	p := base
	if o.SuccessThreshold != nil {
		p.SuccessThreshold = *o.SuccessThreshold
	}
	if o.EscalationGateMS != nil {
		p.EscalationGate = time.Duration(*o.EscalationGateMS) * time.Millisecond
	}
	if o.TickIntervalMS != nil {
		p.TickInterval = time.Duration(*o.TickIntervalMS) * time.Millisecond
	}
	if err := p.Validate(); err != nil {
		return scheduler.Policy{}, fmt.Errorf("scenario policy: %w", err)
	}
	return p, nil
}

// Transcript renders every session log of a result, each preceded by a
// "# session N: outcome" header.
func Transcript(r *Result) string {
	var b strings.Builder
	for i, s := range r.Sessions {
		fmt.Fprintf(&b, "# session %d: %s\n", i+1, sessionlog.OutcomeString(s.Summary.Outcome))
		for _, rec := range s.Records {
			b.WriteString(rec.Line())
		}
	}
	return b.String()
}
