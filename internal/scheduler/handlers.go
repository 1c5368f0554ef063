package scheduler

import (
	"log/slog"

	"github.com/roach88/rtn/internal/bus"
	"github.com/roach88/rtn/internal/ir"
)

// enter takes the state mutex and unsubscribes the handler for ev. It
// returns false, with the mutex released, when no session is active.
func (s *Scheduler) enter(ev bus.Event) bool {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		slog.Debug("signal ignored: no session", "event", ev.Name, "seq", ev.Seq)
		return false
	}
	if err := s.bus.Unsubscribe(ev.Name, handlerID); err != nil {
		slog.Warn("unsubscribe failed", "event", ev.Name, "error", err)
	}
	return true
}

// exit resubscribes h for ev and releases the state mutex.
func (s *Scheduler) exit(ev bus.Event, h bus.Handler) {
	if err := s.bus.Subscribe(ev.Name, handlerID, h); err != nil {
		slog.Error("resubscribe failed", "event", ev.Name, "error", err)
	}
	s.mu.Unlock()
}

// onSuccessSignal counts a face detection. The payload must be an array of
// at least two elements; anything else is logged and ignored.
func (s *Scheduler) onSuccessSignal(ev bus.Event) {
	if !s.enter(ev) {
		return
	}
	defer s.exit(ev, s.onSuccessSignal)

	if ir.Len(ev.Payload) < 2 {
		slog.Error("invalid success signal payload", "event", ev.Name, "seq", ev.Seq, "elements", ir.Len(ev.Payload))
		return
	}

	sess := s.session
	sess.SuccessCount++
	sess.LastSuccess = s.clock.Now()
	s.record(ir.TagFaceDetected, int64(sess.SuccessCount))
}

// onStimulusComplete advances the iteration once a stimulus has played.
// Success signals seen during playback are discarded. A completion with no
// stimulus outstanding belongs to an earlier session and is dropped.
func (s *Scheduler) onStimulusComplete(ev bus.Event) {
	if !s.enter(ev) {
		return
	}
	defer s.exit(ev, s.onStimulusComplete)

	sess := s.session
	if !sess.Presenting {
		slog.Warn("stimulus completion ignored: none outstanding", "event", ev.Name, "seq", ev.Seq)
		return
	}
	sess.Presenting = false
	sess.LastStimulus = s.clock.Now()
	sess.Iteration++
	sess.SuccessCount = 0
	s.record(ir.TagCallEnded, int64(sess.Iteration))

	if sess.Ended {
		return
	}
	if err := s.classifier.Start(s.ctx, s.policy.Classifier); err != nil {
		slog.Error("restart classifier failed", "error", err)
	}
}

// onClassification logs a sound classification. The payload is the label,
// either alone or as the first element of an array followed by features.
func (s *Scheduler) onClassification(ev bus.Event) {
	if !s.enter(ev) {
		return
	}
	defer s.exit(ev, s.onClassification)

	var label ir.Value
	var features ir.Array
	switch p := ev.Payload.(type) {
	case ir.String:
		label = p
	case ir.Array:
		if len(p) > 0 {
			label = p[0]
			features = p[1:]
		}
	}

	str, ok := label.(ir.String)
	if !ok {
		slog.Error("invalid classification payload", "event", ev.Name, "seq", ev.Seq)
		return
	}

	code, known := s.policy.Labels.Code(string(str))
	if !known {
		slog.Debug("classification label ignored", "label", string(str))
		return
	}
	s.record(ir.TagSoundClassified, code)

	if len(features) > 0 {
		if _, err := s.log.AppendRaw(ir.TagSoundFeatures, features); err != nil {
			slog.Error("session log append failed", "tag", ir.TagSoundFeatures, "error", err)
		}
	}
}

// onSessionEnded stops the session. Stop joins the loop and takes the state
// mutex itself, so the handler must not hold it.
func (s *Scheduler) onSessionEnded(ev bus.Event) {
	if !s.enter(ev) {
		return
	}
	sess := s.session
	if outcome, err := ir.AsInt(ev.Payload); err == nil && sess.Outcome == 0 {
		sess.Outcome = outcome
	}
	s.mu.Unlock()

	if err := s.Stop(); err != nil {
		slog.Error("stop session failed", "error", err)
	}
}

