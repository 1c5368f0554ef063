package sessionlog

import (
	"time"

	"github.com/roach88/rtn/internal/ir"
)

// Summary is the per-session digest used by inspect, report and the archive.
type Summary struct {
	Records         int           `json:"records"`
	Calls           int           `json:"calls"`
	Phrases         int           `json:"phrases"`
	Completed       int           `json:"completed"`
	Faces           int           `json:"faces"`
	Classifications int           `json:"classifications"`
	Articulated     int           `json:"articulated"`
	Ended           bool          `json:"ended"`
	Outcome         int64         `json:"outcome"` // ir.OutcomeSuccess, ir.OutcomeGaveUp, or 0 if not ended
	Duration        time.Duration `json:"duration"`
	// ResponseLatency is the time from the last stimulus to a successful end.
	ResponseLatency time.Duration `json:"response_latency,omitempty"`
}

// Summarize digests a session's records.
func Summarize(records []ir.LogRecord) Summary {
	s := Summary{Records: len(records)}
	var lastStimulus time.Duration
	for _, r := range records {
		switch r.Tag {
		case ir.TagCallStarted:
			s.Calls++
			lastStimulus = r.Elapsed
		case ir.TagPhraseStarted:
			s.Phrases++
			lastStimulus = r.Elapsed
		case ir.TagCallEnded:
			s.Completed++
		case ir.TagFaceDetected:
			s.Faces++
		case ir.TagSoundClassified:
			s.Classifications++
			if r.Value == 1 {
				s.Articulated++
			}
		case ir.TagSessionEnded:
			if !s.Ended {
				s.Ended = true
				s.Outcome = r.Value
				if r.Value == ir.OutcomeSuccess {
					s.ResponseLatency = r.Elapsed - lastStimulus
				}
			}
		}
		if r.Elapsed > s.Duration {
			s.Duration = r.Elapsed
		}
	}
	return s
}

// OutcomeString renders an outcome code for humans.
func OutcomeString(outcome int64) string {
	switch outcome {
	case ir.OutcomeSuccess:
		return "responded"
	case ir.OutcomeGaveUp:
		return "no response"
	default:
		return "incomplete"
	}
}
