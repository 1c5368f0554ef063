package ir

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Log record tags written by the scheduler.
const (
	// TagCallStarted marks a call-by-name stimulus; value is the 1-based call index.
	TagCallStarted = "CS"
	// TagPhraseStarted marks a special-phrase stimulus; value is the 1-based phrase index.
	TagPhraseStarted = "PS"
	// TagCallEnded marks presentation complete; value is the new iteration count.
	TagCallEnded = "CE"
	// TagSessionEnded marks the end of a session; value is OutcomeSuccess or OutcomeGaveUp.
	TagSessionEnded = "SE"
	// TagFaceDetected marks a valid success signal; value is the consecutive count.
	TagFaceDetected = "FD"
	// TagSoundClassified marks a classification; value is the label code.
	TagSoundClassified = "SC"
	// TagSoundFeatures carries the raw classifier feature vector.
	TagSoundFeatures = "SF"
)

// Session outcomes carried by the session-ended event and the SE record.
const (
	OutcomeSuccess int64 = 1
	OutcomeGaveUp  int64 = -1
)

// LogRecord is one line of the session log.
//
// Elapsed is measured from the session start and is strictly increasing
// within one log file. Seq is the record's position in the file, starting
// at 1. Raw records carry a rendered payload instead of an integer value.
type LogRecord struct {
	Tag     string        `json:"tag"`
	Value   int64         `json:"value"`
	Raw     string        `json:"raw,omitempty"`
	IsRaw   bool          `json:"is_raw,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
	Seq     int64         `json:"seq"`
}

// Line renders the record as "tag\tvalue\tseconds\n".
func (r LogRecord) Line() string {
	var b strings.Builder
	b.WriteString(r.Tag)
	b.WriteByte('\t')
	if r.IsRaw {
		b.WriteString(r.Raw)
	} else {
		b.WriteString(strconv.FormatInt(r.Value, 10))
	}
	b.WriteByte('\t')
	b.WriteString(FormatElapsed(r.Elapsed))
	b.WriteByte('\n')
	return b.String()
}

// FormatElapsed renders a duration as seconds with millisecond resolution,
// using the shortest decimal form ("5", "5.001", "12.3").
func FormatElapsed(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Milliseconds())/1000, 'f', -1, 64)
}

// ParseElapsed is the inverse of FormatElapsed.
func ParseElapsed(s string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(math.Round(secs*1000)) * time.Millisecond, nil
}
