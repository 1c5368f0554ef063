package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0"},
		{5 * time.Second, "5"},
		{5001 * time.Millisecond, "5.001"},
		{12300 * time.Millisecond, "12.3"},
		{1500*time.Microsecond + 5*time.Second, "5.001"}, // sub-millisecond is truncated
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatElapsed(tt.d), "duration %v", tt.d)
	}
}

func TestParseElapsed_Inverse(t *testing.T) {
	for _, ms := range []int64{0, 1, 999, 5000, 5001, 40123} {
		d := time.Duration(ms) * time.Millisecond
		got, err := ParseElapsed(FormatElapsed(d))
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	_, err := ParseElapsed("soon")
	assert.Error(t, err)
}

func TestLogRecord_Line(t *testing.T) {
	rec := LogRecord{Tag: TagCallStarted, Value: 1, Elapsed: 5 * time.Second}
	assert.Equal(t, "CS\t1\t5\n", rec.Line())

	end := LogRecord{Tag: TagSessionEnded, Value: OutcomeGaveUp, Elapsed: 40 * time.Second}
	assert.Equal(t, "SE\t-1\t40\n", end.Line())

	raw := LogRecord{Tag: TagSoundFeatures, Raw: "[0.5,2]", IsRaw: true, Elapsed: 7250 * time.Millisecond}
	assert.Equal(t, "SF\t[0.5,2]\t7.25\n", raw.Line())
}
