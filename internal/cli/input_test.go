package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rtn/internal/ir"
	"github.com/roach88/rtn/internal/scheduler"
)

func TestParseInput(t *testing.T) {
	events := scheduler.DefaultEvents("")
	now := time.UnixMilli(1396434600000)

	tests := []struct {
		line    string
		event   string
		payload ir.Value
	}{
		{"touch", events.Trigger, ir.Int(1)},
		{"  face  ", events.SuccessSignal, ir.NewArray(ir.Int(1396434600000), ir.Object{"faces": ir.Int(1)})},
		{"face-invalid", events.SuccessSignal, ir.NewArray()},
		{"sound Artikulirano", events.Classification, ir.NewArray(ir.String("Artikulirano"))},
		{"sound Neartikulirano 0.5 12", events.Classification,
			ir.NewArray(ir.String("Neartikulirano"), ir.Float(0.5), ir.Float(12))},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			in, err := parseInput(events, tt.line, now)
			require.NoError(t, err)
			assert.Equal(t, tt.event, in.Event)
			assert.Equal(t, tt.payload, in.Payload)
			assert.False(t, in.Quit)
		})
	}
}

func TestParseInput_QuitAndBlank(t *testing.T) {
	events := scheduler.DefaultEvents("")

	in, err := parseInput(events, "quit", time.Time{})
	require.NoError(t, err)
	assert.True(t, in.Quit)

	for _, line := range []string{"", "   ", "# comment"} {
		in, err := parseInput(events, line, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, hostInput{}, in)
	}
}

func TestParseInput_Errors(t *testing.T) {
	events := scheduler.DefaultEvents("")

	for _, line := range []string{"sound", "sound Artikulirano loud", "wave"} {
		t.Run(line, func(t *testing.T) {
			_, err := parseInput(events, line, time.Time{})
			require.Error(t, err)
		})
	}
}
