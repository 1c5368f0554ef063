// Package effector defines the capabilities the routine drives in the outside
// world - audio playback, the visual indicator and the sound classifier - and
// provides host implementations of them.
package effector

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/rtn/internal/ir"
)

// Color is a 0xRRGGBB indicator color.
type Color uint32

// Indicator colors used by the presenter.
const (
	ColorGreen Color = 0x00FF00 // session started
	ColorBlue  Color = 0x0000FF // session ended
	ColorRed   Color = 0xFF0000 // session could not start
)

// String renders the color as #RRGGBB.
func (c Color) String() string {
	return fmt.Sprintf("#%06X", uint32(c))
}

// Effector plays stimuli and drives the visual indicator.
type Effector interface {
	// PresentStimulus plays the pre-recorded asset for tier. It returns when
	// playback has finished.
	PresentStimulus(ctx context.Context, tier ir.Tier) error
	// Indicate fades the indicator to color over d without blocking.
	Indicate(ctx context.Context, color Color, d time.Duration) error
}

// ClassifierParams is the opaque sound-classifier configuration.
type ClassifierParams struct {
	VolumeGate  int `json:"volume_gate" yaml:"volume_gate"`
	FrameCount  int `json:"frame_count" yaml:"frame_count"`
	BufferCount int `json:"buffer_count" yaml:"buffer_count"`
	SampleRate  int `json:"sample_rate" yaml:"sample_rate"`
	Channel     int `json:"channel" yaml:"channel"`
	BufferSize  int `json:"buffer_size" yaml:"buffer_size"`
}

// DefaultClassifierParams returns the parameters the routine was tuned with.
func DefaultClassifierParams() ClassifierParams {
	return ClassifierParams{
		VolumeGate:  6000,
		FrameCount:  10,
		BufferCount: 3,
		SampleRate:  16000,
		Channel:     3,
		BufferSize:  8192 * 2,
	}
}

// Classifier toggles the external sound classifier.
type Classifier interface {
	Start(ctx context.Context, params ClassifierParams) error
	Stop(ctx context.Context) error
}
