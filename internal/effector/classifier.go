package effector

import (
	"context"
	"log/slog"
	"sync"
)

// LogClassifier is a Classifier for hosts without the classification
// service. It tracks whether classification is running and logs toggles;
// classification events themselves are injected on the bus by the host.
type LogClassifier struct {
	mu      sync.Mutex
	running bool
	params  ClassifierParams
}

// Start marks classification as running with params.
func (c *LogClassifier) Start(_ context.Context, params ClassifierParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running = true
	c.params = params
	slog.Debug("classification started",
		"volume_gate", params.VolumeGate,
		"sample_rate", params.SampleRate,
		"buffer_size", params.BufferSize,
	)
	return nil
}

// Stop marks classification as stopped. Stopping twice is a no-op.
func (c *LogClassifier) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		slog.Debug("classification stopped")
	}
	c.running = false
	return nil
}

// Running reports whether classification is currently on.
func (c *LogClassifier) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
