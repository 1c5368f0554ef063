// Package harness runs the routine deterministically from YAML scenarios.
//
// A scenario wires the real scheduler and presenter to a manually flushed
// bus, a fake clock and recording effectors, injects timed signals and
// collects the resulting session logs.
//
// # Scenario Format
//
//	name: responds_after_first_call
//	description: "Child looks up twice after the first call"
//	policy:
//	  success_threshold: 2
//	duration_ms: 8000
//	signals:
//	  - { at_ms: 0, type: trigger }
//	  - { at_ms: 5500, type: face }
//	  - { at_ms: 6000, type: classify, label: Artikulirano, features: [0.5] }
//	assertions:
//	  - { type: outcome, outcome: responded }
//	  - { type: log_count, tag: FD, count: 2 }
//
// # Timing
//
// The clock starts at testutil.Epoch. For every tick time t (multiples of
// the tick interval up to duration_ms), signals with at_ms <= t are injected
// at their own offsets and flushed, then the clock moves to t, the
// scheduler ticks once and the bus is flushed again. The same scenario
// therefore always produces the same logs.
//
// # Golden Files
//
// RunWithGolden compares the session transcript with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
