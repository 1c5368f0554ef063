// Package scheduler implements the response-to-name session scheduler.
//
// A session escalates stimuli on a fixed cadence until the child responds or
// the routine gives up:
//
//	iteration 0-4   call by name   (CS 1..5)
//	iteration 5-6   special phrase (PS 1..2)
//	iteration 7     give up        (SE -1)
//
// A stimulus is presented only when both the last stimulus and the last
// success signal are at least EscalationGate old. The session succeeds
// (SE 1) once at least one stimulus was presented and SuccessThreshold
// consecutive success signals arrived since the last one completed. Signals
// seen while a stimulus plays are discarded on completion, and a completion
// with no stimulus outstanding is dropped.
//
// Concurrency model:
//   - One loop goroutine per session runs a tick every TickInterval
//   - Signal handlers run on bus goroutines
//   - The state mutex serializes ticks and handlers
//   - The session log has its own mutex and is always the innermost lock
//   - The lifecycle mutex serializes Start and Stop and is never acquired
//     while holding the state mutex
//
// Every handler unsubscribes itself on entry and resubscribes on exit, so at
// most one delivery per event is in flight.
package scheduler
