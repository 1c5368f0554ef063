// Package bus provides the in-process publish/subscribe transport.
//
// Delivery is at-least-once and best effort per event name; there is no
// ordering guarantee across event names. A handler is invoked for an event
// only if its (event, handlerID) pair is still subscribed at the moment of
// delivery, so a handler that unsubscribes itself drops deliveries that
// arrive while it works.
//
// Two delivery modes exist:
//   - Async (default): Run dispatches every delivery on its own goroutine,
//     so handlers run concurrently with each other and with the publisher.
//   - Manual: nothing is delivered until Flush is called; Flush delivers
//     inline on the caller's goroutine, in publish order, until the queue is
//     empty. The simulation harness uses this for deterministic runs.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/rtn/internal/clock"
	"github.com/roach88/rtn/internal/ir"
)

var (
	// ErrClosed is returned when using a bus after Close.
	ErrClosed = errors.New("bus closed")

	// ErrUndeclared is returned when publishing an event nobody declared.
	ErrUndeclared = errors.New("event not declared")
)

// Event is one published notification.
type Event struct {
	Name    string
	Payload ir.Value
	Seq     int64 // Publish order across the whole bus
}

// Handler receives a delivered event.
type Handler func(ev Event)

// PubSub is the transport capability consumed by the scheduler and presenter.
type PubSub interface {
	Declare(event string) error
	Subscribe(event, handlerID string, h Handler) error
	Unsubscribe(event, handlerID string) error
	Publish(event string, payload ir.Value) error
}

// Mode selects how events are delivered.
type Mode int

const (
	// ModeAsync delivers each event on its own goroutine from Run.
	ModeAsync Mode = iota
	// ModeManual delivers only when Flush is called.
	ModeManual
)

type subscription struct {
	id      string
	handler Handler
}

// Bus is the in-process PubSub implementation.
//
// Thread-safety model:
//   - Declare, Subscribe, Unsubscribe, Publish: safe from any goroutine,
//     including from inside a handler
//   - Run: must be called from exactly one goroutine (async mode)
//   - Flush: must be called from one goroutine at a time (manual mode)
type Bus struct {
	mu       sync.RWMutex
	declared map[string]bool
	subs     map[string][]subscription // Subscription order is delivery order
	closed   bool

	queue *eventQueue
	seq   *clock.Sequence
	mode  Mode

	inflight sync.WaitGroup // Async deliveries started by Run
}

// Option configures a Bus.
type Option func(*Bus)

// WithMode sets the delivery mode. Default: ModeAsync.
func WithMode(m Mode) Option {
	return func(b *Bus) {
		b.mode = m
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		declared: make(map[string]bool),
		subs:     make(map[string][]subscription),
		queue:    newEventQueue(),
		seq:      clock.NewSequence(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Declare registers an event name so it can be published. Idempotent.
func (b *Bus) Declare(event string) error {
	if event == "" {
		return fmt.Errorf("declare: empty event name")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.declared[event] = true
	return nil
}

// Subscribe registers h for event under handlerID.
// Subscribing an already subscribed pair replaces its handler.
func (b *Bus) Subscribe(event, handlerID string, h Handler) error {
	if event == "" || handlerID == "" {
		return fmt.Errorf("subscribe: event and handler ID are required")
	}
	if h == nil {
		return fmt.Errorf("subscribe %s/%s: nil handler", event, handlerID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	subs := b.subs[event]
	for i := range subs {
		if subs[i].id == handlerID {
			subs[i].handler = h
			return nil
		}
	}
	b.subs[event] = append(subs, subscription{id: handlerID, handler: h})
	return nil
}

// Unsubscribe removes the (event, handlerID) pair.
// Unsubscribing a pair that is not subscribed is a no-op.
func (b *Bus) Unsubscribe(event, handlerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	subs := b.subs[event]
	for i := range subs {
		if subs[i].id == handlerID {
			b.subs[event] = append(subs[:i:i], subs[i+1:]...)
			if len(b.subs[event]) == 0 {
				delete(b.subs, event)
			}
			return nil
		}
	}
	return nil
}

// Subscribed reports whether handlerID is currently subscribed to event.
func (b *Bus) Subscribed(event, handlerID string) bool {
	_, ok := b.lookup(event, handlerID)
	return ok
}

// SubscriptionCount returns the total number of active subscriptions.
// Used for testing and diagnostics.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}

// Publish enqueues an event for delivery. It never blocks on handlers.
func (b *Bus) Publish(event string, payload ir.Value) error {
	b.mu.RLock()
	closed := b.closed
	declared := b.declared[event]
	b.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !declared {
		return fmt.Errorf("publish %s: %w", event, ErrUndeclared)
	}

	ev := Event{Name: event, Payload: payload, Seq: b.seq.Next()}
	if !b.queue.Enqueue(ev) {
		return ErrClosed
	}

	slog.Debug("event published", "event", event, "seq", ev.Seq)
	return nil
}

// Pending returns the number of events not yet dispatched.
func (b *Bus) Pending() int {
	return b.queue.Len()
}

// Run dispatches events until ctx is cancelled or the bus is closed.
// Only meaningful in ModeAsync. Before returning, Run waits for every
// delivery it started to finish.
func (b *Bus) Run(ctx context.Context) error {
	if b.mode != ModeAsync {
		return fmt.Errorf("run: bus is in manual mode")
	}
	defer b.inflight.Wait()

	for {
		if ev, ok := b.queue.TryDequeue(); ok {
			b.dispatchAsync(ev)
			continue
		}

		select {
		case <-ctx.Done():
			b.Close()
			return ctx.Err()

		case <-b.queue.Wait():
			// The signal channel closes when the queue is closed,
			// which makes this case fire immediately
			if b.isClosed() && b.queue.Len() == 0 {
				return nil
			}
		}
	}
}

// Flush delivers queued events inline until the queue is empty, including
// events published by handlers during the flush. Returns the number of
// handler invocations. Only meaningful in ModeManual.
func (b *Bus) Flush() int {
	delivered := 0
	for {
		ev, ok := b.queue.TryDequeue()
		if !ok {
			return delivered
		}
		for _, id := range b.subscriberIDs(ev.Name) {
			if b.deliver(ev, id) {
				delivered++
			}
		}
	}
}

// Close stops the bus. Further Declare, Subscribe and Publish calls fail;
// events already queued are still dispatched by a running Run loop.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.queue.Close()
}

func (b *Bus) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

func (b *Bus) dispatchAsync(ev Event) {
	for _, id := range b.subscriberIDs(ev.Name) {
		b.inflight.Add(1)
		go func(id string) {
			defer b.inflight.Done()
			b.deliver(ev, id)
		}(id)
	}
}

// deliver invokes the handler if the pair is still subscribed.
func (b *Bus) deliver(ev Event, handlerID string) bool {
	h, ok := b.lookup(ev.Name, handlerID)
	if !ok {
		slog.Debug("delivery dropped: not subscribed", "event", ev.Name, "handler", handlerID, "seq", ev.Seq)
		return false
	}
	h(ev)
	return true
}

func (b *Bus) subscriberIDs(event string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := b.subs[event]
	ids := make([]string, len(subs))
	for i, s := range subs {
		ids[i] = s.id
	}
	return ids
}

func (b *Bus) lookup(event, handlerID string) (Handler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs[event] {
		if s.id == handlerID {
			return s.handler, true
		}
	}
	return nil, false
}
