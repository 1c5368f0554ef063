package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rtn/internal/ir"
)

func newManualBus(t *testing.T, events ...string) *Bus {
	t.Helper()
	b := New(WithMode(ModeManual))
	for _, e := range events {
		require.NoError(t, b.Declare(e))
	}
	return b
}

func TestPublish_RequiresDeclaration(t *testing.T) {
	b := New(WithMode(ModeManual))

	err := b.Publish("EndSession", ir.Int(1))
	require.ErrorIs(t, err, ErrUndeclared)

	require.NoError(t, b.Declare("EndSession"))
	require.NoError(t, b.Publish("EndSession", ir.Int(1)))
	assert.Equal(t, 1, b.Pending())
}

func TestDeclare_RejectsEmptyName(t *testing.T) {
	b := New()
	assert.Error(t, b.Declare(""))
}

func TestSubscribe_Validation(t *testing.T) {
	b := New()
	assert.Error(t, b.Subscribe("", "h", func(Event) {}))
	assert.Error(t, b.Subscribe("e", "", func(Event) {}))
	assert.Error(t, b.Subscribe("e", "h", nil))
}

func TestFlush_DeliversInPublishOrder(t *testing.T) {
	b := newManualBus(t, "A", "B")

	var got []string
	require.NoError(t, b.Subscribe("A", "h", func(ev Event) { got = append(got, ev.Name) }))
	require.NoError(t, b.Subscribe("B", "h", func(ev Event) { got = append(got, ev.Name) }))

	require.NoError(t, b.Publish("B", nil))
	require.NoError(t, b.Publish("A", nil))
	require.NoError(t, b.Publish("B", nil))

	assert.Equal(t, 3, b.Flush())
	assert.Equal(t, []string{"B", "A", "B"}, got)
	assert.Equal(t, 0, b.Pending())
}

func TestFlush_DrainsCascadingPublishes(t *testing.T) {
	b := newManualBus(t, "CallChild", "ChildCalled")

	var completed []ir.Value
	require.NoError(t, b.Subscribe("CallChild", "presenter", func(ev Event) {
		require.NoError(t, b.Publish("ChildCalled", ev.Payload))
	}))
	require.NoError(t, b.Subscribe("ChildCalled", "scheduler", func(ev Event) {
		completed = append(completed, ev.Payload)
	}))

	require.NoError(t, b.Publish("CallChild", ir.Int(2)))
	assert.Equal(t, 2, b.Flush())
	assert.Equal(t, []ir.Value{ir.Int(2)}, completed)
}

func TestDelivery_SkipsUnsubscribedHandler(t *testing.T) {
	b := newManualBus(t, "FaceDetected")

	calls := 0
	require.NoError(t, b.Subscribe("FaceDetected", "scheduler", func(Event) { calls++ }))
	require.NoError(t, b.Publish("FaceDetected", nil))

	// Unsubscribed between publish and delivery
	require.NoError(t, b.Unsubscribe("FaceDetected", "scheduler"))
	assert.Equal(t, 0, b.Flush())
	assert.Equal(t, 0, calls)
}

func TestSelfUnsubscribe_DropsReentrantDelivery(t *testing.T) {
	b := newManualBus(t, "FaceDetected")

	calls := 0
	var handler Handler
	handler = func(ev Event) {
		calls++
		require.NoError(t, b.Unsubscribe("FaceDetected", "scheduler"))
		// Published while unsubscribed: the pair is resubscribed before the
		// flush reaches it, so it is delivered afterwards rather than nested.
		if calls == 1 {
			require.NoError(t, b.Publish("FaceDetected", nil))
		}
		require.NoError(t, b.Subscribe("FaceDetected", "scheduler", handler))
	}
	require.NoError(t, b.Subscribe("FaceDetected", "scheduler", handler))

	require.NoError(t, b.Publish("FaceDetected", nil))
	b.Flush()
	assert.Equal(t, 2, calls)
	assert.True(t, b.Subscribed("FaceDetected", "scheduler"))
}

func TestSubscribe_ReplacesExistingHandler(t *testing.T) {
	b := newManualBus(t, "E")

	var which string
	require.NoError(t, b.Subscribe("E", "h", func(Event) { which = "first" }))
	require.NoError(t, b.Subscribe("E", "h", func(Event) { which = "second" }))
	assert.Equal(t, 1, b.SubscriptionCount())

	require.NoError(t, b.Publish("E", nil))
	b.Flush()
	assert.Equal(t, "second", which)
}

func TestUnsubscribe_NotSubscribedIsNoop(t *testing.T) {
	b := New()
	assert.NoError(t, b.Unsubscribe("E", "h"))
	assert.Equal(t, 0, b.SubscriptionCount())
}

func TestClosedBus_RejectsOperations(t *testing.T) {
	b := newManualBus(t, "E")
	b.Close()

	assert.ErrorIs(t, b.Declare("F"), ErrClosed)
	assert.ErrorIs(t, b.Subscribe("E", "h", func(Event) {}), ErrClosed)
	assert.ErrorIs(t, b.Unsubscribe("E", "h"), ErrClosed)
	assert.ErrorIs(t, b.Publish("E", nil), ErrClosed)
}

func TestRun_RejectsManualMode(t *testing.T) {
	b := New(WithMode(ModeManual))
	assert.Error(t, b.Run(context.Background()))
}

func TestRun_AsyncDeliversConcurrently(t *testing.T) {
	b := New()
	require.NoError(t, b.Declare("FaceDetected"))
	require.NoError(t, b.Declare("ChildCalled"))

	// Two handlers on different events must be able to run at the same time.
	release := make(chan struct{})
	var entered sync.WaitGroup
	entered.Add(2)
	for _, ev := range []string{"FaceDetected", "ChildCalled"} {
		require.NoError(t, b.Subscribe(ev, "scheduler", func(Event) {
			entered.Done()
			<-release
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.NoError(t, b.Publish("FaceDetected", nil))
	require.NoError(t, b.Publish("ChildCalled", nil))

	waited := make(chan struct{})
	go func() {
		entered.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers did not run concurrently")
	}

	close(release)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_WaitsForInflightDeliveries(t *testing.T) {
	b := New()
	require.NoError(t, b.Declare("E"))

	var finished atomic.Bool
	started := make(chan struct{})
	require.NoError(t, b.Subscribe("E", "slow", func(Event) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.NoError(t, b.Publish("E", nil))
	<-started
	cancel()
	<-done
	assert.True(t, finished.Load(), "Run returned before the delivery finished")
}

func TestRun_ReturnsWhenClosed(t *testing.T) {
	b := New()
	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	b.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestEventSeq_Increasing(t *testing.T) {
	b := newManualBus(t, "E")

	var seqs []int64
	require.NoError(t, b.Subscribe("E", "h", func(ev Event) { seqs = append(seqs, ev.Seq) }))
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish("E", ir.Int(int64(i))))
	}
	b.Flush()
	assert.Equal(t, []int64{1, 2, 3}, seqs)
}
