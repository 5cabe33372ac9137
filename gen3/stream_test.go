package gen3

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spanpanel/spanpanel-go/internal/telemetry/events"
	"github.com/spanpanel/spanpanel-go/internal/telemetry/metrics"
)

func TestRegisterCallbackInvokesOnNotify(t *testing.T) {
	c := New(Config{})
	var calls int64
	c.RegisterCallback(func() { atomic.AddInt64(&calls, 1) })

	c.notify()
	c.notify()

	assert.EqualValues(t, 2, atomic.LoadInt64(&calls))
}

func TestRegisterCallbackUnregisterStopsFutureNotifications(t *testing.T) {
	c := New(Config{})
	var calls int64
	unregister := c.RegisterCallback(func() { atomic.AddInt64(&calls, 1) })

	c.notify()
	unregister()
	c.notify()

	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestNotifyIsolatesPanickingCallback(t *testing.T) {
	c := New(Config{})
	var goodCalls int64
	c.RegisterCallback(func() { panic("boom") })
	c.RegisterCallback(func() { atomic.AddInt64(&goodCalls, 1) })

	require.NotPanics(t, func() { c.notify() })
	assert.EqualValues(t, 1, atomic.LoadInt64(&goodCalls))
}

func TestNotifyWithNoCallbacksIsNoop(t *testing.T) {
	c := New(Config{})
	require.NotPanics(t, func() { c.notify() })
}

type instantDelayer struct{}

func (instantDelayer) Delay(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
		return nil
	}
}

type fakeCounter struct{ n int64 }

func (f *fakeCounter) Inc(delta float64, labels ...string) { atomic.AddInt64(&f.n, int64(delta)) }

type fakeMetricsProvider struct {
	metrics.Provider
	counter *fakeCounter
}

func (p *fakeMetricsProvider) NewCounter(metrics.CounterOpts) metrics.Counter { return p.counter }

func TestStreamLoopReconnectsWhileDisconnectedAndCountsReconnects(t *testing.T) {
	counter := &fakeCounter{}
	c := New(Config{
		Delayer: instantDelayer{},
		Metrics: &fakeMetricsProvider{Provider: metrics.NewNoopProvider(), counter: counter},
	})

	c.StartStreaming(context.Background())
	time.Sleep(10 * time.Millisecond)
	c.StopStreaming()

	assert.Greater(t, atomic.LoadInt64(&counter.n), int64(0))
}

func TestStreamLoopPublishesReconnectingEvent(t *testing.T) {
	bus := events.NewBus(metrics.NewNoopProvider())
	sub, err := bus.Subscribe(4)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	c := New(Config{Delayer: instantDelayer{}, Events: bus})
	c.StartStreaming(context.Background())
	defer c.StopStreaming()

	select {
	case ev := <-sub.C():
		assert.Equal(t, events.CategoryStream, ev.Category)
		assert.Equal(t, "reconnecting", ev.Type)
		assert.Equal(t, c.SessionID(), ev.Labels["session_id"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reconnecting event")
	}
}

func TestPublishEventDeliversStreamEventToBus(t *testing.T) {
	bus := events.NewBus(metrics.NewNoopProvider())
	sub, err := bus.Subscribe(4)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	c := New(Config{Events: bus})
	c.publishEvent(events.Event{Category: events.CategoryStream, Type: "notification_decoded"})

	select {
	case ev := <-sub.C():
		assert.Equal(t, events.CategoryStream, ev.Category)
		assert.Equal(t, "notification_decoded", ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stream event")
	}
}

func TestStartStreamingIsIdempotent(t *testing.T) {
	c := New(Config{Delayer: instantDelayer{}})
	c.StartStreaming(context.Background())
	c.StartStreaming(context.Background()) // second call must not launch a duplicate loop
	time.Sleep(5 * time.Millisecond)
	require.NotPanics(t, c.StopStreaming)
}

func TestStopStreamingWithoutStartIsNoop(t *testing.T) {
	c := New(Config{})
	require.NotPanics(t, c.StopStreaming)
}

func TestProcessNotificationIgnoresMalformedFrame(t *testing.T) {
	c := New(Config{})
	require.NotPanics(t, func() { c.processNotification([]byte{0xff, 0xff, 0xff}) })
}
