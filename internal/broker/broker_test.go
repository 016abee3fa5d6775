package broker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/community-hub/internal/model"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b, err := Start(Config{Port: -1}, logger)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

// eventRecorder collects delivered events.
type eventRecorder struct {
	mu     sync.Mutex
	events []model.FeedEvent
	drops  []error
}

func (r *eventRecorder) handle(e model.FeedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) drop(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drops = append(r.drops, err)
}

func (r *eventRecorder) dropped() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.drops...)
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestStart_Embedded(t *testing.T) {
	b := newTestBroker(t)

	assert.NoError(t, b.HealthCheck())
	assert.Equal(t, DefaultSubject, b.Subject())
}

func TestPublishSubscribe(t *testing.T) {
	b := newTestBroker(t)
	rec := &eventRecorder{}

	unsubscribe, err := b.Subscribe(rec.handle, rec.drop)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unsubscribe() })

	want := model.FeedEvent{PostID: "p1", Kind: model.FeedEventCreated}
	require.NoError(t, b.Publish(context.Background(), want))

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	rec.mu.Lock()
	assert.Equal(t, want, rec.events[0])
	rec.mu.Unlock()
}

func TestSubscribe_FanOut(t *testing.T) {
	b := newTestBroker(t)
	first, second := &eventRecorder{}, &eventRecorder{}

	for _, rec := range []*eventRecorder{first, second} {
		unsubscribe, err := b.Subscribe(rec.handle, rec.drop)
		require.NoError(t, err)
		t.Cleanup(func() { _ = unsubscribe() })
	}

	require.NoError(t, b.Publish(context.Background(), model.FeedEvent{PostID: "p1", Kind: model.FeedEventCreated}))

	require.Eventually(t, func() bool {
		return first.count() == 1 && second.count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := newTestBroker(t)
	rec := &eventRecorder{}

	unsubscribe, err := b.Subscribe(rec.handle, rec.drop)
	require.NoError(t, err)
	require.NoError(t, unsubscribe())

	require.NoError(t, b.Publish(context.Background(), model.FeedEvent{PostID: "p1"}))

	// Publish flushed, so a delivery would already be in flight.
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestSubscribe_DropsMalformedPayload(t *testing.T) {
	b := newTestBroker(t)
	rec := &eventRecorder{}

	unsubscribe, err := b.Subscribe(rec.handle, rec.drop)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unsubscribe() })

	require.NoError(t, b.nc.Publish(b.subject, []byte("not json")))
	require.NoError(t, b.Publish(context.Background(), model.FeedEvent{PostID: "p2", Kind: model.FeedEventCreated}))

	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	rec.mu.Lock()
	assert.Equal(t, "p2", rec.events[0].PostID)
	rec.mu.Unlock()
}

func (b *Broker) listenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

func TestClose_DropsLiveListeners(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b, err := Start(Config{Port: -1}, logger)
	require.NoError(t, err)

	first, second := &eventRecorder{}, &eventRecorder{}
	for _, rec := range []*eventRecorder{first, second} {
		_, err := b.Subscribe(rec.handle, rec.drop)
		require.NoError(t, err)
	}
	require.Equal(t, 2, b.listenerCount())

	b.Close()

	for _, rec := range []*eventRecorder{first, second} {
		drops := rec.dropped()
		require.Len(t, drops, 1, "drop callback runs exactly once")
		assert.ErrorIs(t, drops[0], ErrConnectionClosed)
	}
	assert.Zero(t, b.listenerCount())

	_, err = b.Subscribe(first.handle, first.drop)
	assert.Error(t, err)
}

func TestUnsubscribe_NoDropAfterwards(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b, err := Start(Config{Port: -1}, logger)
	require.NoError(t, err)

	rec := &eventRecorder{}
	unsubscribe, err := b.Subscribe(rec.handle, rec.drop)
	require.NoError(t, err)
	require.NoError(t, unsubscribe())

	b.Close()
	assert.Empty(t, rec.dropped())

	// Unsubscribing after the connection is gone is still fine.
	assert.NoError(t, unsubscribe())
}

func TestReconnect_ResyncsListeners(t *testing.T) {
	b := newTestBroker(t)
	rec := &eventRecorder{}

	unsubscribe, err := b.Subscribe(rec.handle, rec.drop)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unsubscribe() })

	// What the ReconnectHandler runs.
	b.resync()

	require.Equal(t, 1, rec.count())
	rec.mu.Lock()
	assert.Equal(t, model.FeedEventResync, rec.events[0].Kind)
	rec.mu.Unlock()
}

func TestHealthCheck_AfterClose(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b, err := Start(Config{Port: -1}, logger)
	require.NoError(t, err)

	b.Close()
	assert.ErrorIs(t, b.HealthCheck(), ErrNotConnected)
}
