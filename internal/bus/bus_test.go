package bus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBus(t *testing.T) *Bus {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNewEvent(t *testing.T) {
	t.Run("with payload", func(t *testing.T) {
		ev, err := NewEvent(EventAgentThoughtStream, map[string]string{"chunk": "thinking"})
		require.NoError(t, err)
		assert.Equal(t, EventAgentThoughtStream, ev.EventType)
		assert.JSONEq(t, `{"chunk":"thinking"}`, string(ev.Payload))
	})

	t.Run("nil payload", func(t *testing.T) {
		ev, err := NewEvent(EventWorkerAck, nil)
		require.NoError(t, err)
		assert.Empty(t, ev.Payload)
	})
}

func TestEventTerminal(t *testing.T) {
	assert.True(t, Event{EventType: EventFinalAnswerStreamEnd}.Terminal())
	assert.True(t, Event{EventType: EventError}.Terminal())
	assert.False(t, Event{EventType: EventFinalAnswerStream}.Terminal())
	assert.False(t, Event{EventType: EventWorkerAck}.Terminal())
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	b := testBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := b.Subscribe(ctx, "sess-1")
	require.NoError(t, err)
	defer sub.Close()

	ev, err := NewEvent(EventAgentObservation, map[string]string{"result": "42"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, "sess-1", ev))

	select {
	case got := <-sub.Events():
		assert.Equal(t, EventAgentObservation, got.EventType)
		assert.JSONEq(t, `{"result":"42"}`, string(got.Payload))
	case <-time.After(time.Second):
		t.Fatal("event did not arrive")
	}
}

func TestSubscribeIsolatesSessions(t *testing.T) {
	b := testBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := b.Subscribe(ctx, "sess-a")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, "sess-b", Event{EventType: EventWorkerAck}))
	require.NoError(t, b.Publish(ctx, "sess-a", Event{EventType: EventAgentThoughtEnd}))

	select {
	case got := <-sub.Events():
		assert.Equal(t, EventAgentThoughtEnd, got.EventType, "only sess-a traffic may arrive")
	case <-time.After(time.Second):
		t.Fatal("event did not arrive")
	}
}

func TestSubscribeSkipsMalformedPayloads(t *testing.T) {
	b := testBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := b.Subscribe(ctx, "sess-1")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.client.Publish(ctx, SessionChannel("sess-1"), "{not json").Err())
	require.NoError(t, b.Publish(ctx, "sess-1", Event{EventType: EventWorkerAck}))

	select {
	case got := <-sub.Events():
		assert.Equal(t, EventWorkerAck, got.EventType, "malformed frame must be dropped, not surfaced")
	case <-time.After(time.Second):
		t.Fatal("event did not arrive")
	}
}

func TestAwaitAckImmediate(t *testing.T) {
	b := testBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := b.Subscribe(ctx, "sess-1")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, "sess-1", Event{EventType: EventWorkerAck}))

	buffered, err := AwaitAck(ctx, sub, time.Second)
	require.NoError(t, err)
	assert.Empty(t, buffered)
}

func TestAwaitAckBuffersEarlyEvents(t *testing.T) {
	b := testBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := b.Subscribe(ctx, "sess-1")
	require.NoError(t, err)
	defer sub.Close()

	// A fast worker can publish frames before the ack lands.
	early1, err := NewEvent(EventAgentThoughtStream, map[string]string{"chunk": "a"})
	require.NoError(t, err)
	early2, err := NewEvent(EventAgentThoughtStream, map[string]string{"chunk": "b"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, "sess-1", early1))
	require.NoError(t, b.Publish(ctx, "sess-1", early2))
	require.NoError(t, b.Publish(ctx, "sess-1", Event{EventType: EventWorkerAck}))

	buffered, err := AwaitAck(ctx, sub, time.Second)
	require.NoError(t, err)
	require.Len(t, buffered, 2)
	assert.JSONEq(t, `{"chunk":"a"}`, string(buffered[0].Payload))
	assert.JSONEq(t, `{"chunk":"b"}`, string(buffered[1].Payload))
}

func TestAwaitAckTimeout(t *testing.T) {
	b := testBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := b.Subscribe(ctx, "sess-1")
	require.NoError(t, err)
	defer sub.Close()

	_, err = AwaitAck(ctx, sub, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwaitAckClientCancellation(t *testing.T) {
	b := testBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := b.Subscribe(ctx, "sess-1")
	require.NoError(t, err)
	defer sub.Close()

	cancel()
	_, err = AwaitAck(ctx, sub, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
