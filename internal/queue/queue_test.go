package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQueue(t *testing.T) *Queue {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "")
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	task := &Task{
		SessionID:     "sess-1",
		Alias:         "agent",
		UserQuery:     "what is 6*7?",
		ReasoningMode: "basic_react",
		ClientInstructions: ClientInstructions{
			SystemInstruction: "be terse",
			Manifests:         []string{"calculator"},
		},
		SafetyFlags: []string{"no_browsing"},
		RequestID:   "req-1",
	}
	require.NoError(t, q.Enqueue(ctx, task))
	assert.NotZero(t, task.EnqueueTimestamp)

	_, got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "agent", got.Alias)
	assert.Equal(t, "what is 6*7?", got.UserQuery)
	assert.Equal(t, "basic_react", got.ReasoningMode)
	assert.Equal(t, "be terse", got.ClientInstructions.SystemInstruction)
	assert.Equal(t, []string{"calculator"}, got.ClientInstructions.Manifests)
	assert.Equal(t, []string{"no_browsing"}, got.SafetyFlags)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, task.EnqueueTimestamp, got.EnqueueTimestamp)
}

func TestDequeueIsFIFO(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, q.Enqueue(ctx, &Task{SessionID: id, Alias: "agent", UserQuery: "q"}))
	}

	for _, want := range []string{"first", "second", "third"} {
		_, got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got.SessionID)
	}
}

func TestDequeueHonorsCancellation(t *testing.T) {
	q := testQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLen(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, q.Enqueue(ctx, &Task{SessionID: "a", Alias: "agent", UserQuery: "q"}))
	require.NoError(t, q.Enqueue(ctx, &Task{SessionID: "b", Alias: "agent", UserQuery: "q"}))

	n, err = q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestEnqueueStampsTimestampPerCall(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	task := &Task{SessionID: "a", Alias: "agent", UserQuery: "q"}
	before := time.Now().UnixMilli()
	require.NoError(t, q.Enqueue(ctx, task))
	after := time.Now().UnixMilli()

	assert.GreaterOrEqual(t, task.EnqueueTimestamp, before)
	assert.LessOrEqual(t, task.EnqueueTimestamp, after)
}
