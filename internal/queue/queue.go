// Package queue is the redis-backed task queue between the HTTP layer
// and the reasoning workers. Tasks are FIFO per queue via RPUSH/BLPOP;
// the envelope carries W3C trace context so a worker's spans join the
// originating request's trace.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// DefaultQueue is the reasoning task queue name.
const DefaultQueue = "cognigate:tasks"

// ClientInstructions carries the caller's prompt-priority inputs.
type ClientInstructions struct {
	SystemInstruction string   `json:"system_instruction,omitempty"`
	Manifests         []string `json:"manifests,omitempty"`
}

// Task is one queued reasoning session request.
type Task struct {
	SessionID          string             `json:"session_id"`
	Alias              string             `json:"alias"`
	UserQuery          string             `json:"user_query"`
	ReasoningMode      string             `json:"reasoning_mode,omitempty"`
	ClientInstructions ClientInstructions `json:"client_instructions,omitempty"`
	SafetyFlags        []string           `json:"safety_flags,omitempty"`
	RequestID          string             `json:"request_id,omitempty"`
	Carrier            map[string]string  `json:"carrier,omitempty"`
	EnqueueTimestamp   int64              `json:"enqueue_timestamp"`
}

// Queue wraps the redis list operations.
type Queue struct {
	client *redis.Client
	name   string
}

// New creates a queue over the shared redis client.
func New(client *redis.Client, name string) *Queue {
	if name == "" {
		name = DefaultQueue
	}
	return &Queue{client: client, name: name}
}

// Enqueue pushes a task to the tail of the queue, injecting the current
// trace context into the envelope first.
func (q *Queue) Enqueue(ctx context.Context, task *Task) error {
	task.EnqueueTimestamp = time.Now().UnixMilli()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) > 0 {
		task.Carrier = carrier
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.RPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// Dequeue blocks until a task is available or ctx is canceled. The
// returned context carries the extracted trace context of the enqueuer.
func (q *Queue) Dequeue(ctx context.Context) (context.Context, *Task, error) {
	for {
		res, err := q.client.BLPop(ctx, 5*time.Second, q.name).Result()
		if errors.Is(err, redis.Nil) {
			select {
			case <-ctx.Done():
				return ctx, nil, ctx.Err()
			default:
				continue
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx, nil, ctx.Err()
			}
			return ctx, nil, fmt.Errorf("dequeue task: %w", err)
		}
		if len(res) < 2 {
			continue
		}

		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			return ctx, nil, fmt.Errorf("unmarshal task: %w", err)
		}

		taskCtx := ctx
		if len(task.Carrier) > 0 {
			taskCtx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(task.Carrier))
		}
		return taskCtx, &task, nil
	}
}

// Len reports the number of waiting tasks.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}
