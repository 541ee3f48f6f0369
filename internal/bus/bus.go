// Package bus carries reasoning-session events from workers to SSE
// subscribers over redis pub/sub. Each session has its own channel, so
// a horizontally scaled deployment delivers events to whichever
// replica holds the client connection. Channels are non-retentive: the
// worker_ack handshake exists so subscribers never miss early events.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// channelPrefix namespaces per-session pub/sub channels.
const channelPrefix = "sse_session:"

// Event kinds on the session channel.
const (
	EventWorkerAck            = "worker_ack"
	EventAgentThoughtStream   = "AgentThoughtStream"
	EventAgentThoughtEnd      = "AgentThoughtEnd"
	EventAgentToolCallStart   = "AgentToolCallStart"
	EventAgentObservation     = "AgentObservation"
	EventAgentToolCallEnd     = "AgentToolCallEnd"
	EventFinalAnswerStream    = "FinalAnswerStream"
	EventFinalAnswerStreamEnd = "FinalAnswerStreamEnd"
	EventError                = "error"
)

// Event is one session update. Payload is an arbitrary JSON object;
// non-ASCII content passes through verbatim.
type Event struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event with a marshaled payload.
func NewEvent(eventType string, payload any) (Event, error) {
	if payload == nil {
		return Event{EventType: eventType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Event{EventType: eventType, Payload: raw}, nil
}

// Terminal reports whether the event ends the client stream.
func (e Event) Terminal() bool {
	return e.EventType == EventFinalAnswerStreamEnd || e.EventType == EventError
}

// SessionChannel returns the pub/sub channel name for a session.
func SessionChannel(sessionID string) string {
	return channelPrefix + sessionID
}

// Bus publishes and subscribes session events over redis.
type Bus struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a bus over the shared redis client.
func New(client *redis.Client, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{client: client, logger: logger}
}

// Publish sends an event on the session's channel.
func (b *Bus) Publish(ctx context.Context, sessionID string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, SessionChannel(sessionID), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscription is an open pub/sub subscription for one session.
type Subscription struct {
	pubsub *redis.PubSub
	events <-chan Event
}

// Events returns the decoded event stream. The channel closes when the
// subscription is closed or the connection drops.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close tears down the subscription.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

// Subscribe opens the session channel and starts decoding events.
// Malformed payloads are logged and skipped so one bad publisher does
// not kill the client's stream.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, SessionChannel(sessionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe session %s: %w", sessionID, err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("dropping malformed session event",
					"session_id", sessionID, "error", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Subscription{pubsub: pubsub, events: out}, nil
}

// AwaitAck blocks until worker_ack arrives or the handshake window
// closes. Events seen before the ack are returned in order so the
// caller can replay them; in practice the worker publishes the ack
// first, but a fast worker must not lose frames to the race.
func AwaitAck(ctx context.Context, sub *Subscription, timeout time.Duration) ([]Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var buffered []Event
	for {
		select {
		case <-ctx.Done():
			return buffered, ctx.Err()
		case <-timer.C:
			return buffered, context.DeadlineExceeded
		case ev, ok := <-sub.Events():
			if !ok {
				return buffered, fmt.Errorf("subscription closed before ack")
			}
			if ev.EventType == EventWorkerAck {
				return buffered, nil
			}
			buffered = append(buffered, ev)
		}
	}
}
