package observability

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerFormats(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggerConfig{Level: slog.LevelInfo, Output: &buf, JSONFormat: true}, nil)
		logger.Info("hello", "key", "value")

		assert.Contains(t, buf.String(), `"msg":"hello"`)
		assert.Contains(t, buf.String(), `"key":"value"`)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggerConfig{Level: slog.LevelInfo, Output: &buf, JSONFormat: false}, nil)
		logger.Info("hello")

		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("level filter", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggerConfig{Level: slog.LevelWarn, Output: &buf, JSONFormat: true}, nil)
		logger.Info("dropped")
		logger.Warn("kept")

		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "kept")
	})
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelInfo, Output: &buf, JSONFormat: true}, nil)

	t.Run("id present in context", func(t *testing.T) {
		buf.Reset()
		ctx := ContextWithRequestID(context.Background(), "req-123")
		logger.WithRequestID(ctx).Info("tagged")
		assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	})

	t.Run("no id is a no-op", func(t *testing.T) {
		buf.Reset()
		logger.WithRequestID(context.Background()).Info("untagged")
		assert.NotContains(t, buf.String(), "request_id")
	})
}

func TestHandlerRedactsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelInfo, Output: &buf, JSONFormat: true}, NewRedactor())

	t.Run("message", func(t *testing.T) {
		buf.Reset()
		logger.Info("using sk-1234567890abcdefghijklmnop")
		assert.NotContains(t, buf.String(), "sk-1234567890abcdefghijklmnop")
		assert.Contains(t, buf.String(), "[REDACTED_OPENAI_KEY]")
	})

	t.Run("string attr", func(t *testing.T) {
		buf.Reset()
		logger.Warn("rotation", "secret", "sk-abcdefghijklmnopqrstuvwx")
		assert.NotContains(t, buf.String(), "sk-abcdefghijklmnopqrstuvwx")
		assert.Contains(t, buf.String(), "[REDACTED_OPENAI_KEY]")
	})

	t.Run("error attr", func(t *testing.T) {
		buf.Reset()
		err := fmt.Errorf("upstream rejected sk-zyxwvutsrqponmlkjihgfedcba")
		logger.Error("call failed", "error", err)
		assert.NotContains(t, buf.String(), "sk-zyxwvutsrqponmlkjihgfedcba")
		assert.Contains(t, buf.String(), "[REDACTED_OPENAI_KEY]")
	})

	t.Run("bound attrs from With", func(t *testing.T) {
		buf.Reset()
		logger.With("key", "sk-boundboundboundboundbound").Info("bound")
		assert.NotContains(t, buf.String(), "sk-boundboundboundboundbound")
	})
}

func TestNilRedactorPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: slog.LevelInfo, Output: &buf, JSONFormat: true}, nil)

	logger.Info("raw sk-1234567890abcdefghijklmnop")
	assert.Contains(t, buf.String(), "sk-1234567890abcdefghijklmnop")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
