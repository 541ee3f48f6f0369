package anthropic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognigate/cognigate/internal/provider"
	gwerrors "github.com/cognigate/cognigate/pkg/errors"
	"github.com/cognigate/cognigate/pkg/types"
)

func chatReq() *types.ChatRequest {
	return &types.ChatRequest{
		Model: "claude",
		Messages: []types.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
			{Role: "user", Content: "bye"},
		},
	}
}

func TestCompleteRequestShape(t *testing.T) {
	var got anthropicRequest
	var headers http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(anthropicResponse{
			ID:         "msg_1",
			Model:      "claude-sonnet",
			Content:    []contentBlock{{Type: "text", Text: "hey "}, {Type: "text", Text: "there"}},
			StopReason: "end_turn",
		})
	}))
	defer ts.Close()

	a := New()
	call := provider.Call{Model: "claude-sonnet", Secret: "sk-test", BaseURL: ts.URL, Profile: "p"}
	resp, err := a.Complete(context.Background(), call, chatReq())
	require.NoError(t, err)

	assert.Equal(t, "sk-test", headers.Get("x-api-key"))
	assert.Equal(t, APIVersion, headers.Get("anthropic-version"))

	assert.Equal(t, "claude-sonnet", got.Model)
	assert.Equal(t, "be brief", got.System, "system messages move to the top-level field")
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens, "the API requires max_tokens")

	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, "hey there", resp.Text())
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
}

func TestMapStopReason(t *testing.T) {
	assert.Equal(t, "stop", mapStopReason("end_turn"))
	assert.Equal(t, "stop", mapStopReason("stop_sequence"))
	assert.Equal(t, "length", mapStopReason("max_tokens"))
	assert.Equal(t, "tool_use", mapStopReason("tool_use"))
}

func TestCompleteErrorClassification(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid x-api-key"}}`))
	}))
	defer ts.Close()

	a := New()
	_, err := a.Complete(context.Background(), provider.Call{Model: "m", Secret: "bad", BaseURL: ts.URL}, chatReq())
	require.Error(t, err)
	assert.Equal(t, gwerrors.KindCredentialPermanent, gwerrors.KindOf(err))
}

func TestStreamFoldsEvents(t *testing.T) {
	body := strings.Join([]string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"id":"msg_1"}}`,
		``,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"hel"}}`,
		``,
		`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"lo"}}`,
		``,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
		``,
		`data: {"type":"message_stop"}`,
		``,
	}, "\n")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		io.WriteString(w, body)
	}))
	defer ts.Close()

	a := New()
	handler, err := a.Stream(context.Background(), provider.Call{Model: "m", Secret: "s", BaseURL: ts.URL}, chatReq())
	require.NoError(t, err)
	defer handler.Close()

	var text strings.Builder
	var finish string
	for {
		chunk, err := handler.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		text.WriteString(chunk.Choices[0].Delta.Content)
		if chunk.Choices[0].FinishReason != nil {
			finish = *chunk.Choices[0].FinishReason
		}
	}
	assert.Equal(t, "hello", text.String())
	assert.Equal(t, "stop", finish)
}

func TestUnsupportedOperations(t *testing.T) {
	a := New()

	_, err := a.Embed(context.Background(), provider.Call{}, &types.EmbeddingRequest{})
	assert.Equal(t, gwerrors.KindRequestContentInvalid, gwerrors.KindOf(err))

	_, _, err = a.Speech(context.Background(), provider.Call{}, &types.SpeechRequest{})
	assert.Equal(t, gwerrors.KindRequestContentInvalid, gwerrors.KindOf(err))
}
