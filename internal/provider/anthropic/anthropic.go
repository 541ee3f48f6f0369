// Package anthropic implements the Anthropic Claude adapter. It maps
// the unified chat format onto the Messages API: system messages move
// to the top-level system field, authentication uses x-api-key, and
// streaming events are folded back into unified chunks.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/cognigate/cognigate/internal/provider"
	gwerrors "github.com/cognigate/cognigate/pkg/errors"
	"github.com/cognigate/cognigate/pkg/types"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "anthropic"

	// DefaultBaseURL is the default Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// APIVersion is the anthropic-version header value.
	APIVersion = "2023-06-01"

	// DefaultMaxTokens applies when the request does not set max_tokens,
	// which the Messages API requires.
	DefaultMaxTokens = 4096
)

// Adapter implements the Anthropic Messages API.
type Adapter struct {
	client *http.Client
}

// New creates an Anthropic adapter.
func New() *Adapter {
	return &Adapter{client: &http.Client{Timeout: 5 * time.Minute}}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string {
	return ProviderName
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	Messages      []anthropicMessage `json:"messages"`
	MaxTokens     int                `json:"max_tokens"`
	System        string             `json:"system,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func buildRequest(model string, req *types.ChatRequest, stream bool) *anthropicRequest {
	out := &anthropicRequest{
		Model:         model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		Stream:        stream,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = DefaultMaxTokens
	}

	var systemParts []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			systemParts = append(systemParts, m.Content)
			continue
		}
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		out.Messages = append(out.Messages, anthropicMessage{Role: role, Content: m.Content})
	}
	out.System = strings.Join(systemParts, "\n\n")
	return out
}

func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return reason
	}
}

func (a *Adapter) post(ctx context.Context, call provider.Call, payload *anthropicRequest) (*http.Response, error) {
	base := call.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimSuffix(base, "/")

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", call.Secret)
	httpReq.Header.Set("anthropic-version", APIVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, provider.ClassifyTransport(ProviderName, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, provider.ClassifyStatus(ProviderName, resp.StatusCode, errBody)
	}
	return resp, nil
}

// Complete performs a non-streaming completion.
func (a *Adapter) Complete(ctx context.Context, call provider.Call, req *types.ChatRequest) (*types.ChatResponse, error) {
	resp, err := a.post(ctx, call, buildRequest(call.Model, req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ar anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, gwerrors.NewCredentialTransient(ProviderName, resp.StatusCode, "decode response: "+err.Error())
	}

	var text strings.Builder
	for _, block := range ar.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &types.ChatResponse{
		ID:      ar.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   ar.Model,
		Choices: []types.Choice{{
			Message:      types.Message{Role: "assistant", Content: text.String()},
			FinishReason: mapStopReason(ar.StopReason),
		}},
		Usage: &types.Usage{
			PromptTokens:     ar.Usage.InputTokens,
			CompletionTokens: ar.Usage.OutputTokens,
			TotalTokens:      ar.Usage.InputTokens + ar.Usage.OutputTokens,
		},
	}, nil
}

// Stream performs a streaming completion.
func (a *Adapter) Stream(ctx context.Context, call provider.Call, req *types.ChatRequest) (provider.StreamHandler, error) {
	resp, err := a.post(ctx, call, buildRequest(call.Model, req, true))
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	return &eventStream{body: resp.Body, scanner: scanner, model: call.Model}, nil
}

// Embed reports that Anthropic has no embeddings endpoint.
func (a *Adapter) Embed(ctx context.Context, call provider.Call, req *types.EmbeddingRequest) (*types.EmbeddingResponse, error) {
	return nil, gwerrors.NewRequestContentInvalid(ProviderName, "anthropic does not support embeddings")
}

// Speech reports that Anthropic has no audio endpoint.
func (a *Adapter) Speech(ctx context.Context, call provider.Call, req *types.SpeechRequest) (io.ReadCloser, string, error) {
	return nil, "", gwerrors.NewRequestContentInvalid(ProviderName, "anthropic does not support audio generation")
}

// eventStream folds Anthropic SSE events into unified chunks. Only
// content_block_delta events carry text; message_stop ends the stream.
type eventStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	model   string
	done    bool
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Message struct {
		ID string `json:"id"`
	} `json:"message"`
}

func (s *eventStream) Next() (*types.StreamChunk, error) {
	if s.done {
		return nil, io.EOF
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))

		var ev streamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}

		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type != "text_delta" {
				continue
			}
			return &types.StreamChunk{
				Object:  "chat.completion.chunk",
				Created: time.Now().Unix(),
				Model:   s.model,
				Choices: []types.StreamChoice{{
					Delta: types.StreamDelta{Content: ev.Delta.Text},
				}},
			}, nil
		case "message_delta":
			if ev.Delta.StopReason == "" {
				continue
			}
			reason := mapStopReason(ev.Delta.StopReason)
			return &types.StreamChunk{
				Object:  "chat.completion.chunk",
				Created: time.Now().Unix(),
				Model:   s.model,
				Choices: []types.StreamChoice{{
					FinishReason: &reason,
				}},
			}, nil
		case "message_stop":
			s.done = true
			return nil, io.EOF
		default:
			continue
		}
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *eventStream) Close() error {
	return s.body.Close()
}
