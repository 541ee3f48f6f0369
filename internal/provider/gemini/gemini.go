// Package gemini implements the Google Gemini adapter over the
// generateContent API. System messages become systemInstruction, the
// assistant role maps to "model", and authentication travels in the
// x-goog-api-key header.
package gemini

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
	ProviderName = "gemini"

	// DefaultBaseURL is the default Google AI Studio API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// APIVersion is the Gemini API version segment.
	APIVersion = "v1beta"
)

// Adapter implements the Gemini generateContent API.
type Adapter struct {
	client *http.Client
}

// New creates a Gemini adapter.
func New() *Adapter {
	return &Adapter{client: &http.Client{Timeout: 5 * time.Minute}}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string {
	return ProviderName
}

type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func buildRequest(req *types.ChatRequest) *geminiRequest {
	out := &geminiRequest{}

	var systemParts []geminiPart
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			systemParts = append(systemParts, geminiPart{Text: m.Content})
		case "assistant":
			out.Contents = append(out.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: m.Content}},
			})
		default:
			out.Contents = append(out.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: m.Content}},
			})
		}
	}
	if len(systemParts) > 0 {
		out.SystemInstruction = &geminiContent{Parts: systemParts}
	}

	if req.Temperature != nil || req.TopP != nil || req.MaxTokens > 0 || len(req.Stop) > 0 {
		out.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.Stop,
		}
	}
	return out
}

func mapFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return strings.ToLower(reason)
	}
}

func (a *Adapter) post(ctx context.Context, call provider.Call, method string, payload any) (*http.Response, error) {
	base := call.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimSuffix(base, "/")

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:%s", base, APIVersion, call.Model, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", call.Secret)

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
	resp, err := a.post(ctx, call, "generateContent", buildRequest(req))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, gwerrors.NewCredentialTransient(ProviderName, resp.StatusCode, "decode response: "+err.Error())
	}

	out := &types.ChatResponse{
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   call.Model,
		Usage: &types.Usage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
		},
	}
	for i, cand := range gr.Candidates {
		var text strings.Builder
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
		out.Choices = append(out.Choices, types.Choice{
			Index:        i,
			Message:      types.Message{Role: "assistant", Content: text.String()},
			FinishReason: mapFinishReason(cand.FinishReason),
		})
	}
	return out, nil
}

// Stream performs a streaming completion via streamGenerateContent with
// SSE framing.
func (a *Adapter) Stream(ctx context.Context, call provider.Call, req *types.ChatRequest) (provider.StreamHandler, error) {
	resp, err := a.post(ctx, call, "streamGenerateContent?alt=sse", buildRequest(req))
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	return &sseStream{body: resp.Body, scanner: scanner, model: call.Model}, nil
}

// Embed performs an embedding request via embedContent. Only single
// string input is supported.
func (a *Adapter) Embed(ctx context.Context, call provider.Call, req *types.EmbeddingRequest) (*types.EmbeddingResponse, error) {
	var input string
	if err := json.Unmarshal(req.Input, &input); err != nil {
		return nil, gwerrors.NewRequestContentInvalid(ProviderName, "gemini embeddings accept a single string input")
	}

	payload := map[string]any{
		"content": geminiContent{Parts: []geminiPart{{Text: input}}},
	}
	resp, err := a.post(ctx, call, "embedContent", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var er struct {
		Embedding struct {
			Values []float64 `json:"values"`
		} `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, gwerrors.NewCredentialTransient(ProviderName, resp.StatusCode, "decode response: "+err.Error())
	}

	return &types.EmbeddingResponse{
		Object: "list",
		Model:  call.Model,
		Data: []types.Embedding{{
			Object:    "embedding",
			Embedding: er.Embedding.Values,
		}},
	}, nil
}

// Speech reports that Gemini has no audio endpoint here.
func (a *Adapter) Speech(ctx context.Context, call provider.Call, req *types.SpeechRequest) (io.ReadCloser, string, error) {
	return nil, "", gwerrors.NewRequestContentInvalid(ProviderName, "gemini does not support audio generation")
}

// sseStream parses streamGenerateContent SSE frames, each carrying a
// complete geminiResponse fragment.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	model   string
}

func (s *sseStream) Next() (*types.StreamChunk, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))

		var gr geminiResponse
		if err := json.Unmarshal(data, &gr); err != nil {
			return nil, fmt.Errorf("unmarshal chunk: %w", err)
		}
		if len(gr.Candidates) == 0 {
			continue
		}

		cand := gr.Candidates[0]
		var text strings.Builder
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}

		chunk := &types.StreamChunk{
			Object:  "chat.completion.chunk",
			Created: time.Now().Unix(),
			Model:   s.model,
			Choices: []types.StreamChoice{{
				Delta: types.StreamDelta{Content: text.String()},
			}},
		}
		if cand.FinishReason != "" {
			reason := mapFinishReason(cand.FinishReason)
			chunk.Choices[0].FinishReason = &reason
		}
		return chunk, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
