// Package openailike implements the adapter for OpenAI and every
// provider that speaks its wire format behind a different base URL
// (DeepSeek, Groq, Moonshot, OpenRouter and friends). The request and
// response bodies pass through the unified types unchanged.
package openailike

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

// defaultBaseURLs maps known OpenAI-compatible provider names to their
// public endpoints. A profile's api_base always wins over this table.
var defaultBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"mistral":    "https://api.mistral.ai/v1",
	"moonshot":   "https://api.moonshot.cn/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"together":   "https://api.together.xyz/v1",
	"xai":        "https://api.x.ai/v1",
	"qwen":       "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"zhipu":      "https://open.bigmodel.cn/api/paas/v4",
}

// Adapter is a generic OpenAI-compatible provider adapter.
type Adapter struct {
	name    string
	baseURL string
	client  *http.Client
}

// New creates an adapter for the named provider. Unknown names get no
// default base URL and require api_base on every profile.
func New(name string) *Adapter {
	return &Adapter{
		name:    name,
		baseURL: defaultBaseURLs[name],
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string {
	return a.name
}

func (a *Adapter) resolveBase(call provider.Call) (string, error) {
	base := call.BaseURL
	if base == "" {
		base = a.baseURL
	}
	if base == "" {
		return "", fmt.Errorf("provider %q has no default endpoint; set api_base on profile %q", a.name, call.Profile)
	}
	return strings.TrimSuffix(base, "/"), nil
}

func (a *Adapter) post(ctx context.Context, call provider.Call, path string, payload any) (*http.Response, error) {
	base, err := a.resolveBase(call)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+call.Secret)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, provider.ClassifyTransport(a.name, err)
	}
	return resp, nil
}

func (a *Adapter) checkStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return provider.ClassifyStatus(a.name, resp.StatusCode, body)
}

// Complete performs a non-streaming chat completion.
func (a *Adapter) Complete(ctx context.Context, call provider.Call, req *types.ChatRequest) (*types.ChatResponse, error) {
	upstream := req.Clone()
	upstream.Model = call.Model
	upstream.Stream = false

	resp, err := a.post(ctx, call, "/chat/completions", upstream)
	if err != nil {
		return nil, err
	}
	if err := a.checkStatus(resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out types.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, gwerrors.NewCredentialTransient(a.name, resp.StatusCode, "decode response: "+err.Error())
	}
	return &out, nil
}

// Stream performs a streaming chat completion.
func (a *Adapter) Stream(ctx context.Context, call provider.Call, req *types.ChatRequest) (provider.StreamHandler, error) {
	upstream := req.Clone()
	upstream.Model = call.Model
	upstream.Stream = true

	resp, err := a.post(ctx, call, "/chat/completions", upstream)
	if err != nil {
		return nil, err
	}
	if err := a.checkStatus(resp); err != nil {
		return nil, err
	}
	return newSSEStream(resp.Body), nil
}

// Embed performs an embedding request.
func (a *Adapter) Embed(ctx context.Context, call provider.Call, req *types.EmbeddingRequest) (*types.EmbeddingResponse, error) {
	upstream := *req
	upstream.Model = call.Model

	resp, err := a.post(ctx, call, "/embeddings", &upstream)
	if err != nil {
		return nil, err
	}
	if err := a.checkStatus(resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out types.EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, gwerrors.NewCredentialTransient(a.name, resp.StatusCode, "decode response: "+err.Error())
	}
	return &out, nil
}

// Speech performs a text-to-speech request. The audio body streams back
// to the caller unchanged.
func (a *Adapter) Speech(ctx context.Context, call provider.Call, req *types.SpeechRequest) (io.ReadCloser, string, error) {
	upstream := *req
	upstream.Model = call.Model

	resp, err := a.post(ctx, call, "/audio/speech", &upstream)
	if err != nil {
		return nil, "", err
	}
	if err := a.checkStatus(resp); err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return resp.Body, contentType, nil
}

// sseStream reads "data:" lines from an OpenAI-style SSE body.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	return &sseStream{body: body, scanner: scanner}
}

// Next returns the next parsed chunk, skipping keep-alives, or io.EOF
// after the [DONE] sentinel.
func (s *sseStream) Next() (*types.StreamChunk, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 || bytes.HasPrefix(line, []byte(":")) {
			continue
		}
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if bytes.Equal(data, []byte("[DONE]")) {
			return nil, io.EOF
		}

		var chunk types.StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return nil, fmt.Errorf("unmarshal chunk: %w", err)
		}
		return &chunk, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the response body.
func (s *sseStream) Close() error {
	return s.body.Close()
}
