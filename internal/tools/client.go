package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	mcp "github.com/mark3labs/mcp-go/mcp"

	gwerrors "github.com/cognigate/cognigate/pkg/errors"
)

// Client is the reasoning engine's view of a tool server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a tool client. timeout bounds each invocation.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchDescriptors pulls the tool metadata surface. An unreachable tool
// server yields an empty set: reasoning still works, just tool-less.
func (c *Client) FetchDescriptors(ctx context.Context) ([]mcp.Tool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch tool descriptors: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch tool descriptors: status %d", resp.StatusCode)
	}

	var out []mcp.Tool
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tool descriptors: %w", err)
	}
	return out, nil
}

// Observation is what a tool call contributes to the scratchpad. On
// failure Error/Detail are set instead of Result, and the reasoning
// loop continues with the failure as context.
type Observation struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  int             `json:"error,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

// String renders the observation for the scratchpad.
func (o Observation) String() string {
	if o.Error != 0 {
		raw, _ := json.Marshal(map[string]any{"error": o.Error, "detail": o.Detail})
		return string(raw)
	}
	return string(o.Result)
}

// Invoke posts arguments to /tools/{name}. HTTP-level errors come back
// as a structured observation, not a Go error; only transport failures
// (server unreachable) return an error, and even those are wrapped as a
// TOOL_ERROR the engine records as an observation too.
func (c *Client) Invoke(ctx context.Context, name string, arguments json.RawMessage) (Observation, error) {
	body := arguments
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tools/"+name, bytes.NewReader(body))
	if err != nil {
		return Observation{}, gwerrors.NewToolError(name, 0, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Observation{}, gwerrors.NewToolError(name, 0, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Observation{}, gwerrors.NewToolError(name, resp.StatusCode, err.Error())
	}

	if resp.StatusCode >= 400 {
		return Observation{Error: resp.StatusCode, Detail: string(respBody)}, nil
	}
	return Observation{Result: respBody}, nil
}
