// Package provider defines the adapter interface for upstream AI
// providers. Adapters are stateless with respect to credentials: the
// executor issues a secret from the pool per attempt and passes it in
// the Call, so rotation never requires rebuilding an adapter.
package provider

import (
	"context"
	"io"

	"github.com/cognigate/cognigate/pkg/types"
)

// Call bundles everything one upstream attempt needs beyond the request
// body itself. Secret comes from the credential pool and must never be
// stored by the adapter.
type Call struct {
	Profile string // profile ID, for error context only
	Model   string // upstream model name
	BaseURL string // overrides the adapter default when non-empty
	Secret  string
}

// Adapter is the interface all provider adapters implement. Every error
// returned from an upstream attempt is a classified *errors.GatewayError
// so the executor can decide retire/quarantine/surface without knowing
// provider wire formats.
type Adapter interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// Complete performs a non-streaming chat completion.
	Complete(ctx context.Context, call Call, req *types.ChatRequest) (*types.ChatResponse, error)

	// Stream performs a streaming chat completion. The returned handler
	// yields unified chunks until io.EOF.
	Stream(ctx context.Context, call Call, req *types.ChatRequest) (StreamHandler, error)

	// Embed performs an embedding request. Adapters without embedding
	// support return a classified request-content error.
	Embed(ctx context.Context, call Call, req *types.EmbeddingRequest) (*types.EmbeddingResponse, error)

	// Speech performs a text-to-speech request and returns the raw audio
	// body with its content type. The caller owns the reader.
	Speech(ctx context.Context, call Call, req *types.SpeechRequest) (io.ReadCloser, string, error)
}

// StreamHandler iterates SSE chunks from a streaming completion.
type StreamHandler interface {
	// Next returns the next chunk, or io.EOF when the stream is done.
	Next() (*types.StreamChunk, error)

	// Close releases the underlying response body.
	Close() error
}
