// Package tools implements the tool gateway: a registry of invocable
// tools with MCP descriptors, the HTTP surface that exposes them, and
// the client the reasoning engine calls them through. Tool secrets stay
// inside the tool server process; only JSON results cross back.
package tools

import (
	"context"
	"sort"
	"sync"

	mcp "github.com/mark3labs/mcp-go/mcp"
)

// Handler executes one tool call. Arguments arrive as the decoded JSON
// body; the return value is serialized back to the caller as JSON.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool pairs an MCP descriptor with its handler.
type Tool struct {
	Descriptor mcp.Tool
	Handle     Handler
}

// Registry is the set of tools a tool server exposes.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under its descriptor name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Descriptor.Name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Descriptors returns all tool descriptors sorted by name.
func (r *Registry) Descriptors() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]mcp.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
