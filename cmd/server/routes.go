package main

import (
	"net/http"

	"github.com/cognigate/cognigate/internal/api"
	"github.com/cognigate/cognigate/internal/config"
	"github.com/cognigate/cognigate/internal/metrics"
)

// buildMux wires the data plane, the reasoning session endpoint, and
// the admin plane onto one mux. The admin surface is unauthenticated
// here; deployments front it with their own access control.
func buildMux(cfg *config.Config, handler *api.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /health/live", handler.Healthz)
	mux.HandleFunc("GET /health/ready", handler.Healthz)

	mux.HandleFunc("POST /v1/chat/completions", handler.ChatCompletions)
	mux.HandleFunc("POST /v1/embeddings", handler.Embeddings)
	mux.HandleFunc("POST /v1/audio/speech", handler.Speech)
	mux.HandleFunc("GET /v1/models/all-runnable", handler.Models)

	mux.HandleFunc("POST /v1/react/sessions", handler.ReactSession)

	mux.HandleFunc("GET /admin/config", handler.GetConfig)
	mux.HandleFunc("POST /admin/config", handler.UpdateConfig)
	mux.HandleFunc("GET /admin/prompt_content", handler.GetPromptContent)
	mux.HandleFunc("POST /admin/prompt_content", handler.UpdatePromptContent)
	mux.HandleFunc("GET /admin/prompts", handler.ListPrompts)
	mux.HandleFunc("GET /admin/react_patterns", handler.ListReactPatterns)
	mux.HandleFunc("GET /admin/provider_models", handler.ProviderModels)
	mux.HandleFunc("GET /admin/keys", handler.Keys)
	mux.HandleFunc("GET /admin/queue", handler.QueueStats)
	mux.HandleFunc("POST /admin/restart", handler.Restart)

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, metrics.Handler())
	}

	return mux
}
