// Package api implements the gateway's HTTP surface: the
// OpenAI-compatible data plane, the reasoning session SSE endpoint, and
// the admin plane backing the operator panel.
package api

import (
	"github.com/cognigate/cognigate/internal/bus"
	"github.com/cognigate/cognigate/internal/config"
	"github.com/cognigate/cognigate/internal/keypool"
	"github.com/cognigate/cognigate/internal/observability"
	"github.com/cognigate/cognigate/internal/prompt"
	"github.com/cognigate/cognigate/internal/queue"
	"github.com/cognigate/cognigate/internal/router"
)

// Handler carries the subsystems the HTTP endpoints dispatch into.
type Handler struct {
	cfg      *config.Manager
	router   *router.Router
	pool     *keypool.Pool
	bus      *bus.Bus
	queue    *queue.Queue
	patterns *prompt.PatternStore
	logger   *observability.Logger
	restart  func()
}

// NewHandler creates the API handler. restart is invoked by the admin
// restart endpoint after the response is written; the process supervisor
// is expected to bring the gateway back up.
func NewHandler(cfg *config.Manager, rt *router.Router, pool *keypool.Pool, eventBus *bus.Bus, taskQueue *queue.Queue, patterns *prompt.PatternStore, logger *observability.Logger, restart func()) *Handler {
	return &Handler{
		cfg:      cfg,
		router:   rt,
		pool:     pool,
		bus:      eventBus,
		queue:    taskQueue,
		patterns: patterns,
		logger:   logger,
		restart:  restart,
	}
}
