package tools

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Server is the tool gateway HTTP surface.
type Server struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// NewServer creates the tool HTTP surface. timeout bounds each tool
// execution.
func NewServer(registry *Registry, timeout time.Duration, logger *slog.Logger) *Server {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: registry, timeout: timeout, logger: logger}
}

// Routes builds the tool server mux: health at the root, descriptor
// metadata at /tools, invocation at /tools/{name}.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleList)
	mux.HandleFunc("POST /tools/{name}", s.handleInvoke)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.registry.Descriptors())
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	tool, ok := s.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tool: "+name)
		return
	}

	var args map[string]any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument JSON: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	result, err := tool.Handle(ctx, args)
	if err != nil {
		s.logger.Warn("tool execution failed",
			"tool", name, "duration", time.Since(start), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("tool executed", "tool", name, "duration", time.Since(start))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": detail})
}
