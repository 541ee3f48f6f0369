package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/cognigate/cognigate/internal/bus"
	"github.com/cognigate/cognigate/internal/metrics"
	"github.com/cognigate/cognigate/internal/observability"
	"github.com/cognigate/cognigate/internal/queue"
	gwerrors "github.com/cognigate/cognigate/pkg/errors"
)

// ackWindow is how long the responder waits for worker_ack before the
// session is declared dead.
const ackWindow = 10 * time.Second

type sessionRequest struct {
	UserQuery               string   `json:"user_query"`
	ModelAlias              string   `json:"model_alias"`
	ReasoningMode           string   `json:"reasoning_mode,omitempty"`
	ClientSystemInstruction string   `json:"client_system_instruction,omitempty"`
	ClientManifests         []string `json:"client_manifests,omitempty"`
	SafetyFlags             []string `json:"safety_flags,omitempty"`
}

// ReactSession serves POST /v1/react/sessions. The subscription is
// opened before the task is enqueued so no worker event can be lost to
// the non-retentive channel, then the worker_ack handshake gates the
// stream.
func (h *Handler) ReactSession(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	log := h.logger.WithRequestID(r.Context())

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.UserQuery == "" {
		writeBadRequest(w, "user_query is required")
		return
	}
	if req.ModelAlias == "" {
		writeBadRequest(w, "model_alias is required")
		return
	}

	cfg := h.cfg.Get()
	if _, ok := cfg.Chain(req.ModelAlias); !ok {
		if _, ok := cfg.Profile(req.ModelAlias); !ok {
			writeError(w, gwerrors.NewAliasNotFound(req.ModelAlias))
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errors.New("streaming unsupported by connection"))
		return
	}

	sessionID := uuid.NewString()

	sub, err := h.bus.Subscribe(r.Context(), sessionID)
	if err != nil {
		log.Error("session subscribe failed", "session_id", sessionID, "error", err)
		writeError(w, err)
		metrics.ObserveRequest("react_sessions", req.ModelAlias, statusOf(err), started)
		return
	}
	defer sub.Close()

	task := &queue.Task{
		SessionID:     sessionID,
		Alias:         req.ModelAlias,
		UserQuery:     req.UserQuery,
		ReasoningMode: req.ReasoningMode,
		ClientInstructions: queue.ClientInstructions{
			SystemInstruction: req.ClientSystemInstruction,
			Manifests:         req.ClientManifests,
		},
		SafetyFlags: req.SafetyFlags,
		RequestID:   observability.RequestIDFromContext(r.Context()),
	}
	if err := h.queue.Enqueue(r.Context(), task); err != nil {
		log.Error("session enqueue failed", "session_id", sessionID, "error", err)
		writeError(w, err)
		metrics.ObserveRequest("react_sessions", req.ModelAlias, statusOf(err), started)
		return
	}
	metrics.QueueDepth.Inc()

	buffered, err := bus.AwaitAck(r.Context(), sub, ackWindow)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = gwerrors.NewWorkerTimeout(sessionID)
		}
		log.Warn("session handshake failed", "session_id", sessionID, "error", err)
		writeError(w, err)
		metrics.ObserveRequest("react_sessions", req.ModelAlias, statusOf(err), started)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, ev := range buffered {
		writeSSEEvent(w, flusher, ev)
		if ev.Terminal() {
			metrics.ObserveRequest("react_sessions", req.ModelAlias, http.StatusOK, started)
			return
		}
	}

	readTimeout := cfg.Streaming.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 60 * time.Second
	}
	timer := time.NewTimer(readTimeout)
	defer timer.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info("session client disconnected", "session_id", sessionID)
			metrics.ObserveRequest("react_sessions", req.ModelAlias, http.StatusOK, started)
			return
		case <-timer.C:
			log.Warn("session stream idle timeout", "session_id", sessionID)
			metrics.ObserveRequest("react_sessions", req.ModelAlias, http.StatusGatewayTimeout, started)
			return
		case ev, ok := <-sub.Events():
			if !ok {
				log.Warn("session subscription closed", "session_id", sessionID)
				metrics.ObserveRequest("react_sessions", req.ModelAlias, http.StatusOK, started)
				return
			}
			writeSSEEvent(w, flusher, ev)
			if ev.Terminal() {
				metrics.ObserveRequest("react_sessions", req.ModelAlias, http.StatusOK, started)
				return
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(readTimeout)
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, ev bus.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	io.WriteString(w, "data: ")
	w.Write(payload)
	io.WriteString(w, "\n\n")
	flusher.Flush()
}
