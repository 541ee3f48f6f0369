package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/cognigate/cognigate/internal/metrics"
	"github.com/cognigate/cognigate/pkg/types"
)

// ChatCompletions serves POST /v1/chat/completions.
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Model == "" {
		writeBadRequest(w, "model is required")
		return
	}
	if len(req.Messages) == 0 {
		writeBadRequest(w, "messages must not be empty")
		return
	}

	log := h.logger.WithRequestID(r.Context())

	if req.Stream {
		h.streamCompletion(w, r, &req, started)
		return
	}

	resp, err := h.router.Complete(r.Context(), req.Model, &req)
	if err != nil {
		log.Warn("chat completion failed", "alias", req.Model, "error", err)
		writeError(w, err)
		metrics.ObserveRequest("chat_completions", req.Model, statusOf(err), started)
		return
	}

	writeJSON(w, http.StatusOK, resp)
	metrics.ObserveRequest("chat_completions", req.Model, http.StatusOK, started)
}

func (h *Handler) streamCompletion(w http.ResponseWriter, r *http.Request, req *types.ChatRequest, started time.Time) {
	log := h.logger.WithRequestID(r.Context())

	handler, err := h.router.Stream(r.Context(), req.Model, req)
	if err != nil {
		log.Warn("stream start failed", "alias", req.Model, "error", err)
		writeError(w, err)
		metrics.ObserveRequest("chat_completions", req.Model, statusOf(err), started)
		return
	}
	defer handler.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errors.New("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	typewriter := h.cfg.Get().Streaming.TypewriterMode == "proxy"

	for {
		chunk, err := handler.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn("stream interrupted", "alias", req.Model, "error", err)
			break
		}

		if typewriter {
			writeTypewriterChunks(w, flusher, chunk)
			continue
		}
		writeSSEChunk(w, flusher, chunk)
	}

	io.WriteString(w, "data: [DONE]\n\n")
	flusher.Flush()
	metrics.ObserveRequest("chat_completions", req.Model, http.StatusOK, started)
}

func writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, chunk *types.StreamChunk) {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	io.WriteString(w, "data: ")
	w.Write(payload)
	io.WriteString(w, "\n\n")
	flusher.Flush()
}

// writeTypewriterChunks re-frames one upstream chunk as a chunk per
// character, which evens out bursty upstreams into a steady stream.
func writeTypewriterChunks(w http.ResponseWriter, flusher http.Flusher, chunk *types.StreamChunk) {
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		writeSSEChunk(w, flusher, chunk)
		return
	}

	content := chunk.Choices[0].Delta.Content
	for _, r := range content {
		single := *chunk
		single.Choices = []types.StreamChoice{chunk.Choices[0]}
		single.Choices[0].Delta.Content = string(r)
		single.Choices[0].FinishReason = nil
		writeSSEChunk(w, flusher, &single)
	}
	if chunk.Choices[0].FinishReason != nil {
		final := *chunk
		final.Choices = []types.StreamChoice{{
			Index:        chunk.Choices[0].Index,
			FinishReason: chunk.Choices[0].FinishReason,
		}}
		writeSSEChunk(w, flusher, &final)
	}
}

// Embeddings serves POST /v1/embeddings.
func (h *Handler) Embeddings(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req types.EmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Model == "" || len(req.Input) == 0 {
		writeBadRequest(w, "model and input are required")
		return
	}

	resp, err := h.router.Embed(r.Context(), req.Model, &req)
	if err != nil {
		h.logger.WithRequestID(r.Context()).Warn("embedding failed", "alias", req.Model, "error", err)
		writeError(w, err)
		metrics.ObserveRequest("embeddings", req.Model, statusOf(err), started)
		return
	}

	writeJSON(w, http.StatusOK, resp)
	metrics.ObserveRequest("embeddings", req.Model, http.StatusOK, started)
}

// Speech serves POST /v1/audio/speech. The upstream audio body is
// copied through unchanged.
func (h *Handler) Speech(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req types.SpeechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Model == "" || req.Input == "" {
		writeBadRequest(w, "model and input are required")
		return
	}

	body, contentType, err := h.router.Speech(r.Context(), req.Model, &req)
	if err != nil {
		h.logger.WithRequestID(r.Context()).Warn("speech failed", "alias", req.Model, "error", err)
		writeError(w, err)
		metrics.ObserveRequest("speech", req.Model, statusOf(err), started)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
	metrics.ObserveRequest("speech", req.Model, http.StatusOK, started)
}

// Models serves GET /v1/models/all-runnable: every alias plus its
// agent capability flag.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	cfg := h.cfg.Get()

	out := make([]types.ModelInfo, 0, len(cfg.Router.ModelGroupAlias))
	for alias := range cfg.Router.ModelGroupAlias {
		out = append(out, types.ModelInfo{
			ID:      alias,
			Name:    alias,
			IsAgent: cfg.IsAgentAlias(alias),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// Healthz serves the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusOf(err error) int {
	var ge interface{ HTTPStatusCode() int }
	if errors.As(err, &ge) {
		return ge.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}
