package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// maxAdminBody bounds admin request bodies.
const maxAdminBody = 1 << 20

// GetConfig serves GET /admin/config: the raw YAML as stored on disk,
// not the parsed form, so comments and ordering survive round trips.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	raw, err := h.cfg.Raw()
	if err != nil {
		h.logger.WithRequestID(r.Context()).Error("config read failed", "error", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// UpdateConfig serves POST /admin/config. The new YAML is validated
// and swapped in before the write is acknowledged, so a rejected
// config never reaches disk.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAdminBody))
	if err != nil {
		writeBadRequest(w, "read body: "+err.Error())
		return
	}
	if err := h.cfg.WriteAndReload(body); err != nil {
		h.logger.WithRequestID(r.Context()).Warn("config update rejected", "error", err)
		writeBadRequest(w, "config rejected: "+err.Error())
		return
	}
	h.logger.WithRequestID(r.Context()).Info("config updated via admin")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// promptPath resolves a client-supplied relative path under the prompt
// directory, rejecting anything that escapes it.
func (h *Handler) promptPath(rel string) (string, bool) {
	if rel == "" {
		return "", false
	}
	base := h.cfg.Get().Server.PromptDir
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(base, clean), true
}

// GetPromptContent serves GET /admin/prompt_content?path=…
func (h *Handler) GetPromptContent(w http.ResponseWriter, r *http.Request) {
	path, ok := h.promptPath(r.URL.Query().Get("path"))
	if !ok {
		writeBadRequest(w, "invalid path")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: errorDetail{
				Message: "prompt file not found",
				Type:    "not_found",
			}})
			return
		}
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// UpdatePromptContent serves POST /admin/prompt_content?path=…
func (h *Handler) UpdatePromptContent(w http.ResponseWriter, r *http.Request) {
	path, ok := h.promptPath(r.URL.Query().Get("path"))
	if !ok {
		writeBadRequest(w, "invalid path")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAdminBody))
	if err != nil {
		writeBadRequest(w, "read body: "+err.Error())
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		writeError(w, err)
		return
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		writeError(w, err)
		return
	}
	if err := h.patterns.Reload(); err != nil {
		h.logger.WithRequestID(r.Context()).Warn("pattern reload after prompt write failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "path": r.URL.Query().Get("path")})
}

// ListPrompts serves GET /admin/prompts: every text file under the
// prompt directory, relative paths, sorted by walk order.
func (h *Handler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	base := h.cfg.Get().Server.PromptDir

	var files []string
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !strings.HasSuffix(d.Name(), ".txt") {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		writeError(w, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// ListReactPatterns serves GET /admin/react_patterns.
func (h *Handler) ListReactPatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"patterns": h.patterns.Names()})
}

// ProviderModels serves GET /admin/provider_models, the UI-only
// provider to model-list mapping declared in config.
func (h *Handler) ProviderModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg.Get().ProviderModels())
}

// Keys serves GET /admin/keys: per-provider credential counts by
// state. Secrets themselves never leave the pool.
func (h *Handler) Keys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pool.SnapshotAll())
}

// Restart serves POST /admin/restart. The response is written first;
// the supervisor restarts the process after the callback fires.
func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	h.logger.WithRequestID(r.Context()).Info("restart requested via admin")
	writeJSON(w, http.StatusOK, map[string]string{"status": "restarting"})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	if h.restart != nil {
		go h.restart()
	}
}

// QueueStats serves GET /admin/queue: current depth of the reasoning
// task queue.
func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	n, err := h.queue.Len(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"depth": n})
}
