package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminConfigRoundTrip(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.handler.GetConfig(rec, httptest.NewRequest(http.MethodGet, "/admin/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "model_list")
}

func TestAdminUpdateConfig(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("valid update swaps config", func(t *testing.T) {
		rec := postJSON(t, f.handler.UpdateConfig, "/admin/config", "server:\n  port: 9999\n")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 9999, f.mgr.Get().Server.Port)
	})

	t.Run("invalid update is rejected", func(t *testing.T) {
		before := f.mgr.Get().Server.Port
		rec := postJSON(t, f.handler.UpdateConfig, "/admin/config", "server:\n  port: -1\n")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, before, f.mgr.Get().Server.Port, "rejected update must not land")
	})
}

func TestAdminPromptContent(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("read existing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.GetPromptContent(rec, httptest.NewRequest(http.MethodGet,
			"/admin/prompt_content?path=server_instruction.txt", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "answer briefly", rec.Body.String())
	})

	t.Run("missing file is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.GetPromptContent(rec, httptest.NewRequest(http.MethodGet,
			"/admin/prompt_content?path=ghost.txt", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("traversal is rejected", func(t *testing.T) {
		for _, path := range []string{"../config.yaml", "/etc/passwd", "..", "a/../../b"} {
			rec := httptest.NewRecorder()
			f.handler.GetPromptContent(rec, httptest.NewRequest(http.MethodGet,
				"/admin/prompt_content?path="+path, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, "path %q must not escape the prompt dir", path)
		}
	})

	t.Run("write then list", func(t *testing.T) {
		rec := postJSON(t, f.handler.UpdatePromptContent,
			"/admin/prompt_content?path=patterns/deep_research.txt", "new pattern")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		f.handler.ListPrompts(rec, httptest.NewRequest(http.MethodGet, "/admin/prompts", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var out struct {
			Files []string `json:"files"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Contains(t, out.Files, "patterns/deep_research.txt")
		assert.Contains(t, out.Files, "server_instruction.txt")

		rec = httptest.NewRecorder()
		f.handler.ListReactPatterns(rec, httptest.NewRequest(http.MethodGet, "/admin/react_patterns", nil))
		var patterns struct {
			Patterns []string `json:"patterns"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patterns))
		assert.Contains(t, patterns.Patterns, "deep_research", "pattern store reloads after a prompt write")
	})
}

func TestAdminProviderModels(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ProviderModels(rec, httptest.NewRequest(http.MethodGet, "/admin/provider_models", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []string{"alpha-large", "alpha-large"}, out["alpha"])
}

func TestAdminKeys(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Keys(rec, httptest.NewRequest(http.MethodGet, "/admin/keys", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "alpha")
	assert.NotContains(t, body, "alpha-key", "secrets must never leave the pool")
}

func TestAdminQueueStats(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.handler.QueueStats(rec, httptest.NewRequest(http.MethodGet, "/admin/queue", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"depth":0}`, rec.Body.String())
}

func TestAdminRestart(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.handler.Restart(rec, httptest.NewRequest(http.MethodPost, "/admin/restart", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "restarting")

	select {
	case <-f.restarted:
	case <-time.After(time.Second):
		t.Fatal("restart callback never fired")
	}
}

func TestWriteErrorHidesUnclassified(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error(),
		"unclassified error detail must not leak to clients")
	assert.True(t, strings.Contains(rec.Body.String(), "internal server error"))
}
