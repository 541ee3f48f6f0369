package tools

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/cognigate/cognigate/pkg/errors"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := NewRegistry()
	RegisterBuiltins(registry)
	srv := NewServer(registry, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestRegistryDescriptorsSorted(t *testing.T) {
	registry := NewRegistry()
	RegisterBuiltins(registry)

	descs := registry.Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, "calculator", descs[0].Name)
	assert.Equal(t, "current_time", descs[1].Name)
}

func TestCalculator(t *testing.T) {
	cases := []struct {
		name string
		args map[string]any
		want float64
	}{
		{"add", map[string]any{"operation": "add", "a": 2.0, "b": 3.0}, 5},
		{"subtract", map[string]any{"operation": "subtract", "a": 2.0, "b": 3.0}, -1},
		{"multiply", map[string]any{"operation": "Multiply", "a": 6.0, "b": 7.0}, 42},
		{"divide", map[string]any{"operation": "divide", "a": 1.0, "b": 4.0}, 0.25},
		{"string operands", map[string]any{"operation": "add", "a": "2", "b": "3"}, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := calculator(context.Background(), tc.args)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, out.(map[string]float64)["result"], 1e-9)
		})
	}

	t.Run("division by zero", func(t *testing.T) {
		_, err := calculator(context.Background(), map[string]any{"operation": "divide", "a": 1.0, "b": 0.0})
		assert.Error(t, err)
	})

	t.Run("unknown operation", func(t *testing.T) {
		_, err := calculator(context.Background(), map[string]any{"operation": "modulo", "a": 1.0, "b": 2.0})
		assert.Error(t, err)
	})

	t.Run("missing operand", func(t *testing.T) {
		_, err := calculator(context.Background(), map[string]any{"operation": "add", "a": 1.0})
		assert.Error(t, err)
	})
}

func TestCurrentTime(t *testing.T) {
	t.Run("defaults to UTC", func(t *testing.T) {
		out, err := currentTime(context.Background(), map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "UTC", out.(map[string]string)["timezone"])
	})

	t.Run("named timezone", func(t *testing.T) {
		out, err := currentTime(context.Background(), map[string]any{"timezone": "Europe/Berlin"})
		require.NoError(t, err)
		assert.Equal(t, "Europe/Berlin", out.(map[string]string)["timezone"])
	})

	t.Run("unknown timezone", func(t *testing.T) {
		_, err := currentTime(context.Background(), map[string]any{"timezone": "Mars/Olympus"})
		assert.Error(t, err)
	})
}

func TestClientFetchDescriptors(t *testing.T) {
	ts := testServer(t)
	c := NewClient(ts.URL, time.Second)

	descs, err := c.FetchDescriptors(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, "calculator", descs[0].Name)
	assert.NotEmpty(t, descs[0].Description)
}

func TestClientInvokeSuccess(t *testing.T) {
	ts := testServer(t)
	c := NewClient(ts.URL, time.Second)

	obs, err := c.Invoke(context.Background(), "calculator",
		json.RawMessage(`{"operation":"multiply","a":6,"b":7}`))
	require.NoError(t, err)
	assert.Zero(t, obs.Error)
	assert.JSONEq(t, `{"result":42}`, string(obs.Result))
	assert.JSONEq(t, `{"result":42}`, obs.String())
}

func TestClientInvokeHTTPErrorBecomesObservation(t *testing.T) {
	ts := testServer(t)
	c := NewClient(ts.URL, time.Second)

	t.Run("unknown tool", func(t *testing.T) {
		obs, err := c.Invoke(context.Background(), "no_such_tool", nil)
		require.NoError(t, err, "HTTP-level failures must not abort the reasoning loop")
		assert.Equal(t, http.StatusNotFound, obs.Error)
		assert.Contains(t, obs.Detail, "unknown tool")
		assert.Contains(t, obs.String(), `"error":404`)
	})

	t.Run("handler failure", func(t *testing.T) {
		obs, err := c.Invoke(context.Background(), "calculator",
			json.RawMessage(`{"operation":"divide","a":1,"b":0}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, obs.Error)
		assert.Contains(t, obs.Detail, "division by zero")
	})

	t.Run("malformed arguments", func(t *testing.T) {
		obs, err := c.Invoke(context.Background(), "calculator", json.RawMessage(`{not json`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, obs.Error)
	})
}

func TestClientInvokeTransportFailure(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 100*time.Millisecond)

	_, err := c.Invoke(context.Background(), "calculator", nil)
	require.Error(t, err)
	assert.Equal(t, gwerrors.KindToolError, gwerrors.KindOf(err))
}

func TestClientFetchDescriptorsUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 100*time.Millisecond)

	_, err := c.FetchDescriptors(context.Background())
	assert.Error(t, err)
}

func TestServerHealth(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", strings.TrimSpace(string(body)))
}
