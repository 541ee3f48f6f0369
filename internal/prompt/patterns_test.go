package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	mcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/cognigate/cognigate/pkg/errors"
)

func writePattern(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func calculatorTool() mcp.Tool {
	return mcp.Tool{
		Name:        "calculator",
		Description: "evaluates arithmetic expressions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"expression": map[string]any{"type": "string", "description": "the expression to evaluate"},
			},
		},
	}
}

func TestPatternStoreDiscovery(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "basic_react.txt", "react pattern")
	writePattern(t, dir, "plan_execute.txt", "plan pattern")
	writePattern(t, dir, "notes.md", "not a pattern")

	s, err := NewPatternStore(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"basic_react", "plan_execute"}, s.Names())
}

func TestPatternStoreMissingDir(t *testing.T) {
	s, err := NewPatternStore(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	require.NotNil(t, s, "callers warn and keep serving with an empty store")
	assert.Empty(t, s.Names())
}

func TestPatternStoreReloadPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "basic_react.txt", "v1")

	s, err := NewPatternStore(dir)
	require.NoError(t, err)

	writePattern(t, dir, "deep_research.txt", "v1")
	require.NoError(t, s.Reload())
	assert.Equal(t, []string{"basic_react", "deep_research"}, s.Names())
}

func TestRenderSubstitutesPlaceholder(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "basic_react.txt", "before\n{{TOOL_DESCRIPTORS}}\nafter")

	s, err := NewPatternStore(dir)
	require.NoError(t, err)

	out, err := s.Render("basic_react", []mcp.Tool{calculatorTool()})
	require.NoError(t, err)
	assert.Contains(t, out, "before\n")
	assert.Contains(t, out, "\nafter")
	assert.Contains(t, out, "calculator: evaluates arithmetic expressions")
	assert.NotContains(t, out, toolsPlaceholder)
}

func TestRenderAppendsWithoutPlaceholder(t *testing.T) {
	dir := t.TempDir()
	writePattern(t, dir, "basic_react.txt", "pattern body\n")

	s, err := NewPatternStore(dir)
	require.NoError(t, err)

	t.Run("with tools", func(t *testing.T) {
		out, err := s.Render("basic_react", []mcp.Tool{calculatorTool()})
		require.NoError(t, err)
		assert.Contains(t, out, "pattern body\n\nAvailable tools:")
	})

	t.Run("without tools", func(t *testing.T) {
		out, err := s.Render("basic_react", nil)
		require.NoError(t, err)
		assert.Equal(t, "pattern body\n", out)
	})
}

func TestRenderUnknownPattern(t *testing.T) {
	s, err := NewPatternStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Render("missing", nil)
	require.Error(t, err)
	assert.Equal(t, gwerrors.KindUnknownPattern, gwerrors.KindOf(err))
}

func TestRenderTools(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, RenderTools(nil))
	})

	t.Run("parameters are listed sorted", func(t *testing.T) {
		tool := mcp.Tool{
			Name:        "search",
			Description: "searches the web",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"query": map[string]any{"description": "search terms"},
					"limit": map[string]any{"description": "max results"},
				},
			},
		}
		out := RenderTools([]mcp.Tool{tool})
		assert.Contains(t, out, "- search: searches the web")
		limitIdx := strings.Index(out, "limit: max results")
		queryIdx := strings.Index(out, "query: search terms")
		assert.Positive(t, limitIdx)
		assert.Greater(t, queryIdx, limitIdx)
	})
}
