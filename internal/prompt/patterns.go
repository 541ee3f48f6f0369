package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	mcp "github.com/mark3labs/mcp-go/mcp"

	gwerrors "github.com/cognigate/cognigate/pkg/errors"
)

// toolsPlaceholder marks where a pattern wants the tool descriptor
// block. Patterns without the placeholder get the block appended.
const toolsPlaceholder = "{{TOOL_DESCRIPTORS}}"

// PatternStore holds the reasoning patterns discovered at startup.
// Reload replaces the whole set, so the admin surface can add patterns
// without a restart.
type PatternStore struct {
	mu       sync.RWMutex
	dir      string
	patterns map[string]string
}

// NewPatternStore enumerates pattern files in dir. Every *.txt file
// becomes a pattern named by its base name. On error the store is
// still returned, empty, so callers can warn and keep serving.
func NewPatternStore(dir string) (*PatternStore, error) {
	s := &PatternStore{dir: dir, patterns: make(map[string]string)}
	if err := s.Reload(); err != nil {
		return s, err
	}
	return s, nil
}

// Reload rescans the pattern directory.
func (s *PatternStore) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read pattern dir: %w", err)
	}

	patterns := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read pattern %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".txt")
		patterns[name] = string(data)
	}

	s.mu.Lock()
	s.patterns = patterns
	s.mu.Unlock()
	return nil
}

// Names returns the discovered pattern names, sorted.
func (s *PatternStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.patterns))
	for name := range s.patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render resolves a pattern by name and substitutes the tool descriptor
// block. Unknown names fail the session.
func (s *PatternStore) Render(name string, tools []mcp.Tool) (string, error) {
	s.mu.RLock()
	text, ok := s.patterns[name]
	s.mu.RUnlock()

	if !ok {
		return "", gwerrors.NewUnknownPattern(name)
	}

	block := RenderTools(tools)
	if strings.Contains(text, toolsPlaceholder) {
		return strings.ReplaceAll(text, toolsPlaceholder, block), nil
	}
	if block == "" {
		return text, nil
	}
	return strings.TrimRight(text, "\n") + "\n\n" + block, nil
}

// RenderTools formats tool descriptors for the prompt: one block per
// tool with its summary and parameter schema.
func RenderTools(tools []mcp.Tool) string {
	if len(tools) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Available tools:\n")
	for _, t := range tools {
		sb.WriteString(fmt.Sprintf("\n- %s: %s\n", t.Name, t.Description))
		if len(t.InputSchema.Properties) > 0 {
			keys := make([]string, 0, len(t.InputSchema.Properties))
			for k := range t.InputSchema.Properties {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			sb.WriteString("  parameters:\n")
			for _, k := range keys {
				desc := ""
				if prop, ok := t.InputSchema.Properties[k].(map[string]any); ok {
					if d, ok := prop["description"].(string); ok {
						desc = d
					}
				}
				sb.WriteString(fmt.Sprintf("    %s: %s\n", k, desc))
			}
		}
	}
	return sb.String()
}
