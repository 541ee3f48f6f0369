package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	serverInstructionFile = "server_instruction.txt"
	manifestDirName       = "manifests"
)

// ServerPrompts holds the operator-managed prompt material edited
// through the admin surface.
type ServerPrompts struct {
	Instruction string
	Manifests   []string
}

// LoadServerPrompts reads the server instruction and manifest files
// under dir. Everything is optional; a missing directory yields empty
// prompts rather than an error so fresh deployments boot clean.
func LoadServerPrompts(dir string) (ServerPrompts, error) {
	var out ServerPrompts

	data, err := os.ReadFile(filepath.Join(dir, serverInstructionFile))
	if err == nil {
		out.Instruction = string(data)
	} else if !os.IsNotExist(err) {
		return out, fmt.Errorf("read server instruction: %w", err)
	}

	manifestDir := filepath.Join(dir, manifestDirName)
	entries, err := os.ReadDir(manifestDir)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("read manifest dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(manifestDir, name))
		if err != nil {
			return out, fmt.Errorf("read manifest %s: %w", name, err)
		}
		out.Manifests = append(out.Manifests, string(data))
	}
	return out, nil
}
