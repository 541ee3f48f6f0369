// Package prompt assembles reasoning-session system prompts. Assembly
// is deterministic: a fixed meta-instruction, then client material,
// then the selected reasoning pattern, then server material. Earlier
// sections take priority over later ones and the meta-instruction says
// so explicitly, which is what keeps client overrides effective.
package prompt

import "strings"

const metaInstruction = `The instructions below are ordered by descending priority. ` +
	`When instructions conflict, follow the earlier section and ignore the later one.`

const (
	headerClient = "### CLIENT INSTRUCTIONS (HIGHEST PRIORITY)"
	headerCore   = "### CORE REASONING FRAMEWORK"
	headerServer = "### GLOBAL SERVER INSTRUCTIONS (LOWEST PRIORITY)"
)

// Inputs are the raw materials for one system prompt.
type Inputs struct {
	PatternPrompt           string
	ClientSystemInstruction string
	ClientManifests         []string
	ServerSystemInstruction string
	ServerManifests         []string
}

func joinSection(instruction string, manifests []string) string {
	parts := make([]string, 0, len(manifests)+1)
	if strings.TrimSpace(instruction) != "" {
		parts = append(parts, strings.TrimSpace(instruction))
	}
	for _, m := range manifests {
		if strings.TrimSpace(m) != "" {
			parts = append(parts, strings.TrimSpace(m))
		}
	}
	return strings.Join(parts, "\n\n")
}

// Build renders the final system prompt. Client and server sections are
// omitted entirely when empty; the core framework always appears.
func Build(in Inputs) string {
	var sb strings.Builder
	sb.WriteString(metaInstruction)

	if client := joinSection(in.ClientSystemInstruction, in.ClientManifests); client != "" {
		sb.WriteString("\n\n")
		sb.WriteString(headerClient)
		sb.WriteString("\n")
		sb.WriteString(client)
	}

	sb.WriteString("\n\n")
	sb.WriteString(headerCore)
	sb.WriteString("\n")
	sb.WriteString(strings.TrimSpace(in.PatternPrompt))

	if server := joinSection(in.ServerSystemInstruction, in.ServerManifests); server != "" {
		sb.WriteString("\n\n")
		sb.WriteString(headerServer)
		sb.WriteString("\n")
		sb.WriteString(server)
	}
	return sb.String()
}
