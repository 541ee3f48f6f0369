package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/goccy/go-json"

	"github.com/cognigate/cognigate/pkg/types"
)

// defaultKeyFields participate in the fingerprint when a rule does not
// name its own include_in_key list.
var defaultKeyFields = []string{"model", "messages"}

// KeyGenerator builds deterministic cache keys from request content.
type KeyGenerator struct {
	prefix string
}

// NewKeyGenerator creates a generator with the given key prefix.
func NewKeyGenerator(prefix string) *KeyGenerator {
	return &KeyGenerator{prefix: prefix}
}

// Generate fingerprints the selected request fields. The field map is
// marshaled with lexicographically sorted keys, so two requests with
// identical selected content always hash to the same key regardless of
// field order in the incoming JSON.
func (g *KeyGenerator) Generate(profileID string, req *types.ChatRequest, fields []string) string {
	if len(fields) == 0 {
		fields = defaultKeyFields
	}

	selected := make(map[string]any, len(fields)+1)
	selected["profile"] = profileID
	for _, f := range fields {
		switch f {
		case "model":
			selected["model"] = req.Model
		case "messages":
			selected["messages"] = req.Messages
		case "temperature":
			if req.Temperature != nil {
				selected["temperature"] = *req.Temperature
			}
		case "top_p":
			if req.TopP != nil {
				selected["top_p"] = *req.TopP
			}
		case "max_tokens":
			if req.MaxTokens > 0 {
				selected["max_tokens"] = req.MaxTokens
			}
		case "stop":
			if len(req.Stop) > 0 {
				selected["stop"] = req.Stop
			}
		}
	}

	// Map keys marshal in sorted order, which makes the encoding
	// canonical without a separate normalization step.
	canonical, _ := json.Marshal(selected)
	sum := sha256.Sum256(canonical)
	return g.prefix + hex.EncodeToString(sum[:])
}
