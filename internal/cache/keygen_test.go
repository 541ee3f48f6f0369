package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cognigate/cognigate/pkg/types"
)

func chatReq(content string) *types.ChatRequest {
	return &types.ChatRequest{
		Model:    "gpt-4o",
		Messages: []types.Message{{Role: "user", Content: content}},
	}
}

func TestKeyGeneratorDeterministic(t *testing.T) {
	gen := NewKeyGenerator("cognigate:")

	k1 := gen.Generate("profile-a", chatReq("hello"), nil)
	k2 := gen.Generate("profile-a", chatReq("hello"), nil)

	assert.Equal(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, "cognigate:"))
	assert.Len(t, k1, len("cognigate:")+64)
}

func TestKeyGeneratorContentSensitivity(t *testing.T) {
	gen := NewKeyGenerator("cognigate:")

	base := gen.Generate("profile-a", chatReq("hello"), nil)

	t.Run("different content differs", func(t *testing.T) {
		assert.NotEqual(t, base, gen.Generate("profile-a", chatReq("world"), nil))
	})

	t.Run("different profile differs", func(t *testing.T) {
		assert.NotEqual(t, base, gen.Generate("profile-b", chatReq("hello"), nil))
	})

	t.Run("non-ascii content is stable", func(t *testing.T) {
		k1 := gen.Generate("profile-a", chatReq("こんにちは"), nil)
		k2 := gen.Generate("profile-a", chatReq("こんにちは"), nil)
		assert.Equal(t, k1, k2)
		assert.NotEqual(t, base, k1)
	})
}

func TestKeyGeneratorFieldSelection(t *testing.T) {
	gen := NewKeyGenerator("cognigate:")

	temp := 0.7
	req := chatReq("hello")
	req.Temperature = &temp

	t.Run("unselected fields are ignored", func(t *testing.T) {
		k1 := gen.Generate("profile-a", req, []string{"model", "messages"})
		k2 := gen.Generate("profile-a", chatReq("hello"), []string{"model", "messages"})
		assert.Equal(t, k1, k2)
	})

	t.Run("selected temperature participates", func(t *testing.T) {
		k1 := gen.Generate("profile-a", req, []string{"model", "messages", "temperature"})
		k2 := gen.Generate("profile-a", chatReq("hello"), []string{"model", "messages", "temperature"})
		assert.NotEqual(t, k1, k2)
	})

	t.Run("empty field list uses defaults", func(t *testing.T) {
		k1 := gen.Generate("profile-a", req, nil)
		k2 := gen.Generate("profile-a", req, []string{"model", "messages"})
		assert.Equal(t, k1, k2)
	})
}
