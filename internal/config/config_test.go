package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 9090
model_list:
  - model_name: gpt-4o-main
    provider: openai
    model_params:
      model: gpt-4o
      temperature: 0.5
  - model_name: deepseek-chat
    provider: deepseek
    model_params:
      model: deepseek-chat
  - model_name: agent-profile
    provider: openai
    model_params:
      model: gpt-4o
      agent_settings:
        reasoning_mode: plan_execute
router_settings:
  model_group_alias:
    gpt-4o: [gpt-4o-main, deepseek-chat]
    agent: [agent-profile]
agent_settings:
  mcp_server_url: http://localhost:8601
  max_steps: 8
cache_settings:
  enabled: true
  rules:
    - model_names: [gpt-4o-main]
      include_in_key: [model, messages]
      ttl_seconds: 120
`

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout, "unset fields keep defaults")
	assert.Equal(t, "basic_react", cfg.Agent.ReasoningMode)
	assert.Equal(t, 8, cfg.Agent.MaxSteps)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "proxy", cfg.Streaming.TypewriterMode)
	assert.True(t, cfg.KeyManagement.EnableQuarantine)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6380")
	cfg, err := Parse([]byte("redis:\n  addr: ${TEST_REDIS_ADDR}\n"))
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
}

func TestProfileAndChain(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	t.Run("profile lookup", func(t *testing.T) {
		p, ok := cfg.Profile("deepseek-chat")
		require.True(t, ok)
		assert.Equal(t, "deepseek", p.Provider)

		_, ok = cfg.Profile("nope")
		assert.False(t, ok)
	})

	t.Run("chain lookup", func(t *testing.T) {
		chain, ok := cfg.Chain("gpt-4o")
		require.True(t, ok)
		assert.Equal(t, []string{"gpt-4o-main", "deepseek-chat"}, chain)

		_, ok = cfg.Chain("nope")
		assert.False(t, ok)
	})
}

func TestAgentAliasDetection(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.True(t, cfg.IsAgentAlias("agent"))
	assert.False(t, cfg.IsAgentAlias("gpt-4o"))
	assert.False(t, cfg.IsAgentAlias("nope"))

	assert.Equal(t, "plan_execute", cfg.ReasoningModeFor("agent"),
		"per-profile override wins")
	assert.Equal(t, "basic_react", cfg.ReasoningModeFor("gpt-4o"),
		"global default applies without an override")
}

func TestProviderModels(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	models := cfg.ProviderModels()
	assert.ElementsMatch(t, []string{"gpt-4o", "gpt-4o"}, models["openai"])
	assert.Equal(t, []string{"deepseek-chat"}, models["deepseek"])
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			"bad port",
			"server:\n  port: 99999\n",
			"invalid server port",
		},
		{
			"duplicate profile",
			"model_list:\n  - model_name: a\n    provider: p\n    model_params: {model: m}\n  - model_name: a\n    provider: p\n    model_params: {model: m}\n",
			"duplicate model_name",
		},
		{
			"missing provider",
			"model_list:\n  - model_name: a\n    model_params: {model: m}\n",
			"provider is required",
		},
		{
			"alias references unknown profile",
			"router_settings:\n  model_group_alias:\n    x: [ghost]\n",
			"unknown profile",
		},
		{
			"cache rule without ttl",
			"cache_settings:\n  rules:\n    - model_names: [a]\n",
			"ttl_seconds",
		},
		{
			"unknown cache backend",
			"cache_settings:\n  backend: memcached\n",
			"unknown backend",
		},
		{
			"unknown typewriter mode",
			"streaming_settings:\n  typewriter_mode: burst\n",
			"typewriter_mode",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
