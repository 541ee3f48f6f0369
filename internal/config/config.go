// Package config provides gateway configuration with hot-reload support.
// The on-disk layout mirrors the admin panel's YAML: a flat model list,
// alias chains under router_settings, and feature blocks for the agent,
// cache, key management, and streaming subsystems.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete gateway configuration. Replaced atomically on
// reload; in-flight requests keep the snapshot they started with.
type Config struct {
	Server        ServerConfig    `yaml:"server"`
	ModelList     []ModelProfile  `yaml:"model_list"`
	Router        RouterSettings  `yaml:"router_settings"`
	Agent         AgentSettings   `yaml:"agent_settings"`
	Cache         CacheSettings   `yaml:"cache_settings"`
	KeyManagement KeySettings     `yaml:"key_management_settings"`
	Streaming     StreamSettings  `yaml:"streaming_settings"`
	Redis         RedisSettings   `yaml:"redis"`
	Logging       LoggingConfig   `yaml:"logging"`
	Metrics       MetricsConfig   `yaml:"metrics"`
	Tracing       TracingConfig   `yaml:"tracing"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	PromptDir    string        `yaml:"prompt_dir"`
	PatternDir   string        `yaml:"pattern_dir"`
	KeysDir      string        `yaml:"keys_dir"`
}

// ModelProfile is one concrete configuration for calling one upstream
// model. ModelName is the profile ID referenced by alias chains.
type ModelProfile struct {
	ModelName string      `yaml:"model_name"`
	Provider  string      `yaml:"provider"`
	Params    ModelParams `yaml:"model_params"`
}

// ModelParams holds upstream call parameters for a profile.
type ModelParams struct {
	Model         string        `yaml:"model"`
	APIBase       string        `yaml:"api_base,omitempty"`
	Temperature   *float64      `yaml:"temperature,omitempty"`
	MaxTokens     int           `yaml:"max_tokens,omitempty"`
	AgentSettings *ProfileAgent `yaml:"agent_settings,omitempty"`
}

// ProfileAgent carries per-profile agent overrides.
type ProfileAgent struct {
	ReasoningMode string `yaml:"reasoning_mode"`
}

// RouterSettings maps client-facing aliases to ordered profile chains.
type RouterSettings struct {
	ModelGroupAlias map[string][]string `yaml:"model_group_alias"`
}

// AgentSettings configures the reasoning engine.
type AgentSettings struct {
	MCPServerURL  string        `yaml:"mcp_server_url"`
	ReasoningMode string        `yaml:"reasoning_mode,omitempty"`
	MaxSteps      int           `yaml:"max_steps,omitempty"`
	Workers       int           `yaml:"workers,omitempty"`
	StepTimeout   time.Duration `yaml:"step_timeout,omitempty"`
	ToolTimeout   time.Duration `yaml:"tool_timeout,omitempty"`
}

// CacheRule gates caching per profile and selects the fingerprint fields.
type CacheRule struct {
	ModelNames   []string `yaml:"model_names"`
	IncludeInKey []string `yaml:"include_in_key"`
	TTLSeconds   int      `yaml:"ttl_seconds"`
}

// CacheSettings configures the response cache.
type CacheSettings struct {
	Enabled   bool        `yaml:"enabled"`
	Backend   string      `yaml:"backend"` // memory, redis
	KeyPrefix string      `yaml:"key_prefix"`
	Rules     []CacheRule `yaml:"rules"`
}

// VaultSettings configures optional credential seeding from Vault.
type VaultSettings struct {
	Address   string `yaml:"address"`
	Token     string `yaml:"token"`
	MountPath string `yaml:"mount_path"`
}

// KeySettings configures the credential pool.
type KeySettings struct {
	EnableQuarantine   bool           `yaml:"enable_quarantine"`
	QuarantineDuration time.Duration  `yaml:"quarantine_duration,omitempty"`
	SweepInterval      time.Duration  `yaml:"sweep_interval,omitempty"`
	Vault              *VaultSettings `yaml:"vault,omitempty"`
}

// StreamSettings configures SSE delivery behavior.
type StreamSettings struct {
	TypewriterMode string        `yaml:"typewriter_mode"` // proxy, client
	ReadTimeout    time.Duration `yaml:"read_timeout,omitempty"`
}

// RedisSettings configures the shared redis connection used by the cache
// backend, the session event bus, and the task queue.
type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
	Insecure    bool    `yaml:"insecure"`
}

// RateLimitConfig defines data-plane rate limiting parameters.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	BurstSize         int  `yaml:"burst_size"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			ReadTimeout: 30 * time.Second,
			// WriteTimeout stays zero: SSE responses must not be cut off.
			IdleTimeout: 60 * time.Second,
			PromptDir:   "prompts",
			PatternDir:  "prompts/patterns",
			KeysDir:     "keys_pool",
		},
		Agent: AgentSettings{
			ReasoningMode: "basic_react",
			MaxSteps:      12,
			Workers:       4,
			StepTimeout:   300 * time.Second,
			ToolTimeout:   300 * time.Second,
		},
		Cache: CacheSettings{
			Backend:   "memory",
			KeyPrefix: "cognigate:",
		},
		KeyManagement: KeySettings{
			EnableQuarantine:   true,
			QuarantineDuration: 5 * time.Minute,
			SweepInterval:      10 * time.Second,
		},
		Streaming: StreamSettings{
			TypewriterMode: "proxy",
			ReadTimeout:    60 * time.Second,
		},
		Redis: RedisSettings{
			Addr: "localhost:6379",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "cognigate",
			SampleRate:  1.0,
			Insecure:    true,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 120,
			BurstSize:         20,
		},
	}
}

// Parse decodes YAML bytes over the defaults and validates the result.
// Environment variables in ${VAR} form are expanded first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile reads and parses a YAML configuration file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Profile resolves a profile ID from the model list.
func (c *Config) Profile(id string) (*ModelProfile, bool) {
	for i := range c.ModelList {
		if c.ModelList[i].ModelName == id {
			return &c.ModelList[i], true
		}
	}
	return nil, false
}

// Chain resolves the ordered profile chain for an alias.
func (c *Config) Chain(alias string) ([]string, bool) {
	chain, ok := c.Router.ModelGroupAlias[alias]
	return chain, ok && len(chain) > 0
}

// IsAgentAlias reports whether any profile in the alias chain carries
// agent settings, which marks the alias as reasoning-capable.
func (c *Config) IsAgentAlias(alias string) bool {
	chain, ok := c.Chain(alias)
	if !ok {
		return false
	}
	for _, id := range chain {
		if p, ok := c.Profile(id); ok && p.Params.AgentSettings != nil {
			return true
		}
	}
	return false
}

// ReasoningModeFor returns the pattern name for an alias: the first
// per-profile override in the chain, falling back to the global default.
func (c *Config) ReasoningModeFor(alias string) string {
	if chain, ok := c.Chain(alias); ok {
		for _, id := range chain {
			if p, ok := c.Profile(id); ok && p.Params.AgentSettings != nil && p.Params.AgentSettings.ReasoningMode != "" {
				return p.Params.AgentSettings.ReasoningMode
			}
		}
	}
	return c.Agent.ReasoningMode
}

// ProviderModels returns the UI-facing provider to model-name mapping.
func (c *Config) ProviderModels() map[string][]string {
	out := make(map[string][]string)
	for _, p := range c.ModelList {
		out[p.Provider] = append(out[p.Provider], p.Params.Model)
	}
	return out
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	seen := make(map[string]bool, len(c.ModelList))
	for i, p := range c.ModelList {
		if p.ModelName == "" {
			return fmt.Errorf("model_list[%d]: model_name is required", i)
		}
		if seen[p.ModelName] {
			return fmt.Errorf("model_list[%d]: duplicate model_name %q", i, p.ModelName)
		}
		seen[p.ModelName] = true
		if p.Provider == "" {
			return fmt.Errorf("model_list[%d] %q: provider is required", i, p.ModelName)
		}
		if p.Params.Model == "" {
			return fmt.Errorf("model_list[%d] %q: model_params.model is required", i, p.ModelName)
		}
	}

	for alias, chain := range c.Router.ModelGroupAlias {
		if len(chain) == 0 {
			return fmt.Errorf("router_settings: alias %q has an empty chain", alias)
		}
		for _, id := range chain {
			if !seen[id] {
				return fmt.Errorf("router_settings: alias %q references unknown profile %q", alias, id)
			}
		}
	}

	for i, rule := range c.Cache.Rules {
		if len(rule.ModelNames) == 0 {
			return fmt.Errorf("cache_settings.rules[%d]: model_names is required", i)
		}
		if rule.TTLSeconds <= 0 {
			return fmt.Errorf("cache_settings.rules[%d]: ttl_seconds must be positive", i)
		}
	}

	switch c.Cache.Backend {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("cache_settings: unknown backend %q", c.Cache.Backend)
	}

	switch c.Streaming.TypewriterMode {
	case "", "proxy", "client":
	default:
		return fmt.Errorf("streaming_settings: unknown typewriter_mode %q", c.Streaming.TypewriterMode)
	}

	if c.Agent.MaxSteps < 0 {
		return fmt.Errorf("agent_settings: max_steps cannot be negative")
	}
	return nil
}
