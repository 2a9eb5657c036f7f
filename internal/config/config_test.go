// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 15, cfg.Agent().MaxSteps)
	assert.Equal(t, 250, cfg.Agent().SnapshotCap)
	assert.Equal(t, 6, cfg.Agent().StagnationWindow)
	assert.Equal(t, 2, cfg.Agent().StagnationThreshold)
	assert.Equal(t, 5*time.Second, cfg.Agent().Settle.Timeout)
	assert.Equal(t, 800*time.Millisecond, cfg.Agent().Settle.Quiet)
	assert.Equal(t, 1500*time.Millisecond, cfg.Agent().HistoryBackTimeout)
	assert.Equal(t, ProviderGemini, cfg.LLM().Provider)
	assert.Equal(t, 0.2, cfg.LLM().Temperature)
	assert.Equal(t, BackendSQLite, cfg.Memory().Backend)
	assert.Equal(t, 1366, cfg.Browser().Viewport["width"])
	require.NoError(t, cfg.Validate())
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetAgentMaxSteps(3)
	cfg.SetBrowserStartURL("https://example.test")
	cfg.SetBrowserHeadless(false)

	assert.Equal(t, 3, cfg.Agent().MaxSteps)
	assert.Equal(t, "https://example.test", cfg.Browser().StartURL)
	assert.False(t, cfg.Browser().Headless)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"ZeroMaxSteps", func(c *Config) { c.AgentCfg.MaxSteps = 0 }, "max_steps must be a positive integer"},
		{"ZeroSnapshotCap", func(c *Config) { c.AgentCfg.SnapshotCap = 0 }, "snapshot_cap must be a positive integer"},
		{"ThresholdAtWindow", func(c *Config) { c.AgentCfg.StagnationThreshold = 6 }, "stagnation_threshold"},
		{"NegativeRetries", func(c *Config) { c.AgentCfg.ActionRetries = -1 }, "action_retries must not be negative"},
		{"QuietExceedsTimeout", func(c *Config) { c.AgentCfg.Settle.Quiet = 10 * time.Second }, "settle.quiet must not exceed settle.timeout"},
		{"UnknownProvider", func(c *Config) { c.LLMCfg.Provider = "llamafile" }, "unsupported provider"},
		{"MissingModel", func(c *Config) { c.LLMCfg.Model = " " }, "model is required"},
		{"HotTemperature", func(c *Config) { c.LLMCfg.Temperature = 3 }, "temperature must be between 0 and 2"},
		{"PostgresWithoutURL", func(c *Config) { c.MemoryCfg.Backend = BackendPostgres }, "postgres_url is required"},
		{"SQLiteWithoutPath", func(c *Config) { c.MemoryCfg.SQLitePath = "" }, "sqlite_path is required"},
		{"UnknownBackend", func(c *Config) { c.MemoryCfg.Backend = "redis" }, "unsupported backend"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("YAMLOverridesDefaults", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		yamlConfig := []byte(`
agent:
  max_steps: 4
  settle:
    quiet: 300ms
llm:
  provider: openai
  model: gpt-4o-mini
  api_key: sk-test
memory:
  backend: memory
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Agent().MaxSteps)
		assert.Equal(t, 300*time.Millisecond, cfg.Agent().Settle.Quiet)
		assert.Equal(t, 5*time.Second, cfg.Agent().Settle.Timeout, "untouched defaults survive")
		assert.Equal(t, ProviderOpenAI, cfg.LLM().Provider)
		assert.Equal(t, "sk-test", cfg.LLM().APIKey)
		assert.Equal(t, BackendMemory, cfg.Memory().Backend)
	})

	t.Run("ProviderKeyFromEnvironment", func(t *testing.T) {
		t.Setenv("AXPILOT_LLM_API_KEY", "")
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "ak-env")

		v := viper.New()
		SetDefaults(v)
		v.Set("llm.provider", "anthropic")
		v.Set("llm.model", "claude-sonnet-4-5")
		v.Set("memory.backend", "memory")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "ak-env", cfg.LLM().APIKey)
	})

	t.Run("HomeDirectoryExpansion", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		v := viper.New()
		SetDefaults(v)
		v.Set("memory.sqlite_path", "~/notes.db")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.NotContains(t, cfg.Memory().SQLitePath, "~")
	})

	t.Run("InvalidConfigRejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("agent.max_steps", 0)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
