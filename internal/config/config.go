// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Agent() AgentConfig
	LLM() LLMConfig
	Memory() MemoryConfig

	// Agent Setters
	SetAgentMaxSteps(int)

	// Browser Setters
	SetBrowserStartURL(string)
	SetBrowserHeadless(bool)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	AgentCfg   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	LLMCfg     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	MemoryCfg  MemoryConfig  `mapstructure:"memory" yaml:"memory"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Agent() AgentConfig     { return c.AgentCfg }
func (c *Config) LLM() LLMConfig         { return c.LLMCfg }
func (c *Config) Memory() MemoryConfig   { return c.MemoryCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetAgentMaxSteps(n int)      { c.AgentCfg.MaxSteps = n }
func (c *Config) SetBrowserStartURL(u string) { c.BrowserCfg.StartURL = u }
func (c *Config) SetBrowserHeadless(b bool)   { c.BrowserCfg.Headless = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls how the page under automation is obtained. When
// RemoteURL is set an already running browser is attached over its debugging
// websocket instead of launching a new one.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug           bool           `mapstructure:"debug" yaml:"debug"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
	RemoteURL       string         `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
	StartURL        string         `mapstructure:"start_url" yaml:"start_url"`
	LaunchTimeout   time.Duration  `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	NavTimeout      time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// SettleConfig tunes the page convergence wait.
type SettleConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Quiet   time.Duration `mapstructure:"quiet" yaml:"quiet"`
	Poll    time.Duration `mapstructure:"poll" yaml:"poll"`
	// Grace is added to Timeout for the outer bound enforced outside the page.
	Grace time.Duration `mapstructure:"grace" yaml:"grace"`
}

// AgentConfig holds the control loop bounds and per-action tuning.
type AgentConfig struct {
	MaxSteps            int           `mapstructure:"max_steps" yaml:"max_steps"`
	SnapshotCap         int           `mapstructure:"snapshot_cap" yaml:"snapshot_cap"`
	HistoryTail         int           `mapstructure:"history_tail" yaml:"history_tail"`
	StagnationWindow    int           `mapstructure:"stagnation_window" yaml:"stagnation_window"`
	StagnationThreshold int           `mapstructure:"stagnation_threshold" yaml:"stagnation_threshold"`
	ActionRetries       int           `mapstructure:"action_retries" yaml:"action_retries"`
	ActionTimeout       time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	HistoryBackTimeout  time.Duration `mapstructure:"history_back_timeout" yaml:"history_back_timeout"`
	TrustedInput        bool          `mapstructure:"trusted_input" yaml:"trusted_input"`
	Settle              SettleConfig  `mapstructure:"settle" yaml:"settle"`
}

// RetryConfig bounds the exponential backoff applied to oracle calls.
type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time" yaml:"max_elapsed_time"`
}

// LLMProvider names a supported oracle backend.
type LLMProvider string

const (
	ProviderGemini    LLMProvider = "gemini"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
)

// LLMConfig selects and tunes the oracle.
type LLMConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// RateLimit is the sustained requests per second; zero disables limiting.
	RateLimit float64     `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int         `mapstructure:"burst" yaml:"burst"`
	Retry     RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// MemoryBackend names a notes store implementation.
type MemoryBackend string

const (
	BackendMemory   MemoryBackend = "memory"
	BackendSQLite   MemoryBackend = "sqlite"
	BackendPostgres MemoryBackend = "postgres"
)

// MemoryConfig selects the persisted notes store.
type MemoryConfig struct {
	Backend     MemoryBackend `mapstructure:"backend" yaml:"backend"`
	SQLitePath  string        `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresURL string        `mapstructure:"postgres_url" yaml:"postgres_url"`
}

// NewDefaultConfig returns a configuration populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "axpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.start_url", "about:blank")
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.viewport", map[string]int{"width": 1366, "height": 900})

	// -- Agent --
	v.SetDefault("agent.max_steps", 15)
	v.SetDefault("agent.snapshot_cap", 250)
	v.SetDefault("agent.history_tail", 10)
	v.SetDefault("agent.stagnation_window", 6)
	v.SetDefault("agent.stagnation_threshold", 2)
	v.SetDefault("agent.action_retries", 1)
	v.SetDefault("agent.action_timeout", "20s")
	v.SetDefault("agent.history_back_timeout", "1500ms")
	v.SetDefault("agent.trusted_input", false)
	v.SetDefault("agent.settle.timeout", "5s")
	v.SetDefault("agent.settle.quiet", "800ms")
	v.SetDefault("agent.settle.poll", "100ms")
	v.SetDefault("agent.settle.grace", "2s")

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderGemini))
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 800)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.rate_limit", 1.0)
	v.SetDefault("llm.burst", 1)
	v.SetDefault("llm.retry.initial_interval", "500ms")
	v.SetDefault("llm.retry.max_interval", "10s")
	v.SetDefault("llm.retry.max_elapsed_time", "60s")

	// -- Memory --
	v.SetDefault("memory.backend", string(BackendSQLite))
	v.SetDefault("memory.sqlite_path", "~/.axpilot/notes.db")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Provider keys follow the names the SDKs document.
	_ = v.BindEnv("llm.api_key", "AXPILOT_LLM_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("memory.postgres_url", "AXPILOT_MEMORY_POSTGRES_URL", "DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LLMCfg.APIKey == "" {
		cfg.LLMCfg.APIKey = providerKeyFromEnv(cfg.LLMCfg.Provider)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// providerKeyFromEnv picks the conventional key variable for the provider when
// more than one SDK key is present in the environment.
func providerKeyFromEnv(p LLMProvider) string {
	switch p {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return os.Getenv("GEMINI_API_KEY")
	}
}

func (c *Config) expandPaths() error {
	var err error
	if c.MemoryCfg.SQLitePath, err = homedir.Expand(c.MemoryCfg.SQLitePath); err != nil {
		return fmt.Errorf("expanding memory.sqlite_path: %w", err)
	}
	if c.LoggerCfg.LogFile, err = homedir.Expand(c.LoggerCfg.LogFile); err != nil {
		return fmt.Errorf("expanding logger.log_file: %w", err)
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.AgentCfg.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if err := c.LLMCfg.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if err := c.MemoryCfg.Validate(); err != nil {
		return fmt.Errorf("memory configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the loop bounds.
func (a *AgentConfig) Validate() error {
	if a.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be a positive integer")
	}
	if a.SnapshotCap <= 0 {
		return fmt.Errorf("snapshot_cap must be a positive integer")
	}
	if a.HistoryTail < 0 {
		return fmt.Errorf("history_tail must not be negative")
	}
	if a.StagnationWindow <= 0 {
		return fmt.Errorf("stagnation_window must be a positive integer")
	}
	if a.StagnationThreshold < 1 || a.StagnationThreshold >= a.StagnationWindow {
		return fmt.Errorf("stagnation_threshold must be between 1 and stagnation_window-1")
	}
	if a.ActionRetries < 0 {
		return fmt.Errorf("action_retries must not be negative")
	}
	if a.Settle.Timeout <= 0 || a.Settle.Quiet <= 0 || a.Settle.Poll <= 0 {
		return fmt.Errorf("settle timeout, quiet and poll must be positive durations")
	}
	if a.Settle.Quiet > a.Settle.Timeout {
		return fmt.Errorf("settle.quiet must not exceed settle.timeout")
	}
	return nil
}

// Validate checks the oracle settings.
func (l *LLMConfig) Validate() error {
	switch l.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported provider %q", l.Provider)
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if l.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	return nil
}

// Validate checks the notes store settings.
func (m *MemoryConfig) Validate() error {
	switch m.Backend {
	case BackendMemory:
	case BackendSQLite:
		if m.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for the sqlite backend")
		}
	case BackendPostgres:
		if m.PostgresURL == "" {
			return fmt.Errorf("postgres_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unsupported backend %q", m.Backend)
	}
	return nil
}
