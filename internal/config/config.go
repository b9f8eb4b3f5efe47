// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
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
	Server() ServerConfig

	// Browser Setters
	SetBrowserHeadless(bool)

	// Agent Setters
	SetAgentMaxTurns(int)
	SetAgentInitialURL(string)
	SetAgentAutoApprove(bool)
}

// Config holds the entire application configuration. Sections are exported
// so viper can unmarshal into them; callers should go through Interface.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	AgentCfg   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	LLMCfg     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	ServerCfg  ServerConfig  `mapstructure:"server" yaml:"server"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Agent() AgentConfig     { return c.AgentCfg }
func (c *Config) LLM() LLMConfig         { return c.LLMCfg }
func (c *Config) Server() ServerConfig   { return c.ServerCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)   { c.BrowserCfg.Headless = b }
func (c *Config) SetAgentMaxTurns(n int)      { c.AgentCfg.MaxTurns = n }
func (c *Config) SetAgentInitialURL(u string) { c.AgentCfg.InitialURL = u }
func (c *Config) SetAgentAutoApprove(b bool)  { c.AgentCfg.AutoApproveSafety = b }

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

// BrowserConfig holds settings for the controlled browser instance.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Width             int           `mapstructure:"width" yaml:"width"`
	Height            int           `mapstructure:"height" yaml:"height"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// PostSettleDelay is slept after every settle wait, stable or not.
	PostSettleDelay time.Duration `mapstructure:"post_settle_delay" yaml:"post_settle_delay"`
	HighlightMouse  bool          `mapstructure:"highlight_mouse" yaml:"highlight_mouse"`
	SearchURL       string        `mapstructure:"search_url" yaml:"search_url"`
}

// AgentConfig holds settings for the agent loop.
type AgentConfig struct {
	MaxTurns   int    `mapstructure:"max_turns" yaml:"max_turns"`
	InitialURL string `mapstructure:"initial_url" yaml:"initial_url"`
	// SettleTimeout bounds the wait for the page to stabilize after each action.
	SettleTimeout     time.Duration `mapstructure:"settle_timeout" yaml:"settle_timeout"`
	AutoApproveSafety bool          `mapstructure:"auto_approve_safety" yaml:"auto_approve_safety"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// ToolMode selects how actions are advertised to the model.
type ToolMode string

const (
	// ToolModeFunctions sends every action as an explicit function declaration.
	ToolModeFunctions ToolMode = "functions"
	// ToolModeComputerUse enables the provider's native browser tool.
	ToolModeComputerUse ToolMode = "computer_use"
)

// LLMConfig defines the model backing the agent.
type LLMConfig struct {
	Provider          LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model             string            `mapstructure:"model" yaml:"model"`
	APIKey            string            `mapstructure:"api_key" yaml:"-"`
	Endpoint          string            `mapstructure:"endpoint" yaml:"endpoint"`
	UseVertexAI       bool              `mapstructure:"use_vertex_ai" yaml:"use_vertex_ai"`
	Project           string            `mapstructure:"project" yaml:"project"`
	Location          string            `mapstructure:"location" yaml:"location"`
	APITimeout        time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32           `mapstructure:"temperature" yaml:"temperature"`
	ToolMode          ToolMode          `mapstructure:"tool_mode" yaml:"tool_mode"`
	ExcludedFunctions []string          `mapstructure:"excluded_functions" yaml:"excluded_functions"`
	SystemInstruction string            `mapstructure:"system_instruction" yaml:"system_instruction"`
	IncludeThoughts   bool              `mapstructure:"include_thoughts" yaml:"include_thoughts"`
	SafetyFilters     map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
	RequestsPerSecond float64           `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	MaxRetryElapsed   time.Duration     `mapstructure:"max_retry_elapsed" yaml:"max_retry_elapsed"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs" yaml:"max_concurrent_runs"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// ApproveFlaggedActions decides flagged actions for runs started over
	// HTTP, where nobody is present to answer a prompt.
	ApproveFlaggedActions bool `mapstructure:"approve_flagged_actions" yaml:"approve_flagged_actions"`
}

// Default model names per tool mode.
const (
	DefaultComputerUseModel = "gemini-2.5-computer-use-preview-10-2025"
	DefaultFunctionsModel   = "gemini-2.5-flash"
)

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	cfg.applyModelDefault()
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pilot-cli")
	v.SetDefault("logger.log_file", "pilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.width", 1440)
	v.SetDefault("browser.height", 900)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.post_settle_delay", "500ms")
	v.SetDefault("browser.highlight_mouse", false)
	v.SetDefault("browser.search_url", "https://www.google.com/")

	// -- Agent --
	v.SetDefault("agent.max_turns", 20)
	v.SetDefault("agent.initial_url", "https://www.google.com/")
	v.SetDefault("agent.settle_timeout", "5s")
	v.SetDefault("agent.auto_approve_safety", false)

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderGemini))
	v.SetDefault("llm.tool_mode", string(ToolModeFunctions))
	v.SetDefault("llm.api_timeout", "120s")
	v.SetDefault("llm.temperature", 1.0)
	v.SetDefault("llm.excluded_functions", []string{"open_web_browser"})
	v.SetDefault("llm.include_thoughts", false)
	v.SetDefault("llm.location", "us-central1")
	v.SetDefault("llm.safety_filters", map[string]string{
		"HARM_CATEGORY_HATE_SPEECH":       "BLOCK_NONE",
		"HARM_CATEGORY_DANGEROUS_CONTENT": "BLOCK_NONE",
	})
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.max_retry_elapsed", "2m")

	// -- Server --
	v.SetDefault("server.listen_addr", "127.0.0.1:8080")
	v.SetDefault("server.max_concurrent_runs", 2)
	v.SetDefault("server.request_timeout", "15m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.approve_flagged_actions", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("llm.api_key", "PILOT_LLM_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("llm.project", "PILOT_LLM_PROJECT", "GOOGLE_CLOUD_PROJECT")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the key if Unmarshal didn't pick it up
	if cfg.LLMCfg.APIKey == "" {
		cfg.LLMCfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	cfg.applyModelDefault()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyModelDefault fills in the model name for the configured tool mode.
func (c *Config) applyModelDefault() {
	if c.LLMCfg.Model != "" {
		return
	}
	if c.LLMCfg.ToolMode == ToolModeComputerUse {
		c.LLMCfg.Model = DefaultComputerUseModel
		return
	}
	c.LLMCfg.Model = DefaultFunctionsModel
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BrowserCfg.Width <= 0 || c.BrowserCfg.Height <= 0 {
		return fmt.Errorf("browser.width and browser.height must be positive integers")
	}
	if c.AgentCfg.MaxTurns <= 0 {
		return fmt.Errorf("agent.max_turns must be a positive integer")
	}
	if c.AgentCfg.SettleTimeout < 0 {
		return fmt.Errorf("agent.settle_timeout must not be negative")
	}
	if err := c.LLMCfg.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if c.ServerCfg.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("server.max_concurrent_runs must be a positive integer")
	}
	return nil
}

// Validate checks the LLM settings. Credentials are checked when a client
// is built so commands that never call the model still work without them.
func (l *LLMConfig) Validate() error {
	if l.Provider != ProviderGemini {
		return fmt.Errorf("unsupported provider %q", l.Provider)
	}
	switch l.ToolMode {
	case ToolModeFunctions, ToolModeComputerUse:
	default:
		return fmt.Errorf("tool_mode must be %q or %q, got %q", ToolModeFunctions, ToolModeComputerUse, l.ToolMode)
	}
	if l.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	return nil
}

// ConfigDir returns the per-user configuration directory (~/.pilot).
func ConfigDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	return filepath.Join(home, ".pilot"), nil
}

// ExpandPath resolves a leading ~ in user supplied paths.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	return homedir.Expand(path)
}
