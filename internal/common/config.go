package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment" validate:"omitempty,oneof=development production"`
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Browser     BrowserConfig   `toml:"browser"`
	Detection   DetectionConfig `toml:"detection"`
	Consent     ConsentConfig   `toml:"consent"`
	LLM         LLMConfig       `toml:"llm"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	Stream      StreamConfig    `toml:"stream"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output []string `toml:"output"` // "stdout", "console", "file"
}

// BrowserConfig contains the headless Chrome settings used for every scan job
type BrowserConfig struct {
	Headless          bool   `toml:"headless"`
	NoSandbox         bool   `toml:"no_sandbox"`
	ExecPath          string `toml:"exec_path"`       // Optional Chrome binary, empty uses chromedp discovery
	DefaultDevice     string `toml:"default_device"`  // Device profile used when a request omits one
	NavigationTimeout string `toml:"navigation_timeout"`
	SettleWait        string `toml:"settle_wait"`     // Wait after load and after a consent click before snapshots
	JobTimeout        string `toml:"job_timeout"`     // Budget for the whole pipeline
	StartupTimeout    string `toml:"startup_timeout"` // Budget for browser launch
}

// DetectionConfig tunes the access-denial detector and the overlay resolver
type DetectionConfig struct {
	BodySampleChars int `toml:"body_sample_chars" validate:"min=100"`
	MinBlockChars   int `toml:"min_block_chars" validate:"min=1"`
	MaxBlockChars   int `toml:"max_block_chars" validate:"gtfield=MinBlockChars"`
}

// ConsentConfig holds the bounded timeouts of each click strategy
type ConsentConfig struct {
	SelectorTimeout string `toml:"selector_timeout"`
	ButtonTimeout   string `toml:"button_timeout"`
	PatternTimeout  string `toml:"pattern_timeout"`
	FrameTimeout    string `toml:"frame_timeout"`
	ExtractDetails  bool   `toml:"extract_details"`
}

// LLMProvider identifies the model backend
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"`
	CallTimeout     string      `toml:"call_timeout"` // Per model call, independent of the job timeout
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	RateLimit   string  `toml:"rate_limit"` // Minimum spacing between requests, e.g. "4s"
	Temperature float32 `toml:"temperature" validate:"min=0,max=2"`
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens" validate:"min=1"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature" validate:"min=0,max=1"`
}

// StreamConfig contains settings for the SSE and WebSocket event streams
type StreamConfig struct {
	BufferSize        int    `toml:"buffer_size" validate:"min=1"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8086,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Browser: BrowserConfig{
			Headless:          true,
			NoSandbox:         true,
			DefaultDevice:     "desktop-1080p",
			NavigationTimeout: "30s",
			SettleWait:        "2s",
			JobTimeout:        "3m",
			StartupTimeout:    "20s",
		},
		Detection: DetectionConfig{
			BodySampleChars: 5000,
			MinBlockChars:   10,
			MaxBlockChars:   15000,
		},
		Consent: ConsentConfig{
			SelectorTimeout: "3s",
			ButtonTimeout:   "3s",
			PatternTimeout:  "2s",
			FrameTimeout:    "2s",
			ExtractDetails:  true,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			CallTimeout:     "60s",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			RateLimit:   "1s",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-5",
			MaxTokens:   4096,
			RateLimit:   "1s",
			Temperature: 0.2,
		},
		Stream: StreamConfig{
			BufferSize:        32,
			HeartbeatInterval: "15s",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: defaults -> file1 -> file2 -> ... -> env
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidateConfig checks struct constraints and duration strings
func ValidateConfig(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"browser.navigation_timeout": config.Browser.NavigationTimeout,
		"browser.settle_wait":        config.Browser.SettleWait,
		"browser.job_timeout":        config.Browser.JobTimeout,
		"browser.startup_timeout":    config.Browser.StartupTimeout,
		"consent.selector_timeout":   config.Consent.SelectorTimeout,
		"consent.button_timeout":     config.Consent.ButtonTimeout,
		"consent.pattern_timeout":    config.Consent.PatternTimeout,
		"consent.frame_timeout":      config.Consent.FrameTimeout,
		"llm.call_timeout":           config.LLM.CallTimeout,
		"gemini.rate_limit":          config.Gemini.RateLimit,
		"claude.rate_limit":          config.Claude.RateLimit,
		"stream.heartbeat_interval":  config.Stream.HeartbeatInterval,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", key, value)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TRACKSCOPE_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("TRACKSCOPE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("TRACKSCOPE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging
	if level := os.Getenv("TRACKSCOPE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("TRACKSCOPE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Browser
	if headless := os.Getenv("TRACKSCOPE_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if noSandbox := os.Getenv("TRACKSCOPE_BROWSER_NO_SANDBOX"); noSandbox != "" {
		if n, err := strconv.ParseBool(noSandbox); err == nil {
			config.Browser.NoSandbox = n
		}
	}
	if execPath := os.Getenv("TRACKSCOPE_BROWSER_EXEC_PATH"); execPath != "" {
		config.Browser.ExecPath = execPath
	}
	if device := os.Getenv("TRACKSCOPE_BROWSER_DEFAULT_DEVICE"); device != "" {
		config.Browser.DefaultDevice = device
	}
	if timeout := os.Getenv("TRACKSCOPE_BROWSER_NAVIGATION_TIMEOUT"); timeout != "" {
		config.Browser.NavigationTimeout = timeout
	}
	if timeout := os.Getenv("TRACKSCOPE_BROWSER_JOB_TIMEOUT"); timeout != "" {
		config.Browser.JobTimeout = timeout
	}

	// LLM
	if provider := os.Getenv("TRACKSCOPE_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if timeout := os.Getenv("TRACKSCOPE_LLM_CALL_TIMEOUT"); timeout != "" {
		config.LLM.CallTimeout = timeout
	}

	// Gemini
	if apiKey := os.Getenv("TRACKSCOPE_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("TRACKSCOPE_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// Claude
	if apiKey := os.Getenv("TRACKSCOPE_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	} else if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("TRACKSCOPE_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// Duration parses a duration string, returning fallback when empty or invalid.
// ValidateConfig rejects invalid values on load, so the fallback only covers zero values.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
