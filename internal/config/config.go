package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the lexsieve API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Redis      RedisConfig      `yaml:"redis"`
	Generation GenerationConfig `yaml:"generation"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Channels   []ChannelConfig  `yaml:"channels"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// RedisConfig holds storage connection settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// GenerationConfig holds text-generation service settings.
type GenerationConfig struct {
	APIKey     string       `yaml:"api_key"`
	BaseURL    string       `yaml:"base_url"`
	Model      string       `yaml:"model"`
	TimeoutSec int          `yaml:"timeout_sec"`
	Budget     BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds daily generation budget caps. Zero means uncapped.
type BudgetConfig struct {
	DailyCallLimit  int `yaml:"daily_call_limit"`
	DailyTokenLimit int `yaml:"daily_token_limit"`
}

// ScraperConfig holds the archive retrieval collaborator settings.
type ScraperConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// PipelineConfig holds search pipeline tuning.
type PipelineConfig struct {
	MaxConcurrentScoring int `yaml:"max_concurrent_scoring"`
	RecentWindowMonths   int `yaml:"recent_window_months"`
	ScoreBodyLimit       int `yaml:"score_body_limit"` // chars of message body shown to the scorer
	ListLimit            int `yaml:"list_limit"`       // default page size for run listings
}

// ChannelConfig registers one listserv channel.
type ChannelConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Load reads configuration from the first file found on the search path:
// $LEXSIEVE_CONFIG, ./config.yaml, /etc/lexsieve/config.yaml.
func Load() (Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "dev".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "dev"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 60
	}
	if c.Scraper.TimeoutSec <= 0 {
		c.Scraper.TimeoutSec = 120
	}
	if c.Pipeline.MaxConcurrentScoring <= 0 {
		c.Pipeline.MaxConcurrentScoring = 4
	}
	if c.Pipeline.RecentWindowMonths <= 0 {
		c.Pipeline.RecentWindowMonths = 6
	}
	if c.Pipeline.ScoreBodyLimit <= 0 {
		c.Pipeline.ScoreBodyLimit = 2000
	}
	if c.Pipeline.ListLimit <= 0 {
		c.Pipeline.ListLimit = 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	if c.Generation.APIKey == "" {
		return fmt.Errorf("generation.api_key is required")
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper.base_url is required")
	}
	seen := make(map[string]bool, len(c.Channels))
	for i, ch := range c.Channels {
		if ch.ID == "" {
			return fmt.Errorf("channels[%d].id is required", i)
		}
		if ch.ID == "all" {
			return fmt.Errorf("channels[%d].id %q is reserved", i, ch.ID)
		}
		if seen[ch.ID] {
			return fmt.Errorf("duplicate channel id %q", ch.ID)
		}
		seen[ch.ID] = true
	}
	if c.Generation.Budget.DailyCallLimit < 0 {
		return fmt.Errorf("generation.budget.daily_call_limit must not be negative")
	}
	if c.Generation.Budget.DailyTokenLimit < 0 {
		return fmt.Errorf("generation.budget.daily_token_limit must not be negative")
	}
	return nil
}

// findConfigPath locates the config file: $LEXSIEVE_CONFIG if set, then
// ./config.yaml, then /etc/lexsieve/config.yaml.
func findConfigPath() (string, error) {
	if path := os.Getenv("LEXSIEVE_CONFIG"); path != "" {
		return path, nil
	}
	for _, path := range []string{"config.yaml", "/etc/lexsieve/config.yaml"} {
		if fileExists(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("no config file found (set LEXSIEVE_CONFIG or provide ./config.yaml)")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
