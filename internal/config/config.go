// ABOUTME: Configuration loading and parsing for d2p-bot
// ABOUTME: Supports YAML or TOML files with environment variable expansion, .env loading and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Minimum credential lengths accepted by Validate
const (
	MinBotTokenLength      = 40
	MinWebhookSecretLength = 32
)

// Defaults applied to fields left empty in the config file
const (
	DefaultAppName        = "Dev2Production Bot"
	DefaultEnvironment    = "development"
	DefaultAPIBaseURL     = "https://api.telegram.org"
	DefaultRequestTimeout = 30 * time.Second
	DefaultWebhookPath    = "/webhook/telegram"
	DefaultDedupeTTL      = 10 * time.Minute
	DefaultDedupeMax      = 10000
	DefaultMetricsPath    = "/metrics"
)

// Config represents the complete d2p-bot configuration
type Config struct {
	App       AppConfig       `yaml:"app" toml:"app"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Telegram  TelegramConfig  `yaml:"telegram" toml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook" toml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// AppConfig identifies the deployment
type AppConfig struct {
	Name        string `yaml:"name" toml:"name"`
	Environment string `yaml:"environment" toml:"environment"` // development|staging|production
	Debug       bool   `yaml:"debug" toml:"debug"`
}

// IsProduction reports whether the deployment is production
func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Public HTTPS so Telegram can reach the webhook
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// TelegramConfig holds Bot API credentials and client settings
type TelegramConfig struct {
	BotToken      string `yaml:"bot_token" toml:"bot_token"`
	WebhookSecret string `yaml:"webhook_secret" toml:"webhook_secret"`
	WebhookURL    string `yaml:"webhook_url" toml:"webhook_url"`
	APIBaseURL    string `yaml:"api_base_url" toml:"api_base_url"`

	RequestTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout" toml:"request_timeout"`
}

// WebhookConfig holds inbound webhook settings
type WebhookConfig struct {
	Path string `yaml:"path" toml:"path"`

	// DedupeTTL of zero disables update dedupe
	DedupeTTL time.Duration `yaml:"-" toml:"-"`
	DedupeMax int           `yaml:"dedupe_max" toml:"dedupe_max"`

	DedupeTTLRaw string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text|json; empty picks json in production
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win over the file. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ResolvePath returns the config file to load.
// Priority: flagPath > D2P_CONFIG env var > XDG_CONFIG_HOME/d2p-bot/config.yaml > ~/.config/d2p-bot/config.yaml
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if envPath := os.Getenv("D2P_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "d2p-bot", "config.yaml")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = DefaultAppName
	}
	if c.App.Environment == "" {
		c.App.Environment = DefaultEnvironment
	}
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = DefaultAPIBaseURL
	}
	if c.Telegram.RequestTimeout == 0 {
		c.Telegram.RequestTimeout = DefaultRequestTimeout
	}
	if c.Webhook.Path == "" {
		c.Webhook.Path = DefaultWebhookPath
	}
	if c.Webhook.DedupeTTL > 0 && c.Webhook.DedupeMax == 0 {
		c.Webhook.DedupeMax = DefaultDedupeMax
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
		if c.App.Debug {
			c.Logging.Level = "debug"
		}
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
		if c.App.IsProduction() {
			c.Logging.Format = "json"
		}
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("app.environment must be development, staging or production, got %q", c.App.Environment)
	}

	// HTTP address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Telegram.BotToken) < MinBotTokenLength {
		return fmt.Errorf("telegram.bot_token must be at least %d characters", MinBotTokenLength)
	}
	if len(c.Telegram.WebhookSecret) < MinWebhookSecretLength {
		return fmt.Errorf("telegram.webhook_secret must be at least %d characters", MinWebhookSecretLength)
	}
	if c.Telegram.WebhookURL == "" {
		return fmt.Errorf("telegram.webhook_url is required")
	}
	if c.Telegram.RequestTimeout < 0 {
		return fmt.Errorf("telegram.request_timeout must not be negative")
	}

	if !strings.HasPrefix(c.Webhook.Path, "/") {
		return fmt.Errorf("webhook.path must start with /, got %q", c.Webhook.Path)
	}
	if c.Webhook.DedupeTTL < 0 {
		return fmt.Errorf("webhook.dedupe_ttl must not be negative")
	}
	if c.Webhook.DedupeMax < 0 {
		return fmt.Errorf("webhook.dedupe_max must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Telegram.RequestTimeoutRaw != "" {
		cfg.Telegram.RequestTimeout, err = time.ParseDuration(cfg.Telegram.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Telegram.RequestTimeoutRaw, err)
		}
	}

	if cfg.Webhook.DedupeTTLRaw != "" {
		cfg.Webhook.DedupeTTL, err = time.ParseDuration(cfg.Webhook.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_ttl %q: %w", cfg.Webhook.DedupeTTLRaw, err)
		}
	}

	return nil
}
