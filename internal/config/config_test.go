// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, .env files, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken  = "1234567890:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw-test"
	testSecret = "0123456789abcdef0123456789abcdef"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func validYAML() string {
	return `
app:
  name: "D2P Test"
  environment: "staging"

server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

telegram:
  bot_token: "` + testToken + `"
  webhook_secret: "` + testSecret + `"
  webhook_url: "https://bot.example.com/webhook/telegram"
  request_timeout: "10s"

webhook:
  dedupe_ttl: "5m"
  dedupe_max: 500

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
`
}

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", validYAML()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.App.Name != "D2P Test" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "D2P Test")
	}
	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Telegram.RequestTimeout != 10*time.Second {
		t.Errorf("Telegram.RequestTimeout = %v, want %v", cfg.Telegram.RequestTimeout, 10*time.Second)
	}
	if cfg.Webhook.DedupeTTL != 5*time.Minute {
		t.Errorf("Webhook.DedupeTTL = %v, want %v", cfg.Webhook.DedupeTTL, 5*time.Minute)
	}
	if cfg.Webhook.DedupeMax != 500 {
		t.Errorf("Webhook.DedupeMax = %d, want 500", cfg.Webhook.DedupeMax)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v, want enabled at /metrics", cfg.Metrics)
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
server:
  http_addr: ":8080"
database:
  path: "./bot.db"
telegram:
  bot_token: "` + testToken + `"
  webhook_secret: "` + testSecret + `"
  webhook_url: "https://bot.example.com/webhook/telegram"
`
	cfg, err := Load(writeConfig(t, "config.yaml", content))
	require.NoError(t, err)

	assert.Equal(t, DefaultAppName, cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, DefaultAPIBaseURL, cfg.Telegram.APIBaseURL)
	assert.Equal(t, DefaultRequestTimeout, cfg.Telegram.RequestTimeout)
	assert.Equal(t, DefaultWebhookPath, cfg.Webhook.Path)
	assert.Zero(t, cfg.Webhook.DedupeTTL, "dedupe is off unless configured")
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
}

func TestLoad_ProductionDefaultsToJSONLogs(t *testing.T) {
	content := strings.Replace(validYAML(), `environment: "staging"`, `environment: "production"`, 1)
	content = strings.Replace(content, `format: "json"`, `format: ""`, 1)

	cfg, err := Load(writeConfig(t, "config.yaml", content))
	require.NoError(t, err)
	assert.True(t, cfg.App.IsProduction())
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_DebugDefaultsToDebugLevel(t *testing.T) {
	content := strings.Replace(validYAML(), `level: "debug"`, `level: ""`, 1)
	content = strings.Replace(content, `environment: "staging"`, "environment: \"staging\"\n  debug: true", 1)

	cfg, err := Load(writeConfig(t, "config.yaml", content))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_DedupeMaxDefaultsWhenEnabled(t *testing.T) {
	content := strings.Replace(validYAML(), "dedupe_max: 500", "", 1)

	cfg, err := Load(writeConfig(t, "config.yaml", content))
	require.NoError(t, err)
	assert.Equal(t, DefaultDedupeMax, cfg.Webhook.DedupeMax)
}

func TestLoad_TOML(t *testing.T) {
	content := `
[app]
environment = "production"

[server]
http_addr = ":9090"

[database]
path = "/var/lib/d2p-bot/bot.db"

[telegram]
bot_token = "` + testToken + `"
webhook_secret = "` + testSecret + `"
webhook_url = "https://bot.example.com/webhook/telegram"
request_timeout = "15s"

[tailscale]
enabled = true
hostname = "d2p-bot"
funnel = true
`
	cfg, err := Load(writeConfig(t, "config.toml", content))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "/var/lib/d2p-bot/bot.db", cfg.Database.Path)
	assert.Equal(t, 15*time.Second, cfg.Telegram.RequestTimeout)
	assert.True(t, cfg.Tailscale.Enabled)
	assert.True(t, cfg.Tailscale.Funnel)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_D2P_BOT_TOKEN", testToken)
	t.Setenv("TEST_D2P_WEBHOOK_SECRET", testSecret)

	content := `
server:
  http_addr: ":8080"
database:
  path: "./bot.db"
telegram:
  bot_token: "${TEST_D2P_BOT_TOKEN}"
  webhook_secret: "${TEST_D2P_WEBHOOK_SECRET}"
  webhook_url: "https://bot.example.com/webhook/telegram"
`
	cfg, err := Load(writeConfig(t, "config.yaml", content))
	require.NoError(t, err)
	assert.Equal(t, testToken, cfg.Telegram.BotToken)
	assert.Equal(t, testSecret, cfg.Telegram.WebhookSecret)
}

func TestLoad_UnsetEnvVarFailsValidation(t *testing.T) {
	content := strings.Replace(validYAML(), testToken, "${TEST_D2P_UNSET_TOKEN}", 1)

	_, err := Load(writeConfig(t, "config.yaml", content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.bot_token")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "config.yaml", "server: [unclosed"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	content := strings.Replace(validYAML(), `request_timeout: "10s"`, `request_timeout: "soon"`, 1)

	_, err := Load(writeConfig(t, "config.yaml", content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request_timeout")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"short token", func(c *Config) { c.Telegram.BotToken = "123:abc" }, "telegram.bot_token"},
		{"short secret", func(c *Config) { c.Telegram.WebhookSecret = "tiny" }, "telegram.webhook_secret"},
		{"missing webhook url", func(c *Config) { c.Telegram.WebhookURL = "" }, "telegram.webhook_url"},
		{"missing database", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"missing http addr", func(c *Config) { c.Server.HTTPAddr = "" }, "server.http_addr"},
		{"tailscale without http addr", func(c *Config) {
			c.Server.HTTPAddr = ""
			c.Tailscale.Enabled = true
			c.Tailscale.Hostname = "d2p-bot"
		}, ""},
		{"tailscale without hostname", func(c *Config) { c.Tailscale.Enabled = true }, "tailscale.hostname"},
		{"bad environment", func(c *Config) { c.App.Environment = "qa" }, "app.environment"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"relative webhook path", func(c *Config) { c.Webhook.Path = "webhook" }, "webhook.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func validConfig() *Config {
	cfg := &Config{
		Server:   ServerConfig{HTTPAddr: ":8080"},
		Database: DatabaseConfig{Path: "bot.db"},
		Telegram: TelegramConfig{
			BotToken:      testToken,
			WebhookSecret: testSecret,
			WebhookURL:    "https://bot.example.com/webhook/telegram",
		},
	}
	cfg.applyDefaults()
	return cfg
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_D2P_FROM_DOTENV=from-file\nTEST_D2P_PRESET=from-file\n"), 0600))

	t.Setenv("TEST_D2P_PRESET", "from-env")
	// Registered with t.Setenv so it is restored after the test
	t.Setenv("TEST_D2P_FROM_DOTENV", "")
	os.Unsetenv("TEST_D2P_FROM_DOTENV")

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "from-file", os.Getenv("TEST_D2P_FROM_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("TEST_D2P_PRESET"), "existing env wins")
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestResolvePath(t *testing.T) {
	t.Setenv("D2P_CONFIG", "/etc/d2p-bot/config.yaml")
	t.Setenv("XDG_CONFIG_HOME", "/home/test/.config")

	assert.Equal(t, "./custom.toml", ResolvePath("./custom.toml"), "flag wins")
	assert.Equal(t, "/etc/d2p-bot/config.yaml", ResolvePath(""), "env var next")

	t.Setenv("D2P_CONFIG", "")
	assert.Equal(t, filepath.Join("/home/test/.config", "d2p-bot", "config.yaml"), ResolvePath(""))
}
