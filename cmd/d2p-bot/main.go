// ABOUTME: Entry point for the d2p-bot Telegram webhook server
// ABOUTME: Subcommands for serving, webhook registration, health probes, history and config setup

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/dev2production/d2p-bot/internal/config"
	"github.com/dev2production/d2p-bot/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _ ____                 _           _
  __| |___ \ _ __        | |__   ___ | |_
 / _' | __) | '_ \ _____ | '_ \ / _ \| __|
| (_| |/ __/| |_) |_____|| |_) | (_) | |_
 \__,_|_____| .__/       |_.__/ \___/ \__|
            |_|
`

func usage() {
	fmt.Println("Usage: d2p-bot <command> [--config PATH] [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                          Start the webhook server")
	fmt.Println("  init                           Create a new config file interactively")
	fmt.Println("  set-webhook [--url U] [--secret S]")
	fmt.Println("                                 Register the webhook with Telegram")
	fmt.Println("  webhook-info                   Show the current webhook registration")
	fmt.Println("  health [--url U]               Check server health")
	fmt.Println("  history --user ID [--limit N]  Show a user's recent conversation messages")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Variables already in the environment win over .env
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, args)
	case "init":
		err = runInit(args)
	case "set-webhook":
		err = runSetWebhook(ctx, args)
	case "webhook-info":
		err = runWebhookInfo(ctx, args)
	case "health":
		err = runHealth(ctx, args)
	case "history":
		err = runHistory(ctx, args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet creates a subcommand flag set carrying the shared --config flag.
func newFlagSet(name string, configPath *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(configPath, "config", "c", "", "config file (default: $D2P_CONFIG or ~/.config/d2p-bot/config.yaml)")
	return fs
}

// loadConfig resolves and loads the config file, returning the path it used.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := config.ResolvePath(flagPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func runServe(ctx context.Context, args []string) error {
	var configFlag string
	fs := newFlagSet("serve", &configFlag)
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig(configFlag)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:      %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Environment: %s\n", cfg.App.Environment)
	green.Print("    ▶ ")
	fmt.Printf("Database:    %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Webhook:     %s\n", cfg.Webhook.Path)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale:   ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:        %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:     %s\n", cfg.Metrics.Path)
	}
	fmt.Println()

	logger.Info("starting d2p-bot",
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context, args []string) error {
	var configFlag, url string
	fs := newFlagSet("health", &configFlag)
	fs.StringVar(&url, "url", "", "health endpoint (default: http://<server.http_addr>/health)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if url == "" {
		cfg, _, err := loadConfig(configFlag)
		if err != nil {
			return err
		}
		if cfg.Server.HTTPAddr == "" {
			return errors.New("server.http_addr is not set; pass --url")
		}
		url = fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var health struct {
		Status   string `json:"status"`
		Database string `json:"database"`
		Error    string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("unhealthy: database %s: %s", health.Database, health.Error)
	}

	fmt.Println("healthy")
	return nil
}

func runInit(args []string) error {
	var configFlag string
	fs := newFlagSet("init", &configFlag)
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("d2p-bot configuration setup")
	fmt.Println("===========================")
	fmt.Println()

	defaultConfigPath := config.ResolvePath(configFlag)
	defaultDbPath := filepath.Join(dataPath(), "d2p.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- App Configuration ---")
	environment := prompt(reader, "Environment (development/staging/production)", config.DefaultEnvironment)

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8000")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Telegram Configuration ---")
	botToken := prompt(reader, "Bot token", "${TELEGRAM_BOT_TOKEN}")
	webhookURL := prompt(reader, "Public webhook URL", "https://example.com"+config.DefaultWebhookPath)

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	fmt.Println("\n--- Tailscale Configuration ---")
	tailscaleEnabled := yes(prompt(reader, "Enable Tailscale?", "no"))

	var tsHostname string
	var tsEphemeral, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "d2p-bot")
		tsEphemeral = yes(prompt(reader, "Ephemeral node?", "no"))
		tsFunnel = yes(prompt(reader, "Enable Funnel (public HTTPS)?", "yes"))
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")

	var cfg strings.Builder
	cfg.WriteString("# d2p-bot configuration\n")
	cfg.WriteString("# Generated by d2p-bot init\n\n")

	cfg.WriteString("app:\n")
	cfg.WriteString(fmt.Sprintf("  name: %q\n", config.DefaultAppName))
	cfg.WriteString(fmt.Sprintf("  environment: %q\n", environment))
	cfg.WriteString("\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("telegram:\n")
	cfg.WriteString(fmt.Sprintf("  bot_token: %q\n", botToken))
	cfg.WriteString(fmt.Sprintf("  webhook_secret: %q\n", secret))
	cfg.WriteString(fmt.Sprintf("  webhook_url: %q\n", webhookURL))
	cfg.WriteString(fmt.Sprintf("  request_timeout: %q\n", config.DefaultRequestTimeout.String()))
	cfg.WriteString("\n")

	cfg.WriteString("webhook:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", config.DefaultWebhookPath))
	cfg.WriteString(fmt.Sprintf("  dedupe_ttl: %q\n", config.DefaultDedupeTTL.String()))
	cfg.WriteString(fmt.Sprintf("  dedupe_max: %d\n", config.DefaultDedupeMax))
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", tailscaleEnabled))
	if tailscaleEnabled {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", tsHostname))
		cfg.WriteString("  auth_key: \"${TS_AUTHKEY}\"\n")
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", tsEphemeral))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", tsFunnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: true\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", config.DefaultMetricsPath))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file holds the webhook secret
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  d2p-bot set-webhook    # register the webhook with Telegram")
	fmt.Println("  d2p-bot serve          # start the server")

	return nil
}

// dataPath returns the d2p-bot data directory.
// Priority: XDG_DATA_HOME/d2p-bot > ~/.local/share/d2p-bot
func dataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "d2p-bot")
}

// generateSecret returns a random hex webhook secret.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating webhook secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func yes(answer string) bool {
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
