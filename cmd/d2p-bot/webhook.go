// ABOUTME: set-webhook and webhook-info subcommands
// ABOUTME: Registers the webhook URL and secret with the Bot API and verifies the result

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/dev2production/d2p-bot/internal/config"
	"github.com/dev2production/d2p-bot/internal/telegram"
)

func newBotClient(cfg *config.Config) (*telegram.Client, error) {
	// Keeps request logs out of the command output
	setupLogger(config.LoggingConfig{Level: "warn", Format: cfg.Logging.Format})

	return telegram.NewClient(telegram.ClientConfig{
		Token:   cfg.Telegram.BotToken,
		BaseURL: cfg.Telegram.APIBaseURL,
		Timeout: cfg.Telegram.RequestTimeout,
	})
}

func runSetWebhook(ctx context.Context, args []string) error {
	var configFlag, url, secret string
	fs := newFlagSet("set-webhook", &configFlag)
	fs.StringVar(&url, "url", "", "webhook URL (default: telegram.webhook_url)")
	fs.StringVar(&secret, "secret", "", "secret token (default: telegram.webhook_secret)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(configFlag)
	if err != nil {
		return err
	}
	if url == "" {
		url = cfg.Telegram.WebhookURL
	}
	if secret == "" {
		secret = cfg.Telegram.WebhookSecret
	}
	if !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("webhook URL must use https, got %q", url)
	}
	if len(secret) < config.MinWebhookSecretLength {
		return fmt.Errorf("secret must be at least %d characters", config.MinWebhookSecretLength)
	}

	client, err := newBotClient(cfg)
	if err != nil {
		return fmt.Errorf("creating telegram client: %w", err)
	}
	defer client.Close()

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	before, err := client.GetWebhookInfo(ctx)
	if err != nil {
		return fmt.Errorf("reading current webhook: %w", err)
	}
	cyan.Println("  Current webhook")
	printWebhookInfo(before)
	fmt.Println()

	if err := client.SetWebhook(ctx, telegram.SetWebhookRequest{
		URL:         url,
		SecretToken: secret,
	}); err != nil {
		return fmt.Errorf("setting webhook: %w", err)
	}
	green.Printf("  ✓ Webhook set: %s\n", url)

	after, err := client.GetWebhookInfo(ctx)
	if err != nil {
		return fmt.Errorf("verifying webhook: %w", err)
	}
	if after.URL != url {
		return fmt.Errorf("webhook verification failed: telegram reports %q, expected %q", after.URL, url)
	}
	green.Println("  ✓ Webhook verified")
	fmt.Println()
	printWebhookInfo(after)
	return nil
}

func runWebhookInfo(ctx context.Context, args []string) error {
	var configFlag string
	fs := newFlagSet("webhook-info", &configFlag)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(configFlag)
	if err != nil {
		return err
	}

	client, err := newBotClient(cfg)
	if err != nil {
		return fmt.Errorf("creating telegram client: %w", err)
	}
	defer client.Close()

	info, err := client.GetWebhookInfo(ctx)
	if err != nil {
		return fmt.Errorf("reading webhook: %w", err)
	}
	printWebhookInfo(info)
	return nil
}

func printWebhookInfo(info *telegram.WebhookInfo) {
	gray := color.New(color.FgHiBlack)
	yellow := color.New(color.FgYellow)

	url := info.URL
	if url == "" {
		url = "(not set)"
	}
	fmt.Printf("  URL:             %s\n", url)
	fmt.Printf("  Pending updates: %d\n", info.PendingUpdateCount)
	if len(info.AllowedUpdates) > 0 {
		fmt.Printf("  Allowed updates: %s\n", strings.Join(info.AllowedUpdates, ", "))
	}
	if info.IPAddress != "" {
		gray.Printf("  IP address:      %s\n", info.IPAddress)
	}
	if info.LastErrorMessage != "" {
		yellow.Printf("  Last error:      %s (%s)\n",
			info.LastErrorMessage,
			time.Unix(info.LastErrorDate, 0).UTC().Format(time.RFC3339))
	}
}
