// Package config handles configuration loading for d2p-bot.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension) with
// environment variable expansion. Load applies defaults and validates the
// result, so a returned *Config is ready to pass to constructors.
//
// # Configuration File
//
// Resolution order (see ResolvePath):
//
//  1. The --config flag
//  2. Path from D2P_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/d2p-bot/config.yaml
//  4. ~/.config/d2p-bot/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	telegram:
//	  bot_token: "${TELEGRAM_BOT_TOKEN}"
//	  webhook_secret: "${TELEGRAM_WEBHOOK_SECRET}"
//
// A .env file in the working directory is loaded first by LoadDotEnv;
// variables already present in the environment take precedence.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	telegram:
//	  request_timeout: "30s"
//	webhook:
//	  dedupe_ttl: "10m"
//
// # Validation
//
//   - telegram.bot_token: at least 40 characters
//   - telegram.webhook_secret: at least 32 characters
//   - telegram.webhook_url and database.path: required
//   - server.http_addr: required unless tailscale is enabled
package config
