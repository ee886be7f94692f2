// Package telegram is a minimal Telegram Bot API client plus the wire types
// of the updates the bot receives.
//
// Every method posts JSON to https://api.telegram.org/bot<token>/<method>.
// Failures of any kind (transport, timeout, non-2xx, ok=false) are returned
// as *DeliveryError so callers can log the method, chat and API description
// without inspecting transport details. The bot token never appears in
// returned errors.
package telegram
