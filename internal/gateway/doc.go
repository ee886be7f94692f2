// Package gateway runs the d2p-bot HTTP server.
//
// # Overview
//
// The Gateway owns the conversation store, the Bot API client, the update
// dispatcher and the optional update dedupe cache, and serves them over HTTP:
//
//   - POST /webhook/telegram - Telegram webhook (path from webhook.path)
//   - GET /health - storage probe, always 200 with the result in the body
//   - GET / - app name, status and environment
//   - GET /metrics - Prometheus exposition when metrics.enabled is set
//
// # Webhook
//
// Deliveries must carry the X-Telegram-Bot-Api-Secret-Token header set at
// registration time; anything else is answered 403 {"detail":"Invalid secret"}
// without touching the store or the Bot API. Authenticated deliveries are
// always answered 200 {"ok":true}. Malformed bodies, invalid updates, storage
// failures and handler panics are logged with the update_id and counted in
// d2p_webhook_requests_total rather than surfaced to Telegram, which would
// otherwise keep redelivering the update.
//
// # Listeners
//
// By default the server listens on server.http_addr. With tailscale.enabled a
// tsnet node is started instead; tailscale.funnel exposes it as public HTTPS on
// :443 so Telegram can reach the webhook without a separate reverse proxy.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled, then shuts down
package gateway
