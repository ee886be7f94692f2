// ABOUTME: Gateway wires the store, Bot API client, dispatcher and HTTP server together
// ABOUTME: Listens on a TCP address or a Tailscale node (optionally via Funnel) and shuts down gracefully

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/dev2production/d2p-bot/internal/config"
	"github.com/dev2production/d2p-bot/internal/conversation"
	"github.com/dev2production/d2p-bot/internal/dedupe"
	"github.com/dev2production/d2p-bot/internal/dispatcher"
	"github.com/dev2production/d2p-bot/internal/store"
	"github.com/dev2production/d2p-bot/internal/telegram"
)

// shutdownTimeout bounds graceful shutdown once Run's context is canceled
const shutdownTimeout = 5 * time.Second

// Gateway is the d2p-bot server: a webhook endpoint plus health, status and metrics.
type Gateway struct {
	config      *config.Config
	store       store.ConversationStore
	client      *telegram.Client // nil when a Sender was injected
	dispatcher  *dispatcher.Dispatcher
	dedupe      *dedupe.Cache // nil when dedupe is disabled
	registry    *prometheus.Registry
	metrics     *webhookMetrics
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// New opens the SQLite store, creates the Bot API client and assembles the gateway.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	client, err := telegram.NewClient(telegram.ClientConfig{
		Token:   cfg.Telegram.BotToken,
		BaseURL: cfg.Telegram.APIBaseURL,
		Timeout: cfg.Telegram.RequestTimeout,
		Logger:  logger.With("component", "telegram"),
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}

	gw := newGateway(cfg, s, client, logger)
	gw.client = client
	return gw, nil
}

// newGateway assembles a gateway around an already opened store and sender.
func newGateway(cfg *config.Config, s store.ConversationStore, sender telegram.Sender, logger *slog.Logger) *Gateway {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	disp := dispatcher.New(dispatcher.Config{
		Conversations: conversation.New(s, logger),
		Sender:        sender,
		Logger:        logger,
		Metrics:       dispatcher.NewMetrics(registry),
	})

	gw := &Gateway{
		config:     cfg,
		store:      s,
		dispatcher: disp,
		registry:   registry,
		metrics:    newWebhookMetrics(registry),
		logger:     logger.With("component", "gateway"),
	}

	if cfg.Webhook.DedupeTTL > 0 {
		gw.dedupe = dedupe.New(cfg.Webhook.DedupeTTL, cfg.Webhook.DedupeMax)
		gw.logger.Info("update dedupe enabled", "ttl", cfg.Webhook.DedupeTTL, "max", cfg.Webhook.DedupeMax)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return gw
}

// routes builds the HTTP mux.
func (g *Gateway) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+g.config.Webhook.Path, g.handleWebhook)
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /{$}", g.handleRoot)
	if g.config.Metrics.Enabled {
		mux.Handle("GET "+g.config.Metrics.Path, g.metricsHandler())
	}
	return mux
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts serving and blocks until the context is canceled or the server fails.
// The gateway is shut down before Run returns. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		_ = g.gracefulShutdown()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "webhook_path", g.config.Webhook.Path)
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown runs Shutdown with a fresh timeout, since Run's context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// setupListener creates the HTTP listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "d2p-bot", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set tailscale.auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener brings up a tsnet node and listens on it.
// With funnel enabled the listener is public HTTPS on :443, which is what Telegram needs to reach the webhook.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	var ln net.Listener
	if tsCfg.Funnel {
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err = g.tsnetServer.ListenFunnel("tcp", ":443")
	} else {
		ln, err = g.tsnetServer.Listen("tcp", ":80")
	}
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node and where the webhook can be reached.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)

	if g.config.Tailscale.Funnel && dnsName != "" {
		webhookURL := "https://" + dnsName + g.config.Webhook.Path
		if webhookURL != g.config.Telegram.WebhookURL {
			g.logger.Warn("telegram.webhook_url differs from the funnel address; run set-webhook to update it",
				"configured", g.config.Telegram.WebhookURL,
				"funnel", webhookURL)
		}
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, then releases the client, dedupe cache, tailscale node and store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.client != nil {
		errs = appendCloseError(errs, "telegram client close", g.client.Close())
	}
	if g.dedupe != nil {
		g.dedupe.Close()
	}
	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}
