// ABOUTME: HTTP client for the Telegram Bot API
// ABOUTME: Every failed call surfaces as a *DeliveryError; Close cancels in-flight requests

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public Bot API endpoint
	DefaultBaseURL = "https://api.telegram.org"

	// DefaultTimeout bounds each outbound call
	DefaultTimeout = 30 * time.Second

	// maxResponseSize caps how much of a response body is read
	maxResponseSize = 1 << 20
)

// Sender is the outbound capability the dispatcher consumes.
type Sender interface {
	SendMessage(ctx context.Context, req SendMessageRequest) error
	AnswerCallbackQuery(ctx context.Context, req AnswerCallbackQueryRequest) error
}

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// Token is the bot token issued by BotFather. Required.
	Token string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Timeout bounds each call. Defaults to DefaultTimeout.
	Timeout time.Duration
	// HTTPClient is used for all requests. If nil, a dedicated client is created.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to the Telegram Bot API over https://<base>/bot<token>/<method>.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	// closed is cancelled by Close
	closed context.Context
	cancel context.CancelFunc
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// NewClient creates a new Bot API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("telegram: invalid base URL %q: %w", baseURL, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	closed, cancel := context.WithCancel(context.Background())
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      cfg.Token,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger.With("component", "telegram"),
		closed:     closed,
		cancel:     cancel,
	}, nil
}

// SendMessage sends a text message, optionally formatted and with an inline keyboard.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) error {
	if err := c.call(ctx, "sendMessage", req.ChatID, req, nil); err != nil {
		return err
	}
	c.logger.Debug("message sent", "chat_id", req.ChatID, "parse_mode", req.ParseMode)
	return nil
}

// AnswerCallbackQuery acknowledges a button press so the client stops its spinner.
func (c *Client) AnswerCallbackQuery(ctx context.Context, req AnswerCallbackQueryRequest) error {
	return c.call(ctx, "answerCallbackQuery", 0, req, nil)
}

// SetWebhook registers the webhook URL. Nil AllowedUpdates means DefaultAllowedUpdates.
func (c *Client) SetWebhook(ctx context.Context, req SetWebhookRequest) error {
	if req.AllowedUpdates == nil {
		req.AllowedUpdates = DefaultAllowedUpdates
	}
	if err := c.call(ctx, "setWebhook", 0, req, nil); err != nil {
		return err
	}
	c.logger.Info("webhook set", "url", req.URL, "allowed_updates", req.AllowedUpdates)
	return nil
}

// GetWebhookInfo returns the current webhook registration.
func (c *Client) GetWebhookInfo(ctx context.Context) (*WebhookInfo, error) {
	var info WebhookInfo
	if err := c.call(ctx, "getWebhookInfo", 0, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Close cancels in-flight requests and releases idle connections.
// Calls made after Close fail with ErrClientClosed.
func (c *Client) Close() error {
	c.cancel()
	c.httpClient.CloseIdleConnections()
	return nil
}

// call posts body as JSON to method and decodes the result into out when non-nil.
func (c *Client) call(ctx context.Context, method string, chatID int64, body, out any) error {
	fail := func(status int, description string, err error) error {
		return &DeliveryError{Method: method, ChatID: chatID, StatusCode: status, Description: description, Err: err}
	}

	if c.closed.Err() != nil {
		return fail(0, "", ErrClientClosed)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	stop := context.AfterFunc(c.closed, cancel)
	defer stop()

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fail(0, "", fmt.Errorf("encoding request: %w", err))
		}
		bodyReader = bytes.NewReader(encoded)
	}

	requestURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, requestURL, bodyReader)
	if err != nil {
		return fail(0, "", fmt.Errorf("creating request: %w", redact(err)))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.closed.Err() != nil {
			return fail(0, "", ErrClientClosed)
		}
		return fail(0, "", redact(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fail(resp.StatusCode, "", fmt.Errorf("reading response: %w", err))
	}

	var envelope apiResponse
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		description := envelope.Description
		if decodeErr != nil || description == "" {
			description = strings.TrimSpace(string(raw))
		}
		return fail(resp.StatusCode, description, nil)
	}
	if decodeErr != nil {
		return fail(resp.StatusCode, "", fmt.Errorf("decoding response: %w", decodeErr))
	}
	if !envelope.OK {
		return fail(resp.StatusCode, envelope.Description, nil)
	}

	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fail(resp.StatusCode, "", fmt.Errorf("decoding result: %w", err))
		}
	}
	return nil
}

// redact strips the request URL, which embeds the bot token, from transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// Ensure Client implements Sender
var _ Sender = (*Client)(nil)
