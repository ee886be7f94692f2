// ABOUTME: Dispatcher classifies inbound updates and routes them to command and action handlers
// ABOUTME: Records every user message before replying; delivery failures never abort an update

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dev2production/d2p-bot/internal/conversation"
	"github.com/dev2production/d2p-bot/internal/store"
	"github.com/dev2production/d2p-bot/internal/telegram"
)

// AckText is sent in reply to any non-command message.
const AckText = "Message received! Full bot functionality coming soon."

// actionPrefix is stripped from callback data before action lookup
const actionPrefix = "action:"

// Conversations defines what the dispatcher needs from the conversation layer
type Conversations interface {
	GetOrCreate(ctx context.Context, externalUserID int64, username string) (*store.Conversation, error)
	AddMessage(ctx context.Context, req conversation.AddMessageRequest) (*store.Message, error)
}

// Reply is an outbound message produced by a handler.
type Reply struct {
	Text      string
	ParseMode string
	Keyboard  *telegram.InlineKeyboardMarkup
}

// Command is a slash command extracted from a user message.
type Command struct {
	UpdateID       int64
	ChatID         int64
	ConversationID string
	Name           string // normalized, e.g. "/start"
	Text           string // the full message text
}

// Action is a callback press with its action token.
type Action struct {
	UpdateID   int64
	ChatID     int64
	CallbackID string
	Token      string // callback data without the "action:" prefix
	Data       string // the raw callback data
}

// CommandHandler produces the reply to a command. A nil reply sends nothing.
type CommandHandler func(ctx context.Context, cmd Command) (*Reply, error)

// ActionHandler produces the reply to a callback action. A nil reply sends nothing.
type ActionHandler func(ctx context.Context, act Action) (*Reply, error)

// Config holds the dependencies of a Dispatcher
type Config struct {
	Conversations Conversations
	Sender        telegram.Sender
	Logger        *slog.Logger
	// Metrics may be nil; unregistered collectors are created then.
	Metrics *Metrics
}

// Dispatcher routes one decoded update at a time. It is safe for concurrent use
// once all handlers are registered.
type Dispatcher struct {
	conversations Conversations
	sender        telegram.Sender
	logger        *slog.Logger
	metrics       *Metrics

	commands map[string]CommandHandler
	actions  map[string]ActionHandler
	fallback CommandHandler
}

// New creates a Dispatcher with the built-in commands and actions registered.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	d := &Dispatcher{
		conversations: cfg.Conversations,
		sender:        cfg.Sender,
		logger:        logger.With("component", "dispatcher"),
		metrics:       metrics,
		commands:      make(map[string]CommandHandler),
		actions:       make(map[string]ActionHandler),
		fallback:      handleUnknownCommand,
	}
	registerBuiltinCommands(d)
	registerBuiltinActions(d)
	return d
}

// RegisterCommand adds or replaces the handler for a slash command such as "/start".
func (d *Dispatcher) RegisterCommand(name string, h CommandHandler) {
	d.commands[normalizeCommand(name)] = h
}

// RegisterAction adds or replaces the handler for a callback action token such as "services".
func (d *Dispatcher) RegisterAction(token string, h ActionHandler) {
	d.actions[token] = h
}

// Dispatch processes one update. Validation and storage errors are returned;
// failed replies are logged and counted but do not fail the update.
func (d *Dispatcher) Dispatch(ctx context.Context, update *telegram.Update) error {
	kind := update.Kind()
	d.metrics.Updates.WithLabelValues(kind.String()).Inc()

	switch kind {
	case telegram.KindMessage:
		return d.handleMessage(ctx, update.UpdateID, update.Message)
	case telegram.KindCallback:
		return d.handleCallback(ctx, update.UpdateID, update.CallbackQuery)
	default:
		d.logger.Warn("unknown update type", "update_id", update.UpdateID)
		return nil
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, updateID int64, msg *telegram.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	chatID := msg.Chat.ID
	text := msg.Text
	logger := d.logger.With("update_id", updateID, "chat_id", chatID)

	logger.Info("processing message", "user_id", msg.From.ID, "text", truncate(text, 50))

	conv, err := d.conversations.GetOrCreate(ctx, msg.From.ID, msg.From.Username)
	if err != nil {
		d.metrics.StorageFailures.Inc()
		return fmt.Errorf("resolving conversation: %w", err)
	}
	logger = logger.With("conversation_id", conv.ID)

	messageID := msg.MessageID
	if _, err := d.conversations.AddMessage(ctx, conversation.AddMessageRequest{
		ConversationID:    conv.ID,
		Sender:            store.SenderUser,
		Content:           text,
		ExternalMessageID: &messageID,
	}); err != nil {
		d.metrics.StorageFailures.Inc()
		return fmt.Errorf("recording message: %w", err)
	}

	if !strings.HasPrefix(text, "/") {
		d.send(ctx, logger, chatID, &Reply{Text: AckText})
		return nil
	}

	cmd := Command{
		UpdateID:       updateID,
		ChatID:         chatID,
		ConversationID: conv.ID,
		Name:           normalizeCommand(strings.Fields(text)[0]),
		Text:           text,
	}

	handler, ok := d.commands[cmd.Name]
	label := cmd.Name
	if !ok {
		handler = d.fallback
		label = "unknown"
	}
	d.metrics.Commands.WithLabelValues(label).Inc()

	reply, err := handler(ctx, cmd)
	if err != nil {
		return fmt.Errorf("handling command %s: %w", cmd.Name, err)
	}
	d.send(ctx, logger, chatID, reply)
	return nil
}

func (d *Dispatcher) handleCallback(ctx context.Context, updateID int64, query *telegram.CallbackQuery) error {
	if err := query.Validate(); err != nil {
		return err
	}

	chatID := query.Message.Chat.ID
	logger := d.logger.With("update_id", updateID, "chat_id", chatID)
	logger.Info("processing callback", "data", query.Data)

	// Answer first so the client's spinner stops even if the reply fails
	if err := d.sender.AnswerCallbackQuery(ctx, telegram.AnswerCallbackQueryRequest{CallbackQueryID: query.ID}); err != nil {
		d.deliveryFailed(logger, err)
	}

	act := Action{
		UpdateID:   updateID,
		ChatID:     chatID,
		CallbackID: query.ID,
		Token:      strings.TrimPrefix(query.Data, actionPrefix),
		Data:       query.Data,
	}

	handler, ok := d.actions[act.Token]
	if !ok {
		d.metrics.Actions.WithLabelValues("unknown").Inc()
		logger.Debug("ignoring unknown callback action", "action", act.Token)
		return nil
	}
	d.metrics.Actions.WithLabelValues(act.Token).Inc()

	reply, err := handler(ctx, act)
	if err != nil {
		return fmt.Errorf("handling action %s: %w", act.Token, err)
	}
	d.send(ctx, logger, chatID, reply)
	return nil
}

// send delivers reply to chatID, logging and counting failures
func (d *Dispatcher) send(ctx context.Context, logger *slog.Logger, chatID int64, reply *Reply) {
	if reply == nil {
		return
	}
	err := d.sender.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:      chatID,
		Text:        reply.Text,
		ParseMode:   reply.ParseMode,
		ReplyMarkup: reply.Keyboard,
	})
	if err != nil {
		d.deliveryFailed(logger, err)
	}
}

func (d *Dispatcher) deliveryFailed(logger *slog.Logger, err error) {
	method := "unknown"
	var dErr *telegram.DeliveryError
	if errors.As(err, &dErr) {
		method = dErr.Method
	}
	d.metrics.DeliveryFailures.WithLabelValues(method).Inc()
	logger.Error("delivery failed", "method", method, "error", err)
}

// normalizeCommand strips any "@botname" suffix, so "/start@d2p_bot" becomes "/start"
func normalizeCommand(cmd string) string {
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
