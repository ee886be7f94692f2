// ABOUTME: Manager is the operation layer over the conversation store
// ABOUTME: Resolves the user's active conversation and records messages with optional usage metadata

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dev2production/d2p-bot/internal/store"
)

// maxCreateAttempts bounds the create -> duplicate -> re-read loop in GetOrCreate
const maxCreateAttempts = 3

// Store defines what the manager needs from storage
type Store interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	GetActiveConversation(ctx context.Context, externalUserID int64) (*store.Conversation, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error)
}

// Usage is the model-usage metadata attached to a message
type Usage struct {
	Model      string
	TokensUsed int
	Confidence float64
	LatencyMS  int64
}

// AddMessageRequest contains everything needed to record a message
type AddMessageRequest struct {
	ConversationID    string
	Sender            store.SenderRole
	Content           string
	ExternalMessageID *int64

	// Usage is nil when no model produced the message
	Usage *Usage
}

// Manager resolves conversations and appends messages to them.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Manager
func New(s Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  s,
		logger: logger.With("component", "conversation"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate returns the user's ACTIVE conversation, creating one if there is none.
// Concurrent calls for the same user all return the same conversation.
func (m *Manager) GetOrCreate(ctx context.Context, externalUserID int64, username string) (*store.Conversation, error) {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		conv, err := m.store.GetActiveConversation(ctx, externalUserID)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("looking up active conversation: %w", err)
		}

		now := m.now()
		conv = &store.Conversation{
			ID:             uuid.New().String(),
			ExternalUserID: externalUserID,
			Username:       username,
			Status:         store.StatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		err = m.store.CreateConversation(ctx, conv)
		if err == nil {
			m.logger.Info("conversation created",
				"conversation_id", conv.ID,
				"external_user_id", externalUserID)
			return conv, nil
		}
		if !errors.Is(err, store.ErrDuplicateConversation) {
			return nil, fmt.Errorf("creating conversation: %w", err)
		}

		// Another request created it between our lookup and insert
		m.logger.Debug("conversation creation hit duplicate, retrying lookup",
			"external_user_id", externalUserID,
			"attempt", attempt+1)
	}

	return nil, fmt.Errorf("resolving conversation for user %d: %w", externalUserID, store.ErrDuplicateConversation)
}

// AddMessage records a message in an existing conversation.
// Returns store.ErrNotFound if the conversation doesn't exist.
func (m *Manager) AddMessage(ctx context.Context, req AddMessageRequest) (*store.Message, error) {
	sender, err := store.ParseSenderRole(string(req.Sender))
	if err != nil {
		return nil, err
	}

	msg := &store.Message{
		ID:                uuid.New().String(),
		ConversationID:    req.ConversationID,
		Sender:            sender,
		Content:           req.Content,
		ExternalMessageID: req.ExternalMessageID,
		CreatedAt:         m.now(),
	}
	if req.Usage != nil {
		msg.Usage = store.Usage{
			Used:       true,
			Model:      req.Usage.Model,
			TokensUsed: req.Usage.TokensUsed,
			Confidence: req.Usage.Confidence,
			LatencyMS:  req.Usage.LatencyMS,
		}
	}

	if err := m.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	m.logger.Debug("message recorded",
		"conversation_id", msg.ConversationID,
		"message_id", msg.ID,
		"sender", msg.Sender)
	return msg, nil
}

// ListRecentMessages returns up to limit of the most recent messages, oldest first.
func (m *Manager) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		return []*store.Message{}, nil
	}
	msgs, err := m.store.ListRecentMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return msgs, nil
}
