// ABOUTME: Store interface and data types for d2p-bot persistence
// ABOUTME: Defines Conversation, Message, Lead, their enums and the sentinel errors

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when an ACTIVE conversation already exists for the user
var ErrDuplicateConversation = errors.New("active conversation already exists")

// ErrStorageUnavailable is returned (wrapped) when the database cannot be reached
var ErrStorageUnavailable = errors.New("storage unavailable")

// ValidationError reports a stored or supplied value that does not map to a known variant.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	StatusActive    ConversationStatus = "active"
	StatusEscalated ConversationStatus = "escalated"
	StatusResolved  ConversationStatus = "resolved"
	StatusArchived  ConversationStatus = "archived"
)

// ParseConversationStatus maps a stored string to a ConversationStatus.
func ParseConversationStatus(s string) (ConversationStatus, error) {
	switch ConversationStatus(s) {
	case StatusActive, StatusEscalated, StatusResolved, StatusArchived:
		return ConversationStatus(s), nil
	}
	return "", &ValidationError{Field: "conversation status", Value: s}
}

// SenderRole identifies who authored a message.
type SenderRole string

const (
	SenderUser  SenderRole = "user"
	SenderBot   SenderRole = "bot"
	SenderAgent SenderRole = "agent"
)

// ParseSenderRole maps a stored string to a SenderRole.
func ParseSenderRole(s string) (SenderRole, error) {
	switch SenderRole(s) {
	case SenderUser, SenderBot, SenderAgent:
		return SenderRole(s), nil
	}
	return "", &ValidationError{Field: "sender role", Value: s}
}

// LeadScore is the quality rating of a lead or conversation.
type LeadScore string

const (
	LeadHot  LeadScore = "hot"
	LeadWarm LeadScore = "warm"
	LeadCold LeadScore = "cold"
)

// ParseLeadScore maps a stored string to a LeadScore.
func ParseLeadScore(s string) (LeadScore, error) {
	switch LeadScore(s) {
	case LeadHot, LeadWarm, LeadCold:
		return LeadScore(s), nil
	}
	return "", &ValidationError{Field: "lead score", Value: s}
}

// Conversation is a chat session with one Telegram user.
// At most one conversation per ExternalUserID is ACTIVE at any time.
type Conversation struct {
	ID             string
	ExternalUserID int64
	Username       string    // empty when the user has no username
	Status         ConversationStatus
	LeadScore      LeadScore // empty until scored
	EscalatedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Usage is the model-usage metadata attached to a message.
// A zero Usage means no model was involved.
type Usage struct {
	Used       bool
	Model      string
	TokensUsed int
	Confidence float64
	LatencyMS  int64
}

// Message is an immutable entry in a conversation.
type Message struct {
	ID                string
	ConversationID    string
	Sender            SenderRole
	Content           string
	ExternalMessageID *int64 // Telegram message_id, nil for messages not originating in Telegram
	Usage             Usage
	CreatedAt         time.Time
}

// Lead holds project intake data collected during a conversation.
type Lead struct {
	ID                 string
	ConversationID     string
	Name               string
	Email              string
	Company            string
	ProjectType        string
	ProjectDescription string
	Timeline           string
	Budget             string
	Score              LeadScore // defaults to cold
	CreatedAt          time.Time
}

// ConversationStore defines the persistence operations for conversations, messages and leads
type ConversationStore interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetActiveConversation(ctx context.Context, externalUserID int64) (*Conversation, error)
	UpdateConversationStatus(ctx context.Context, id string, status ConversationStatus, at time.Time) error

	// Messages
	SaveMessage(ctx context.Context, msg *Message) error
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// Leads
	CreateLead(ctx context.Context, lead *Lead) error
	ListLeads(ctx context.Context, conversationID string) ([]*Lead, error)

	// Ping reports whether storage is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
