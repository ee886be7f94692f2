// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite while keeping the store invariants

package store

import (
	"context"
	"sync"
	"time"
)

// MockStore is an in-memory ConversationStore implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // keyed by conversation ID
	active        map[int64]string         // keyed by external user ID -> active conversation ID
	messages      map[string][]*Message    // keyed by conversation ID, insertion order
	leads         map[string][]*Lead       // keyed by conversation ID

	// PingErr, when set, is returned by Ping
	PingErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		active:        make(map[int64]string),
		messages:      make(map[string][]*Message),
		leads:         make(map[string][]*Lead),
	}
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if _, err := ParseConversationStatus(string(conv.Status)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if conv.Status == StatusActive {
		if _, exists := m.active[conv.ExternalUserID]; exists {
			return ErrDuplicateConversation
		}
		m.active[conv.ExternalUserID] = conv.ID
	}

	c := *conv
	m.conversations[c.ID] = &c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// GetActiveConversation retrieves the ACTIVE conversation for a user.
func (m *MockStore) GetActiveConversation(ctx context.Context, externalUserID int64) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.active[externalUserID]
	if !ok {
		return nil, ErrNotFound
	}
	result := *m.conversations[id]
	return &result, nil
}

// UpdateConversationStatus moves a conversation to a new status.
func (m *MockStore) UpdateConversationStatus(ctx context.Context, id string, status ConversationStatus, at time.Time) error {
	if _, err := ParseConversationStatus(string(status)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}

	if status == StatusActive && c.Status != StatusActive {
		if _, exists := m.active[c.ExternalUserID]; exists {
			return ErrDuplicateConversation
		}
		m.active[c.ExternalUserID] = c.ID
	}
	if status != StatusActive && c.Status == StatusActive {
		delete(m.active, c.ExternalUserID)
	}

	c.Status = status
	c.UpdatedAt = at
	if status == StatusEscalated {
		t := at
		c.EscalatedAt = &t
	}
	return nil
}

// SaveMessage stores a message.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	if _, err := ParseSenderRole(string(msg.Sender)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[msg.ConversationID]; !ok {
		return ErrNotFound
	}

	// Make a copy to avoid external modification
	msgCopy := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &msgCopy)
	return nil
}

// ListRecentMessages returns up to limit of the most recent messages, oldest first.
func (m *MockStore) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		return []*Message{}, nil
	}

	msgs := m.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	// Return copies
	result := make([]*Message, len(msgs))
	for i, msg := range msgs {
		msgCopy := *msg
		result[i] = &msgCopy
	}
	return result, nil
}

// CreateLead stores a lead.
func (m *MockStore) CreateLead(ctx context.Context, lead *Lead) error {
	if lead.Score == "" {
		lead.Score = LeadCold
	}
	if _, err := ParseLeadScore(string(lead.Score)); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[lead.ConversationID]; !ok {
		return ErrNotFound
	}

	leadCopy := *lead
	m.leads[lead.ConversationID] = append(m.leads[lead.ConversationID], &leadCopy)
	return nil
}

// ListLeads returns the leads of a conversation.
func (m *MockStore) ListLeads(ctx context.Context, conversationID string) ([]*Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Lead, 0, len(m.leads[conversationID]))
	for _, lead := range m.leads[conversationID] {
		leadCopy := *lead
		result = append(result, &leadCopy)
	}
	return result, nil
}

// Ping returns PingErr.
func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingErr
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

// CountActive returns the number of ACTIVE conversations for a user. Test helper.
func (m *MockStore) CountActive(externalUserID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, c := range m.conversations {
		if c.ExternalUserID == externalUserID && c.Status == StatusActive {
			n++
		}
	}
	return n
}

// ConversationCount returns the number of stored conversations. Test helper.
func (m *MockStore) ConversationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conversations)
}

// AllMessages returns every message of a conversation in insertion order. Test helper.
func (m *MockStore) AllMessages(conversationID string) []*Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Message, len(m.messages[conversationID]))
	for i, msg := range m.messages[conversationID] {
		msgCopy := *msg
		result[i] = &msgCopy
	}
	return result
}

// Ensure MockStore implements ConversationStore
var _ ConversationStore = (*MockStore)(nil)
