// ABOUTME: Message persistence for the SQLite store
// ABOUTME: Messages are append-only and ordered by creation time, with insertion order breaking ties

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveMessage appends a message to its conversation.
// Returns ErrNotFound if the conversation doesn't exist; nothing is persisted in that case.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	if _, err := ParseSenderRole(string(msg.Sender)); err != nil {
		return err
	}

	var model, tokens, confidence, latency any
	if msg.Usage.Used {
		model = nullString(msg.Usage.Model)
		tokens = msg.Usage.TokensUsed
		confidence = msg.Usage.Confidence
		latency = msg.Usage.LatencyMS
	}

	var externalID any
	if msg.ExternalMessageID != nil {
		externalID = *msg.ExternalMessageID
	}

	query := `
		INSERT INTO messages (
			id, conversation_id, sender_type, content, telegram_message_id,
			llm_used, llm_model, llm_tokens_used, llm_confidence, llm_latency_ms,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		string(msg.Sender),
		msg.Content,
		externalID,
		msg.Usage.Used,
		model,
		tokens,
		confidence,
		latency,
		formatTime(msg.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return storageErr("inserting message", err)
	}

	s.logger.Debug("saved message",
		"id", msg.ID,
		"conversation_id", msg.ConversationID,
		"sender", msg.Sender,
		"llm_used", msg.Usage.Used)
	return nil
}

// ListRecentMessages returns up to limit of the most recent messages in a conversation,
// oldest first. A limit of zero or less returns an empty slice.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	if limit <= 0 {
		return []*Message{}, nil
	}

	// Take the N most recent, then flip back to chronological order
	query := `
		SELECT id, conversation_id, sender_type, content, telegram_message_id,
		       llm_used, llm_model, llm_tokens_used, llm_confidence, llm_latency_ms, created_at
		FROM (
			SELECT rowid AS seq, *
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, storageErr("querying messages", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return messages, nil
}

func scanMessage(rows *sql.Rows) (*Message, error) {
	var msg Message
	var sender, createdAt string
	var externalID, tokens, latency sql.NullInt64
	var model sql.NullString
	var confidence sql.NullFloat64

	if err := rows.Scan(
		&msg.ID,
		&msg.ConversationID,
		&sender,
		&msg.Content,
		&externalID,
		&msg.Usage.Used,
		&model,
		&tokens,
		&confidence,
		&latency,
		&createdAt,
	); err != nil {
		return nil, fmt.Errorf("scanning message row: %w", err)
	}

	var err error
	if msg.Sender, err = ParseSenderRole(sender); err != nil {
		return nil, err
	}
	if externalID.Valid {
		id := externalID.Int64
		msg.ExternalMessageID = &id
	}
	msg.Usage.Model = model.String
	msg.Usage.TokensUsed = int(tokens.Int64)
	msg.Usage.Confidence = confidence.Float64
	msg.Usage.LatencyMS = latency.Int64

	if msg.CreatedAt, err = parseTime("message created_at", createdAt); err != nil {
		return nil, err
	}
	return &msg, nil
}
