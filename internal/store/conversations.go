// ABOUTME: Conversation persistence for the SQLite store
// ABOUTME: The partial unique index on active conversations backs the one-active-per-user invariant

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const conversationColumns = `id, external_user_id, username, status, lead_score, escalated_at, created_at, updated_at`

// CreateConversation inserts a new conversation.
// Returns ErrDuplicateConversation if conv is ACTIVE and the user already has an ACTIVE conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	if _, err := ParseConversationStatus(string(conv.Status)); err != nil {
		return err
	}

	var escalatedAt any
	if conv.EscalatedAt != nil {
		escalatedAt = formatTime(*conv.EscalatedAt)
	}

	query := `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.ExternalUserID,
		nullString(conv.Username),
		string(conv.Status),
		nullString(string(conv.LeadScore)),
		escalatedAt,
		formatTime(conv.CreatedAt),
		formatTime(conv.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateConversation
		}
		return storageErr("inserting conversation", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "external_user_id", conv.ExternalUserID)
	return nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// GetActiveConversation retrieves the ACTIVE conversation for a Telegram user.
// Returns ErrNotFound if the user has no active conversation.
func (s *SQLiteStore) GetActiveConversation(ctx context.Context, externalUserID int64) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE external_user_id = ? AND status = ?`,
		externalUserID, string(StatusActive))
	return scanConversation(row)
}

// UpdateConversationStatus moves a conversation to a new status.
// Moving to ESCALATED stamps escalated_at. Moving back to ACTIVE fails with
// ErrDuplicateConversation if the user already has another active conversation.
func (s *SQLiteStore) UpdateConversationStatus(ctx context.Context, id string, status ConversationStatus, at time.Time) error {
	if _, err := ParseConversationStatus(string(status)); err != nil {
		return err
	}

	query := `
		UPDATE conversations
		SET status = ?, updated_at = ?,
		    escalated_at = CASE WHEN ? = 'escalated' THEN ? ELSE escalated_at END
		WHERE id = ?
	`

	ts := formatTime(at)
	result, err := s.db.ExecContext(ctx, query, string(status), ts, string(status), ts, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateConversation
		}
		return storageErr("updating conversation status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated conversation status", "id", id, "status", status)
	return nil
}

func scanConversation(row *sql.Row) (*Conversation, error) {
	var conv Conversation
	var username, leadScore, escalatedAt sql.NullString
	var status, createdAt, updatedAt string

	err := row.Scan(
		&conv.ID,
		&conv.ExternalUserID,
		&username,
		&status,
		&leadScore,
		&escalatedAt,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("querying conversation", err)
	}

	conv.Username = username.String
	if conv.Status, err = ParseConversationStatus(status); err != nil {
		return nil, err
	}
	if leadScore.Valid {
		if conv.LeadScore, err = ParseLeadScore(leadScore.String); err != nil {
			return nil, err
		}
	}
	if escalatedAt.Valid {
		t, err := parseTime("escalated_at", escalatedAt.String)
		if err != nil {
			return nil, err
		}
		conv.EscalatedAt = &t
	}
	if conv.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if conv.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}

	return &conv, nil
}
