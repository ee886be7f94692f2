// ABOUTME: Lead persistence for the SQLite store
// ABOUTME: Leads carry optional intake fields and a score that defaults to cold

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateLead inserts a lead for an existing conversation.
// An empty Score is stored as cold. Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) CreateLead(ctx context.Context, lead *Lead) error {
	if lead.Score == "" {
		lead.Score = LeadCold
	}
	if _, err := ParseLeadScore(string(lead.Score)); err != nil {
		return err
	}

	query := `
		INSERT INTO leads (
			id, conversation_id, name, email, company,
			project_type, project_description, timeline, budget, score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		lead.ID,
		lead.ConversationID,
		nullString(lead.Name),
		nullString(lead.Email),
		nullString(lead.Company),
		nullString(lead.ProjectType),
		nullString(lead.ProjectDescription),
		nullString(lead.Timeline),
		nullString(lead.Budget),
		string(lead.Score),
		formatTime(lead.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return storageErr("inserting lead", err)
	}

	s.logger.Debug("created lead", "id", lead.ID, "conversation_id", lead.ConversationID, "score", lead.Score)
	return nil
}

// ListLeads returns the leads of a conversation, oldest first.
func (s *SQLiteStore) ListLeads(ctx context.Context, conversationID string) ([]*Lead, error) {
	query := `
		SELECT id, conversation_id, name, email, company,
		       project_type, project_description, timeline, budget, score, created_at
		FROM leads
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, storageErr("querying leads", err)
	}
	defer rows.Close()

	leads := []*Lead{}
	for rows.Next() {
		var lead Lead
		var name, email, company, projectType, description, timeline, budget sql.NullString
		var score, createdAt string

		if err := rows.Scan(&lead.ID, &lead.ConversationID, &name, &email, &company,
			&projectType, &description, &timeline, &budget, &score, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning lead row: %w", err)
		}

		lead.Name = name.String
		lead.Email = email.String
		lead.Company = company.String
		lead.ProjectType = projectType.String
		lead.ProjectDescription = description.String
		lead.Timeline = timeline.String
		lead.Budget = budget.String

		var err error
		if lead.Score, err = ParseLeadScore(score); err != nil {
			return nil, err
		}
		if lead.CreatedAt, err = parseTime("lead created_at", createdAt); err != nil {
			return nil, err
		}
		leads = append(leads, &lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lead rows: %w", err)
	}
	return leads, nil
}
