// ABOUTME: SQLite implementation of the ConversationStore using modernc.org/sqlite
// ABOUTME: Opens the database, creates the schema and applies idempotent migrations

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that lexical order of stored timestamps equals time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// busyTimeout is how long a writer waits for the database lock before failing
const busyTimeout = 5 * time.Second

// SQLiteStore implements ConversationStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	inMemory := path == ":memory:"
	if !inMemory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas in the DSN apply to every pooled connection, not just the first one.
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if inMemory {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id               TEXT PRIMARY KEY,
			external_user_id INTEGER NOT NULL,
			username         TEXT,
			status           TEXT NOT NULL DEFAULT 'active',
			lead_score       TEXT,
			escalated_at     TEXT,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL,

			CHECK (status IN ('active', 'escalated', 'resolved', 'archived')),
			CHECK (lead_score IS NULL OR lead_score IN ('hot', 'warm', 'cold'))
		);

		-- One ACTIVE conversation per user; resolved/archived history may repeat
		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_active_user
			ON conversations(external_user_id) WHERE status = 'active';

		CREATE INDEX IF NOT EXISTS idx_conversations_user
			ON conversations(external_user_id);

		CREATE INDEX IF NOT EXISTS idx_conversations_status
			ON conversations(status);

		CREATE TABLE IF NOT EXISTS messages (
			id                  TEXT PRIMARY KEY,
			conversation_id     TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_type         TEXT NOT NULL,
			content             TEXT NOT NULL,
			telegram_message_id INTEGER,
			llm_used            INTEGER NOT NULL DEFAULT 0,
			llm_model           TEXT,
			llm_tokens_used     INTEGER,
			llm_confidence      REAL,
			llm_latency_ms      INTEGER,
			created_at          TEXT NOT NULL,

			CHECK (sender_type IN ('user', 'bot', 'agent'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS leads (
			id                  TEXT PRIMARY KEY,
			conversation_id     TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			name                TEXT,
			email               TEXT,
			company             TEXT,
			project_type        TEXT,
			project_description TEXT,
			timeline            TEXT,
			budget              TEXT,
			score               TEXT NOT NULL DEFAULT 'cold',
			created_at          TEXT NOT NULL,

			CHECK (score IN ('hot', 'warm', 'cold'))
		);

		CREATE INDEX IF NOT EXISTS idx_leads_conversation
			ON leads(conversation_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "conversations",
			column: "escalated_at",
			apply:  `ALTER TABLE conversations ADD COLUMN escalated_at TEXT`,
		},
		{
			table:  "messages",
			column: "llm_latency_ms",
			apply:  `ALTER TABLE messages ADD COLUMN llm_latency_ms INTEGER`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking %s.%s: %w", m.table, m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Ping checks that the database answers a trivial query
func (s *SQLiteStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// storageErr wraps err with action context, tagging connection-level failures as unavailable
func storageErr(action string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%s: %w: %w", action, ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// isUniqueViolation checks if the error is a SQLite UNIQUE constraint violation
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation checks if the error is a SQLite FOREIGN KEY constraint violation
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// nullString returns nil for empty strings, otherwise the string
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}

// Ensure SQLiteStore implements ConversationStore
var _ ConversationStore = (*SQLiteStore)(nil)
