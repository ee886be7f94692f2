// Package store provides persistent storage for d2p-bot using SQLite.
//
// # Data Models
//
//   - Conversation: One support dialogue with a Telegram user, with a lifecycle status
//   - Message: An append-only utterance in a conversation, optionally carrying LLM usage
//   - Lead: Sales intake captured from a conversation
//
// A user has at most one ACTIVE conversation at a time. The SQLite schema
// enforces this with a partial unique index, and CreateConversation reports a
// collision as ErrDuplicateConversation so callers can re-read the winner.
//
// # SQLite Configuration
//
// Pragmas are set in the DSN so every pooled connection gets them:
//
//	foreign_keys(1)
//	busy_timeout(5000)
//
// File databases additionally run in WAL mode.
//
// # Error Handling
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateConversation: The user already has an ACTIVE conversation
//   - ErrStorageUnavailable: The database cannot be reached (wrapped)
//   - *ValidationError: A status, role or score outside the known variants
//
// # Testing
//
// Use NewMockStore() for unit tests. Use NewSQLiteStore(":memory:") or a
// t.TempDir() path for integration tests with real SQLite.
package store
