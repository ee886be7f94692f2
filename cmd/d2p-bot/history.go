// ABOUTME: history subcommand: prints the recent messages of a user's active conversation
// ABOUTME: Reads the SQLite database directly, so it works while the server is stopped

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/dev2production/d2p-bot/internal/config"
	"github.com/dev2production/d2p-bot/internal/conversation"
	"github.com/dev2production/d2p-bot/internal/store"
)

const defaultHistoryLimit = 20

func runHistory(ctx context.Context, args []string) error {
	var configFlag string
	var userID int64
	var limit int
	fs := newFlagSet("history", &configFlag)
	fs.Int64Var(&userID, "user", 0, "Telegram user ID")
	fs.IntVarP(&limit, "limit", "n", defaultHistoryLimit, "number of messages to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if userID == 0 {
		return errors.New("--user is required")
	}

	cfg, _, err := loadConfig(configFlag)
	if err != nil {
		return err
	}
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: cfg.Logging.Format})

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	conv, err := s.GetActiveConversation(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("user %d has no active conversation", userID)
	}
	if err != nil {
		return fmt.Errorf("looking up conversation: %w", err)
	}

	msgs, err := conversation.New(s, logger).ListRecentMessages(ctx, conv.ID, limit)
	if err != nil {
		return fmt.Errorf("listing messages: %w", err)
	}

	printHistory(os.Stdout, conv, msgs)
	return nil
}

func printHistory(w io.Writer, conv *store.Conversation, msgs []*store.Message) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	username := conv.Username
	if username == "" {
		username = "(no username)"
	}
	cyan.Fprintf(w, "  Conversation %s\n", conv.ID)
	fmt.Fprintf(w, "  User:    %d %s\n", conv.ExternalUserID, username)
	fmt.Fprintf(w, "  Status:  %s\n", conv.Status)
	fmt.Fprintf(w, "  Started: %s\n\n", conv.CreatedAt.Format("2006-01-02 15:04:05"))

	if len(msgs) == 0 {
		gray.Fprintln(w, "  (no messages)")
		return
	}

	for _, m := range msgs {
		gray.Fprintf(w, "  %s ", m.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "%-5s %s\n", m.Sender, m.Content)
		if m.Usage.Used {
			gray.Fprintf(w, "        model=%s tokens=%d confidence=%.2f latency=%dms\n",
				m.Usage.Model, m.Usage.TokensUsed, m.Usage.Confidence, m.Usage.LatencyMS)
		}
	}
}
