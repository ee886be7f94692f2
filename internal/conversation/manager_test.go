// ABOUTME: Tests for the conversation Manager
// ABOUTME: Verifies get-or-create race handling, message recording and history limits

package conversation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev2production/d2p-bot/internal/store"
)

func createTestStore(t *testing.T) *store.SQLiteStore {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// staleLookupStore misses the first lookup so the caller races into a duplicate insert
type staleLookupStore struct {
	*store.MockStore
	mu     sync.Mutex
	misses int
}

func (s *staleLookupStore) GetActiveConversation(ctx context.Context, userID int64) (*store.Conversation, error) {
	s.mu.Lock()
	if s.misses > 0 {
		s.misses--
		s.mu.Unlock()
		return nil, store.ErrNotFound
	}
	s.mu.Unlock()
	return s.MockStore.GetActiveConversation(ctx, userID)
}

// failingStore fails every call with err
type failingStore struct {
	err error
}

func (f *failingStore) CreateConversation(context.Context, *store.Conversation) error { return f.err }
func (f *failingStore) GetActiveConversation(context.Context, int64) (*store.Conversation, error) {
	return nil, f.err
}
func (f *failingStore) SaveMessage(context.Context, *store.Message) error { return f.err }
func (f *failingStore) ListRecentMessages(context.Context, string, int) ([]*store.Message, error) {
	return nil, f.err
}

func TestManager_GetOrCreate_CreatesThenReuses(t *testing.T) {
	testStore := createTestStore(t)
	mgr := New(testStore, nil)
	ctx := context.Background()

	conv, err := mgr.GetOrCreate(ctx, 1001, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, store.StatusActive, conv.Status)
	assert.Equal(t, "alice", conv.Username)

	again, err := mgr.GetOrCreate(ctx, 1001, "alice")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	other, err := mgr.GetOrCreate(ctx, 1002, "")
	require.NoError(t, err)
	assert.NotEqual(t, conv.ID, other.ID)
}

func TestManager_GetOrCreate_NewConversationAfterEscalation(t *testing.T) {
	testStore := createTestStore(t)
	mgr := New(testStore, nil)
	ctx := context.Background()

	first, err := mgr.GetOrCreate(ctx, 1001, "alice")
	require.NoError(t, err)
	require.NoError(t, testStore.UpdateConversationStatus(ctx, first.ID, store.StatusEscalated, time.Now()))

	second, err := mgr.GetOrCreate(ctx, 1001, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestManager_GetOrCreate_DuplicateReturnsWinner(t *testing.T) {
	mock := store.NewMockStore()
	ctx := context.Background()

	winner := &store.Conversation{
		ID:             "winner",
		ExternalUserID: 1001,
		Status:         store.StatusActive,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, mock.CreateConversation(ctx, winner))

	mgr := New(&staleLookupStore{MockStore: mock, misses: 1}, nil)

	conv, err := mgr.GetOrCreate(ctx, 1001, "alice")
	require.NoError(t, err)
	assert.Equal(t, "winner", conv.ID)
	assert.Equal(t, 1, mock.ConversationCount())
}

func TestManager_GetOrCreate_GivesUpAfterRepeatedDuplicates(t *testing.T) {
	mock := store.NewMockStore()
	ctx := context.Background()
	require.NoError(t, mock.CreateConversation(ctx, &store.Conversation{
		ID: "winner", ExternalUserID: 1001, Status: store.StatusActive,
	}))

	mgr := New(&staleLookupStore{MockStore: mock, misses: maxCreateAttempts}, nil)

	_, err := mgr.GetOrCreate(ctx, 1001, "alice")
	assert.ErrorIs(t, err, store.ErrDuplicateConversation)
}

func TestManager_GetOrCreate_Concurrent(t *testing.T) {
	stores := map[string]Store{
		"sqlite": createTestStore(t),
		"mock":   store.NewMockStore(),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			mgr := New(s, nil)
			ctx := context.Background()

			const workers = 10
			var wg sync.WaitGroup
			ids := make([]string, workers)
			errs := make([]error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					conv, err := mgr.GetOrCreate(ctx, 4242, "racer")
					errs[i] = err
					if conv != nil {
						ids[i] = conv.ID
					}
				}(i)
			}
			wg.Wait()

			for i := 0; i < workers; i++ {
				require.NoError(t, errs[i])
				assert.Equal(t, ids[0], ids[i], "all callers should see the same conversation")
			}

			active, err := s.GetActiveConversation(ctx, 4242)
			require.NoError(t, err)
			assert.Equal(t, ids[0], active.ID)
		})
	}
}

func TestManager_GetOrCreate_StorageError(t *testing.T) {
	storageErr := fmt.Errorf("%w: disk gone", store.ErrStorageUnavailable)
	mgr := New(&failingStore{err: storageErr}, nil)

	_, err := mgr.GetOrCreate(context.Background(), 1, "")
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
}

func TestManager_AddMessage(t *testing.T) {
	testStore := createTestStore(t)
	mgr := New(testStore, nil)
	ctx := context.Background()

	conv, err := mgr.GetOrCreate(ctx, 1001, "alice")
	require.NoError(t, err)

	externalID := int64(77)
	msg, err := mgr.AddMessage(ctx, AddMessageRequest{
		ConversationID:    conv.ID,
		Sender:            store.SenderUser,
		Content:           "hello",
		ExternalMessageID: &externalID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.False(t, msg.Usage.Used)

	_, err = mgr.AddMessage(ctx, AddMessageRequest{
		ConversationID: conv.ID,
		Sender:         store.SenderBot,
		Content:        "hi there",
		Usage:          &Usage{Model: "gpt-4o-mini", TokensUsed: 42, Confidence: 0.75, LatencyMS: 120},
	})
	require.NoError(t, err)

	history, err := mgr.ListRecentMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, "hello", history[0].Content)
	require.NotNil(t, history[0].ExternalMessageID)
	assert.Equal(t, int64(77), *history[0].ExternalMessageID)

	assert.Equal(t, store.SenderBot, history[1].Sender)
	assert.True(t, history[1].Usage.Used)
	assert.Equal(t, "gpt-4o-mini", history[1].Usage.Model)
	assert.Equal(t, 42, history[1].Usage.TokensUsed)
}

func TestManager_AddMessage_UnknownConversation(t *testing.T) {
	testStore := createTestStore(t)
	mgr := New(testStore, nil)
	ctx := context.Background()

	_, err := mgr.AddMessage(ctx, AddMessageRequest{
		ConversationID: "missing",
		Sender:         store.SenderUser,
		Content:        "hello",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	history, err := testStore.ListRecentMessages(ctx, "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestManager_AddMessage_InvalidSender(t *testing.T) {
	mock := store.NewMockStore()
	mgr := New(mock, nil)

	_, err := mgr.AddMessage(context.Background(), AddMessageRequest{ConversationID: "c", Sender: "robot"})
	var vErr *store.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "robot", vErr.Value)
}

func TestManager_ListRecentMessages(t *testing.T) {
	testStore := createTestStore(t)
	mgr := New(testStore, nil)
	ctx := context.Background()

	conv, err := mgr.GetOrCreate(ctx, 1001, "alice")
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		_, err := mgr.AddMessage(ctx, AddMessageRequest{
			ConversationID: conv.ID,
			Sender:         store.SenderUser,
			Content:        fmt.Sprintf("m%d", i),
		})
		require.NoError(t, err)
	}

	history, err := mgr.ListRecentMessages(ctx, conv.ID, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "m3", history[0].Content)
	assert.Equal(t, "m4", history[1].Content)
	assert.Equal(t, "m5", history[2].Content)

	empty, err := mgr.ListRecentMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
