package sync

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/chatkeeper/internal/client/storage/boltdb"
	"github.com/iudanet/chatkeeper/internal/models"
	"github.com/iudanet/chatkeeper/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *boltdb.Storage {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestEngine(t *testing.T, provider Provider, cfg Config) (*Engine, *boltdb.Storage) {
	t.Helper()

	store := newTestStore(t)
	return NewEngine(provider, store, cfg, testLogger()), store
}

func testConversation(id, title string) *models.Conversation {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	return &models.Conversation{
		SyncMeta: models.SyncMeta{
			ModifiedAt:  now,
			SyncVersion: 1,
		},
		CreatedAt: now,
		UpdatedAt: now,
		ID:        id,
		Title:     title,
		Source:    "web",
	}
}

func dirtyConversation(id, title string) *models.Conversation {
	conv := testConversation(id, title)
	conv.Dirty = true
	return conv
}

// wireConversation собирает wire-запись из доменной модели
func wireConversation(t *testing.T, conv *models.Conversation, version int64, modified time.Time) api.SyncRecord {
	t.Helper()

	rec, err := toSyncRecord(conv, modified)
	require.NoError(t, err)
	rec.SyncVersion = version
	rec.ModifiedAt = modified
	return rec
}

func putConversation(t *testing.T, store *boltdb.Storage, conv *models.Conversation) {
	t.Helper()
	require.NoError(t, store.Conversations().Put(context.Background(), conv))
}

func getConversation(t *testing.T, store *boltdb.Storage, id string) *models.Conversation {
	t.Helper()

	rec, err := store.Conversations().Get(context.Background(), id)
	require.NoError(t, err)
	conv, ok := rec.(*models.Conversation)
	require.True(t, ok)
	return conv
}

// okPull возвращает PullFunc без записей
func okPull(_ context.Context, cursor string) (*PullResult, error) {
	return &PullResult{Cursor: cursor, HasMore: false}, nil
}

// okPush возвращает PushFunc, принимающий все записи
func okPush(_ context.Context, records []api.SyncRecord) (*PushResult, error) {
	res := &PushResult{}
	for _, rec := range records {
		res.Applied = append(res.Applied, rec.ID)
	}
	return res, nil
}
