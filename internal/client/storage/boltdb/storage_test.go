package boltdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/chatkeeper/internal/client/storage"
	"github.com/iudanet/chatkeeper/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func testConversation(id, title string) *models.Conversation {
	now := time.Now().UTC()
	return &models.Conversation{
		SyncMeta:  models.SyncMeta{ModifiedAt: now, SyncVersion: 1, Dirty: true},
		CreatedAt: now,
		UpdatedAt: now,
		ID:        id,
		Title:     title,
		Source:    "claude",
	}
}

func testMessage(id, convID, content string) *models.Message {
	now := time.Now().UTC()
	return &models.Message{
		SyncMeta:       models.SyncMeta{ModifiedAt: now, SyncVersion: 1, Dirty: true},
		CreatedAt:      now,
		UpdatedAt:      now,
		ID:             id,
		ConversationID: convID,
		Role:           "user",
		Content:        content,
	}
}

func TestConversationPutGet(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	conv := testConversation("conv-1", "First conversation")
	require.NoError(t, store.Conversations().Put(ctx, conv))

	got, err := store.Conversations().Get(ctx, "conv-1")
	require.NoError(t, err)

	loaded, ok := got.(*models.Conversation)
	require.True(t, ok)
	assert.Equal(t, "First conversation", loaded.Title)
	assert.Equal(t, int64(1), loaded.SyncVersion)
	assert.True(t, loaded.Dirty)
}

func TestGetNotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.Conversations().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPutWithoutID(t *testing.T) {
	store := newTestStorage(t)

	err := store.Conversations().Put(context.Background(), testConversation("", "no id"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without id")
}

func TestGetDirty(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	dirty := testConversation("conv-dirty", "dirty")
	clean := testConversation("conv-clean", "clean")
	now := time.Now().UTC()
	clean.MarkSynced(now)

	require.NoError(t, store.Conversations().Put(ctx, dirty))
	require.NoError(t, store.Conversations().Put(ctx, clean))

	records, err := store.Conversations().GetDirty(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "conv-dirty", records[0].RecordID())
}

func TestListSkipsDeleted(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	alive := testConversation("conv-alive", "alive")
	deleted := testConversation("conv-deleted", "deleted")
	deleted.SoftDelete(time.Now().UTC())

	require.NoError(t, store.Conversations().Put(ctx, alive))
	require.NoError(t, store.Conversations().Put(ctx, deleted))

	records, err := store.Conversations().List(ctx, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "conv-alive", records[0].RecordID())

	// Tombstone виден при includeDeleted
	all, err := store.Conversations().List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRepositoryByEntityType(t *testing.T) {
	store := newTestStorage(t)

	convRepo, err := store.Repository(models.EntityTypeConversation)
	require.NoError(t, err)
	assert.Equal(t, models.EntityTypeConversation, convRepo.EntityType())

	msgRepo, err := store.Repository(models.EntityTypeMessage)
	require.NoError(t, err)
	assert.Equal(t, models.EntityTypeMessage, msgRepo.EntityType())

	_, err = store.Repository("bookmark")
	assert.ErrorIs(t, err, storage.ErrUnknownEntityType)
}

func TestPutWrongEntityType(t *testing.T) {
	store := newTestStorage(t)

	err := store.Conversations().Put(context.Background(), testMessage("msg-1", "conv-1", "hello"))
	assert.ErrorIs(t, err, storage.ErrUnknownEntityType)
}

func TestTransactionAtomicity(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	// Ошибка внутри транзакции откатывает все записи
	err := store.Transaction(ctx, func(tx storage.Tx) error {
		if err := tx.Conversations().Put(ctx, testConversation("conv-1", "doomed")); err != nil {
			return err
		}
		if err := tx.Messages().Put(ctx, testMessage("msg-1", "conv-1", "doomed too")); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	_, err = store.Conversations().Get(ctx, "conv-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.Messages().Get(ctx, "msg-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTransactionCommit(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	err := store.Transaction(ctx, func(tx storage.Tx) error {
		if err := tx.Conversations().Put(ctx, testConversation("conv-1", "kept")); err != nil {
			return err
		}
		return tx.Messages().Put(ctx, testMessage("msg-1", "conv-1", "kept too"))
	})
	require.NoError(t, err)

	_, err = store.Conversations().Get(ctx, "conv-1")
	assert.NoError(t, err)
	_, err = store.Messages().Get(ctx, "msg-1")
	assert.NoError(t, err)
}

func TestClearDirtyFlags(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Conversations().Put(ctx, testConversation("conv-1", "a")))
	require.NoError(t, store.Messages().Put(ctx, testMessage("msg-1", "conv-1", "b")))

	// Несуществующие ID пропускаются молча
	err := store.ClearDirtyFlags(ctx, []string{"conv-1", "conv-missing"}, []string{"msg-1"})
	require.NoError(t, err)

	conv, err := store.Conversations().Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, conv.Meta().Dirty)
	require.NotNil(t, conv.Meta().SyncedAt)

	msg, err := store.Messages().Get(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, msg.Meta().Dirty)
}

func TestConflictSaveGetPending(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	conflict := &models.ConflictRecord{
		CreatedAt:      time.Now().UTC(),
		ID:             "conflict-1",
		EntityType:     models.EntityTypeConversation,
		EntityID:       "conv-1",
		Resolution:     models.ResolutionPending,
		LocalVersion:   map[string]any{"title": "local"},
		RemoteVersion:  map[string]any{"title": "remote"},
		ConflictFields: []string{"title"},
	}
	require.NoError(t, store.Conflicts().Save(ctx, conflict))

	got, err := store.Conflicts().Get(ctx, "conflict-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", got.EntityID)
	assert.Equal(t, []string{"title"}, got.ConflictFields)

	pending, err := store.Conflicts().Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	// Разрешенный конфликт исчезает из pending
	now := time.Now().UTC()
	got.Resolution = models.ResolutionLocal
	got.ResolvedAt = &now
	require.NoError(t, store.Conflicts().Save(ctx, got))

	pending, err = store.Conflicts().Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestConflictGetNotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.Conflicts().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSyncStateDefault(t *testing.T) {
	store := newTestStorage(t)

	state, err := store.State().GetSyncState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusIdle, state.Status)
	assert.Nil(t, state.LastPullAt)
}

func TestSyncStateRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	state := &models.SyncState{
		Status:           models.StatusConflict,
		LastPullAt:       &now,
		PendingConflicts: 2,
		LastError:        "push failed",
	}
	require.NoError(t, store.State().SaveSyncState(ctx, state))

	got, err := store.State().GetSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConflict, got.Status)
	require.NotNil(t, got.LastPullAt)
	assert.True(t, got.LastPullAt.Equal(now))
	assert.Equal(t, 2, got.PendingConflicts)
	assert.Equal(t, "push failed", got.LastError)
}

func TestOplogAppendOrder(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := &models.OperationLogEntry{
			Timestamp:  time.Now().UTC(),
			ID:         fmt.Sprintf("op-%d", i),
			EntityType: models.EntityTypeConversation,
			EntityID:   fmt.Sprintf("conv-%d", i),
			Operation:  models.OperationCreate,
		}
		require.NoError(t, store.Oplog().Append(ctx, entry))
	}

	pending, err := store.Oplog().Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	// Записи возвращаются в порядке добавления
	for i, entry := range pending {
		assert.Equal(t, fmt.Sprintf("op-%d", i), entry.ID)
	}
}

func TestOplogMarkSynced(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, entityID := range []string{"conv-1", "conv-2"} {
		entry := &models.OperationLogEntry{
			Timestamp:  time.Now().UTC(),
			ID:         "op-" + entityID,
			EntityType: models.EntityTypeConversation,
			EntityID:   entityID,
			Operation:  models.OperationUpdate,
		}
		require.NoError(t, store.Oplog().Append(ctx, entry))
	}

	syncedAt := time.Now().UTC()
	require.NoError(t, store.Oplog().MarkSynced(ctx, []string{"conv-1"}, syncedAt))

	pending, err := store.Oplog().Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "conv-2", pending[0].EntityID)
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	session := &storage.Session{
		Username:     "alice",
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ServerURL:    "http://localhost:8080",
		ExpiresAt:    time.Now().Add(15 * time.Minute).Unix(),
	}
	require.NoError(t, store.SaveSession(ctx, session))

	got, err := store.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	// Повторное сохранение заменяет сессию
	session.AccessToken = "rotated"
	require.NoError(t, store.SaveSession(ctx, session))
	got, err = store.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.AccessToken)

	require.NoError(t, store.DeleteSession(ctx))
	_, err = store.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestSessionNotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetSession(context.Background())
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestClosedStorage(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())
	ctx := context.Background()

	_, err = store.Conversations().Get(ctx, "conv-1")
	assert.True(t, errors.Is(err, storage.ErrStorageClosed))

	err = store.Transaction(ctx, func(tx storage.Tx) error { return nil })
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	_, err = store.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
