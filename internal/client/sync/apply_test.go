package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/chatkeeper/internal/models"
	"github.com/iudanet/chatkeeper/pkg/api"
)

func TestMergeRecordsInsertsNew(t *testing.T) {
	engine, store := newTestEngine(t, &ProviderMock{}, Config{})
	ctx := context.Background()

	modified := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	rec := wireConversation(t, testConversation("conv-1", "remote title"), 3, modified)

	stats, err := engine.mergeRecords(ctx, []api.SyncRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.applied)

	conv := getConversation(t, store, "conv-1")
	assert.Equal(t, "remote title", conv.Title)
	assert.False(t, conv.Dirty)
	assert.Equal(t, int64(3), conv.SyncVersion)
	assert.Equal(t, modified, conv.ModifiedAt)
	require.NotNil(t, conv.SyncedAt)
}

func TestMergeRecordsOverwritesClean(t *testing.T) {
	engine, store := newTestEngine(t, &ProviderMock{}, Config{})
	ctx := context.Background()

	putConversation(t, store, testConversation("conv-1", "old title"))

	modified := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	remote := testConversation("conv-1", "new title")
	rec := wireConversation(t, remote, 5, modified)

	stats, err := engine.mergeRecords(ctx, []api.SyncRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.applied)

	conv := getConversation(t, store, "conv-1")
	assert.Equal(t, "new title", conv.Title)
	assert.False(t, conv.Dirty)
	assert.Equal(t, int64(5), conv.SyncVersion)
}

func TestMergeRecordsRemoteDeleteCleanLocal(t *testing.T) {
	engine, store := newTestEngine(t, &ProviderMock{}, Config{})
	ctx := context.Background()

	putConversation(t, store, testConversation("conv-1", "title"))

	remote := testConversation("conv-1", "title")
	rec := wireConversation(t, remote, 2, time.Now().UTC())
	rec.Deleted = true

	stats, err := engine.mergeRecords(ctx, []api.SyncRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.applied)

	conv := getConversation(t, store, "conv-1")
	assert.True(t, conv.Deleted)
	require.NotNil(t, conv.DeletedAt)
	assert.False(t, conv.Dirty)
}

func TestMergeRecordsDataLessTombstone(t *testing.T) {
	engine, store := newTestEngine(t, &ProviderMock{}, Config{})
	ctx := context.Background()

	putConversation(t, store, testConversation("conv-1", "title"))

	// Провайдер вправе опускать payload у tombstone: deleted живет
	// на конверте
	rec := api.SyncRecord{
		ModifiedAt:  time.Now().UTC(),
		ID:          "conv-1",
		EntityType:  api.EntityConversation,
		Data:        nil,
		SyncVersion: 2,
		Deleted:     true,
	}

	stats, err := engine.mergeRecords(ctx, []api.SyncRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.applied)
	assert.Zero(t, stats.skipped)

	conv := getConversation(t, store, "conv-1")
	assert.True(t, conv.Deleted)
	require.NotNil(t, conv.DeletedAt)
	assert.False(t, conv.Dirty)
}

func TestMergeRecordsDataLessTombstoneWithoutLocal(t *testing.T) {
	engine, store := newTestEngine(t, &ProviderMock{}, Config{})
	ctx := context.Background()

	rec := api.SyncRecord{
		ModifiedAt:  time.Now().UTC(),
		ID:          "conv-ghost",
		EntityType:  api.EntityConversation,
		SyncVersion: 4,
		Deleted:     true,
	}

	stats, err := engine.mergeRecords(ctx, []api.SyncRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.applied)

	conv := getConversation(t, store, "conv-ghost")
	assert.True(t, conv.Deleted)
	assert.False(t, conv.Dirty)
	assert.Equal(t, int64(4), conv.SyncVersion)
}

func TestMergeRecordsRemoteDeleteDirtyLocalConflicts(t *testing.T) {
	engine, store := newTestEngine(t, &ProviderMock{}, Config{})
	ctx := context.Background()

	putConversation(t, store, dirtyConversation("conv-1", "edited locally"))

	remote := testConversation("conv-1", "title")
	rec := wireConversation(t, remote, 2, time.Now().UTC())
	rec.Deleted = true

	stats, err := engine.mergeRecords(ctx, []api.SyncRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.conflicts)

	// Локальная запись не тронута и остается dirty
	conv := getConversation(t, store, "conv-1")
	assert.False(t, conv.Deleted)
	assert.True(t, conv.Dirty)
	assert.Equal(t, "edited locally", conv.Title)

	pending, err := store.Conflicts().Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "conv-1", pending[0].EntityID)
	assert.Equal(t, []string{"deleted"}, pending[0].ConflictFields)
}

func TestMergeRecordsRemoteDeleteDirtyLocalAutoResolve(t *testing.T) {
	engine, store := newTestEngine(t, &ProviderMock{}, Config{AutoResolve: true})
	ctx := context.Background()

	putConversation(t, store, dirtyConversation("conv-1", "edited locally"))

	remote := testConversation("conv-1", "title")
	rec := wireConversation(t, remote, 2, time.Now().UTC())
	rec.Deleted = true

	stats, err := engine.mergeRecords(ctx, []api.SyncRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.skipped)

	// Tombstone отброшен, локальная правка переживает удаление
	conv := getConversation(t, store, "conv-1")
	assert.False(t, conv.Deleted)
	assert.True(t, conv.Dirty)

	pending, err := store.Conflicts().Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMergeRecordsMergesDirtyLocal(t *testing.T) {
	engine, store := newTestEngine(t, &ProviderMock{}, Config{})
	ctx := context.Background()

	local := dirtyConversation("conv-1", "local title")
	local.Favorite = true
	local.Tags = []string{"a", "b"}
	local.ModifiedAt = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	putConversation(t, store, local)

	remote := testConversation("conv-1", "remote title")
	remote.Tags = []string{"a", "c"}
	modified := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	rec := wireConversation(t, remote, 4, modified)

	stats, err := engine.mergeRecords(ctx, []api.SyncRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.applied)

	conv := getConversation(t, store, "conv-1")
	assert.Equal(t, "remote title", conv.Title, "удаленная сторона новее")
	assert.True(t, conv.Favorite, "булево ИЛИ")
	assert.Equal(t, []string{"a", "b", "c"}, conv.Tags, "объединение")
	assert.False(t, conv.Dirty)
	assert.Equal(t, int64(4), conv.SyncVersion)
}

func TestMergeRecordsUnresolvableConflictKeepsDirty(t *testing.T) {
	// Пустая таблица стратегий: любое расхождение становится конфликтом
	cfg := Config{
		Strategies: map[string]StrategyTable{
			models.EntityTypeConversation: {},
		},
	}
	engine, store := newTestEngine(t, &ProviderMock{}, cfg)
	ctx := context.Background()

	putConversation(t, store, dirtyConversation("conv-1", "local title"))

	remote := testConversation("conv-1", "remote title")
	rec := wireConversation(t, remote, 4, time.Now().UTC())

	stats, err := engine.mergeRecords(ctx, []api.SyncRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.conflicts)

	conv := getConversation(t, store, "conv-1")
	assert.Equal(t, "local title", conv.Title)
	assert.True(t, conv.Dirty)

	pending, err := store.Conflicts().Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Contains(t, pending[0].ConflictFields, "title")
	assert.Equal(t, "local title", pending[0].LocalVersion["title"])
	assert.Equal(t, "remote title", pending[0].RemoteVersion["title"])
}

func TestMergeRecordsSkipsInvalid(t *testing.T) {
	engine, store := newTestEngine(t, &ProviderMock{}, Config{})
	ctx := context.Background()

	valid := wireConversation(t, testConversation("conv-1", "title"), 1, time.Now().UTC())
	invalid := api.SyncRecord{
		ModifiedAt:  time.Now().UTC(),
		ID:          "conv-2",
		EntityType:  "note",
		Data:        json.RawMessage(`{}`),
		SyncVersion: 1,
	}

	stats, err := engine.mergeRecords(ctx, []api.SyncRecord{invalid, valid})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.applied)
	assert.Equal(t, 1, stats.skipped)

	_, err = store.Conversations().Get(ctx, "conv-1")
	assert.NoError(t, err)
}

func TestMergeRecordsEmptyChangeSet(t *testing.T) {
	engine, _ := newTestEngine(t, &ProviderMock{}, Config{})

	stats, err := engine.mergeRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.applied)
}
