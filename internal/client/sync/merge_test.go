package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/chatkeeper/internal/models"
)

var (
	older = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	newer = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

func mergeConversations(local, remote map[string]any, localMod, remoteMod time.Time) MergeResult {
	return Merge(MergeInput{
		Local:            local,
		Remote:           remote,
		Strategies:       DefaultStrategies(models.EntityTypeConversation),
		LocalModifiedAt:  localMod,
		RemoteModifiedAt: remoteMod,
	})
}

func TestMergeIdenticalVersions(t *testing.T) {
	fields := map[string]any{
		"id":    "conv-1",
		"title": "chat",
		"tags":  []any{"a", "b"},
	}

	res := mergeConversations(fields, fields, older, newer)

	assert.Empty(t, res.ConflictFields)
	assert.False(t, res.NeedsUserResolution)
	assert.Equal(t, fields, res.Merged)
}

func TestMergeLWWRemoteNewer(t *testing.T) {
	local := map[string]any{"id": "conv-1", "title": "local title"}
	remote := map[string]any{"id": "conv-1", "title": "remote title"}

	res := mergeConversations(local, remote, older, newer)

	assert.Equal(t, "remote title", res.Merged["title"])
	assert.Empty(t, res.ConflictFields)
}

func TestMergeLWWLocalNewer(t *testing.T) {
	local := map[string]any{"id": "conv-1", "title": "local title"}
	remote := map[string]any{"id": "conv-1", "title": "remote title"}

	res := mergeConversations(local, remote, newer, older)

	assert.Equal(t, "local title", res.Merged["title"])
}

func TestMergeLWWTieKeepsLocal(t *testing.T) {
	local := map[string]any{"id": "conv-1", "title": "local title"}
	remote := map[string]any{"id": "conv-1", "title": "remote title"}

	res := mergeConversations(local, remote, older, older)

	assert.Equal(t, "local title", res.Merged["title"])
}

func TestMergeBooleanOr(t *testing.T) {
	local := map[string]any{"id": "conv-1", "favorite": true}
	remote := map[string]any{"id": "conv-1", "favorite": false}

	res := mergeConversations(local, remote, older, newer)

	assert.Equal(t, true, res.Merged["favorite"])
}

func TestMergeBooleanAndForDeleted(t *testing.T) {
	local := map[string]any{"id": "conv-1", "deleted": true}
	remote := map[string]any{"id": "conv-1", "deleted": false}

	res := mergeConversations(local, remote, older, newer)

	assert.Equal(t, false, res.Merged["deleted"])
}

func TestMergeUnion(t *testing.T) {
	local := map[string]any{"id": "conv-1", "tags": []any{"a", "b"}}
	remote := map[string]any{"id": "conv-1", "tags": []any{"a", "c"}}

	res := mergeConversations(local, remote, older, newer)

	assert.Equal(t, []any{"a", "b", "c"}, res.Merged["tags"])
	assert.Empty(t, res.ConflictFields)
}

func TestMergeMaxCounter(t *testing.T) {
	local := map[string]any{"id": "conv-1", "message_count": float64(7)}
	remote := map[string]any{"id": "conv-1", "message_count": float64(12)}

	res := mergeConversations(local, remote, newer, older)

	assert.Equal(t, float64(12), res.Merged["message_count"])
}

func TestMergeMaxTimestamp(t *testing.T) {
	local := map[string]any{"id": "conv-1", "updated_at": older.Format(time.RFC3339Nano)}
	remote := map[string]any{"id": "conv-1", "updated_at": newer.Format(time.RFC3339Nano)}

	res := mergeConversations(local, remote, newer, older)

	assert.Equal(t, newer.Format(time.RFC3339Nano), res.Merged["updated_at"])
}

func TestMergeSkipFieldsPreserveLocal(t *testing.T) {
	local := map[string]any{"id": "conv-1", "created_at": older.Format(time.RFC3339Nano)}
	remote := map[string]any{"id": "conv-other", "created_at": newer.Format(time.RFC3339Nano)}

	res := mergeConversations(local, remote, older, newer)

	assert.Equal(t, "conv-1", res.Merged["id"])
	assert.Equal(t, older.Format(time.RFC3339Nano), res.Merged["created_at"])
	assert.Empty(t, res.ConflictFields)
}

func TestMergeUnregisteredFieldConflict(t *testing.T) {
	local := map[string]any{"id": "conv-1", "custom": "local value", "title": "same"}
	remote := map[string]any{"id": "conv-1", "custom": "remote value", "title": "same"}

	res := mergeConversations(local, remote, older, newer)

	assert.Equal(t, []string{"custom"}, res.ConflictFields)
	assert.True(t, res.NeedsUserResolution)
	// До решения пользователя сохраняется локальное значение
	assert.Equal(t, "local value", res.Merged["custom"])
}

func TestMergeUnregisteredFieldEqualNoConflict(t *testing.T) {
	local := map[string]any{"id": "conv-1", "custom": "same"}
	remote := map[string]any{"id": "conv-1", "custom": "same"}

	res := mergeConversations(local, remote, older, newer)

	assert.Empty(t, res.ConflictFields)
	assert.False(t, res.NeedsUserResolution)
}

func TestMergeFieldMissingOnOneSide(t *testing.T) {
	local := map[string]any{"id": "conv-1", "title": "chat"}
	remote := map[string]any{"id": "conv-1", "title": "chat", "source": "imported"}

	res := mergeConversations(local, remote, older, newer)

	assert.Equal(t, "imported", res.Merged["source"])
	assert.Empty(t, res.ConflictFields)
}

func TestMergeMessageStrategies(t *testing.T) {
	res := Merge(MergeInput{
		Local: map[string]any{
			"id":          "msg-1",
			"content":     "local text",
			"attachments": []any{"a.png"},
		},
		Remote: map[string]any{
			"id":          "msg-1",
			"content":     "remote text",
			"attachments": []any{"b.png"},
		},
		Strategies:       DefaultStrategies(models.EntityTypeMessage),
		LocalModifiedAt:  older,
		RemoteModifiedAt: newer,
	})

	assert.Equal(t, "remote text", res.Merged["content"])
	assert.Equal(t, []any{"a.png", "b.png"}, res.Merged["attachments"])
	assert.False(t, res.NeedsUserResolution)
}

func TestMergeConflictFieldsSorted(t *testing.T) {
	local := map[string]any{"id": "x", "zeta": "1", "alpha": "1"}
	remote := map[string]any{"id": "x", "zeta": "2", "alpha": "2"}

	res := mergeConversations(local, remote, older, newer)

	require.Equal(t, []string{"alpha", "zeta"}, res.ConflictFields)
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "lww", StrategyLWW.String())
	assert.Equal(t, "union", StrategyUnion.String())
	assert.Equal(t, "max", StrategyMax.String())
}
