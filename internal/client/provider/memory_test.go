package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/chatkeeper/internal/client/sync"
	"github.com/iudanet/chatkeeper/pkg/api"
)

var _ sync.Provider = &MemoryProvider{}
var _ sync.Provider = &RESTProvider{}

func memoryRecord(id string) api.SyncRecord {
	return api.SyncRecord{
		ModifiedAt:  time.Now().UTC(),
		ID:          id,
		EntityType:  api.EntityConversation,
		Data:        json.RawMessage(`{"title":"` + id + `"}`),
		SyncVersion: 1,
	}
}

func connectedMemory(t *testing.T, pageSize int) *MemoryProvider {
	t.Helper()
	p := NewMemoryProvider(pageSize)
	require.NoError(t, p.Connect(context.Background(), sync.ProviderConfig{}))
	return p
}

func TestMemoryProviderPullPagination(t *testing.T) {
	p := connectedMemory(t, 50)
	for i := 0; i < 60; i++ {
		p.Seed(memoryRecord("conv-" + strconv.Itoa(i)))
	}

	ctx := context.Background()

	first, err := p.Pull(ctx, "")
	require.NoError(t, err)
	assert.Len(t, first.Records, 50)
	assert.True(t, first.HasMore)
	assert.Equal(t, "50", first.Cursor)

	second, err := p.Pull(ctx, first.Cursor)
	require.NoError(t, err)
	assert.Len(t, second.Records, 10)
	assert.False(t, second.HasMore)
	assert.Equal(t, "60", second.Cursor)
}

func TestMemoryProviderPullEmpty(t *testing.T) {
	p := connectedMemory(t, 50)

	res, err := p.Pull(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.False(t, res.HasMore)
}

func TestMemoryProviderPushIdempotent(t *testing.T) {
	p := connectedMemory(t, 50)
	ctx := context.Background()

	rec := memoryRecord("conv-1")
	res, err := p.Push(ctx, []api.SyncRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, []string{"conv-1"}, res.Applied)

	// Повторная отправка той же записи не создает дубликата
	rec.SyncVersion = 2
	res, err = p.Push(ctx, []api.SyncRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, []string{"conv-1"}, res.Applied)

	all := p.Records()
	require.Len(t, all, 1)
	assert.Equal(t, int64(2), all[0].SyncVersion)
}

func TestMemoryProviderConflictInjection(t *testing.T) {
	p := connectedMemory(t, 50)
	ctx := context.Background()

	server := memoryRecord("conv-1")
	server.SyncVersion = 5
	p.ConflictOn("conv-1", server)

	res, err := p.Push(ctx, []api.SyncRecord{memoryRecord("conv-1"), memoryRecord("conv-2")})
	require.NoError(t, err)
	assert.Equal(t, []string{"conv-2"}, res.Applied)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, api.FailReasonConflict, res.Failed[0].Reason)
	require.NotNil(t, res.Failed[0].ServerVersion)
	assert.Equal(t, int64(5), res.Failed[0].ServerVersion.SyncVersion)
}

func TestMemoryProviderFailNext(t *testing.T) {
	p := connectedMemory(t, 50)
	ctx := context.Background()

	injected := sync.NewError(sync.CodeNetworkError, "connection reset")
	p.FailNext(injected)

	_, err := p.Pull(ctx, "")
	require.Error(t, err)

	var serr *sync.Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, sync.CodeNetworkError, serr.Code)

	// Сбой одноразовый
	_, err = p.Pull(ctx, "")
	assert.NoError(t, err)
}

func TestMemoryProviderDisconnected(t *testing.T) {
	p := NewMemoryProvider(50)

	_, err := p.Pull(context.Background(), "")
	require.Error(t, err)

	_, err = p.Push(context.Background(), nil)
	require.Error(t, err)
}
