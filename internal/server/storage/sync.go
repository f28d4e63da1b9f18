package storage

import (
	"context"

	"github.com/iudanet/chatkeeper/internal/models"
)

// UpsertResult describes the outcome of one record upsert
type UpsertResult struct {
	// Current is the stored server version when the upsert was
	// rejected with a conflict, nil otherwise
	Current *models.RemoteRecord

	// Applied is true when the incoming record was stored
	// (or was an idempotent no-op re-push)
	Applied bool
}

// SyncStorage defines interface for per-user sync record persistence
type SyncStorage interface {
	// UpsertRecord applies one pushed record.
	// New records and records with a higher sync_version are stored.
	// Re-pushing the exact same version is an idempotent no-op that
	// still counts as applied. A lower or diverged version is rejected
	// with the current server version in the result.
	UpsertRecord(ctx context.Context, userID string, rec *models.RemoteRecord) (UpsertResult, error)

	// GetRecord retrieves one record by entity id
	// Returns ErrRecordNotFound if record doesn't exist
	GetRecord(ctx context.Context, userID, id string) (*models.RemoteRecord, error)

	// ListSince returns up to limit records with server_seq greater
	// than afterSeq, in server_seq order, and reports whether more
	// records remain
	ListSince(ctx context.Context, userID string, afterSeq int64, limit int) ([]*models.RemoteRecord, bool, error)
}
