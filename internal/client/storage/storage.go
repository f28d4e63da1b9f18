package storage

import (
	"context"
	"time"

	"github.com/iudanet/chatkeeper/internal/models"
)

// Repository defines generic per-entity-type access to syncable records.
// The merge, push and resolve stages depend only on this interface,
// never on a concrete store type.
type Repository interface {
	// EntityType returns the entity type this repository serves
	EntityType() string

	// Get retrieves a record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, id string) (models.Syncable, error)

	// GetDirty returns all records with unsynced local edits
	GetDirty(ctx context.Context) ([]models.Syncable, error)

	// List returns all records; soft-deleted ones are included
	// only when includeDeleted is set
	List(ctx context.Context, includeDeleted bool) ([]models.Syncable, error)

	// Put inserts or overwrites a record
	Put(ctx context.Context, rec models.Syncable) error
}

// ConflictStorage defines access to pending and resolved conflict records
type ConflictStorage interface {
	// Save inserts or overwrites a conflict record
	Save(ctx context.Context, conflict *models.ConflictRecord) error

	// Get retrieves a conflict record by ID.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*models.ConflictRecord, error)

	// Pending returns all conflicts with resolution=pending
	Pending(ctx context.Context) ([]*models.ConflictRecord, error)
}

// StateStorage defines access to the per-device sync state singleton
type StateStorage interface {
	// GetSyncState returns the persisted sync state.
	// A fresh state with StatusIdle is returned when none exists yet.
	GetSyncState(ctx context.Context) (*models.SyncState, error)

	// SaveSyncState persists the sync state
	SaveSyncState(ctx context.Context, state *models.SyncState) error
}

// OplogStorage defines access to the append-only operation log
type OplogStorage interface {
	// Append adds an entry to the operation log
	Append(ctx context.Context, entry *models.OperationLogEntry) error

	// Pending returns all entries not yet marked synced, in append order
	Pending(ctx context.Context) ([]*models.OperationLogEntry, error)

	// MarkSynced marks every pending entry owned by one of the given
	// entity IDs as synced. Push batching works per entity, so the log
	// is settled per entity too.
	MarkSynced(ctx context.Context, entityIDs []string, syncedAt time.Time) error
}

// Tx exposes the store tables bound to a single transaction
type Tx interface {
	// Conversations returns the conversation repository
	Conversations() Repository

	// Messages returns the message repository
	Messages() Repository

	// Repository returns the repository for the given entity type.
	// Returns ErrUnknownEntityType for anything else.
	Repository(entityType string) (Repository, error)

	// Conflicts returns the conflict record table
	Conflicts() ConflictStorage

	// Oplog returns the operation log table
	Oplog() OplogStorage

	// State returns the sync state table
	State() StateStorage
}

// Store is the local embedded store consumed by the sync engine.
// Methods called outside Transaction are individually atomic;
// Transaction runs fn atomically across every table it touches:
// either the whole batch commits or none of it does.
type Store interface {
	Tx

	// Transaction runs fn inside a single atomic read-write transaction
	Transaction(ctx context.Context, fn func(tx Tx) error) error

	// ClearDirtyFlags marks the given conversations and messages as
	// synced (dirty=false, synced_at=now) in one transaction
	ClearDirtyFlags(ctx context.Context, convIDs, msgIDs []string) error

	// Close releases the underlying database
	Close() error
}
