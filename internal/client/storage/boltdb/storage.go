package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/chatkeeper/internal/client/storage"
	"github.com/iudanet/chatkeeper/internal/models"
)

var (
	// BoltDB bucket names, one per table
	bucketConversations = []byte("conversations")
	bucketMessages      = []byte("messages")
	bucketConflicts     = []byte("conflicts")
	bucketOplog         = []byte("oplog")
	bucketState         = []byte("state")
	bucketSession       = []byte("session")
)

// Storage represents BoltDB storage implementation for the client
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketConversations,
			bucketMessages,
			bucketConflicts,
			bucketOplog,
			bucketState,
			bucketSession,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Transaction runs fn inside a single read-write bolt transaction.
// All buckets touched by fn commit together or not at all; this is
// the atomicity boundary the merge stage relies on.
func (s *Storage) Transaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.Update(func(btx *bbolt.Tx) error {
		return fn(&boltTx{tx: btx})
	})
}

// ClearDirtyFlags marks the given conversations and messages as synced
// in one transaction. IDs that no longer exist are skipped.
func (s *Storage) ClearDirtyFlags(ctx context.Context, convIDs, msgIDs []string) error {
	now := time.Now().UTC()
	return s.Transaction(ctx, func(tx storage.Tx) error {
		if err := clearDirty(ctx, tx.Conversations(), convIDs, now); err != nil {
			return err
		}
		return clearDirty(ctx, tx.Messages(), msgIDs, now)
	})
}

func clearDirty(ctx context.Context, repo storage.Repository, ids []string, now time.Time) error {
	for _, id := range ids {
		rec, err := repo.Get(ctx, id)
		if err != nil {
			if err == storage.ErrNotFound {
				continue
			}
			return err
		}
		rec.Meta().MarkSynced(now)
		if err := repo.Put(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Conversations returns the conversation repository
func (s *Storage) Conversations() storage.Repository {
	return &dbRepo{db: s.db, desc: convDesc}
}

// Messages returns the message repository
func (s *Storage) Messages() storage.Repository {
	return &dbRepo{db: s.db, desc: msgDesc}
}

// Repository returns the repository for the given entity type
func (s *Storage) Repository(entityType string) (storage.Repository, error) {
	switch entityType {
	case models.EntityTypeConversation:
		return s.Conversations(), nil
	case models.EntityTypeMessage:
		return s.Messages(), nil
	default:
		return nil, fmt.Errorf("%w: %s", storage.ErrUnknownEntityType, entityType)
	}
}

// Conflicts returns the conflict record table
func (s *Storage) Conflicts() storage.ConflictStorage {
	return &dbConflicts{db: s.db}
}

// Oplog returns the operation log table
func (s *Storage) Oplog() storage.OplogStorage {
	return &dbOplog{db: s.db}
}

// State returns the sync state table
func (s *Storage) State() storage.StateStorage {
	return &dbState{db: s.db}
}

// boltTx exposes the store tables bound to one bolt transaction
type boltTx struct {
	tx *bbolt.Tx
}

func (t *boltTx) Conversations() storage.Repository {
	return &txRepo{tx: t.tx, desc: convDesc}
}

func (t *boltTx) Messages() storage.Repository {
	return &txRepo{tx: t.tx, desc: msgDesc}
}

func (t *boltTx) Repository(entityType string) (storage.Repository, error) {
	switch entityType {
	case models.EntityTypeConversation:
		return t.Conversations(), nil
	case models.EntityTypeMessage:
		return t.Messages(), nil
	default:
		return nil, fmt.Errorf("%w: %s", storage.ErrUnknownEntityType, entityType)
	}
}

func (t *boltTx) Conflicts() storage.ConflictStorage {
	return &txConflicts{tx: t.tx}
}

func (t *boltTx) Oplog() storage.OplogStorage {
	return &txOplog{tx: t.tx}
}

func (t *boltTx) State() storage.StateStorage {
	return &txState{tx: t.tx}
}
