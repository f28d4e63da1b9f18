package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/chatkeeper/internal/client/storage"
	"github.com/iudanet/chatkeeper/internal/models"
)

// stateKey ключ singleton-записи состояния синхронизации
var stateKey = []byte("sync_state")

// txState is a StateStorage bound to an open bolt transaction
type txState struct {
	tx *bbolt.Tx
}

func (s *txState) GetSyncState(_ context.Context) (*models.SyncState, error) {
	bucket := s.tx.Bucket(bucketState)
	if bucket == nil {
		return &models.SyncState{Status: models.StatusIdle}, nil
	}

	data := bucket.Get(stateKey)
	if data == nil {
		// Первый запуск — состояние еще не сохранялось
		return &models.SyncState{Status: models.StatusIdle}, nil
	}

	state := &models.SyncState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sync state: %w", err)
	}
	return state, nil
}

func (s *txState) SaveSyncState(_ context.Context, state *models.SyncState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}

	bucket, err := s.tx.CreateBucketIfNotExists(bucketState)
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	if err := bucket.Put(stateKey, data); err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

// dbState is a StateStorage that wraps each call in its own transaction
type dbState struct {
	db *bbolt.DB
}

func (s *dbState) GetSyncState(ctx context.Context) (*models.SyncState, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}
	var state *models.SyncState
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		state, err = (&txState{tx: tx}).GetSyncState(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *dbState) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return (&txState{tx: tx}).SaveSyncState(ctx, state)
	})
}

// txOplog is an OplogStorage bound to an open bolt transaction.
// Keys are big-endian sequence numbers so ForEach walks entries
// in append order.
type txOplog struct {
	tx *bbolt.Tx
}

func (o *txOplog) Append(_ context.Context, entry *models.OperationLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal oplog entry: %w", err)
	}

	bucket, err := o.tx.CreateBucketIfNotExists(bucketOplog)
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	seq, err := bucket.NextSequence()
	if err != nil {
		return fmt.Errorf("failed to get oplog sequence: %w", err)
	}

	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	if err := bucket.Put(key, data); err != nil {
		return fmt.Errorf("failed to append oplog entry: %w", err)
	}
	return nil
}

func (o *txOplog) Pending(_ context.Context) ([]*models.OperationLogEntry, error) {
	var pending []*models.OperationLogEntry

	bucket := o.tx.Bucket(bucketOplog)
	if bucket == nil {
		return pending, nil
	}

	err := bucket.ForEach(func(k, v []byte) error {
		entry := &models.OperationLogEntry{}
		if err := json.Unmarshal(v, entry); err != nil {
			return fmt.Errorf("failed to unmarshal oplog entry: %w", err)
		}
		if !entry.Synced {
			pending = append(pending, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (o *txOplog) MarkSynced(_ context.Context, entityIDs []string, syncedAt time.Time) error {
	if len(entityIDs) == 0 {
		return nil
	}

	ids := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		ids[id] = struct{}{}
	}

	bucket := o.tx.Bucket(bucketOplog)
	if bucket == nil {
		return nil
	}

	type update struct {
		key  []byte
		data []byte
	}
	var updates []update

	err := bucket.ForEach(func(k, v []byte) error {
		entry := &models.OperationLogEntry{}
		if err := json.Unmarshal(v, entry); err != nil {
			return fmt.Errorf("failed to unmarshal oplog entry: %w", err)
		}
		if entry.Synced {
			return nil
		}
		if _, ok := ids[entry.EntityID]; !ok {
			return nil
		}

		entry.Synced = true
		t := syncedAt
		entry.SyncedAt = &t

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal oplog entry: %w", err)
		}
		key := make([]byte, len(k))
		copy(key, k)
		updates = append(updates, update{key: key, data: data})
		return nil
	})
	if err != nil {
		return err
	}

	// Записываем после обхода: мутация bucket внутри ForEach не допускается
	for _, u := range updates {
		if err := bucket.Put(u.key, u.data); err != nil {
			return fmt.Errorf("failed to update oplog entry: %w", err)
		}
	}
	return nil
}

// dbOplog is an OplogStorage that wraps each call in its own transaction
type dbOplog struct {
	db *bbolt.DB
}

func (o *dbOplog) Append(ctx context.Context, entry *models.OperationLogEntry) error {
	if o.db == nil {
		return storage.ErrStorageClosed
	}
	return o.db.Update(func(tx *bbolt.Tx) error {
		return (&txOplog{tx: tx}).Append(ctx, entry)
	})
}

func (o *dbOplog) Pending(ctx context.Context) ([]*models.OperationLogEntry, error) {
	if o.db == nil {
		return nil, storage.ErrStorageClosed
	}
	var pending []*models.OperationLogEntry
	err := o.db.View(func(tx *bbolt.Tx) error {
		var err error
		pending, err = (&txOplog{tx: tx}).Pending(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

func (o *dbOplog) MarkSynced(ctx context.Context, entityIDs []string, syncedAt time.Time) error {
	if o.db == nil {
		return storage.ErrStorageClosed
	}
	return o.db.Update(func(tx *bbolt.Tx) error {
		return (&txOplog{tx: tx}).MarkSynced(ctx, entityIDs, syncedAt)
	})
}
