package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/chatkeeper/internal/client/storage"
	"github.com/iudanet/chatkeeper/internal/models"
)

// txConflicts is a ConflictStorage bound to an open bolt transaction
type txConflicts struct {
	tx *bbolt.Tx
}

func (c *txConflicts) Save(_ context.Context, conflict *models.ConflictRecord) error {
	if conflict.ID == "" {
		return fmt.Errorf("cannot store conflict without id")
	}

	data, err := json.Marshal(conflict)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict: %w", err)
	}

	bucket, err := c.tx.CreateBucketIfNotExists(bucketConflicts)
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	if err := bucket.Put([]byte(conflict.ID), data); err != nil {
		return fmt.Errorf("failed to save conflict: %w", err)
	}
	return nil
}

func (c *txConflicts) Get(_ context.Context, id string) (*models.ConflictRecord, error) {
	bucket := c.tx.Bucket(bucketConflicts)
	if bucket == nil {
		return nil, storage.ErrNotFound
	}

	data := bucket.Get([]byte(id))
	if data == nil {
		return nil, storage.ErrNotFound
	}

	conflict := &models.ConflictRecord{}
	if err := json.Unmarshal(data, conflict); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conflict: %w", err)
	}
	return conflict, nil
}

func (c *txConflicts) Pending(_ context.Context) ([]*models.ConflictRecord, error) {
	var pending []*models.ConflictRecord

	bucket := c.tx.Bucket(bucketConflicts)
	if bucket == nil {
		return pending, nil
	}

	err := bucket.ForEach(func(k, v []byte) error {
		conflict := &models.ConflictRecord{}
		if err := json.Unmarshal(v, conflict); err != nil {
			return fmt.Errorf("failed to unmarshal conflict %s: %w", k, err)
		}
		if conflict.Pending() {
			pending = append(pending, conflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// dbConflicts is a ConflictStorage that wraps each call in its own transaction
type dbConflicts struct {
	db *bbolt.DB
}

func (c *dbConflicts) Save(ctx context.Context, conflict *models.ConflictRecord) error {
	if c.db == nil {
		return storage.ErrStorageClosed
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return (&txConflicts{tx: tx}).Save(ctx, conflict)
	})
}

func (c *dbConflicts) Get(ctx context.Context, id string) (*models.ConflictRecord, error) {
	if c.db == nil {
		return nil, storage.ErrStorageClosed
	}
	var conflict *models.ConflictRecord
	err := c.db.View(func(tx *bbolt.Tx) error {
		var err error
		conflict, err = (&txConflicts{tx: tx}).Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conflict, nil
}

func (c *dbConflicts) Pending(ctx context.Context) ([]*models.ConflictRecord, error) {
	if c.db == nil {
		return nil, storage.ErrStorageClosed
	}
	var pending []*models.ConflictRecord
	err := c.db.View(func(tx *bbolt.Tx) error {
		var err error
		pending, err = (&txConflicts{tx: tx}).Pending(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}
