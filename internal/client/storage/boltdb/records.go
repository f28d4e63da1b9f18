package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/chatkeeper/internal/client/storage"
	"github.com/iudanet/chatkeeper/internal/models"
)

// entityDesc связывает тип сущности с его bucket и декодером
type entityDesc struct {
	entityType string
	bucket     []byte
	decode     func(data []byte) (models.Syncable, error)
}

var convDesc = entityDesc{
	entityType: models.EntityTypeConversation,
	bucket:     bucketConversations,
	decode: func(data []byte) (models.Syncable, error) {
		var c models.Conversation
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	},
}

var msgDesc = entityDesc{
	entityType: models.EntityTypeMessage,
	bucket:     bucketMessages,
	decode: func(data []byte) (models.Syncable, error) {
		var m models.Message
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	},
}

// txRepo is a Repository bound to an open bolt transaction
type txRepo struct {
	tx   *bbolt.Tx
	desc entityDesc
}

func (r *txRepo) EntityType() string { return r.desc.entityType }

func (r *txRepo) Get(_ context.Context, id string) (models.Syncable, error) {
	bucket := r.tx.Bucket(r.desc.bucket)
	if bucket == nil {
		return nil, storage.ErrNotFound
	}

	data := bucket.Get([]byte(id))
	if data == nil {
		return nil, storage.ErrNotFound
	}

	rec, err := r.desc.decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", r.desc.entityType, err)
	}
	return rec, nil
}

func (r *txRepo) Put(_ context.Context, rec models.Syncable) error {
	if rec.EntityType() != r.desc.entityType {
		return fmt.Errorf("%w: %s", storage.ErrUnknownEntityType, rec.EntityType())
	}
	if rec.RecordID() == "" {
		return fmt.Errorf("cannot store %s without id", r.desc.entityType)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", r.desc.entityType, err)
	}

	bucket, err := r.tx.CreateBucketIfNotExists(r.desc.bucket)
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	if err := bucket.Put([]byte(rec.RecordID()), data); err != nil {
		return fmt.Errorf("failed to save %s: %w", r.desc.entityType, err)
	}
	return nil
}

func (r *txRepo) GetDirty(_ context.Context) ([]models.Syncable, error) {
	return r.scan(func(rec models.Syncable) bool {
		return rec.Meta().Dirty
	})
}

func (r *txRepo) List(_ context.Context, includeDeleted bool) ([]models.Syncable, error) {
	return r.scan(func(rec models.Syncable) bool {
		return includeDeleted || !rec.Meta().Deleted
	})
}

func (r *txRepo) scan(keep func(models.Syncable) bool) ([]models.Syncable, error) {
	var records []models.Syncable

	bucket := r.tx.Bucket(r.desc.bucket)
	if bucket == nil {
		return records, nil
	}

	err := bucket.ForEach(func(k, v []byte) error {
		rec, err := r.desc.decode(v)
		if err != nil {
			return fmt.Errorf("failed to unmarshal %s %s: %w", r.desc.entityType, k, err)
		}
		if keep(rec) {
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// dbRepo is a Repository that wraps every call in its own transaction
type dbRepo struct {
	db   *bbolt.DB
	desc entityDesc
}

func (r *dbRepo) EntityType() string { return r.desc.entityType }

func (r *dbRepo) Get(ctx context.Context, id string) (models.Syncable, error) {
	if r.db == nil {
		return nil, storage.ErrStorageClosed
	}
	var rec models.Syncable
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = (&txRepo{tx: tx, desc: r.desc}).Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *dbRepo) Put(ctx context.Context, rec models.Syncable) error {
	if r.db == nil {
		return storage.ErrStorageClosed
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return (&txRepo{tx: tx, desc: r.desc}).Put(ctx, rec)
	})
}

func (r *dbRepo) GetDirty(ctx context.Context) ([]models.Syncable, error) {
	if r.db == nil {
		return nil, storage.ErrStorageClosed
	}
	var records []models.Syncable
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		records, err = (&txRepo{tx: tx, desc: r.desc}).GetDirty(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *dbRepo) List(ctx context.Context, includeDeleted bool) ([]models.Syncable, error) {
	if r.db == nil {
		return nil, storage.ErrStorageClosed
	}
	var records []models.Syncable
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		records, err = (&txRepo{tx: tx, desc: r.desc}).List(ctx, includeDeleted)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
