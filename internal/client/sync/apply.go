package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/chatkeeper/internal/client/storage"
	"github.com/iudanet/chatkeeper/internal/models"
	"github.com/iudanet/chatkeeper/internal/validation"
	"github.com/iudanet/chatkeeper/pkg/api"
)

type applyOutcome int

const (
	outcomeApplied applyOutcome = iota
	outcomeConflict
	outcomeSkipped
)

// mergeStats счетчики merge-стадии одного цикла
type mergeStats struct {
	applied   int
	conflicts int
	skipped   int
}

// mergeRecords применяет полученные с сервера записи к локальному
// хранилищу. Вся стадия выполняется в одной транзакции: либо
// применяются все записи change-set, либо ни одной.
func (e *Engine) mergeRecords(ctx context.Context, records []api.SyncRecord) (mergeStats, error) {
	var stats mergeStats
	if len(records) == 0 {
		return stats, nil
	}

	now := time.Now().UTC()
	err := e.store.Transaction(ctx, func(tx storage.Tx) error {
		for i := range records {
			outcome, err := e.applyRecord(ctx, tx, &records[i], now)
			if err != nil {
				return err
			}
			switch outcome {
			case outcomeApplied:
				stats.applied++
			case outcomeConflict:
				stats.conflicts++
			case outcomeSkipped:
				stats.skipped++
			}
		}
		return nil
	})
	if err != nil {
		return mergeStats{}, err
	}
	return stats, nil
}

// applyRecord обрабатывает одну удаленную запись.
//
// Ветвление по состоянию локальной копии:
//   - локальной записи нет: вставка удаленной как чистой;
//   - удаленный tombstone поверх чистой записи: мягкое удаление;
//   - удаленный tombstone поверх dirty-записи: конфликт удаления
//     (или локальная правка побеждает при autoResolve);
//   - чистая локальная запись: перезапись удаленной версией;
//   - dirty-запись: пофайловое слияние через Merge.
func (e *Engine) applyRecord(ctx context.Context, tx storage.Tx, rec *api.SyncRecord, now time.Time) (applyOutcome, error) {
	if err := validation.ValidateSyncRecord(rec); err != nil {
		e.logger.Warn("skipping invalid pulled record",
			"id", rec.ID, "entity_type", rec.EntityType, "error", err)
		return outcomeSkipped, nil
	}

	repo, err := tx.Repository(rec.EntityType)
	if err != nil {
		e.logger.Warn("skipping record of unknown entity type",
			"id", rec.ID, "entity_type", rec.EntityType)
		return outcomeSkipped, nil
	}

	remoteFields, err := rec.Fields()
	if err != nil {
		e.logger.Warn("skipping record with undecodable payload",
			"id", rec.ID, "error", err)
		return outcomeSkipped, nil
	}

	local, err := repo.Get(ctx, rec.ID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return 0, err
		}
		return e.insertRemote(ctx, repo, rec, remoteFields, now)
	}

	meta := local.Meta()
	switch {
	case rec.Deleted && !meta.Dirty:
		meta.Deleted = true
		meta.DeletedAt = timePtr(now)
		meta.SyncVersion = rec.SyncVersion
		meta.ModifiedAt = rec.ModifiedAt
		meta.Dirty = false
		meta.SyncedAt = timePtr(now)
		if err := repo.Put(ctx, local); err != nil {
			return 0, err
		}
		return outcomeApplied, nil

	case rec.Deleted && meta.Dirty:
		if e.cfg.AutoResolve {
			// Локальная правка побеждает конкурентное удаление,
			// tombstone отбрасывается.
			e.logger.Warn("discarding remote tombstone for locally edited record",
				"id", rec.ID, "entity_type", rec.EntityType)
			return outcomeSkipped, nil
		}
		localFields, err := local.Fields()
		if err != nil {
			return 0, err
		}
		conflict := newConflict(rec, localFields, remoteFields, []string{"deleted"}, now)
		if err := tx.Conflicts().Save(ctx, conflict); err != nil {
			return 0, err
		}
		return outcomeConflict, nil

	case !meta.Dirty:
		if err := local.ApplyFields(remoteFields); err != nil {
			e.logger.Warn("skipping record with incompatible payload",
				"id", rec.ID, "error", err)
			return outcomeSkipped, nil
		}
		meta.SyncVersion = rec.SyncVersion
		meta.ModifiedAt = rec.ModifiedAt
		if meta.Deleted && meta.DeletedAt == nil {
			meta.DeletedAt = timePtr(now)
		}
		meta.MarkSynced(now)
		if err := repo.Put(ctx, local); err != nil {
			return 0, err
		}
		return outcomeApplied, nil

	default:
		return e.mergeDirty(ctx, tx, repo, local, rec, remoteFields, now)
	}
}

// insertRemote вставляет удаленную запись, не имеющую локальной копии.
func (e *Engine) insertRemote(ctx context.Context, repo storage.Repository, rec *api.SyncRecord, remoteFields map[string]any, now time.Time) (applyOutcome, error) {
	fresh := newEntity(rec.EntityType)
	if fresh == nil {
		return outcomeSkipped, nil
	}
	// Tombstone без payload несет id только на конверте
	if _, ok := remoteFields["id"]; !ok {
		remoteFields["id"] = rec.ID
	}
	if err := fresh.ApplyFields(remoteFields); err != nil {
		e.logger.Warn("skipping record with incompatible payload",
			"id", rec.ID, "error", err)
		return outcomeSkipped, nil
	}
	meta := fresh.Meta()
	meta.SyncVersion = rec.SyncVersion
	meta.ModifiedAt = rec.ModifiedAt
	meta.Deleted = rec.Deleted
	if rec.Deleted {
		meta.DeletedAt = timePtr(now)
	}
	meta.Dirty = false
	meta.SyncedAt = timePtr(now)
	if err := repo.Put(ctx, fresh); err != nil {
		return 0, err
	}
	return outcomeApplied, nil
}

// mergeDirty сливает удаленную запись с локально измененной.
func (e *Engine) mergeDirty(ctx context.Context, tx storage.Tx, repo storage.Repository, local models.Syncable, rec *api.SyncRecord, remoteFields map[string]any, now time.Time) (applyOutcome, error) {
	localFields, err := local.Fields()
	if err != nil {
		return 0, err
	}

	res := Merge(MergeInput{
		Local:            localFields,
		Remote:           remoteFields,
		Strategies:       e.strategiesFor(rec.EntityType),
		LocalModifiedAt:  local.Meta().ModifiedAt,
		RemoteModifiedAt: rec.ModifiedAt,
	})

	if res.NeedsUserResolution && !e.cfg.AutoResolve {
		// Локальная запись не трогается и остается dirty до решения
		// пользователя.
		conflict := newConflict(rec, localFields, remoteFields, res.ConflictFields, now)
		if err := tx.Conflicts().Save(ctx, conflict); err != nil {
			return 0, err
		}
		return outcomeConflict, nil
	}

	if err := local.ApplyFields(res.Merged); err != nil {
		return 0, err
	}
	meta := local.Meta()
	if rec.SyncVersion > meta.SyncVersion {
		meta.SyncVersion = rec.SyncVersion
	}
	if rec.ModifiedAt.After(meta.ModifiedAt) {
		meta.ModifiedAt = rec.ModifiedAt
	}
	if meta.Deleted && meta.DeletedAt == nil {
		meta.DeletedAt = timePtr(now)
	}
	meta.MarkSynced(now)
	if err := repo.Put(ctx, local); err != nil {
		return 0, err
	}
	return outcomeApplied, nil
}

func (e *Engine) strategiesFor(entityType string) StrategyTable {
	if t, ok := e.cfg.Strategies[entityType]; ok {
		return t
	}
	return DefaultStrategies(entityType)
}

func newEntity(entityType string) models.Syncable {
	switch entityType {
	case models.EntityTypeConversation:
		return &models.Conversation{}
	case models.EntityTypeMessage:
		return &models.Message{}
	default:
		return nil
	}
}

func newConflict(rec *api.SyncRecord, localFields, remoteFields map[string]any, fields []string, now time.Time) *models.ConflictRecord {
	return &models.ConflictRecord{
		CreatedAt:      now,
		ID:             uuid.NewString(),
		EntityType:     rec.EntityType,
		EntityID:       rec.ID,
		Resolution:     models.ResolutionPending,
		LocalVersion:   localFields,
		RemoteVersion:  remoteFields,
		ConflictFields: fields,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
