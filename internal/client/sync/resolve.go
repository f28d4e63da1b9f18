package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/chatkeeper/internal/client/storage"
	"github.com/iudanet/chatkeeper/internal/models"
	"github.com/iudanet/chatkeeper/pkg/api"
)

// Ошибки разрешения конфликтов
var (
	ErrConflictNotFound = errors.New("conflict not found")
	ErrConflictResolved = errors.New("conflict already resolved")
)

// ResolveConflict применяет решение пользователя к ожидающему
// конфликту. resolution принимает значения local, remote и merged;
// для merged вызывающий код передает итоговые поля в merged.
//
// Решение и запись сущности фиксируются в одной транзакции, чтобы
// конфликт не мог остаться разрешенным при неизмененной сущности.
func (e *Engine) ResolveConflict(ctx context.Context, conflictID string, resolution models.Resolution, merged map[string]any) error {
	var fields map[string]any
	now := time.Now().UTC()

	err := e.store.Transaction(ctx, func(tx storage.Tx) error {
		conflict, err := tx.Conflicts().Get(ctx, conflictID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrConflictNotFound
			}
			return err
		}
		if !conflict.Pending() {
			return ErrConflictResolved
		}

		switch resolution {
		case models.ResolutionLocal:
			fields = conflict.LocalVersion
		case models.ResolutionRemote:
			fields = conflict.RemoteVersion
		case models.ResolutionMerged:
			if merged == nil {
				return fmt.Errorf("merged resolution requires merged fields")
			}
			fields = merged
		default:
			return fmt.Errorf("unsupported resolution %q", resolution)
		}

		repo, err := tx.Repository(conflict.EntityType)
		if err != nil {
			return err
		}
		if err := e.writeResolution(ctx, repo, conflict, resolution, fields, now); err != nil {
			return err
		}

		conflict.Resolution = resolution
		conflict.ResolvedAt = &now
		if err := tx.Conflicts().Save(ctx, conflict); err != nil {
			return err
		}

		return e.refreshConflictState(ctx, tx)
	})
	return err
}

// writeResolution применяет выбранные поля к сущности.
//
// Выбор local оставляет запись dirty, чтобы локальная версия ушла на
// сервер следующим push. Выбор remote и merged записывает чистую
// версию: переотправлять нечего либо итог уже согласован вручную.
func (e *Engine) writeResolution(ctx context.Context, repo storage.Repository, conflict *models.ConflictRecord, resolution models.Resolution, fields map[string]any, now time.Time) error {
	entity, err := repo.Get(ctx, conflict.EntityID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		entity = newEntity(conflict.EntityType)
		if entity == nil {
			return storage.ErrUnknownEntityType
		}
	}

	if err := entity.ApplyFields(fields); err != nil {
		return err
	}

	meta := entity.Meta()
	if meta.Deleted && meta.DeletedAt == nil {
		meta.DeletedAt = &now
	}
	if resolution == models.ResolutionLocal {
		entity.Meta().Touch(now)
	} else {
		meta.ModifiedAt = now
		meta.MarkSynced(now)
	}
	return repo.Put(ctx, entity)
}

// handlePushConflict прогоняет серверную версию отклоненной записи
// через merge-стадию. Возвращает true, если создан новый конфликт.
func (e *Engine) handlePushConflict(ctx context.Context, failed api.FailedRecord) (bool, error) {
	if failed.ServerVersion == nil {
		e.logger.Warn("push conflict without server version", "id", failed.ID)
		return false, nil
	}

	var outcome applyOutcome
	now := time.Now().UTC()
	err := e.store.Transaction(ctx, func(tx storage.Tx) error {
		var err error
		outcome, err = e.applyRecord(ctx, tx, failed.ServerVersion, now)
		return err
	})
	if err != nil {
		return false, err
	}
	return outcome == outcomeConflict, nil
}

// refreshConflictState пересчитывает число ожидающих конфликтов и
// выводит состояние из conflict, когда последний конфликт разрешен.
func (e *Engine) refreshConflictState(ctx context.Context, tx storage.Tx) error {
	pending, err := tx.Conflicts().Pending(ctx)
	if err != nil {
		return err
	}
	state, err := tx.State().GetSyncState(ctx)
	if err != nil {
		return err
	}
	state.PendingConflicts = len(pending)
	if len(pending) == 0 && state.Status == models.StatusConflict {
		state.Status = models.StatusIdle
	}
	return tx.State().SaveSyncState(ctx, state)
}
