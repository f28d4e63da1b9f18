package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iudanet/chatkeeper/internal/models"
	"github.com/iudanet/chatkeeper/pkg/api"
)

// pushOutcome итоги push-стадии одного цикла
type pushOutcome struct {
	applied   []string
	conflicts []api.FailedRecord
	pushed    int
	batches   int
}

// pushDirty отправляет все dirty-записи на сервер батчами.
//
// Жесткий сбой любого батча прерывает стадию целиком: dirty-флаги не
// снимаются даже для ранее принятых батчей, повторная отправка
// безопасна благодаря идемпотентности push по id. Отказы отдельных
// записей с причиной conflict собираются для последующего разрешения
// и стадию не прерывают.
func (e *Engine) pushDirty(ctx context.Context) (*pushOutcome, error) {
	now := time.Now().UTC()

	dirty, typeByID, err := e.collectDirty(ctx)
	if err != nil {
		return nil, err
	}

	out := &pushOutcome{pushed: len(dirty)}
	if len(dirty) == 0 {
		return out, nil
	}

	records := make([]api.SyncRecord, 0, len(dirty))
	for _, rec := range dirty {
		wire, err := toSyncRecord(rec, now)
		if err != nil {
			return nil, fmt.Errorf("encode record %s: %w", rec.RecordID(), err)
		}
		records = append(records, wire)
	}

	for start := 0; start < len(records); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(records))
		resp, err := e.provider.Push(ctx, records[start:end])
		if err != nil {
			return nil, AsError(err)
		}
		out.batches++
		out.applied = append(out.applied, resp.Applied...)
		for _, failed := range resp.Failed {
			if failed.Reason == api.FailReasonConflict {
				out.conflicts = append(out.conflicts, failed)
				continue
			}
			e.logger.Warn("server rejected pushed record",
				"id", failed.ID,
				"reason", failed.Reason,
				"message", failed.Message)
		}
	}

	// Снятие dirty и отметка журнала выполняются только после успеха
	// всех батчей, и только для принятых сервером записей.
	var convIDs, msgIDs []string
	for _, id := range out.applied {
		switch typeByID[id] {
		case models.EntityTypeConversation:
			convIDs = append(convIDs, id)
		case models.EntityTypeMessage:
			msgIDs = append(msgIDs, id)
		}
	}
	if err := e.store.ClearDirtyFlags(ctx, convIDs, msgIDs); err != nil {
		return nil, fmt.Errorf("clear dirty flags: %w", err)
	}
	if err := e.store.Oplog().MarkSynced(ctx, out.applied, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("mark oplog synced: %w", err)
	}

	return out, nil
}

// collectDirty выбирает dirty-записи обоих типов: сначала диалоги,
// затем сообщения, чтобы сервер видел родителя раньше детей.
// Записи с ожидающим конфликтом не отправляются: их локальная версия
// перезаписала бы серверную до решения пользователя.
func (e *Engine) collectDirty(ctx context.Context) ([]models.Syncable, map[string]string, error) {
	convs, err := e.store.Conversations().GetDirty(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list dirty conversations: %w", err)
	}
	msgs, err := e.store.Messages().GetDirty(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list dirty messages: %w", err)
	}

	pending, err := e.store.Conflicts().Pending(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list pending conflicts: %w", err)
	}
	conflicted := make(map[string]struct{}, len(pending))
	for _, c := range pending {
		conflicted[c.EntityID] = struct{}{}
	}

	dirty := make([]models.Syncable, 0, len(convs)+len(msgs))
	for _, rec := range append(convs, msgs...) {
		if _, ok := conflicted[rec.RecordID()]; ok {
			continue
		}
		dirty = append(dirty, rec)
	}

	typeByID := make(map[string]string, len(dirty))
	for _, rec := range dirty {
		typeByID[rec.RecordID()] = rec.EntityType()
	}
	return dirty, typeByID, nil
}

// toSyncRecord собирает wire-представление локальной записи
func toSyncRecord(rec models.Syncable, now time.Time) (api.SyncRecord, error) {
	fields, err := rec.Fields()
	if err != nil {
		return api.SyncRecord{}, err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return api.SyncRecord{}, err
	}

	meta := rec.Meta()
	version := meta.SyncVersion
	if version == 0 {
		version = 1
	}
	modified := meta.ModifiedAt
	if modified.IsZero() {
		modified = now
	}

	return api.SyncRecord{
		ModifiedAt:  modified,
		ID:          rec.RecordID(),
		EntityType:  rec.EntityType(),
		Data:        data,
		SyncVersion: version,
		Deleted:     meta.Deleted,
	}, nil
}
