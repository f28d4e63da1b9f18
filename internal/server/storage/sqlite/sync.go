package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/chatkeeper/internal/models"
	"github.com/iudanet/chatkeeper/internal/server/storage"
)

// UpsertRecord applies one pushed record.
//
// Правила приема:
//   - новой записи и записи с большей sync_version присваивается
//     следующий server_seq, чтобы другие устройства увидели изменение
//     при pull;
//   - повторная отправка той же версии с тем же modified_at —
//     идемпотентный no-op, считается принятой;
//   - меньшая или разошедшаяся версия отклоняется с текущей серверной
//     версией в результате.
func (s *Storage) UpsertRecord(ctx context.Context, userID string, rec *models.RemoteRecord) (storage.UpsertResult, error) {
	existing, err := s.GetRecord(ctx, userID, rec.ID)
	if err != nil && !errors.Is(err, storage.ErrRecordNotFound) {
		return storage.UpsertResult{}, fmt.Errorf("failed to check existing record: %w", err)
	}

	if existing != nil {
		if rec.SyncVersion == existing.SyncVersion && rec.ModifiedAt.Equal(existing.ModifiedAt) {
			return storage.UpsertResult{Applied: true}, nil
		}
		if rec.SyncVersion <= existing.SyncVersion {
			return storage.UpsertResult{Current: existing}, nil
		}

		// Перезапись получает новый server_seq: строка пересоздается,
		// иначе pull-курсор других устройств ее не увидит
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM sync_records WHERE user_id = ? AND id = ?`, userID, rec.ID); err != nil {
			return storage.UpsertResult{}, fmt.Errorf("failed to replace record: %w", err)
		}
	}

	query := `
		INSERT INTO sync_records (
			user_id, id, entity_type, data,
			sync_version, modified_at, received_at, deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		userID,
		rec.ID,
		rec.EntityType,
		string(rec.Data),
		rec.SyncVersion,
		rec.ModifiedAt,
		time.Now().UTC(),
		boolToInt(rec.Deleted),
	)
	if err != nil {
		return storage.UpsertResult{}, fmt.Errorf("failed to insert record: %w", err)
	}

	return storage.UpsertResult{Applied: true}, nil
}

// GetRecord retrieves one record by entity id
func (s *Storage) GetRecord(ctx context.Context, userID, id string) (*models.RemoteRecord, error) {
	query := `
		SELECT server_seq, user_id, id, entity_type, data,
		       sync_version, modified_at, received_at, deleted
		FROM sync_records
		WHERE user_id = ? AND id = ?
	`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListSince returns up to limit records after the given server_seq
func (s *Storage) ListSince(ctx context.Context, userID string, afterSeq int64, limit int) ([]*models.RemoteRecord, bool, error) {
	query := `
		SELECT server_seq, user_id, id, entity_type, data,
		       sync_version, modified_at, received_at, deleted
		FROM sync_records
		WHERE user_id = ? AND server_seq > ?
		ORDER BY server_seq
		LIMIT ?
	`

	// Запрашиваем limit+1, чтобы узнать, остались ли еще записи
	rows, err := s.db.QueryContext(ctx, query, userID, afterSeq, limit+1)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []*models.RemoteRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, false, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to iterate records: %w", err)
	}

	hasMore := len(records) > limit
	if hasMore {
		records = records[:limit]
	}
	return records, hasMore, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.RemoteRecord, error) {
	rec := &models.RemoteRecord{}
	var data string
	var deleted int

	err := row.Scan(
		&rec.ServerSeq,
		&rec.UserID,
		&rec.ID,
		&rec.EntityType,
		&data,
		&rec.SyncVersion,
		&rec.ModifiedAt,
		&rec.ReceivedAt,
		&deleted,
	)
	if err != nil {
		return nil, err
	}

	rec.Data = []byte(data)
	rec.Deleted = deleted != 0
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
