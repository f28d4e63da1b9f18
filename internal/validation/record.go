package validation

import (
	"encoding/json"
	"fmt"

	"github.com/iudanet/chatkeeper/pkg/api"
)

// MaxRecordDataSize максимальный размер payload одной записи
const MaxRecordDataSize = 1 << 20 // 1 MiB

// ValidateSyncRecord проверяет wire-запись перед применением к
// локальному хранилищу или приемом на сервере
// Требования: непустой id, известный тип сущности, положительная
// версия, валидный JSON payload разумного размера. Tombstone может
// приходить без payload: флаг deleted живет на конверте, не в data
func ValidateSyncRecord(rec *api.SyncRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record id cannot be empty")
	}

	switch rec.EntityType {
	case api.EntityConversation, api.EntityMessage:
	default:
		return fmt.Errorf("unknown entity type %q", rec.EntityType)
	}

	if rec.SyncVersion < 1 {
		return fmt.Errorf("sync version must be positive, got %d", rec.SyncVersion)
	}

	if rec.ModifiedAt.IsZero() {
		return fmt.Errorf("modified_at cannot be zero")
	}

	if len(rec.Data) == 0 {
		if !rec.Deleted {
			return fmt.Errorf("record data cannot be empty")
		}
		return nil
	}

	if len(rec.Data) > MaxRecordDataSize {
		return fmt.Errorf("record data exceeds %d bytes", MaxRecordDataSize)
	}

	if !json.Valid(rec.Data) {
		return fmt.Errorf("record data is not valid JSON")
	}

	return nil
}
