package models

import (
	"encoding/json"
	"time"
)

// RemoteRecord серверная копия синхронизируемой записи.
// ServerSeq — монотонный порядковый номер приема, по нему строится
// курсор pull-пагинации: клиент видит изменения строго в порядке,
// в котором их принял сервер.
type RemoteRecord struct {
	ModifiedAt  time.Time       `json:"modified_at"`
	ReceivedAt  time.Time       `json:"received_at"`
	UserID      string          `json:"user_id"`
	ID          string          `json:"id"`
	EntityType  string          `json:"entity_type"`
	Data        json.RawMessage `json:"data"`
	SyncVersion int64           `json:"sync_version"`
	ServerSeq   int64           `json:"server_seq"`
	Deleted     bool            `json:"deleted"`
}
