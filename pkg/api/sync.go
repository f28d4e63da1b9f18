package api

import (
	"encoding/json"
	"time"
)

// EntityType перечисляет типы синхронизируемых сущностей
const (
	EntityConversation = "conversation"
	EntityMessage      = "message"
)

// SyncRecord представляет одну запись в wire-формате синхронизации.
// Конверт не зависит от локальной схемы хранилища: Data содержит
// плоский JSON объект с полями сущности. Записи никогда не
// сохраняются в этом виде — они собираются при push и разбираются при pull.
type SyncRecord struct {
	ModifiedAt  time.Time       `json:"modified_at"`
	ID          string          `json:"id"`
	EntityType  string          `json:"entity_type"`
	Data        json.RawMessage `json:"data,omitempty"`
	SyncVersion int64           `json:"sync_version"`
	Deleted     bool            `json:"deleted"`
}

// Fields разбирает Data в плоскую карту ключ/значение.
// Возвращает пустую карту, если Data отсутствует.
func (r *SyncRecord) Fields() (map[string]any, error) {
	fields := map[string]any{}
	if len(r.Data) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(r.Data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// PullResponse представляет одну страницу изменений от сервера.
// Cursor непрозрачен для клиента и должен передаваться обратно без изменений.
type PullResponse struct {
	Cursor  string       `json:"cursor"`
	Records []SyncRecord `json:"records"`
	HasMore bool         `json:"has_more"`
}

// PushRequest представляет батч локальных изменений для отправки на сервер
type PushRequest struct {
	Records []SyncRecord `json:"records"`
}

// PushResponse представляет результат применения батча сервером
type PushResponse struct {
	Applied []string       `json:"applied"`
	Failed  []FailedRecord `json:"failed,omitempty"`
}

// Failure reason codes returned per record by push.
const (
	FailReasonConflict    = "conflict"
	FailReasonValidation  = "validation"
	FailReasonNotFound    = "not_found"
	FailReasonServerError = "server_error"
)

// FailedRecord описывает запись, которую сервер не смог применить.
// ServerVersion заполняется только для reason=conflict и содержит
// текущую серверную версию записи для повторного согласования.
type FailedRecord struct {
	ID            string      `json:"id"`
	Reason        string      `json:"reason"`
	Message       string      `json:"message,omitempty"`
	ServerVersion *SyncRecord `json:"server_version,omitempty"`
}

// ErrorResponse представляет ответ сервера с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
