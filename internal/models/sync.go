package models

import "time"

// EntityType константы для типов синхронизируемых сущностей
const (
	EntityTypeConversation = "conversation"
	EntityTypeMessage      = "message"
)

// SyncMeta содержит метаданные синхронизации, встраиваемые в каждую
// синхронизируемую сущность. Мутируется локальными операциями
// редактирования и merge-стадией движка синхронизации.
type SyncMeta struct {
	ModifiedAt  time.Time  `json:"modified_at"`  // ModifiedAt время последнего локального изменения
	SyncedAt    *time.Time `json:"synced_at"`    // SyncedAt время последнего подтвержденного round-trip (nil = никогда)
	DeletedAt   *time.Time `json:"deleted_at"`   // DeletedAt время soft delete
	SyncVersion int64      `json:"sync_version"` // SyncVersion монотонный счетчик локальных правок
	Dirty       bool       `json:"dirty"`        // Dirty есть неотправленные локальные правки
	Deleted     bool       `json:"deleted"`      // Deleted флаг soft delete
}

// Meta возвращает указатель на метаданные для мутации стадиями движка
func (m *SyncMeta) Meta() *SyncMeta { return m }

// Touch отмечает локальную правку: инкремент версии, отметка времени, dirty
func (m *SyncMeta) Touch(now time.Time) {
	m.SyncVersion++
	m.ModifiedAt = now
	m.Dirty = true
}

// MarkSynced отмечает подтвержденный round-trip и снимает dirty флаг
func (m *SyncMeta) MarkSynced(now time.Time) {
	m.Dirty = false
	m.SyncedAt = &now
}

// SoftDelete помечает запись удаленной без физического удаления,
// чтобы tombstone мог быть согласован с другими устройствами
func (m *SyncMeta) SoftDelete(now time.Time) {
	m.Deleted = true
	m.DeletedAt = &now
	m.Touch(now)
}

// Syncable определяет контракт синхронизируемой сущности.
// Merge/Push стадии движка зависят только от этого интерфейса,
// никогда от конкретного типа.
type Syncable interface {
	// RecordID возвращает уникальный идентификатор записи
	RecordID() string

	// EntityType возвращает тип сущности ("conversation", "message")
	EntityType() string

	// Meta возвращает метаданные синхронизации для чтения и мутации
	Meta() *SyncMeta

	// Fields возвращает плоское JSON-нормализованное представление
	// доменных полей записи для merge-алгоритма и wire-формата
	Fields() (map[string]any, error)

	// ApplyFields применяет плоское представление обратно к записи
	ApplyFields(fields map[string]any) error

	// CloneSyncable создает глубокую копию записи
	CloneSyncable() Syncable
}

// Resolution описывает состояние разрешения конфликта
type Resolution string

// Возможные значения Resolution
const (
	ResolutionPending Resolution = "pending"
	ResolutionLocal   Resolution = "local"
	ResolutionRemote  Resolution = "remote"
	ResolutionMerged  Resolution = "merged"
	ResolutionAuto    Resolution = "auto"
)

// ConflictRecord фиксирует расхождение, требующее решения.
// Создается merge-стадией или обработкой отказа push.
// Инвариант: пока Resolution=pending, владеющая сущность остается
// dirty, если ее локальная сторона разошлась — иначе следующий цикл
// синхронизации молча перезаписал бы ее.
type ConflictRecord struct {
	CreatedAt      time.Time      `json:"created_at"`
	ResolvedAt     *time.Time     `json:"resolved_at"`
	ID             string         `json:"id"`
	EntityType     string         `json:"entity_type"`
	EntityID       string         `json:"entity_id"`
	Resolution     Resolution     `json:"resolution"`
	LocalVersion   map[string]any `json:"local_version"`
	RemoteVersion  map[string]any `json:"remote_version"`
	ConflictFields []string       `json:"conflict_fields"`
}

// Pending сообщает, ожидает ли конфликт решения
func (c *ConflictRecord) Pending() bool {
	return c.Resolution == ResolutionPending
}

// SyncStatus описывает состояние движка синхронизации
type SyncStatus string

// Возможные значения SyncStatus
const (
	StatusDisabled SyncStatus = "disabled"
	StatusIdle     SyncStatus = "idle"
	StatusSyncing  SyncStatus = "syncing"
	StatusError    SyncStatus = "error"
	StatusConflict SyncStatus = "conflict"
)

// SyncState singleton-состояние синхронизации, одно на устройство.
// Мутируется только оркестратором цикла и менеджером; читается в
// начале каждого цикла для возобновления пагинации.
type SyncState struct {
	LastPullAt       *time.Time `json:"last_pull_at"`
	LastPushAt       *time.Time `json:"last_push_at"`
	LastErrorAt      *time.Time `json:"last_error_at"`
	DeviceID         string     `json:"device_id"`
	RemoteCursor     string     `json:"remote_cursor"`
	Status           SyncStatus `json:"status"`
	LastError        string     `json:"last_error"`
	PendingConflicts int        `json:"pending_conflicts"`
}

// Operation тип локальной операции в журнале
type Operation string

// Возможные значения Operation
const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// OperationLogEntry запись append-only журнала локальных операций.
// Журнал отделен от dirty флага: несколько правок одной сущности
// отслеживаются по отдельности (для UI), хотя батчинг push и снятие
// dirty работают на уровне сущности.
type OperationLogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	SyncedAt   *time.Time     `json:"synced_at"`
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Operation  Operation      `json:"operation"`
	Changes    map[string]any `json:"changes"`
	Synced     bool           `json:"synced"`
}
