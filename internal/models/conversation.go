package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Conversation представляет диалог, захваченный из внешнего источника
// (чат-сервис, мессенджер, веб-расширение) и синхронизируемый между
// устройствами.
type Conversation struct {
	SyncMeta
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Source       string    `json:"source"`
	Tags         []string  `json:"tags"`
	MessageCount int       `json:"message_count"`
	Favorite     bool      `json:"favorite"`
}

// conversationPayload плоское wire-представление доменных полей диалога.
// Метаданные синхронизации (кроме deleted) сюда не входят.
type conversationPayload struct {
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Source       string    `json:"source"`
	Tags         []string  `json:"tags"`
	MessageCount int       `json:"message_count"`
	Favorite     bool      `json:"favorite"`
	Deleted      bool      `json:"deleted"`
}

// RecordID возвращает уникальный идентификатор диалога
func (c *Conversation) RecordID() string { return c.ID }

// EntityType возвращает тип сущности
func (c *Conversation) EntityType() string { return EntityTypeConversation }

// Fields возвращает плоское JSON-нормализованное представление полей
func (c *Conversation) Fields() (map[string]any, error) {
	return flattenPayload(conversationPayload{
		ID:           c.ID,
		Title:        c.Title,
		Source:       c.Source,
		Tags:         c.Tags,
		MessageCount: c.MessageCount,
		Favorite:     c.Favorite,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Deleted:      c.Deleted,
	})
}

// ApplyFields применяет плоское представление обратно к диалогу
func (c *Conversation) ApplyFields(fields map[string]any) error {
	var p conversationPayload
	if err := unflattenPayload(fields, &p); err != nil {
		return fmt.Errorf("failed to apply conversation fields: %w", err)
	}
	if p.ID != "" {
		c.ID = p.ID
	}
	c.Title = p.Title
	c.Source = p.Source
	c.Tags = p.Tags
	c.MessageCount = p.MessageCount
	c.Favorite = p.Favorite
	if !p.CreatedAt.IsZero() {
		c.CreatedAt = p.CreatedAt
	}
	c.UpdatedAt = p.UpdatedAt
	c.Deleted = p.Deleted
	return nil
}

// Clone создает глубокую копию диалога
func (c *Conversation) Clone() *Conversation {
	clone := *c
	if c.Tags != nil {
		clone.Tags = make([]string, len(c.Tags))
		copy(clone.Tags, c.Tags)
	}
	if c.SyncedAt != nil {
		t := *c.SyncedAt
		clone.SyncedAt = &t
	}
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		clone.DeletedAt = &t
	}
	return &clone
}

// CloneSyncable реализует Syncable
func (c *Conversation) CloneSyncable() Syncable { return c.Clone() }

// flattenPayload сериализует payload в плоскую карту ключ/значение.
// Round-trip через JSON нормализует типы значений (float64, string,
// bool, []any), чтобы merge-алгоритм сравнивал одинаковые формы
// независимо от стороны происхождения.
func flattenPayload(payload any) (map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to flatten payload: %w", err)
	}
	return fields, nil
}

// unflattenPayload декодирует плоскую карту обратно в payload
func unflattenPayload(fields map[string]any, payload any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return fmt.Errorf("failed to decode fields: %w", err)
	}
	return nil
}
