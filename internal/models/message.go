package models

import (
	"fmt"
	"time"
)

// Роли сообщений в диалоге
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message представляет одно сообщение в диалоге
type Message struct {
	SyncMeta
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Attachments    []string  `json:"attachments"`
}

// messagePayload плоское wire-представление доменных полей сообщения
type messagePayload struct {
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Attachments    []string  `json:"attachments"`
	Deleted        bool      `json:"deleted"`
}

// RecordID возвращает уникальный идентификатор сообщения
func (m *Message) RecordID() string { return m.ID }

// EntityType возвращает тип сущности
func (m *Message) EntityType() string { return EntityTypeMessage }

// Fields возвращает плоское JSON-нормализованное представление полей
func (m *Message) Fields() (map[string]any, error) {
	return flattenPayload(messagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Attachments:    m.Attachments,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Deleted:        m.Deleted,
	})
}

// ApplyFields применяет плоское представление обратно к сообщению
func (m *Message) ApplyFields(fields map[string]any) error {
	var p messagePayload
	if err := unflattenPayload(fields, &p); err != nil {
		return fmt.Errorf("failed to apply message fields: %w", err)
	}
	if p.ID != "" {
		m.ID = p.ID
	}
	if p.ConversationID != "" {
		m.ConversationID = p.ConversationID
	}
	m.Role = p.Role
	m.Content = p.Content
	m.Attachments = p.Attachments
	if !p.CreatedAt.IsZero() {
		m.CreatedAt = p.CreatedAt
	}
	m.UpdatedAt = p.UpdatedAt
	m.Deleted = p.Deleted
	return nil
}

// Clone создает глубокую копию сообщения
func (m *Message) Clone() *Message {
	clone := *m
	if m.Attachments != nil {
		clone.Attachments = make([]string, len(m.Attachments))
		copy(clone.Attachments, m.Attachments)
	}
	if m.SyncedAt != nil {
		t := *m.SyncedAt
		clone.SyncedAt = &t
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		clone.DeletedAt = &t
	}
	return &clone
}

// CloneSyncable реализует Syncable
func (m *Message) CloneSyncable() Syncable { return m.Clone() }
