package data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/chatkeeper/internal/client/storage"
	"github.com/iudanet/chatkeeper/internal/models"
)

// ErrDeleted возвращается при попытке изменить soft-deleted запись
var ErrDeleted = errors.New("record is deleted")

// Service определяет интерфейс для локальных операций над диалогами
// и сообщениями. Каждая правка отмечает запись dirty и пишет запись
// в журнал операций, чтобы движок синхронизации подхватил изменение
// при следующем push.
type Service interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context) ([]*models.Conversation, error)
	UpdateConversation(ctx context.Context, conv *models.Conversation) error
	DeleteConversation(ctx context.Context, id string) error
	SetFavorite(ctx context.Context, id string, favorite bool) error

	AddMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error)
	UpdateMessage(ctx context.Context, msg *models.Message) error
	DeleteMessage(ctx context.Context, id string) error
}

type service struct {
	store storage.Store
}

// NewService creates a new data service
func NewService(store storage.Store) Service {
	return &service{store: store}
}

// CreateConversation сохраняет новый диалог в локальное хранилище
func (s *service) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
	conv.Touch(now)

	return s.store.Transaction(ctx, func(tx storage.Tx) error {
		if err := tx.Conversations().Put(ctx, conv); err != nil {
			return fmt.Errorf("failed to save conversation: %w", err)
		}
		return s.logOperation(ctx, tx, conv, models.OperationCreate, now)
	})
}

// GetConversation возвращает диалог по ID
func (s *service) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	rec, err := s.store.Conversations().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	conv, ok := rec.(*models.Conversation)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", rec)
	}
	return conv, nil
}

// ListConversations возвращает все диалоги без soft-deleted,
// отсортированные по убыванию updated_at
func (s *service) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	recs, err := s.store.Conversations().List(ctx, false)
	if err != nil {
		return nil, err
	}

	convs := make([]*models.Conversation, 0, len(recs))
	for _, rec := range recs {
		if conv, ok := rec.(*models.Conversation); ok {
			convs = append(convs, conv)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

// UpdateConversation сохраняет правку существующего диалога
func (s *service) UpdateConversation(ctx context.Context, conv *models.Conversation) error {
	now := time.Now().UTC()

	return s.store.Transaction(ctx, func(tx storage.Tx) error {
		existing, err := tx.Conversations().Get(ctx, conv.ID)
		if err != nil {
			return err
		}
		if existing.Meta().Deleted {
			return ErrDeleted
		}

		conv.UpdatedAt = now
		conv.Touch(now)
		if err := tx.Conversations().Put(ctx, conv); err != nil {
			return fmt.Errorf("failed to save conversation: %w", err)
		}
		return s.logOperation(ctx, tx, conv, models.OperationUpdate, now)
	})
}

// DeleteConversation помечает диалог и все его сообщения удаленными.
// Tombstone синхронизируется с другими устройствами при следующем push.
func (s *service) DeleteConversation(ctx context.Context, id string) error {
	now := time.Now().UTC()

	return s.store.Transaction(ctx, func(tx storage.Tx) error {
		rec, err := tx.Conversations().Get(ctx, id)
		if err != nil {
			return err
		}
		conv, ok := rec.(*models.Conversation)
		if !ok {
			return fmt.Errorf("unexpected record type %T", rec)
		}

		conv.SoftDelete(now)
		conv.UpdatedAt = now
		if err := tx.Conversations().Put(ctx, conv); err != nil {
			return fmt.Errorf("failed to save conversation: %w", err)
		}
		if err := s.logOperation(ctx, tx, conv, models.OperationDelete, now); err != nil {
			return err
		}

		// Каскадное soft delete сообщений диалога
		msgs, err := tx.Messages().List(ctx, false)
		if err != nil {
			return err
		}
		for _, rec := range msgs {
			msg, ok := rec.(*models.Message)
			if !ok || msg.ConversationID != id {
				continue
			}
			msg.SoftDelete(now)
			msg.UpdatedAt = now
			if err := tx.Messages().Put(ctx, msg); err != nil {
				return fmt.Errorf("failed to save message: %w", err)
			}
			if err := s.logOperation(ctx, tx, msg, models.OperationDelete, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetFavorite переключает флаг избранного у диалога
func (s *service) SetFavorite(ctx context.Context, id string, favorite bool) error {
	now := time.Now().UTC()

	return s.store.Transaction(ctx, func(tx storage.Tx) error {
		rec, err := tx.Conversations().Get(ctx, id)
		if err != nil {
			return err
		}
		conv, ok := rec.(*models.Conversation)
		if !ok {
			return fmt.Errorf("unexpected record type %T", rec)
		}
		if conv.Deleted {
			return ErrDeleted
		}
		if conv.Favorite == favorite {
			return nil
		}

		conv.Favorite = favorite
		conv.UpdatedAt = now
		conv.Touch(now)
		if err := tx.Conversations().Put(ctx, conv); err != nil {
			return fmt.Errorf("failed to save conversation: %w", err)
		}
		return s.logOperation(ctx, tx, conv, models.OperationUpdate, now)
	})
}

// AddMessage добавляет сообщение в диалог и обновляет его счетчик
func (s *service) AddMessage(ctx context.Context, msg *models.Message) error {
	if msg.ConversationID == "" {
		return errors.New("conversation_id is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	msg.Touch(now)

	return s.store.Transaction(ctx, func(tx storage.Tx) error {
		rec, err := tx.Conversations().Get(ctx, msg.ConversationID)
		if err != nil {
			return fmt.Errorf("conversation lookup failed: %w", err)
		}
		conv, ok := rec.(*models.Conversation)
		if !ok {
			return fmt.Errorf("unexpected record type %T", rec)
		}
		if conv.Deleted {
			return ErrDeleted
		}

		if err := tx.Messages().Put(ctx, msg); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
		if err := s.logOperation(ctx, tx, msg, models.OperationCreate, now); err != nil {
			return err
		}

		conv.MessageCount++
		conv.UpdatedAt = now
		conv.Touch(now)
		if err := tx.Conversations().Put(ctx, conv); err != nil {
			return fmt.Errorf("failed to save conversation: %w", err)
		}
		return s.logOperation(ctx, tx, conv, models.OperationUpdate, now)
	})
}

// GetMessage возвращает сообщение по ID
func (s *service) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	rec, err := s.store.Messages().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	msg, ok := rec.(*models.Message)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", rec)
	}
	return msg, nil
}

// ListMessages возвращает сообщения диалога в порядке created_at
func (s *service) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	recs, err := s.store.Messages().List(ctx, false)
	if err != nil {
		return nil, err
	}

	msgs := make([]*models.Message, 0, len(recs))
	for _, rec := range recs {
		if msg, ok := rec.(*models.Message); ok && msg.ConversationID == conversationID {
			msgs = append(msgs, msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

// UpdateMessage сохраняет правку существующего сообщения
func (s *service) UpdateMessage(ctx context.Context, msg *models.Message) error {
	now := time.Now().UTC()

	return s.store.Transaction(ctx, func(tx storage.Tx) error {
		existing, err := tx.Messages().Get(ctx, msg.ID)
		if err != nil {
			return err
		}
		if existing.Meta().Deleted {
			return ErrDeleted
		}

		msg.UpdatedAt = now
		msg.Touch(now)
		if err := tx.Messages().Put(ctx, msg); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
		return s.logOperation(ctx, tx, msg, models.OperationUpdate, now)
	})
}

// DeleteMessage помечает сообщение удаленным и корректирует счетчик диалога
func (s *service) DeleteMessage(ctx context.Context, id string) error {
	now := time.Now().UTC()

	return s.store.Transaction(ctx, func(tx storage.Tx) error {
		rec, err := tx.Messages().Get(ctx, id)
		if err != nil {
			return err
		}
		msg, ok := rec.(*models.Message)
		if !ok {
			return fmt.Errorf("unexpected record type %T", rec)
		}
		if msg.Deleted {
			return nil
		}

		msg.SoftDelete(now)
		msg.UpdatedAt = now
		if err := tx.Messages().Put(ctx, msg); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
		if err := s.logOperation(ctx, tx, msg, models.OperationDelete, now); err != nil {
			return err
		}

		convRec, err := tx.Conversations().Get(ctx, msg.ConversationID)
		if err != nil {
			// Диалог мог быть удален раньше сообщения
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}
		conv, ok := convRec.(*models.Conversation)
		if !ok {
			return fmt.Errorf("unexpected record type %T", convRec)
		}
		if conv.MessageCount > 0 {
			conv.MessageCount--
		}
		conv.UpdatedAt = now
		conv.Touch(now)
		if err := tx.Conversations().Put(ctx, conv); err != nil {
			return fmt.Errorf("failed to save conversation: %w", err)
		}
		return s.logOperation(ctx, tx, conv, models.OperationUpdate, now)
	})
}

// logOperation пишет запись в append-only журнал операций
func (s *service) logOperation(ctx context.Context, tx storage.Tx, rec models.Syncable, op models.Operation, now time.Time) error {
	var changes map[string]any
	if op != models.OperationDelete {
		fields, err := rec.Fields()
		if err != nil {
			return fmt.Errorf("failed to capture changes: %w", err)
		}
		changes = fields
	}

	entry := &models.OperationLogEntry{
		Timestamp:  now,
		ID:         uuid.New().String(),
		EntityType: rec.EntityType(),
		EntityID:   rec.RecordID(),
		Operation:  op,
		Changes:    changes,
	}
	if err := tx.Oplog().Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append operation log: %w", err)
	}
	return nil
}
