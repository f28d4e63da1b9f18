package sync

import (
	"context"

	"github.com/iudanet/chatkeeper/pkg/api"
)

//go:generate moq -out provider_mock.go . Provider

// ProviderConfig конфигурация подключения к удаленному backend.
// Token должен быть уже получен — его получение вне зоны
// ответственности движка.
type ProviderConfig struct {
	BaseURL string
	Token   string
}

// PullResult результат одного вызова Pull
type PullResult struct {
	// Cursor непрозрачный токен пагинации для следующего вызова
	Cursor string

	// Records записи этой страницы; страница может быть короче
	// полной и даже пустой при HasMore=true
	Records []api.SyncRecord

	// HasMore сообщает, остались ли еще изменения на сервере
	HasMore bool
}

// PushResult результат одного вызова Push
type PushResult struct {
	// Applied идентификаторы примененных записей
	Applied []string

	// Failed записи, которые сервер не смог применить
	Failed []api.FailedRecord
}

// Provider определяет контракт удаленного backend синхронизации.
// Реализуется один раз на backend; владеет только сетевым I/O.
//
// Гарантии контракта:
//   - курсоры Pull непрозрачны и передаются обратно без изменений;
//   - Push обязан трактовать повторную отправку уже примененного id
//     как no-op успех (движок может повторять целые батчи);
//   - движок никогда не выполняет конкурентные вызовы к одному провайдеру.
type Provider interface {
	// Connect устанавливает соединение с backend
	Connect(ctx context.Context, cfg ProviderConfig) error

	// Disconnect разрывает соединение
	Disconnect(ctx context.Context) error

	// IsConnected сообщает, установлено ли соединение
	IsConnected() bool

	// Pull возвращает страницу изменений начиная с cursor
	// (пустой cursor = с самого начала)
	Pull(ctx context.Context, cursor string) (*PullResult, error)

	// Push отправляет батч записей на сервер
	Push(ctx context.Context, records []api.SyncRecord) (*PushResult, error)
}
