package sync

import (
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/iudanet/chatkeeper/internal/models"
)

// EventType тип события жизненного цикла синхронизации
type EventType string

// Возможные значения EventType
const (
	EventSyncStarted    EventType = "sync_started"
	EventSyncCompleted  EventType = "sync_completed"
	EventSyncFailed     EventType = "sync_failed"
	EventConflict       EventType = "conflict_detected"
	EventStatusChanged  EventType = "status_changed"
	EventOnline         EventType = "online"
	EventOffline        EventType = "offline"
	EventRetryScheduled EventType = "retry_scheduled"
)

// Event событие жизненного цикла, доставляемое подписчикам менеджера
type Event struct {
	Timestamp time.Time
	Result    *Result
	Err       error
	Type      EventType
	Status    models.SyncStatus
	RetryIn   time.Duration
}

// Listener обработчик событий синхронизации
type Listener func(Event)

// notifier хранит подписчиков и рассылает им события.
// Паника одного подписчика логируется и не прерывает ни рассылку
// остальным, ни сам цикл синхронизации.
type notifier struct {
	mu        stdsync.Mutex
	listeners []Listener
	logger    *slog.Logger
}

func newNotifier(logger *slog.Logger) *notifier {
	return &notifier{logger: logger}
}

func (n *notifier) subscribe(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

func (n *notifier) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	n.mu.Lock()
	listeners := make([]Listener, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.Unlock()

	for _, l := range listeners {
		n.dispatch(l, ev)
	}
}

func (n *notifier) dispatch(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("sync event listener panicked",
				"event", ev.Type, "panic", r)
		}
	}()
	l(ev)
}
