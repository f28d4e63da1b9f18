package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/iudanet/chatkeeper/internal/models"
)

// Значения конфигурации менеджера по умолчанию
const (
	defaultSyncInterval = 5 * time.Minute
	defaultMaxRetries   = 3
)

// defaultRetryDelays задержки повторных попыток; последняя задержка
// действует для всех попыток сверх длины таблицы
var defaultRetryDelays = []time.Duration{
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
}

// ErrMaxRetriesExceeded возвращается после исчерпания бюджета повторов
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// ManagerConfig настройки менеджера синхронизации
type ManagerConfig struct {
	// RetryDelays таблица задержек между повторными попытками
	RetryDelays []time.Duration

	// SyncInterval период автоматической синхронизации
	SyncInterval time.Duration

	// MaxRetries бюджет повторов восстановимых ошибок
	MaxRetries int

	// AutoSync включает периодическую фоновую синхронизацию
	AutoSync bool
}

func (c *ManagerConfig) withDefaults() {
	if c.SyncInterval <= 0 {
		c.SyncInterval = defaultSyncInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if len(c.RetryDelays) == 0 {
		c.RetryDelays = defaultRetryDelays
	}
}

// Manager управляет жизненным циклом синхронизации: повторные попытки
// восстановимых ошибок, периодическая фоновая синхронизация, переходы
// online/offline и доставка событий подписчикам.
type Manager struct {
	engine   *Engine
	notifier *notifier
	logger   *slog.Logger
	cfg      ManagerConfig

	mu         stdsync.Mutex
	retryTimer *time.Timer
	retryCount int
	lastStatus models.SyncStatus
	syncing    bool
	online     bool
	closed     bool

	cancelAuto context.CancelFunc
	wg         stdsync.WaitGroup
}

// NewManager создает менеджер поверх движка синхронизации
func NewManager(engine *Engine, cfg ManagerConfig, logger *slog.Logger) *Manager {
	cfg.withDefaults()
	return &Manager{
		engine:     engine,
		notifier:   newNotifier(logger),
		logger:     logger,
		cfg:        cfg,
		lastStatus: models.StatusIdle,
		online:     true,
	}
}

// Subscribe регистрирует подписчика событий синхронизации
func (m *Manager) Subscribe(l Listener) {
	m.notifier.subscribe(l)
}

// Start запускает фоновую автосинхронизацию, если она включена
func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.AutoSync {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancelAuto = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.autoSyncLoop(ctx)
}

// Close останавливает фоновые горутины и отменяет запланированный
// повтор
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	cancel := m.cancelAuto
	m.cancelAuto = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Sync выполняет цикл синхронизации немедленно.
//
// Повторный вход отклоняется с ErrSyncInProgress. Ручной запуск
// отменяет ожидающий повтор: начинающийся цикл сам либо успеет, либо
// перепланирует его.
func (m *Manager) Sync(ctx context.Context) (*Result, error) {
	m.mu.Lock()
	if m.syncing {
		m.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	if !m.online {
		m.mu.Unlock()
		return nil, NewError(CodeNetworkError, "device is offline")
	}
	m.syncing = true
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.syncing = false
		m.mu.Unlock()
	}()

	return m.runCycle(ctx)
}

// runCycle выполняет цикл и обрабатывает его исход:
// успех сбрасывает счетчик повторов, восстановимая ошибка планирует
// повтор в рамках бюджета, невосстановимая поднимается как есть.
func (m *Manager) runCycle(ctx context.Context) (*Result, error) {
	m.notifier.emit(Event{Type: EventSyncStarted, Status: models.StatusSyncing})

	res, err := m.engine.Sync(ctx)
	if err == nil {
		m.mu.Lock()
		m.retryCount = 0
		m.mu.Unlock()

		m.notifier.emit(Event{Type: EventSyncCompleted, Status: res.Status, Result: res})
		if res.Conflicts > 0 {
			m.notifier.emit(Event{Type: EventConflict, Status: res.Status, Result: res})
		}
		m.emitStatusChanged(res.Status)
		return res, nil
	}

	var serr *Error
	if errors.As(err, &serr) && serr.Recoverable {
		if retryErr := m.scheduleRetry(ctx, serr); retryErr != nil {
			m.notifier.emit(Event{Type: EventSyncFailed, Status: models.StatusError, Err: retryErr})
			m.emitStatusChanged(models.StatusError)
			return nil, retryErr
		}
		m.notifier.emit(Event{Type: EventSyncFailed, Status: models.StatusError, Err: err})
		m.emitStatusChanged(models.StatusError)
		return nil, err
	}

	m.mu.Lock()
	m.retryCount = 0
	m.mu.Unlock()
	m.notifier.emit(Event{Type: EventSyncFailed, Status: models.StatusError, Err: err})
	m.emitStatusChanged(models.StatusError)
	return nil, err
}

// emitStatusChanged рассылает событие смены итогового статуса.
// Промежуточный syncing не учитывается: событие отражает переходы
// между итогами циклов (idle, error, conflict).
func (m *Manager) emitStatusChanged(status models.SyncStatus) {
	m.mu.Lock()
	changed := m.lastStatus != status
	m.lastStatus = status
	m.mu.Unlock()

	if changed {
		m.notifier.emit(Event{Type: EventStatusChanged, Status: status})
	}
}

// scheduleRetry планирует повторную попытку после восстановимой
// ошибки. RetryAfter сервера имеет приоритет над таблицей задержек.
// Возвращает ErrMaxRetriesExceeded при исчерпании бюджета.
func (m *Manager) scheduleRetry(ctx context.Context, cause *Error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.online {
		m.retryCount = 0
		return nil
	}
	if m.retryCount >= m.cfg.MaxRetries {
		m.retryCount = 0
		return fmt.Errorf("%w: %s", ErrMaxRetriesExceeded, cause.Error())
	}

	delay := m.cfg.RetryDelays[min(m.retryCount, len(m.cfg.RetryDelays)-1)]
	if cause.RetryAfter > 0 {
		delay = cause.RetryAfter
	}
	m.retryCount++

	m.retryTimer = time.AfterFunc(delay, func() {
		if _, err := m.Sync(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("scheduled retry failed", "error", err)
		}
	})
	m.notifier.emit(Event{Type: EventRetryScheduled, Status: models.StatusError, Err: cause, RetryIn: delay})
	return nil
}

// SetOnline сообщает менеджеру о смене сетевого состояния.
// Переход в online запускает best-effort синхронизацию; переход в
// offline отменяет запланированный повтор.
func (m *Manager) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	if !online && m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.mu.Unlock()

	if online {
		m.notifier.emit(Event{Type: EventOnline})
		if m.engine.provider.IsConnected() {
			if _, err := m.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
				m.logger.Warn("sync after going online failed", "error", err)
			}
		}
		return
	}
	m.notifier.emit(Event{Type: EventOffline})
}

// IsOnline возвращает текущее сетевое состояние
func (m *Manager) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// autoSyncLoop периодически запускает синхронизацию, пока устройство
// online и цикл не выполняется
func (m *Manager) autoSyncLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			skip := !m.online || m.syncing
			m.mu.Unlock()
			if skip {
				continue
			}
			if _, err := m.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
				m.logger.Warn("auto sync failed", "error", err)
			}
		}
	}
}
