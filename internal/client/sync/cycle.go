package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/chatkeeper/internal/client/storage"
	"github.com/iudanet/chatkeeper/internal/models"
)

// Значения конфигурации по умолчанию
const (
	defaultBatchSize    = 50
	defaultMaxPullPages = 1000
)

// ErrSyncDisabled возвращается, когда синхронизация выключена
var ErrSyncDisabled = errors.New("sync is disabled")

// Config настройки движка синхронизации
type Config struct {
	// Strategies переопределяет таблицы слияния по типам сущностей.
	// Для остальных типов действуют DefaultStrategies.
	Strategies map[string]StrategyTable

	// BatchSize размер батча push-стадии
	BatchSize int

	// MaxPullPages граница безопасности пагинации pull-стадии
	MaxPullPages int

	// AutoResolve включает автоматическое разрешение конфликтов в
	// пользу локальной версии вместо накопления ConflictRecord
	AutoResolve bool
}

func (c *Config) withDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxPullPages <= 0 {
		c.MaxPullPages = defaultMaxPullPages
	}
}

// Result итоги одного цикла синхронизации
type Result struct {
	Status    models.SyncStatus
	Pulled    int
	Applied   int
	Conflicts int
	Skipped   int
	Pushed    int
}

// Engine оркестрирует цикл pull / merge / push поверх провайдера и
// локального хранилища
type Engine struct {
	provider Provider
	store    storage.Store
	logger   *slog.Logger
	cfg      Config
}

// NewEngine создает движок синхронизации
func NewEngine(provider Provider, store storage.Store, cfg Config, logger *slog.Logger) *Engine {
	cfg.withDefaults()
	return &Engine{
		provider: provider,
		store:    store,
		logger:   logger,
		cfg:      cfg,
	}
}

// Sync выполняет полный цикл синхронизации: pull, merge, push.
//
// Курсор и статус фиксируются одной записью состояния в конце цикла,
// после того как известен итог push. Сбой pull или merge фатален для
// цикла; сбой push изолирован и не откатывает примененный pull.
func (e *Engine) Sync(ctx context.Context) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			serr := &Error{
				Code:        CodeServerError,
				Message:     fmt.Sprintf("sync panic: %v", r),
				Recoverable: true,
			}
			e.logger.Error("sync cycle panicked", "panic", r)
			e.failState(ctx, serr)
			res, err = nil, serr
		}
	}()

	state, err := e.beginCycle(ctx)
	if err != nil {
		return nil, err
	}

	out, err := e.pullAll(ctx, state.RemoteCursor)
	if err != nil {
		e.failState(ctx, err)
		return nil, err
	}

	stats, err := e.mergeRecords(ctx, out.records)
	if err != nil {
		serr := AsError(err)
		e.failState(ctx, serr)
		return nil, serr
	}

	result := &Result{
		Pulled:    len(out.records),
		Applied:   stats.applied,
		Conflicts: stats.conflicts,
		Skipped:   stats.skipped,
	}

	pushOut, pushErr := e.pushDirty(ctx)
	if pushErr != nil {
		pushErr = AsError(pushErr)
		e.logger.Warn("push stage failed, pull results retained", "error", pushErr)
	} else {
		result.Pushed = pushOut.pushed
		for _, failed := range pushOut.conflicts {
			created, err := e.handlePushConflict(ctx, failed)
			if err != nil {
				serr := AsError(err)
				e.failState(ctx, serr)
				return nil, serr
			}
			if created {
				result.Conflicts++
			}
		}
	}

	status, err := e.finishCycle(ctx, out.cursor, true, pushErr == nil, pushErr)
	if err != nil {
		serr := AsError(err)
		return nil, serr
	}
	result.Status = status
	if pushErr != nil {
		return result, pushErr
	}
	return result, nil
}

// PullOnly выполняет pull и merge без push
func (e *Engine) PullOnly(ctx context.Context) (*Result, error) {
	state, err := e.beginCycle(ctx)
	if err != nil {
		return nil, err
	}

	out, err := e.pullAll(ctx, state.RemoteCursor)
	if err != nil {
		e.failState(ctx, err)
		return nil, err
	}

	stats, err := e.mergeRecords(ctx, out.records)
	if err != nil {
		serr := AsError(err)
		e.failState(ctx, serr)
		return nil, serr
	}

	status, err := e.finishCycle(ctx, out.cursor, true, false, nil)
	if err != nil {
		return nil, AsError(err)
	}
	return &Result{
		Status:    status,
		Pulled:    len(out.records),
		Applied:   stats.applied,
		Conflicts: stats.conflicts,
		Skipped:   stats.skipped,
	}, nil
}

// PushOnly выполняет push без pull; курсор не меняется
func (e *Engine) PushOnly(ctx context.Context) (*Result, error) {
	state, err := e.beginCycle(ctx)
	if err != nil {
		return nil, err
	}

	pushOut, err := e.pushDirty(ctx)
	if err != nil {
		serr := AsError(err)
		e.failState(ctx, serr)
		return nil, serr
	}

	result := &Result{Pushed: pushOut.pushed}
	for _, failed := range pushOut.conflicts {
		created, err := e.handlePushConflict(ctx, failed)
		if err != nil {
			serr := AsError(err)
			e.failState(ctx, serr)
			return nil, serr
		}
		if created {
			result.Conflicts++
		}
	}

	status, err := e.finishCycle(ctx, state.RemoteCursor, false, true, nil)
	if err != nil {
		return nil, AsError(err)
	}
	result.Status = status
	return result, nil
}

// State возвращает текущее состояние синхронизации
func (e *Engine) State(ctx context.Context) (*models.SyncState, error) {
	return e.store.State().GetSyncState(ctx)
}

// PendingConflicts возвращает конфликты, ожидающие решения
func (e *Engine) PendingConflicts(ctx context.Context) ([]*models.ConflictRecord, error) {
	return e.store.Conflicts().Pending(ctx)
}

// beginCycle переводит состояние в syncing и сбрасывает последнюю
// ошибку
func (e *Engine) beginCycle(ctx context.Context) (*models.SyncState, error) {
	state, err := e.store.State().GetSyncState(ctx)
	if err != nil {
		return nil, AsError(err)
	}
	if state.Status == models.StatusDisabled {
		return nil, ErrSyncDisabled
	}

	state.Status = models.StatusSyncing
	state.LastError = ""
	state.LastErrorAt = nil
	if err := e.store.State().SaveSyncState(ctx, state); err != nil {
		return nil, AsError(err)
	}
	return state, nil
}

// finishCycle фиксирует курсор, времена стадий и итоговый статус
// одной записью состояния
func (e *Engine) finishCycle(ctx context.Context, cursor string, pulled, pushed bool, pushErr error) (models.SyncStatus, error) {
	now := time.Now().UTC()

	state, err := e.store.State().GetSyncState(ctx)
	if err != nil {
		return "", err
	}
	state.RemoteCursor = cursor
	if pulled {
		state.LastPullAt = &now
	}
	if pushed {
		state.LastPushAt = &now
	}
	if pushErr != nil {
		state.LastError = pushErr.Error()
		state.LastErrorAt = &now
	}

	pending, err := e.store.Conflicts().Pending(ctx)
	if err != nil {
		return "", err
	}
	state.PendingConflicts = len(pending)
	switch {
	case pushErr != nil:
		state.Status = models.StatusError
	case len(pending) > 0:
		state.Status = models.StatusConflict
	default:
		state.Status = models.StatusIdle
	}

	if err := e.store.State().SaveSyncState(ctx, state); err != nil {
		return "", err
	}
	return state.Status, nil
}

// failState фиксирует фатальную ошибку цикла в состоянии.
// Запись выполняется best-effort: исходная ошибка важнее.
func (e *Engine) failState(ctx context.Context, cause error) {
	now := time.Now().UTC()
	state, err := e.store.State().GetSyncState(ctx)
	if err != nil {
		e.logger.Error("failed to load sync state after error", "error", err)
		return
	}
	state.Status = models.StatusError
	state.LastError = cause.Error()
	state.LastErrorAt = &now
	if err := e.store.State().SaveSyncState(ctx, state); err != nil {
		e.logger.Error("failed to persist sync error state", "error", err)
	}
}
