package provider

import (
	"context"
	"strconv"
	stdsync "sync"
	"time"

	"github.com/iudanet/chatkeeper/internal/client/sync"
	"github.com/iudanet/chatkeeper/pkg/api"
)

// MemoryProvider хранит записи в памяти и реализует sync.Provider.
// Используется в тестах и офлайн-демонстрациях: поддерживает
// настраиваемый размер страницы, инъекцию сетевых сбоев, задержку
// ответа и отказы отдельных записей с конфликтом.
type MemoryProvider struct {
	mu      stdsync.Mutex
	records map[string]api.SyncRecord
	order   []string

	pageSize  int
	latency   time.Duration
	failNext  error
	conflicts map[string]api.SyncRecord

	connected bool
}

// NewMemoryProvider создает провайдер in-memory с заданным размером
// страницы pull
func NewMemoryProvider(pageSize int) *MemoryProvider {
	if pageSize <= 0 {
		pageSize = defaultPullLimit
	}
	return &MemoryProvider{
		records:   make(map[string]api.SyncRecord),
		pageSize:  pageSize,
		conflicts: make(map[string]api.SyncRecord),
	}
}

// Connect отмечает провайдер подключенным
func (p *MemoryProvider) Connect(_ context.Context, _ sync.ProviderConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

// Disconnect отключает провайдер
func (p *MemoryProvider) Disconnect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

// IsConnected сообщает, подключен ли провайдер
func (p *MemoryProvider) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Seed загружает записи в удаленное состояние, минуя Push
func (p *MemoryProvider) Seed(records ...api.SyncRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, rec := range records {
		p.upsert(rec)
	}
}

// FailNext заставляет следующий вызов Pull или Push вернуть err
func (p *MemoryProvider) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

// ConflictOn настраивает отказ записи id с причиной conflict:
// push этой записи вернет serverVersion вместо применения
func (p *MemoryProvider) ConflictOn(id string, serverVersion api.SyncRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conflicts[id] = serverVersion
}

// SetLatency добавляет задержку перед каждым ответом
func (p *MemoryProvider) SetLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency = d
}

// Records возвращает снимок удаленного состояния в порядке приема
func (p *MemoryProvider) Records() []api.SyncRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]api.SyncRecord, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.records[id])
	}
	return out
}

// Pull возвращает страницу записей начиная с позиции курсора.
// Курсор — это десятичный индекс в порядке приема; пустой курсор
// означает начало.
func (p *MemoryProvider) Pull(ctx context.Context, cursor string) (*sync.PullResult, error) {
	if err := p.beforeCall(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, sync.NewError(sync.CodeServerError, "invalid cursor "+cursor)
		}
		start = n
	}
	if start > len(p.order) {
		start = len(p.order)
	}

	end := min(start+p.pageSize, len(p.order))
	page := make([]api.SyncRecord, 0, end-start)
	for _, id := range p.order[start:end] {
		page = append(page, p.records[id])
	}

	return &sync.PullResult{
		Cursor:  strconv.Itoa(end),
		Records: page,
		HasMore: end < len(p.order),
	}, nil
}

// Push применяет батч записей. Идемпотентность по id: повторная
// отправка той же записи перезаписывает предыдущее состояние.
func (p *MemoryProvider) Push(ctx context.Context, records []api.SyncRecord) (*sync.PushResult, error) {
	if err := p.beforeCall(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	res := &sync.PushResult{}
	for _, rec := range records {
		if server, ok := p.conflicts[rec.ID]; ok {
			sv := server
			res.Failed = append(res.Failed, api.FailedRecord{
				ID:            rec.ID,
				Reason:        api.FailReasonConflict,
				Message:       "concurrent modification",
				ServerVersion: &sv,
			})
			continue
		}
		p.upsert(rec)
		res.Applied = append(res.Applied, rec.ID)
	}
	return res, nil
}

// beforeCall применяет инъецированную задержку и одноразовый сбой
func (p *MemoryProvider) beforeCall(ctx context.Context) error {
	p.mu.Lock()
	latency := p.latency
	failNext := p.failNext
	p.failNext = nil
	connected := p.connected
	p.mu.Unlock()

	if !connected {
		return sync.NewError(sync.CodeNetworkError, "provider is not connected")
	}
	if latency > 0 {
		select {
		case <-ctx.Done():
			return sync.WrapError(sync.CodeNetworkError, "request canceled", ctx.Err())
		case <-time.After(latency):
		}
	}
	if failNext != nil {
		return failNext
	}
	return nil
}

func (p *MemoryProvider) upsert(rec api.SyncRecord) {
	if _, exists := p.records[rec.ID]; !exists {
		p.order = append(p.order, rec.ID)
	}
	p.records[rec.ID] = rec
}
