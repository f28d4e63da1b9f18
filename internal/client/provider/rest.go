package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iudanet/chatkeeper/internal/client/sync"
	"github.com/iudanet/chatkeeper/pkg/api"
)

const defaultPullLimit = 50

// RESTProvider реализует sync.Provider поверх HTTP API сервера
type RESTProvider struct {
	httpClient *http.Client
	baseURL    string
	token      string
	pullLimit  int
	connected  bool
}

// NewRESTProvider создает HTTP провайдер синхронизации
func NewRESTProvider() *RESTProvider {
	return &RESTProvider{
		pullLimit: defaultPullLimit,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Настройка обработки редиректов
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Ограничиваем количество редиректов
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Connect сохраняет адрес сервера и токен доступа
func (p *RESTProvider) Connect(_ context.Context, cfg sync.ProviderConfig) error {
	if cfg.BaseURL == "" {
		return sync.NewError(sync.CodeNetworkError, "base url is empty")
	}
	if cfg.Token == "" {
		return sync.NewError(sync.CodeAuthFailed, "access token is empty")
	}
	p.baseURL = cfg.BaseURL
	p.token = cfg.Token
	p.connected = true
	return nil
}

// Disconnect сбрасывает соединение
func (p *RESTProvider) Disconnect(_ context.Context) error {
	p.connected = false
	p.token = ""
	return nil
}

// IsConnected сообщает, установлено ли соединение
func (p *RESTProvider) IsConnected() bool {
	return p.connected
}

// Pull запрашивает страницу изменений начиная с курсора
func (p *RESTProvider) Pull(ctx context.Context, cursor string) (*sync.PullResult, error) {
	if !p.connected {
		return nil, sync.NewError(sync.CodeNetworkError, "provider is not connected")
	}

	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	q.Set("limit", strconv.Itoa(p.pullLimit))

	var resp api.PullResponse
	if err := p.doRequest(ctx, http.MethodGet, "/api/v1/sync/pull?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &sync.PullResult{
		Cursor:  resp.Cursor,
		Records: resp.Records,
		HasMore: resp.HasMore,
	}, nil
}

// Push отправляет батч локальных изменений
func (p *RESTProvider) Push(ctx context.Context, records []api.SyncRecord) (*sync.PushResult, error) {
	if !p.connected {
		return nil, sync.NewError(sync.CodeNetworkError, "provider is not connected")
	}

	var resp api.PushResponse
	req := api.PushRequest{Records: records}
	if err := p.doRequest(ctx, http.MethodPost, "/api/v1/sync/push", req, &resp); err != nil {
		return nil, err
	}
	return &sync.PushResult{
		Applied: resp.Applied,
		Failed:  resp.Failed,
	}, nil
}

// doRequest выполняет HTTP запрос и транслирует статусы ответа в
// таксономию ошибок синхронизации
func (p *RESTProvider) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return sync.WrapError(sync.CodeNetworkError, "request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return sync.WrapError(sync.CodeNetworkError, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p.statusError(resp, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return sync.WrapError(sync.CodeServerError, "failed to decode response", err)
		}
	}
	return nil
}

// statusError — трансляция HTTP статусов в коды ошибок
func (p *RESTProvider) statusError(resp *http.Response, body []byte) error {
	message := fmt.Sprintf("server returned status %d", resp.StatusCode)
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		message = errResp.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return sync.NewError(sync.CodeAuthFailed, message)
	case http.StatusConflict:
		return sync.NewError(sync.CodeConflict, message)
	case http.StatusTooManyRequests:
		serr := sync.NewError(sync.CodeQuotaExceeded, message)
		if after := resp.Header.Get("Retry-After"); after != "" {
			if secs, err := strconv.Atoi(after); err == nil && secs > 0 {
				serr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return serr
	default:
		return sync.NewError(sync.CodeServerError, message)
	}
}
