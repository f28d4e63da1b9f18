package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/chatkeeper/internal/client/api"
	"github.com/iudanet/chatkeeper/internal/client/storage"
	"github.com/iudanet/chatkeeper/internal/validation"
	pkgapi "github.com/iudanet/chatkeeper/pkg/api"
)

// ErrNotAuthenticated возвращается когда сохраненной сессии нет
var ErrNotAuthenticated = errors.New("not authenticated")

// Service предоставляет функции авторизации: регистрацию, логин,
// обновление токенов и хранение сессии в локальной БД.
type Service struct {
	apiClient *api.Client
	sessions  storage.SessionStorage
	serverURL string
}

// NewService создает новый сервис авторизации
func NewService(apiClient *api.Client, sessions storage.SessionStorage, serverURL string) *Service {
	return &Service{
		apiClient: apiClient,
		sessions:  sessions,
		serverURL: serverURL,
	}
}

// Register регистрирует нового пользователя на сервере
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return "", fmt.Errorf("invalid username: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return "", fmt.Errorf("invalid password: %w", err)
	}

	resp, err := s.apiClient.Register(ctx, pkgapi.RegisterRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", err
	}
	return resp.UserID, nil
}

// Login аутентифицирует пользователя и сохраняет сессию
func (s *Service) Login(ctx context.Context, username, password string) (*storage.Session, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("invalid username: %w", err)
	}

	tokens, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	session := s.sessionFromTokens(username, tokens)
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// CurrentSession возвращает сохраненную сессию.
// Если access token истек, пытается обновить его по refresh token.
func (s *Service) CurrentSession(ctx context.Context) (*storage.Session, error) {
	session, err := s.sessions.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}

	if time.Now().Unix() < session.ExpiresAt {
		return session, nil
	}

	// Токен истек, пробуем обновить
	refreshed, err := s.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("session expired and refresh failed: %w", err)
	}
	return refreshed, nil
}

// Refresh обменивает сохраненный refresh token на новую пару токенов
func (s *Service) Refresh(ctx context.Context) (*storage.Session, error) {
	session, err := s.sessions.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}

	tokens, err := s.apiClient.Refresh(ctx, session.RefreshToken)
	if err != nil {
		return nil, err
	}

	updated := s.sessionFromTokens(session.Username, tokens)
	if err := s.sessions.SaveSession(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return updated, nil
}

// Logout удаляет локальную сессию
func (s *Service) Logout(ctx context.Context) error {
	return s.sessions.DeleteSession(ctx)
}

// IsAuthenticated проверяет наличие сохраненной сессии
func (s *Service) IsAuthenticated(ctx context.Context) (bool, error) {
	_, err := s.sessions.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) sessionFromTokens(username string, tokens *pkgapi.TokenResponse) *storage.Session {
	return &storage.Session{
		Username:     username,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ServerURL:    s.serverURL,
		ExpiresAt:    time.Now().Unix() + tokens.ExpiresIn,
	}
}
