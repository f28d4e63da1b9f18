package storage

import "context"

// Session хранимая клиентская сессия: токены сервера синхронизации
// и срок действия access токена (unix seconds)
type Session struct {
	Username     string `json:"username"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ServerURL    string `json:"server_url"`
	ExpiresAt    int64  `json:"expires_at"`
}

// SessionStorage defines interface for the client session singleton
type SessionStorage interface {
	// SaveSession persists the session, replacing any previous one
	SaveSession(ctx context.Context, session *Session) error

	// GetSession returns the stored session.
	// Returns ErrSessionNotFound when no session exists.
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the stored session
	DeleteSession(ctx context.Context) error
}
