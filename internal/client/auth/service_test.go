package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/chatkeeper/internal/client/api"
	"github.com/iudanet/chatkeeper/internal/client/storage"
	pkgapi "github.com/iudanet/chatkeeper/pkg/api"
)

// memSessions хранит сессию в памяти для тестов
type memSessions struct {
	session *storage.Session
}

func (m *memSessions) SaveSession(ctx context.Context, session *storage.Session) error {
	m.session = session
	return nil
}

func (m *memSessions) GetSession(ctx context.Context) (*storage.Session, error) {
	if m.session == nil {
		return nil, storage.ErrSessionNotFound
	}
	return m.session, nil
}

func (m *memSessions) DeleteSession(ctx context.Context) error {
	m.session = nil
	return nil
}

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *memSessions) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sessions := &memSessions{}
	svc := NewService(api.NewClient(server.URL), sessions, server.URL)
	return svc, sessions
}

func TestService_Login(t *testing.T) {
	svc, sessions := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/login", r.URL.Path)
		_ = json.NewEncoder(w).Encode(pkgapi.TokenResponse{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresIn:    900,
		})
	})

	session, err := svc.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Username)
	assert.Equal(t, "access", session.AccessToken)
	assert.Greater(t, session.ExpiresAt, time.Now().Unix())

	// Сессия сохранена
	require.NotNil(t, sessions.session)
	assert.Equal(t, "refresh", sessions.session.RefreshToken)
}

func TestService_Login_InvalidUsername(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called")
	})

	_, err := svc.Login(context.Background(), "a", "password123")
	assert.Error(t, err)
}

func TestService_Register(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/register", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(pkgapi.RegisterResponse{UserID: "user-1"})
	})

	userID, err := svc.Register(context.Background(), "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestService_CurrentSession_Valid(t *testing.T) {
	svc, sessions := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for a valid session")
	})
	sessions.session = &storage.Session{
		Username:    "alice",
		AccessToken: "access",
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}

	session, err := svc.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access", session.AccessToken)
}

func TestService_CurrentSession_RefreshesExpired(t *testing.T) {
	svc, sessions := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/refresh", r.URL.Path)
		assert.Equal(t, "Bearer old-refresh", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(pkgapi.TokenResponse{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			ExpiresIn:    900,
		})
	})
	sessions.session = &storage.Session{
		Username:     "alice",
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute).Unix(),
	}

	session, err := svc.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-access", session.AccessToken)
	assert.Equal(t, "new-refresh", sessions.session.RefreshToken)
}

func TestService_CurrentSession_NotAuthenticated(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := svc.CurrentSession(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestService_LogoutAndIsAuthenticated(t *testing.T) {
	svc, sessions := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})
	sessions.session = &storage.Session{Username: "alice"}

	ok, err := svc.IsAuthenticated(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Logout(context.Background()))

	ok, err = svc.IsAuthenticated(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
