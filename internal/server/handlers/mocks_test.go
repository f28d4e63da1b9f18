package handlers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/iudanet/chatkeeper/internal/models"
	"github.com/iudanet/chatkeeper/internal/server/storage"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

// mockUserStorage is a mock implementation of UserStorage for testing
type mockUserStorage struct {
	users       map[string]*models.User // username -> User
	createError error
	getError    error
	lastLogin   map[string]time.Time
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{
		users:     map[string]*models.User{},
		lastLogin: map[string]time.Time{},
	}
}

func (m *mockUserStorage) CreateUser(ctx context.Context, user *models.User) error {
	if m.createError != nil {
		return m.createError
	}
	if _, exists := m.users[user.Username]; exists {
		return storage.ErrUserAlreadyExists
	}
	m.users[user.Username] = user
	return nil
}

func (m *mockUserStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	user, ok := m.users[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) UpdateLastLogin(ctx context.Context, userID string, loginTime time.Time) error {
	m.lastLogin[userID] = loginTime
	return nil
}

// mockTokenStorage is a mock implementation of TokenStorage for testing
type mockTokenStorage struct {
	tokens    map[string]*models.RefreshToken
	saveError error
}

func newMockTokenStorage() *mockTokenStorage {
	return &mockTokenStorage{tokens: map[string]*models.RefreshToken{}}
}

func (m *mockTokenStorage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.saveError != nil {
		return m.saveError
	}
	m.tokens[token.Token] = token
	return nil
}

func (m *mockTokenStorage) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := m.tokens[token]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	return stored, nil
}

func (m *mockTokenStorage) DeleteRefreshToken(ctx context.Context, token string) error {
	if _, ok := m.tokens[token]; !ok {
		return storage.ErrTokenNotFound
	}
	delete(m.tokens, token)
	return nil
}

func (m *mockTokenStorage) DeleteExpiredTokens(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	deleted := 0
	for key, token := range m.tokens {
		if token.Expired(now) {
			delete(m.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}

// mockSyncStorage is a mock implementation of SyncStorage for testing
type mockSyncStorage struct {
	records     map[string]*models.RemoteRecord // "userID/id" -> record
	order       []string
	nextSeq     int64
	upsertError error
	listError   error
}

func newMockSyncStorage() *mockSyncStorage {
	return &mockSyncStorage{records: map[string]*models.RemoteRecord{}}
}

func (m *mockSyncStorage) UpsertRecord(ctx context.Context, userID string, rec *models.RemoteRecord) (storage.UpsertResult, error) {
	if m.upsertError != nil {
		return storage.UpsertResult{}, m.upsertError
	}
	key := userID + "/" + rec.ID
	if existing, ok := m.records[key]; ok {
		if rec.SyncVersion == existing.SyncVersion && rec.ModifiedAt.Equal(existing.ModifiedAt) {
			return storage.UpsertResult{Applied: true}, nil
		}
		if rec.SyncVersion <= existing.SyncVersion {
			return storage.UpsertResult{Current: existing}, nil
		}
	} else {
		m.order = append(m.order, key)
	}
	m.nextSeq++
	stored := *rec
	stored.UserID = userID
	stored.ServerSeq = m.nextSeq
	stored.ReceivedAt = time.Now().UTC()
	m.records[key] = &stored
	return storage.UpsertResult{Applied: true}, nil
}

func (m *mockSyncStorage) GetRecord(ctx context.Context, userID, id string) (*models.RemoteRecord, error) {
	rec, ok := m.records[userID+"/"+id]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return rec, nil
}

func (m *mockSyncStorage) ListSince(ctx context.Context, userID string, afterSeq int64, limit int) ([]*models.RemoteRecord, bool, error) {
	if m.listError != nil {
		return nil, false, m.listError
	}
	var matched []*models.RemoteRecord
	for _, key := range m.order {
		rec := m.records[key]
		if rec.UserID == userID && rec.ServerSeq > afterSeq {
			matched = append(matched, rec)
		}
	}
	hasMore := len(matched) > limit
	if hasMore {
		matched = matched[:limit]
	}
	return matched, hasMore, nil
}

// seed inserts a record directly with an explicit server_seq
func (m *mockSyncStorage) seed(userID string, rec *models.RemoteRecord) {
	m.nextSeq++
	rec.UserID = userID
	rec.ServerSeq = m.nextSeq
	m.records[userID+"/"+rec.ID] = rec
	m.order = append(m.order, userID+"/"+rec.ID)
}
