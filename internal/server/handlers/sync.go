package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/chatkeeper/internal/models"
	"github.com/iudanet/chatkeeper/internal/server/storage"
	"github.com/iudanet/chatkeeper/internal/validation"
	"github.com/iudanet/chatkeeper/pkg/api"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// UserIDKey ключ для хранения user_id в контексте
	UserIDKey contextKey = "user_id"
	// UsernameKey ключ для хранения username в контексте
	UsernameKey contextKey = "username"
)

// GetUserID извлекает user_id из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUsername извлекает username из контекста запроса
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

const (
	defaultPullLimit = 100
	maxPullLimit     = 500
)

// SyncHandler handles pull and push synchronization requests
type SyncHandler struct {
	logger  *slog.Logger
	storage storage.SyncStorage
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, syncStorage storage.SyncStorage) *SyncHandler {
	return &SyncHandler{
		logger:  logger,
		storage: syncStorage,
	}
}

// HandlePull обрабатывает GET /api/v1/sync/pull?cursor=N&limit=M
// Возвращает страницу изменений после указанного курсора.
// Курсор это server_seq последней полученной записи.
func (h *SyncHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("user ID not found in context")
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var afterSeq int64
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		var err error
		afterSeq, err = strconv.ParseInt(cursor, 10, 64)
		if err != nil || afterSeq < 0 {
			h.logger.Warn("invalid cursor parameter", "cursor", cursor)
			sendError(h.logger, w, "invalid cursor parameter", http.StatusBadRequest)
			return
		}
	}

	limit := defaultPullLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			sendError(h.logger, w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit > maxPullLimit {
		limit = maxPullLimit
	}

	records, hasMore, err := h.storage.ListSince(ctx, userID, afterSeq, limit)
	if err != nil {
		h.logger.Error("failed to list records", "error", err, "user_id", userID)
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.PullResponse{
		Cursor:  strconv.FormatInt(afterSeq, 10),
		Records: make([]api.SyncRecord, 0, len(records)),
		HasMore: hasMore,
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, wireRecord(rec))
		resp.Cursor = strconv.FormatInt(rec.ServerSeq, 10)
	}

	h.logger.Info("pull request served",
		"user_id", userID,
		"after_seq", afterSeq,
		"records", len(resp.Records),
		"has_more", hasMore)

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// HandlePush обрабатывает POST /api/v1/sync/push
// Применяет батч записей и возвращает per-record результат.
// Конфликтные записи не прерывают обработку остальных.
func (h *SyncHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("user ID not found in context")
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode push request", "error", err)
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp := api.PushResponse{
		Applied: make([]string, 0, len(req.Records)),
	}

	for i := range req.Records {
		rec := req.Records[i]
		if err := validation.ValidateSyncRecord(&rec); err != nil {
			resp.Failed = append(resp.Failed, api.FailedRecord{
				ID:      rec.ID,
				Reason:  api.FailReasonValidation,
				Message: err.Error(),
			})
			continue
		}

		result, err := h.storage.UpsertRecord(ctx, userID, &models.RemoteRecord{
			ModifiedAt:  rec.ModifiedAt,
			UserID:      userID,
			ID:          rec.ID,
			EntityType:  rec.EntityType,
			Data:        rec.Data,
			SyncVersion: rec.SyncVersion,
			Deleted:     rec.Deleted,
		})
		if err != nil {
			h.logger.Error("failed to upsert record",
				"error", err, "user_id", userID, "record_id", rec.ID)
			resp.Failed = append(resp.Failed, api.FailedRecord{
				ID:      rec.ID,
				Reason:  api.FailReasonServerError,
				Message: "failed to store record",
			})
			continue
		}

		if !result.Applied {
			failed := api.FailedRecord{
				ID:      rec.ID,
				Reason:  api.FailReasonConflict,
				Message: "server has a newer version",
			}
			if result.Current != nil {
				server := wireRecord(result.Current)
				failed.ServerVersion = &server
			}
			resp.Failed = append(resp.Failed, failed)
			continue
		}

		resp.Applied = append(resp.Applied, rec.ID)
	}

	h.logger.Info("push request served",
		"user_id", userID,
		"received", len(req.Records),
		"applied", len(resp.Applied),
		"failed", len(resp.Failed))

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// wireRecord конвертирует запись хранилища в wire-формат
func wireRecord(rec *models.RemoteRecord) api.SyncRecord {
	return api.SyncRecord{
		ModifiedAt:  rec.ModifiedAt,
		ID:          rec.ID,
		EntityType:  rec.EntityType,
		Data:        rec.Data,
		SyncVersion: rec.SyncVersion,
		Deleted:     rec.Deleted,
	}
}
