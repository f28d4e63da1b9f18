package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/chatkeeper/pkg/api"
)

// sendJSON сериализует data в JSON и пишет в ответ
func sendJSON(logger *slog.Logger, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// sendError пишет ошибку в формате api.ErrorResponse
func sendError(logger *slog.Logger, w http.ResponseWriter, message string, status int) {
	sendJSON(logger, w, api.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}, status)
}
