package sync

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode классифицирует ошибки синхронизации
type ErrorCode string

// Таксономия ошибок движка синхронизации
const (
	CodeNetworkError     ErrorCode = "network_error"
	CodeAuthFailed       ErrorCode = "auth_failed"
	CodeServerError      ErrorCode = "server_error"
	CodeConflict         ErrorCode = "conflict"
	CodeQuotaExceeded    ErrorCode = "quota_exceeded"
	CodeVersionMismatch  ErrorCode = "version_mismatch"
	CodeChecksumMismatch ErrorCode = "checksum_mismatch"
	CodeEncryptionError  ErrorCode = "encryption_error"
)

// ErrSyncInProgress возвращается менеджером при попытке запустить
// синхронизацию, пока предыдущая еще выполняется
var ErrSyncInProgress = errors.New("sync already in progress")

// Error типизированная ошибка синхронизации. Recoverable определяет,
// участвует ли ошибка в retry-планировании менеджера; RetryAfter,
// если задан провайдером, переопределяет таблицу задержек.
type Error struct {
	Err         error
	Code        ErrorCode
	Message     string
	RetryAfter  time.Duration
	Recoverable bool
}

// Error реализует error
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает обернутую ошибку
func (e *Error) Unwrap() error { return e.Err }

// NewError создает ошибку с recoverable-значением по умолчанию для кода
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		Recoverable: defaultRecoverable(code),
	}
}

// WrapError оборачивает err в типизированную ошибку синхронизации
func WrapError(code ErrorCode, message string, err error) *Error {
	e := NewError(code, message)
	e.Err = err
	return e
}

// defaultRecoverable возвращает политику восстановления по коду.
// Транзиентные сбои (сеть, сервер, квота) участвуют в retry;
// остальные требуют внешнего действия (например, повторной аутентификации).
func defaultRecoverable(code ErrorCode) bool {
	switch code {
	case CodeNetworkError, CodeServerError, CodeQuotaExceeded:
		return true
	default:
		return false
	}
}

// AsError нормализует произвольную ошибку в *Error.
// Неожиданные ошибки сворачиваются в recoverable server_error,
// чтобы они все равно участвовали в retry-планировании.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{
		Err:         err,
		Code:        CodeServerError,
		Message:     "unexpected error",
		Recoverable: true,
	}
}
