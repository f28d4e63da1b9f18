package storage

import "errors"

// Common client storage errors
var (
	// ErrNotFound indicates that the requested record was not found
	ErrNotFound = errors.New("record not found")

	// ErrUnknownEntityType indicates an entity type the store has no table for
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSessionNotFound indicates that no session is stored
	ErrSessionNotFound = errors.New("session not found")
)
