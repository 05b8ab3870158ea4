package state

import (
	"context"
	"errors"
	"fmt"
)

// Store persists session state keyed by session id.
type Store interface {
	// Get returns the persisted mapping or an empty mapping when the session
	// is unknown. Undecodable records degrade to an empty mapping.
	Get(ctx context.Context, sessionID string) (map[string]interface{}, error)

	// Put overwrites the persisted mapping.
	Put(ctx context.Context, sessionID string, values map[string]interface{}) error
}

var (
	// ErrInvalidID indicates an empty session id.
	ErrInvalidID = errors.New("state: invalid session id")

	// ErrUnavailable is the cause used when a backend is not configured.
	ErrUnavailable = errors.New("state: store unavailable")
)

// StorageError reports that the backing medium could not be used.
type StorageError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("state %s %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err unless it already is a StorageError.
func NewStorageError(op, sessionID string, err error) error {
	if err == nil {
		return nil
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &StorageError{Op: op, SessionID: sessionID, Err: err}
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}
