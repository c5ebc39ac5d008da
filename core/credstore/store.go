package credstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a key is not present in the store.
	ErrNotFound = errors.New("credential key not found")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("credential store is closed")
	// ErrSaveFailed is returned when persisting a value fails.
	ErrSaveFailed = errors.New("failed to save credential")
)

// Change describes an observed mutation of a stored key. Present is false
// when the key was removed, in which case Value is empty.
type Change struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Present bool   `json:"present"`
}

// Store is a small persistent key-value store for credential material.
// Implementations must be safe for concurrent use and must support observing
// mutations made by other store instances sharing the same backing medium.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes the value for key.
	Set(ctx context.Context, key, value string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Watch emits changes to the store until ctx is cancelled. Depending on
	// the backend, changes made through this same instance may or may not be
	// echoed back; consumers must treat changes idempotently.
	Watch(ctx context.Context) (<-chan Change, error)
}
