// Package storage provides the key-value Cache Store used to persist
// embedding caches between runs.
//
// Two implementations are available:
//   - MemoryStore: map-backed, for tests and ephemeral engines
//   - BadgerStore: BadgerDB-backed, persistent on disk (or in memory)
//
// Values are opaque bytes; callers own the encoding.
package storage

import (
	"context"
	"errors"
)

// Errors returned by stores.
var (
	ErrNotFound   = errors.New("not found")
	ErrClosed     = errors.New("storage closed")
	ErrInvalidKey = errors.New("invalid key")
)

// Store is a key-value store. Implementations are safe for concurrent use.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put creates or replaces the value for key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists keys with the given prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Close releases resources. Further calls return ErrClosed.
	Close() error
}

func validKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
