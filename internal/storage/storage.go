// Package storage provides durable client-side key/value storage.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent
var ErrNotFound = errors.New("storage: key not found")

// Storage is a namespaced key/value store that outlives the process
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key of the namespace
	Clear(ctx context.Context) error
	Close() error
}
