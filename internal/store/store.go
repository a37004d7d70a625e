// Package store provides the persisted keyed storage behind the prediction
// cache and session state. Every key lives under Namespace so ClearAll can
// enumerate and remove them without a registry.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Namespace prefixes every persisted key.
const Namespace = "sunset-forecast:"

var (
	// ErrNotFound is returned when no value is stored under a key.
	ErrNotFound = errors.New("key not found")
)

// Store is a durable key/value store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Key returns name under the namespace.
func Key(name string) string {
	return Namespace + name
}

// ClearAll removes every namespaced key and returns how many were deleted.
func ClearAll(ctx context.Context, s Store) (int, error) {
	keys, err := s.Keys(ctx, Namespace)
	if err != nil {
		return 0, fmt.Errorf("list keys: %w", err)
	}
	for i, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return i, fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return len(keys), nil
}
