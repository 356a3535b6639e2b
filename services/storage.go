package services

import (
	"context"
)

// LocalStorage is a namespaced string key/value store. Each guest session is one
// namespace, mirroring a browser's local storage.
type LocalStorage interface {
	Get(ctx context.Context, namespace, key string) (string, bool, error)
	Set(ctx context.Context, namespace, key, value string) error
	// Update atomically replaces the value under key with the result of fn.
	// If fn returns an error nothing is written.
	Update(ctx context.Context, namespace, key string, fn func(current string, ok bool) (string, error)) error
	Delete(ctx context.Context, namespace, key string) error
	Clear(ctx context.Context, namespace string) error
}
