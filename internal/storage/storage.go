package storage

import "context"

// Storage reads and writes string values by key.
type Storage interface {
	// Get returns the stored value. ok is false if the key is not present.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set persists the value, overwriting any existing one.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Clear deletes every key held by the backend.
	Clear(ctx context.Context) error
}
