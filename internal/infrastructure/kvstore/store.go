// Package kvstore abstracts the key-value store backing the cache,
// the credential vault and the notification queue. The production
// implementation is Redis; an in-memory twin backs tests and
// single-node development.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key or hash field does not exist.
var ErrNotFound = errors.New("kvstore: key not found")

// ErrConflict is returned by Update when the watched key changed
// between the read and the write.
var ErrConflict = errors.New("kvstore: concurrent modification")

// UpdateFunc computes the new value for a key from its current value.
// current is nil when the key does not exist. Returning an error
// aborts the update without writing.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is the minimal key-value surface the application needs.
// A ttl of zero means the key never expires.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value at key with the given ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Expire resets the ttl on key. Returns false if the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// MGet returns the present subset of keys in one round trip.
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// Hash operations back the credential vault.
	HGet(ctx context.Context, key, field string) ([]byte, error)
	HSet(ctx context.Context, key, field string, value []byte) error
	HDel(ctx context.Context, key, field string) (int64, error)
	HExists(ctx context.Context, key, field string) (bool, error)
	HKeys(ctx context.Context, key string) ([]string, error)
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// Update performs an optimistic read-modify-write on key. If the
	// key changes concurrently the write is abandoned and ErrConflict
	// is returned; callers decide whether to retry.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error

	// Ping checks connectivity to the backing store.
	Ping(ctx context.Context) error
	// Close releases the underlying connections.
	Close() error
}

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
