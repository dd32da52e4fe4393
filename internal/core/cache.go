package core

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores rendered report payloads with a TTL. It is never used for
// collection data: the store rereads its file on every call by design, and a
// record cache would reintroduce exactly the staleness that rule exists to
// prevent.
type Cache interface {
	// Get retrieves a payload by key. Returns ErrCacheMiss when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a payload under key. A zero TTL means no expiry.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases connections.
	Close() error
}
