package cache

import (
	"context"
	"time"
)

// Backend is the storage interface every cache implementation provides.
// Values are opaque bytes with a per-entry TTL; an expired entry is
// treated as absent and evicted on read.
type Backend interface {
	// Get retrieves a value. Returns (value, found, error).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A zero TTL means the entry
	// never expires (used by durable stores such as drafts).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single key.
	Delete(ctx context.Context, key string) error

	// DeleteByPrefix removes every key starting with prefix. Hierarchical
	// keys make this the invalidation path for a whole entity.
	DeleteByPrefix(ctx context.Context, prefix string) error

	// GetMultiple retrieves several keys, returning the found subset.
	GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error)

	// SetMultiple stores several values with one TTL.
	SetMultiple(ctx context.Context, items map[string][]byte, ttl time.Duration) error

	// Close releases backend resources.
	Close() error
}
