package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Store wraps a Backend with JSON encoding, hierarchical key building
// and hit/miss counters. All higher layers go through a Store rather
// than a raw Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewStore wraps backend. A nil logger falls back to slog.Default().
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger}
}

// Key builds a hierarchical cache key: entity, then scope, then any
// qualifiers, underscore-joined. Prefix invalidation relies on this
// layout, e.g. Key("posts", "alice") invalidates every page under it.
func Key(parts ...string) string {
	return strings.Join(parts, "_")
}

// GetJSON retrieves key and decodes it into out. Returns false on miss
// or decode failure; a corrupt entry is deleted and treated as a miss.
func (s *Store) GetJSON(ctx context.Context, key string, out any) bool {
	raw, found, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache: backend read failed", "key", key, "error", err)
		s.misses.Add(1)
		return false
	}
	if !found {
		s.misses.Add(1)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.Warn("cache: corrupt entry dropped", "key", key, "error", err)
		s.backend.Delete(ctx, key)
		s.misses.Add(1)
		return false
	}
	s.hits.Add(1)
	return true
}

// SetJSON encodes value and stores it under key with ttl.
func (s *Store) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, raw, ttl); err != nil {
		s.logger.Warn("cache: backend write failed", "key", key, "error", err)
		return err
	}
	return nil
}

// GetRaw exposes the underlying bytes for callers that manage their own
// encoding.
func (s *Store) GetRaw(ctx context.Context, key string) ([]byte, bool) {
	raw, found, err := s.backend.Get(ctx, key)
	if err != nil || !found {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return raw, true
}

// SetRaw stores pre-encoded bytes under key with ttl.
func (s *Store) SetRaw(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.backend.Set(ctx, key, value, ttl)
}

// Invalidate removes one key.
func (s *Store) Invalidate(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Warn("cache: invalidate failed", "key", key, "error", err)
	}
}

// InvalidatePrefix removes every key under prefix. Called after writes
// so stale pages are refetched rather than served.
func (s *Store) InvalidatePrefix(ctx context.Context, prefix string) {
	if err := s.backend.DeleteByPrefix(ctx, prefix); err != nil {
		s.logger.Warn("cache: prefix invalidate failed", "prefix", prefix, "error", err)
	}
}

// Stats reports hit/miss counts since startup.
func (s *Store) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
