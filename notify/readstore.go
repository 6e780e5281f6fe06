package notify

import (
	"context"
	"time"

	"hive-client/cache"
)

// ReadStore persists which notifications an account has seen. Read
// state is the one piece of feed data that must outlive the cache: a
// rebuilt feed re-applies it by notification key.
type ReadStore interface {
	// MarkRead flags one notification key as read.
	MarkRead(ctx context.Context, account, key string) error
	// MarkAllRead flags everything at or before cutoff as read.
	MarkAllRead(ctx context.Context, account string, cutoff time.Time) error
	// IsRead reports whether a notification is read, given its key and
	// timestamp.
	IsRead(ctx context.Context, account, key string, ts time.Time) (bool, error)
}

// BackendReadStore keeps read flags in any cache.Backend using
// durable zero-TTL entries. Pair it with the SQLite backend for
// state that survives restarts, or Redis for shared state.
type BackendReadStore struct {
	backend cache.Backend
}

// NewBackendReadStore wraps backend.
func NewBackendReadStore(backend cache.Backend) *BackendReadStore {
	return &BackendReadStore{backend: backend}
}

func readKey(account, key string) string {
	return cache.Key("read", account, key)
}

func allReadKey(account string) string {
	return cache.Key("read", account, "~cutoff")
}

func (s *BackendReadStore) MarkRead(ctx context.Context, account, key string) error {
	return s.backend.Set(ctx, readKey(account, key), []byte("1"), 0)
}

func (s *BackendReadStore) MarkAllRead(ctx context.Context, account string, cutoff time.Time) error {
	return s.backend.Set(ctx, allReadKey(account),
		[]byte(cutoff.UTC().Format(time.RFC3339)), 0)
}

func (s *BackendReadStore) IsRead(ctx context.Context, account, key string, ts time.Time) (bool, error) {
	if _, found, err := s.backend.Get(ctx, readKey(account, key)); err != nil {
		return false, err
	} else if found {
		return true, nil
	}

	raw, found, err := s.backend.Get(ctx, allReadKey(account))
	if err != nil || !found {
		return false, err
	}
	cutoff, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return false, nil
	}
	return !ts.After(cutoff), nil
}
