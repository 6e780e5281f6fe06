package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryBackend is a mutex-guarded in-process cache with lazy expiry on
// read and a janitor goroutine sweeping expired entries. When the entry
// count reaches maxSize the oldest-expiring tenth is evicted.
type MemoryBackend struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	maxSize   int
	stopCh    chan struct{}
	closeOnce sync.Once
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryBackend creates a bounded in-memory backend.
func NewMemoryBackend(maxSize int, sweepInterval time.Duration) *MemoryBackend {
	if maxSize <= 0 {
		maxSize = 10000
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	b := &MemoryBackend{
		entries: make(map[string]memoryEntry),
		maxSize: maxSize,
		stopCh:  make(chan struct{}),
	}
	go b.sweepLoop(sweepInterval)
	return b
}

func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	entry, ok := b.entries[key]
	b.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if entry.expired(time.Now()) {
		b.mu.Lock()
		delete(b.entries, key)
		b.mu.Unlock()
		return nil, false, nil
	}
	// Copy so callers cannot mutate the stored value.
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) >= b.maxSize {
		b.evictOldest()
	}
	b.entries[key] = memoryEntry{value: stored, expiresAt: expiresAt}
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	delete(b.entries, key)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) DeleteByPrefix(ctx context.Context, prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.entries {
		if strings.HasPrefix(key, prefix) {
			delete(b.entries, key)
		}
	}
	return nil
}

func (b *MemoryBackend) GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for _, key := range keys {
		value, found, _ := b.Get(ctx, key)
		if found {
			out[key] = value
		}
	}
	return out, nil
}

func (b *MemoryBackend) SetMultiple(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	for key, value := range items {
		if err := b.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (b *MemoryBackend) Close() error {
	b.closeOnce.Do(func() { close(b.stopCh) })
	return nil
}

// evictOldest removes the tenth of entries closest to expiry. Must hold
// the write lock. Unexpiring entries are never evicted.
func (b *MemoryBackend) evictOldest() {
	toRemove := b.maxSize / 10
	if toRemove < 1 {
		toRemove = 1
	}

	type keyExpiry struct {
		key     string
		expires time.Time
	}
	candidates := make([]keyExpiry, 0, len(b.entries))
	for key, entry := range b.entries {
		if entry.expiresAt.IsZero() {
			continue
		}
		candidates = append(candidates, keyExpiry{key, entry.expiresAt})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].expires.Before(candidates[j].expires)
	})
	for i := 0; i < toRemove && i < len(candidates); i++ {
		delete(b.entries, candidates[i].key)
	}
}

func (b *MemoryBackend) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

func (b *MemoryBackend) sweep() {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, entry := range b.entries {
		if entry.expired(now) {
			delete(b.entries, key)
		}
	}
}
