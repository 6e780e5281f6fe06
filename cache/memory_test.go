package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBackendSetGet(t *testing.T) {
	b := NewMemoryBackend(100, time.Minute)
	defer b.Close()
	ctx := context.Background()

	if err := b.Set(ctx, "posts_alice_0", []byte(`{"a":1}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, found, err := b.Get(ctx, "posts_alice_0")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if string(value) != `{"a":1}` {
		t.Errorf("value = %s", value)
	}

	if _, found, _ := b.Get(ctx, "missing"); found {
		t.Error("missing key should not be found")
	}
}

func TestMemoryBackendLazyExpiry(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	defer b.Close()
	ctx := context.Background()

	b.Set(ctx, "short", []byte("x"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, found, _ := b.Get(ctx, "short"); found {
		t.Error("expired entry should read as absent")
	}
}

func TestMemoryBackendZeroTTLNeverExpires(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	defer b.Close()
	ctx := context.Background()

	b.Set(ctx, "draft_alice_1", []byte("body"), 0)
	time.Sleep(20 * time.Millisecond)
	if _, found, _ := b.Get(ctx, "draft_alice_1"); !found {
		t.Error("zero-TTL entry must persist")
	}
}

func TestMemoryBackendDeleteByPrefix(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	defer b.Close()
	ctx := context.Background()

	b.Set(ctx, "posts_alice_0", []byte("0"), time.Minute)
	b.Set(ctx, "posts_alice_1", []byte("1"), time.Minute)
	b.Set(ctx, "posts_bob_0", []byte("2"), time.Minute)

	if err := b.DeleteByPrefix(ctx, "posts_alice_"); err != nil {
		t.Fatalf("delete by prefix: %v", err)
	}
	if _, found, _ := b.Get(ctx, "posts_alice_0"); found {
		t.Error("prefixed key 0 should be gone")
	}
	if _, found, _ := b.Get(ctx, "posts_alice_1"); found {
		t.Error("prefixed key 1 should be gone")
	}
	if _, found, _ := b.Get(ctx, "posts_bob_0"); !found {
		t.Error("unrelated key must survive")
	}
}

func TestMemoryBackendEviction(t *testing.T) {
	b := NewMemoryBackend(10, time.Hour)
	defer b.Close()
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		key := Key("content", "k", string(rune('a'+i)))
		b.Set(ctx, key, []byte("v"), time.Duration(i+1)*time.Minute)
	}
	b.mu.RLock()
	n := len(b.entries)
	b.mu.RUnlock()
	if n > 11 {
		t.Errorf("entry count = %d, want bounded near 10", n)
	}
}

func TestMemoryBackendCloseIdempotent(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// A Store.Close stacked on a deferred backend.Close must not panic.
	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestMemoryBackendGetMultiple(t *testing.T) {
	b := NewMemoryBackend(100, time.Hour)
	defer b.Close()
	ctx := context.Background()

	b.SetMultiple(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, time.Minute)
	got, err := b.GetMultiple(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("get multiple: %v", err)
	}
	if len(got) != 2 || string(got["a"]) != "1" || string(got["b"]) != "2" {
		t.Errorf("got = %v", got)
	}
}
