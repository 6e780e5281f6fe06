package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"hive-client/cache"
)

// FetchFunc retrieves one raw window from the upstream API. start is
// the cursor (zero for the first window) and limit is the window size
// including the cursor echo.
type FetchFunc[T any] func(ctx context.Context, start Cursor, limit int) ([]T, error)

// IdentityFunc returns the comparable identity of an item, matching
// Cursor.Identity for the same logical entry.
type IdentityFunc[T any] func(item T) string

// Pager walks one stream page by page. It overfetches to absorb the
// inclusive cursor echo, filters items already delivered on earlier
// pages, and caches each assembled page. A Pager is safe for
// concurrent use; concurrent fetches of the same page are collapsed.
type Pager[T any] struct {
	Stream    string
	PageSize  int
	Overfetch int
	Fetch     FetchFunc[T]
	Identity  IdentityFunc[T]
	Store     *cache.Store
	TTL       time.Duration
	// FallbackDepth bounds how many recent pages are kept as in-memory
	// fallbacks for upstream failures.
	FallbackDepth int
	Logger        *slog.Logger

	group singleflight.Group

	mu       sync.Mutex
	seen     map[string]struct{}
	pageNum  int
	lastGood map[int]Page[T]
}

// NewPager builds a pager for one stream. Store may be nil to disable
// caching.
func NewPager[T any](stream string, pageSize int, fetch FetchFunc[T], identity IdentityFunc[T], store *cache.Store, ttl time.Duration) *Pager[T] {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Pager[T]{
		Stream:        stream,
		PageSize:      pageSize,
		Overfetch:     2,
		Fetch:         fetch,
		Identity:      identity,
		Store:         store,
		TTL:           ttl,
		FallbackDepth: 8,
		Logger:        slog.Default(),
		seen:          make(map[string]struct{}),
		lastGood:      make(map[int]Page[T]),
	}
}

// NextPage fetches the page after cursor. Pass a zero Cursor for the
// first page. On upstream failure the last successfully assembled copy
// of the same page is returned if one exists.
func (p *Pager[T]) NextPage(ctx context.Context, cursor Cursor) (Page[T], error) {
	p.mu.Lock()
	pageNum := p.pageNum
	p.mu.Unlock()

	cacheKey := cache.Key("pages", p.Stream, fmt.Sprintf("%d", pageNum))
	if p.Store != nil {
		var cached Page[T]
		if p.Store.GetJSON(ctx, cacheKey, &cached) {
			p.absorb(cached)
			return cached, nil
		}
	}

	v, err, _ := p.group.Do(cacheKey, func() (any, error) {
		return p.fetchPage(ctx, cursor, pageNum, cacheKey)
	})
	if err != nil {
		p.mu.Lock()
		fallback, ok := p.lastGood[pageNum]
		p.mu.Unlock()
		if ok {
			p.Logger.Warn("fetch: serving stale page after upstream failure",
				"stream", p.Stream, "page", pageNum, "error", err)
			return fallback, nil
		}
		return Page[T]{}, err
	}
	return v.(Page[T]), nil
}

// absorb records a cache-served page in delivery state so later pages
// still de-duplicate against it.
func (p *Pager[T]) absorb(page Page[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, item := range page.Items {
		p.seen[p.Identity(item)] = struct{}{}
	}
	p.pageNum++
}

func (p *Pager[T]) fetchPage(ctx context.Context, cursor Cursor, pageNum int, cacheKey string) (Page[T], error) {
	limit := p.PageSize + p.Overfetch
	if cursor.Zero() {
		limit = p.PageSize
	}

	raw, err := p.Fetch(ctx, cursor, limit)
	if err != nil {
		return Page[T]{}, fmt.Errorf("fetch %s: %w", p.Stream, err)
	}
	rawCount := len(raw)

	// The upstream window is inclusive of the cursor item; drop the
	// echo when it leads the window.
	if !cursor.Zero() && rawCount > 0 && p.Identity(raw[0]) == cursor.Identity() {
		raw = raw[1:]
	}

	p.mu.Lock()
	items := make([]T, 0, p.PageSize)
	for _, item := range raw {
		id := p.Identity(item)
		if _, dup := p.seen[id]; dup {
			continue
		}
		p.seen[id] = struct{}{}
		items = append(items, item)
		if len(items) == p.PageSize {
			break
		}
	}
	p.mu.Unlock()

	page := Page[T]{
		Items: items,
		// A short raw window means the stream ran out. A window that
		// filled may still be the last one; the caller finds out on
		// the next, empty fetch.
		HasMore: rawCount >= limit && len(items) > 0,
	}
	if len(items) > 0 {
		page.Next = p.cursorAfter(items[len(items)-1], pageNum)
	}

	p.mu.Lock()
	p.pageNum = pageNum + 1
	p.lastGood[pageNum] = page
	if depth := p.FallbackDepth; depth > 0 {
		for n := range p.lastGood {
			if n <= pageNum-depth {
				delete(p.lastGood, n)
			}
		}
	}
	p.mu.Unlock()

	if p.Store != nil {
		if err := p.Store.SetJSON(ctx, cacheKey, page, p.TTL); err != nil {
			p.Logger.Warn("fetch: page cache write failed", "stream", p.Stream, "error", err)
		}
	}
	return page, nil
}

// CursorFor derives the cursor pointing at item. Exposed so callers
// can resume from an arbitrary item.
func (p *Pager[T]) CursorFor(item T) Cursor {
	return identityCursor(p.Identity(item))
}

func (p *Pager[T]) cursorAfter(last T, pageNum int) Cursor {
	c := identityCursor(p.Identity(last))
	if c.Author == "" && c.Permlink == "" {
		// Offset-paginated stream: next page starts past this one.
		c = Cursor{Offset: (pageNum + 1) * p.PageSize}
	}
	return c
}

// identityCursor parses "author/permlink" identities back into cursor
// fields; anything else becomes an offset-less sentinel.
func identityCursor(id string) Cursor {
	for i := 0; i < len(id); i++ {
		if id[i] == '/' {
			return Cursor{Author: id[:i], Permlink: id[i+1:]}
		}
	}
	return Cursor{}
}

// Reset clears delivery state so the stream can be walked again from
// the top, e.g. on pull-to-refresh. Cached pages are invalidated but
// the in-memory last-known-good copies are kept, so a refresh against
// a dead node still has something to show.
func (p *Pager[T]) Reset(ctx context.Context) {
	p.mu.Lock()
	p.seen = make(map[string]struct{})
	p.pageNum = 0
	p.mu.Unlock()
	if p.Store != nil {
		p.Store.InvalidatePrefix(ctx, cache.Key("pages", p.Stream, ""))
	}
}

// Collect walks the stream from the top until max items are gathered
// or the stream ends.
func (p *Pager[T]) Collect(ctx context.Context, max int) ([]T, error) {
	p.Reset(ctx)
	var out []T
	cursor := Cursor{}
	for len(out) < max {
		page, err := p.NextPage(ctx, cursor)
		if err != nil {
			return out, err
		}
		out = append(out, page.Items...)
		if !page.HasMore || len(page.Items) == 0 {
			break
		}
		cursor = page.Next
	}
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}
