package social

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"hive-client/cache"
	"hive-client/chain"
	"hive-client/fetch"
)

func discussionIdentity(d Discussion) string { return d.Ref() }

// discussionQuery is the parameter object of get_discussions_by_*.
type discussionQuery struct {
	Tag           string `json:"tag"`
	Limit         int    `json:"limit"`
	StartAuthor   string `json:"start_author,omitempty"`
	StartPermlink string `json:"start_permlink,omitempty"`
}

// rankedFetch builds a FetchFunc over one ranked discussion stream
// (trending, created, hot) for an optional tag.
func (s *Service) rankedFetch(method, tag string) fetch.FetchFunc[Discussion] {
	return func(ctx context.Context, start fetch.Cursor, limit int) ([]Discussion, error) {
		var out []Discussion
		err := s.client.CallInto(ctx, method, []any{discussionQuery{
			Tag:           tag,
			Limit:         limit,
			StartAuthor:   start.Author,
			StartPermlink: start.Permlink,
		}}, &out)
		return out, err
	}
}

// TrendingPager pages the trending stream for tag (empty for global).
func (s *Service) TrendingPager(tag string) *fetch.Pager[Discussion] {
	return fetch.NewPager(cache.Key("trending", tag), s.pageSize,
		s.rankedFetch("condenser_api.get_discussions_by_trending", tag),
		discussionIdentity, s.store, s.ttl.LiveFeed)
}

// CreatedPager pages the newest-first stream for tag.
func (s *Service) CreatedPager(tag string) *fetch.Pager[Discussion] {
	return fetch.NewPager(cache.Key("created", tag), s.pageSize,
		s.rankedFetch("condenser_api.get_discussions_by_created", tag),
		discussionIdentity, s.store, s.ttl.LiveFeed)
}

// BlogPager pages an account's blog, reshares included.
func (s *Service) BlogPager(account string) *fetch.Pager[Discussion] {
	return fetch.NewPager(cache.Key("blog", account), s.pageSize,
		s.rankedFetch("condenser_api.get_discussions_by_blog", account),
		discussionIdentity, s.store, s.ttl.BlogFeed)
}

// FeedPager pages the posts of accounts the user follows.
func (s *Service) FeedPager(account string) *fetch.Pager[Discussion] {
	return fetch.NewPager(cache.Key("feed", account), s.pageSize,
		s.rankedFetch("condenser_api.get_discussions_by_feed", account),
		discussionIdentity, s.store, s.ttl.BlogFeed)
}

// GetContent fetches one post or comment, cached.
func (s *Service) GetContent(ctx context.Context, author, permlink string) (*Discussion, error) {
	key := cache.Key("content", author, permlink)
	if s.store != nil {
		var cached Discussion
		if s.store.GetJSON(ctx, key, &cached) {
			return &cached, nil
		}
	}

	var d Discussion
	if err := s.client.CallInto(ctx, "condenser_api.get_content", []any{author, permlink}, &d); err != nil {
		return nil, err
	}
	if d.Author == "" {
		return nil, chain.NewValidationError("permlink", fmt.Sprintf("no content at %s/%s", author, permlink))
	}
	if s.store != nil {
		s.store.SetJSON(ctx, key, d, s.ttl.Content)
	}
	return &d, nil
}

// PostInput is a new top-level post.
type PostInput struct {
	Author string
	Title  string
	Body   string
	// Category is the post's first tag and parent permlink.
	Category string
	Tags     []string
}

var permlinkCleaner = regexp.MustCompile(`[^a-z0-9-]+`)

// permlinkFromTitle derives a chain-legal permlink: lowercased title,
// non-alphanumerics collapsed to hyphens, suffixed with a timestamp so
// re-used titles stay unique.
func permlinkFromTitle(title string, now time.Time) string {
	p := strings.ToLower(title)
	p = permlinkCleaner.ReplaceAllString(p, "-")
	p = strings.Trim(p, "-")
	if len(p) > 80 {
		p = p[:80]
	}
	if p == "" {
		p = "post"
	}
	return fmt.Sprintf("%s-%s", p, now.UTC().Format("20060102t150405z"))
}

func metadataJSON(tags []string) string {
	raw, _ := json.Marshal(map[string]any{"tags": tags, "app": "hive-client"})
	return string(raw)
}

// SubmitPost validates, authorizes and broadcasts a new post, then
// invalidates the author's cached streams. The generated permlink is
// returned.
func (s *Service) SubmitPost(ctx context.Context, in PostInput) (string, error) {
	switch {
	case in.Author == "":
		return "", chain.NewValidationError("author", "required")
	case strings.TrimSpace(in.Title) == "":
		return "", chain.NewValidationError("title", "required")
	case strings.TrimSpace(in.Body) == "":
		return "", chain.NewValidationError("body", "required")
	case in.Category == "":
		return "", chain.NewValidationError("category", "required")
	}

	permlink := permlinkFromTitle(in.Title, time.Now())
	op := chain.CommentOperation{
		ParentPermlink: in.Category,
		Author:         in.Author,
		Permlink:       permlink,
		Title:          in.Title,
		Body:           in.Body,
		JSONMetadata:   metadataJSON(append([]string{in.Category}, in.Tags...)),
	}
	if _, err := s.broker.Broadcast(ctx, []chain.Operation{op}); err != nil {
		return "", err
	}
	s.invalidateAuthor(ctx, in.Author)
	return permlink, nil
}

// EditPost rebroadcasts a post under its existing permlink with new
// title and body.
func (s *Service) EditPost(ctx context.Context, author, permlink, title, body string) error {
	if strings.TrimSpace(body) == "" {
		return chain.NewValidationError("body", "required")
	}
	existing, err := s.GetContent(ctx, author, permlink)
	if err != nil {
		return err
	}
	op := chain.CommentOperation{
		ParentAuthor:   existing.ParentAuthor,
		ParentPermlink: existing.ParentPermlink,
		Author:         author,
		Permlink:       permlink,
		Title:          title,
		Body:           body,
		JSONMetadata:   existing.JSONMetadata,
	}
	if _, err := s.broker.Broadcast(ctx, []chain.Operation{op}); err != nil {
		return err
	}
	if s.store != nil {
		s.store.Invalidate(ctx, cache.Key("content", author, permlink))
	}
	s.invalidateAuthor(ctx, author)
	return nil
}

// invalidateAuthor drops every cached stream a write by account stales.
func (s *Service) invalidateAuthor(ctx context.Context, account string) {
	if s.store == nil {
		return
	}
	for _, prefix := range []string{
		cache.Key("pages", "blog", account, ""),
		cache.Key("pages", "feed", account, ""),
		cache.Key("pages", "comments", account, ""),
	} {
		s.store.InvalidatePrefix(ctx, prefix)
	}
}
