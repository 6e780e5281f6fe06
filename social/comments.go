package social

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hive-client/cache"
	"hive-client/chain"
	"hive-client/fetch"
)

// Replies fetches the direct replies to one post or comment, cached
// for the comment TTL.
func (s *Service) Replies(ctx context.Context, author, permlink string) ([]Discussion, error) {
	key := cache.Key("comments", author, permlink)
	if s.store != nil {
		var cached []Discussion
		if s.store.GetJSON(ctx, key, &cached) {
			return cached, nil
		}
	}

	var out []Discussion
	if err := s.client.CallInto(ctx, "condenser_api.get_content_replies", []any{author, permlink}, &out); err != nil {
		return nil, err
	}
	if s.store != nil {
		s.store.SetJSON(ctx, key, out, s.ttl.Comments)
	}
	return out, nil
}

// CommentsPager pages the comments an account has written, newest
// first.
func (s *Service) CommentsPager(account string) *fetch.Pager[Discussion] {
	fetchFn := func(ctx context.Context, start fetch.Cursor, limit int) ([]Discussion, error) {
		startAuthor := start.Author
		startPermlink := start.Permlink
		if start.Zero() {
			startAuthor = account
		}
		var out []Discussion
		err := s.client.CallInto(ctx, "condenser_api.get_discussions_by_comments", []any{discussionQuery{
			Tag:           account,
			Limit:         limit,
			StartAuthor:   startAuthor,
			StartPermlink: startPermlink,
		}}, &out)
		return out, err
	}
	return fetch.NewPager(cache.Key("comments", account), s.pageSize,
		fetchFn, discussionIdentity, s.store, s.ttl.Comments)
}

// replyPermlink derives the conventional re-<parent>-<timestamp>
// permlink for a new reply.
func replyPermlink(parentPermlink string, now time.Time) string {
	p := "re-" + strings.Trim(parentPermlink, "-")
	if len(p) > 80 {
		p = p[:80]
	}
	return fmt.Sprintf("%s-%s", p, now.UTC().Format("20060102t150405z"))
}

// SubmitComment broadcasts a reply and invalidates the parent's cached
// reply list. The generated permlink is returned.
func (s *Service) SubmitComment(ctx context.Context, author, parentAuthor, parentPermlink, body string) (string, error) {
	switch {
	case author == "":
		return "", chain.NewValidationError("author", "required")
	case parentAuthor == "" || parentPermlink == "":
		return "", chain.NewValidationError("parent", "required")
	case strings.TrimSpace(body) == "":
		return "", chain.NewValidationError("body", "required")
	}

	permlink := replyPermlink(parentPermlink, time.Now())
	op := chain.CommentOperation{
		ParentAuthor:   parentAuthor,
		ParentPermlink: parentPermlink,
		Author:         author,
		Permlink:       permlink,
		Body:           body,
		JSONMetadata:   metadataJSON(nil),
	}
	if _, err := s.broker.Broadcast(ctx, []chain.Operation{op}); err != nil {
		return "", err
	}
	if s.store != nil {
		s.store.Invalidate(ctx, cache.Key("comments", parentAuthor, parentPermlink))
		s.store.Invalidate(ctx, cache.Key("content", parentAuthor, parentPermlink))
	}
	s.invalidateAuthor(ctx, author)
	return permlink, nil
}
