package social

import (
	"context"
	"encoding/json"
	"fmt"

	"hive-client/cache"
	"hive-client/chain"
	"hive-client/fetch"
)

// followJSON renders the follow-plugin payload carried in custom_json.
func followJSON(kind string, body any) (string, error) {
	raw, err := json.Marshal([2]any{kind, body})
	if err != nil {
		return "", fmt.Errorf("social: encode %s payload: %w", kind, err)
	}
	return string(raw), nil
}

func (s *Service) broadcastFollowOp(ctx context.Context, account, kind string, body any) error {
	payload, err := followJSON(kind, body)
	if err != nil {
		return err
	}
	op := chain.CustomJSONOperation{
		RequiredPostingAuths: []string{account},
		ID:                   "follow",
		JSON:                 payload,
	}
	_, err = s.broker.Broadcast(ctx, []chain.Operation{op})
	return err
}

// Follow subscribes follower to following's posts.
func (s *Service) Follow(ctx context.Context, follower, following string) error {
	if follower == "" || following == "" {
		return chain.NewValidationError("account", "required")
	}
	if follower == following {
		return chain.NewValidationError("following", "cannot follow yourself")
	}
	err := s.broadcastFollowOp(ctx, follower, "follow", map[string]any{
		"follower": follower, "following": following, "what": []string{"blog"},
	})
	if err != nil {
		return err
	}
	s.invalidateFollowGraph(ctx, follower, following)
	return nil
}

// Unfollow removes the subscription; an empty what list clears it.
func (s *Service) Unfollow(ctx context.Context, follower, following string) error {
	if follower == "" || following == "" {
		return chain.NewValidationError("account", "required")
	}
	err := s.broadcastFollowOp(ctx, follower, "follow", map[string]any{
		"follower": follower, "following": following, "what": []string{},
	})
	if err != nil {
		return err
	}
	s.invalidateFollowGraph(ctx, follower, following)
	return nil
}

// Reshare rebroadcasts someone else's post to the account's blog.
func (s *Service) Reshare(ctx context.Context, account, author, permlink string) error {
	switch {
	case account == "":
		return chain.NewValidationError("account", "required")
	case author == "" || permlink == "":
		return chain.NewValidationError("target", "required")
	case account == author:
		return chain.NewValidationError("target", "cannot reshare your own post")
	}
	err := s.broadcastFollowOp(ctx, account, "reblog", map[string]any{
		"account": account, "author": author, "permlink": permlink,
	})
	if err != nil {
		return err
	}
	if s.store != nil {
		s.store.InvalidatePrefix(ctx, cache.Key("pages", "blog", account, ""))
	}
	return nil
}

func (s *Service) invalidateFollowGraph(ctx context.Context, follower, following string) {
	if s.store == nil {
		return
	}
	s.store.Invalidate(ctx, cache.Key("followcount", follower))
	s.store.Invalidate(ctx, cache.Key("followcount", following))
	s.store.InvalidatePrefix(ctx, cache.Key("pages", "followers", following, ""))
	s.store.InvalidatePrefix(ctx, cache.Key("pages", "following", follower, ""))
	s.store.InvalidatePrefix(ctx, cache.Key("pages", "feed", follower, ""))
}

// FollowCounts fetches an account's follower/following tally, cached.
func (s *Service) FollowCounts(ctx context.Context, account string) (*FollowCounts, error) {
	key := cache.Key("followcount", account)
	if s.store != nil {
		var cached FollowCounts
		if s.store.GetJSON(ctx, key, &cached) {
			return &cached, nil
		}
	}

	var out FollowCounts
	if err := s.client.CallInto(ctx, "condenser_api.get_follow_count", []any{account}, &out); err != nil {
		return nil, err
	}
	if s.store != nil {
		s.store.SetJSON(ctx, key, out, s.ttl.Account)
	}
	return &out, nil
}

// FollowersPager pages the accounts following account.
func (s *Service) FollowersPager(account string) *fetch.Pager[FollowRecord] {
	fetchFn := func(ctx context.Context, start fetch.Cursor, limit int) ([]FollowRecord, error) {
		var out []FollowRecord
		err := s.client.CallInto(ctx, "condenser_api.get_followers",
			[]any{account, start.Permlink, "blog", limit}, &out)
		return out, err
	}
	identity := func(r FollowRecord) string { return "/" + r.Follower }
	return fetch.NewPager(cache.Key("followers", account), s.pageSize,
		fetchFn, identity, s.store, s.ttl.Account)
}

// FollowingPager pages the accounts account follows.
func (s *Service) FollowingPager(account string) *fetch.Pager[FollowRecord] {
	fetchFn := func(ctx context.Context, start fetch.Cursor, limit int) ([]FollowRecord, error) {
		var out []FollowRecord
		err := s.client.CallInto(ctx, "condenser_api.get_following",
			[]any{account, start.Permlink, "blog", limit}, &out)
		return out, err
	}
	identity := func(r FollowRecord) string { return "/" + r.Following }
	return fetch.NewPager(cache.Key("following", account), s.pageSize,
		fetchFn, identity, s.store, s.ttl.Account)
}
