package social

import (
	"context"

	"hive-client/cache"
	"hive-client/chain"
)

// Vote casts a vote. Weight is in basis points, -10000..10000.
func (s *Service) Vote(ctx context.Context, voter, author, permlink string, weight int16) error {
	switch {
	case voter == "":
		return chain.NewValidationError("voter", "required")
	case author == "" || permlink == "":
		return chain.NewValidationError("target", "required")
	case weight < -10000 || weight > 10000:
		return chain.NewValidationError("weight", "must be between -10000 and 10000")
	}

	op := chain.VoteOperation{Voter: voter, Author: author, Permlink: permlink, Weight: weight}
	if _, err := s.broker.Broadcast(ctx, []chain.Operation{op}); err != nil {
		return err
	}
	if s.store != nil {
		s.store.Invalidate(ctx, cache.Key("content", author, permlink))
		s.store.Invalidate(ctx, cache.Key("votes", author, permlink))
	}
	return nil
}

// Unvote removes an existing vote.
func (s *Service) Unvote(ctx context.Context, voter, author, permlink string) error {
	return s.Vote(ctx, voter, author, permlink, 0)
}

// ActiveVotes lists the votes on one discussion, cached briefly.
func (s *Service) ActiveVotes(ctx context.Context, author, permlink string) ([]VoteRecord, error) {
	key := cache.Key("votes", author, permlink)
	if s.store != nil {
		var cached []VoteRecord
		if s.store.GetJSON(ctx, key, &cached) {
			return cached, nil
		}
	}

	var out []VoteRecord
	if err := s.client.CallInto(ctx, "condenser_api.get_active_votes", []any{author, permlink}, &out); err != nil {
		return nil, err
	}
	if s.store != nil {
		s.store.SetJSON(ctx, key, out, s.ttl.Content)
	}
	return out, nil
}

// HasVoted reports whether voter appears in the discussion's vote list.
func (s *Service) HasVoted(ctx context.Context, voter, author, permlink string) (bool, error) {
	votes, err := s.ActiveVotes(ctx, author, permlink)
	if err != nil {
		return false, err
	}
	for _, v := range votes {
		if v.Voter == voter && v.Percent != 0 {
			return true, nil
		}
	}
	return false, nil
}
