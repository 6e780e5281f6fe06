package social

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// PostView is everything a post page shows: the content, its direct
// replies, the vote list and the author's account.
type PostView struct {
	Content *Discussion
	Replies []Discussion
	Votes   []VoteRecord
	Author  *Account
}

// LoadPostView assembles a post page, fetching the independent pieces
// concurrently. The first failure cancels the rest.
func (s *Service) LoadPostView(ctx context.Context, author, permlink string) (*PostView, error) {
	view := &PostView{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d, err := s.GetContent(gctx, author, permlink)
		view.Content = d
		return err
	})
	g.Go(func() error {
		replies, err := s.Replies(gctx, author, permlink)
		view.Replies = replies
		return err
	})
	g.Go(func() error {
		votes, err := s.ActiveVotes(gctx, author, permlink)
		view.Votes = votes
		return err
	})
	g.Go(func() error {
		acct, err := s.GetAccount(gctx, author)
		view.Author = acct
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}
