package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"hive-client/cache"
	"hive-client/rpc"
)

// Scanner walks an account's operation history backwards from the most
// recent entry and derives a notifications feed. Heavy accounts can
// overflow a node's history window, so a failed batch is retried at
// half size down to a floor, and the walk is capped so one scan cannot
// run unbounded.
type Scanner struct {
	Client *rpc.Client
	Store  *cache.Store
	Reads  ReadStore

	// BatchSize is the initial history window (default 1000).
	BatchSize int
	// MinBatch is the smallest window tried before giving up (default 10).
	MinBatch int
	// MaxIterations caps the number of history windows walked (default 50).
	MaxIterations int
	// FeedTTL is the cache lifetime of a reconstructed feed.
	FeedTTL time.Duration

	Logger *slog.Logger

	group singleflight.Group
}

// NewScanner builds a scanner with stock limits.
func NewScanner(client *rpc.Client, store *cache.Store, reads ReadStore, feedTTL time.Duration) *Scanner {
	return &Scanner{
		Client:        client,
		Store:         store,
		Reads:         reads,
		BatchSize:     1000,
		MinBatch:      10,
		MaxIterations: 50,
		FeedTTL:       feedTTL,
		Logger:        slog.Default(),
	}
}

func (s *Scanner) feedKey(account string) string {
	return cache.Key("notifications", account)
}

// Feed returns the account's notifications, newest first, serving the
// cached copy when fresh. Concurrent rebuilds for one account collapse
// into a single scan.
func (s *Scanner) Feed(ctx context.Context, account string) ([]Notification, error) {
	if s.Store != nil {
		var cached []Notification
		if s.Store.GetJSON(ctx, s.feedKey(account), &cached) {
			return s.applyReadState(ctx, account, cached)
		}
	}

	v, err, _ := s.group.Do(account, func() (any, error) {
		return s.rebuild(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return s.applyReadState(ctx, account, v.([]Notification))
}

// Refresh drops the cached feed and rebuilds it.
func (s *Scanner) Refresh(ctx context.Context, account string) ([]Notification, error) {
	if s.Store != nil {
		s.Store.Invalidate(ctx, s.feedKey(account))
	}
	return s.Feed(ctx, account)
}

func (s *Scanner) rebuild(ctx context.Context, account string) ([]Notification, error) {
	entries, err := s.walkHistory(ctx, account)
	if err != nil {
		return nil, err
	}

	// entries arrive newest-first; first occurrence of a key wins, so
	// repeated follow/unfollow churn keeps only the latest state.
	byKey := make(map[string]struct{})
	var feed []Notification
	for _, entry := range entries {
		n, ok := s.classify(account, entry)
		if !ok {
			continue
		}
		if _, dup := byKey[n.Key()]; dup {
			continue
		}
		byKey[n.Key()] = struct{}{}
		feed = append(feed, n)
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Timestamp.After(feed[j].Timestamp)
	})

	if s.Store != nil {
		if err := s.Store.SetJSON(ctx, s.feedKey(account), feed, s.FeedTTL); err != nil {
			s.Logger.Warn("notify: feed cache write failed", "account", account, "error", err)
		}
	}
	s.Logger.Info("notify: feed rebuilt",
		"account", account, "entries", len(entries), "notifications", len(feed))
	return feed, nil
}

// walkHistory pages backwards through get_account_history. start -1
// means "from the newest entry"; each later window starts just below
// the earliest sequence already seen.
func (s *Scanner) walkHistory(ctx context.Context, account string) ([]HistoryEntry, error) {
	batch := s.BatchSize
	if batch <= 0 {
		batch = 1000
	}
	minBatch := s.MinBatch
	if minBatch <= 0 {
		minBatch = 10
	}
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = 50
	}

	var all []HistoryEntry
	start := int64(-1)

	for iter := 0; iter < maxIter; iter++ {
		var window []HistoryEntry
		err := s.Client.CallInto(ctx, "condenser_api.get_account_history",
			[]any{account, start, batch}, &window)
		if err != nil {
			// Nodes refuse windows that are too wide for a busy
			// account; shrink and retry the same position.
			if rpc.IsRemote(err) && batch/2 >= minBatch {
				batch /= 2
				s.Logger.Debug("notify: history window shrunk",
					"account", account, "batch", batch)
				continue
			}
			return nil, err
		}

		if len(window) == 0 {
			break
		}

		// The API returns oldest-first within a window; reverse so the
		// accumulated list stays newest-first.
		for i := len(window) - 1; i >= 0; i-- {
			all = append(all, window[i])
		}

		earliest := window[0].Sequence
		if earliest <= 1 {
			break
		}
		// A window much shorter than requested means history ran out.
		if len(window) < batch/2 {
			break
		}
		start = earliest - 1
		if start < int64(batch) {
			batch = int(start)
			if batch < 1 {
				break
			}
		}
	}
	return all, nil
}

// classify turns one history entry into a notification, when it is one.
// Actions by the account itself never notify.
func (s *Scanner) classify(account string, entry HistoryEntry) (Notification, bool) {
	switch entry.OpName {
	case "comment":
		var op commentOp
		if json.Unmarshal(entry.OpBody, &op) != nil || op.Author == account {
			return Notification{}, false
		}
		if op.ParentAuthor == account {
			return Notification{
				Type:      TypeReply,
				Actor:     op.Author,
				Subject:   op.Author + "/" + op.Permlink,
				Permlink:  op.Permlink,
				Timestamp: entry.Timestamp.Time,
			}, true
		}
		if mentions(op.Body, account) {
			return Notification{
				Type:      TypeMention,
				Actor:     op.Author,
				Subject:   op.Author + "/" + op.Permlink,
				Permlink:  op.Permlink,
				Timestamp: entry.Timestamp.Time,
			}, true
		}
	case "vote":
		var op voteOp
		if json.Unmarshal(entry.OpBody, &op) != nil {
			return Notification{}, false
		}
		if op.Author == account && op.Voter != account && op.Weight > 0 {
			return Notification{
				Type:      TypeUpvote,
				Actor:     op.Voter,
				Subject:   op.Author + "/" + op.Permlink,
				Permlink:  op.Permlink,
				Timestamp: entry.Timestamp.Time,
			}, true
		}
	case "custom_json":
		var op customJSONOp
		if json.Unmarshal(entry.OpBody, &op) != nil || op.ID != "follow" {
			return Notification{}, false
		}
		return s.classifyFollow(account, op, entry.Timestamp.Time)
	}
	return Notification{}, false
}

func (s *Scanner) classifyFollow(account string, op customJSONOp, ts time.Time) (Notification, bool) {
	payload, err := decodeFollowPayload(op.JSON)
	if err != nil {
		return Notification{}, false
	}
	switch payload.Kind {
	case "follow":
		var body struct {
			Follower  string   `json:"follower"`
			Following string   `json:"following"`
			What      []string `json:"what"`
		}
		if json.Unmarshal(payload.Body, &body) != nil {
			return Notification{}, false
		}
		// An empty what list is an unfollow, which is not a notification.
		if body.Following != account || body.Follower == account || len(body.What) == 0 {
			return Notification{}, false
		}
		return Notification{
			Type:      TypeFollow,
			Actor:     body.Follower,
			Subject:   account,
			Timestamp: ts,
		}, true
	case "reblog":
		var body struct {
			Account  string `json:"account"`
			Author   string `json:"author"`
			Permlink string `json:"permlink"`
		}
		if json.Unmarshal(payload.Body, &body) != nil {
			return Notification{}, false
		}
		if body.Author != account || body.Account == account {
			return Notification{}, false
		}
		return Notification{
			Type:      TypeReshare,
			Actor:     body.Account,
			Subject:   body.Author + "/" + body.Permlink,
			Permlink:  body.Permlink,
			Timestamp: ts,
		}, true
	}
	return Notification{}, false
}

// mentions reports whether body contains an @account reference not
// embedded in a longer name.
func mentions(body, account string) bool {
	needle := "@" + account
	for from := 0; ; {
		i := strings.Index(body[from:], needle)
		if i < 0 {
			return false
		}
		end := from + i + len(needle)
		if end >= len(body) || !isNameChar(body[end]) {
			return true
		}
		from = end
	}
}

func isNameChar(c byte) bool {
	return c == '-' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// applyReadState copies the feed before flagging entries. The rebuild
// result is shared between collapsed concurrent callers, so the shared
// slice must never be written through.
func (s *Scanner) applyReadState(ctx context.Context, account string, feed []Notification) ([]Notification, error) {
	out := append([]Notification(nil), feed...)
	if s.Reads == nil {
		return out, nil
	}
	for i := range out {
		read, err := s.Reads.IsRead(ctx, account, out[i].Key(), out[i].Timestamp)
		if err != nil {
			return nil, err
		}
		out[i].Read = read
	}
	return out, nil
}

// MarkRead flags one notification as seen.
func (s *Scanner) MarkRead(ctx context.Context, account string, n Notification) error {
	if s.Reads == nil {
		return nil
	}
	return s.Reads.MarkRead(ctx, account, n.Key())
}

// MarkAllRead flags every current notification as seen.
func (s *Scanner) MarkAllRead(ctx context.Context, account string) error {
	if s.Reads == nil {
		return nil
	}
	return s.Reads.MarkAllRead(ctx, account, time.Now().UTC())
}

// UnreadCount reports how many feed entries are unread.
func (s *Scanner) UnreadCount(ctx context.Context, account string) (int, error) {
	feed, err := s.Feed(ctx, account)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range feed {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

// Page slices a feed into its nth zero-based page of size items.
func Page(feed []Notification, page, size int) []Notification {
	if size <= 0 {
		return nil
	}
	from := page * size
	if from >= len(feed) {
		return nil
	}
	to := from + size
	if to > len(feed) {
		to = len(feed)
	}
	return feed[from:to]
}

// Filter returns only the notifications of the given types.
func Filter(feed []Notification, types ...Type) []Notification {
	if len(types) == 0 {
		return feed
	}
	want := make(map[Type]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}
	var out []Notification
	for _, n := range feed {
		if _, ok := want[n.Type]; ok {
			out = append(out, n)
		}
	}
	return out
}
