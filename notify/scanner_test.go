package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"hive-client/cache"
	"hive-client/chain"
	"hive-client/rpc"
)

func entry(seq int64, ts, opName, opBody string) string {
	return fmt.Sprintf(`[%d, {"timestamp": %q, "op": [%q, %s]}]`, seq, ts, opName, opBody)
}

// historyServer serves get_account_history over a fixed entry list,
// refusing windows wider than maxBatch.
func historyServer(t *testing.T, entries []string, maxBatch int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(historyHandler(entries, maxBatch))
}

func historyHandler(entries []string, maxBatch int) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpc.Request
		json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}

		var params []any
		raw, _ := json.Marshal(req.Params)
		json.Unmarshal(raw, &params)
		start := int64(params[1].(float64))
		limit := int(params[2].(float64))

		if maxBatch > 0 && limit > maxBatch {
			resp["error"] = map[string]any{"code": -32003, "message": "limit exceeds account history window"}
			json.NewEncoder(w).Encode(resp)
			return
		}

		// Entries are stored oldest-first with sequence == index+1.
		last := int64(len(entries))
		if start >= 0 && start < last {
			last = start
		}
		first := last - int64(limit) + 1
		if first < 1 {
			first = 1
		}
		var out []json.RawMessage
		for seq := first; seq <= last; seq++ {
			out = append(out, json.RawMessage(entries[seq-1]))
		}
		if out == nil {
			out = []json.RawMessage{}
		}
		resp["result"] = out
		json.NewEncoder(w).Encode(resp)
	})
}

func newTestScanner(t *testing.T, srv *httptest.Server) *Scanner {
	t.Helper()
	client, err := rpc.New(rpc.Config{Endpoints: []string{srv.URL}, CallTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("rpc client: %v", err)
	}
	backend := cache.NewMemoryBackend(100, time.Hour)
	t.Cleanup(func() { backend.Close() })
	return NewScanner(client, cache.NewStore(backend, nil), NewBackendReadStore(backend), time.Hour)
}

func TestClassification(t *testing.T) {
	s := &Scanner{}
	ts := chainTime(t, "2026-08-01T10:00:00")

	cases := []struct {
		name   string
		opName string
		body   string
		want   Notification
		none   bool
	}{
		{
			name:   "reply to own post",
			opName: "comment",
			body:   `{"parent_author":"alice","parent_permlink":"my-post","author":"bob","permlink":"re-my-post","body":"nice"}`,
			want:   Notification{Type: TypeReply, Actor: "bob", Subject: "bob/re-my-post", Permlink: "re-my-post"},
		},
		{
			name:   "mention in unrelated comment",
			opName: "comment",
			body:   `{"parent_author":"carol","parent_permlink":"x","author":"bob","permlink":"y","body":"ping @alice here"}`,
			want:   Notification{Type: TypeMention, Actor: "bob", Subject: "bob/y", Permlink: "y"},
		},
		{
			name:   "longer name is not a mention",
			opName: "comment",
			body:   `{"parent_author":"carol","parent_permlink":"x","author":"bob","permlink":"y","body":"hi @alicesmith"}`,
			none:   true,
		},
		{
			name:   "own comment never notifies",
			opName: "comment",
			body:   `{"parent_author":"alice","parent_permlink":"p","author":"alice","permlink":"q","body":"@alice"}`,
			none:   true,
		},
		{
			name:   "upvote on own post",
			opName: "vote",
			body:   `{"voter":"bob","author":"alice","permlink":"my-post","weight":10000}`,
			want:   Notification{Type: TypeUpvote, Actor: "bob", Subject: "alice/my-post", Permlink: "my-post"},
		},
		{
			name:   "downvote is not a notification",
			opName: "vote",
			body:   `{"voter":"bob","author":"alice","permlink":"my-post","weight":-10000}`,
			none:   true,
		},
		{
			name:   "self vote ignored",
			opName: "vote",
			body:   `{"voter":"alice","author":"alice","permlink":"p","weight":10000}`,
			none:   true,
		},
		{
			name:   "new follower",
			opName: "custom_json",
			body:   `{"id":"follow","json":"[\"follow\",{\"follower\":\"bob\",\"following\":\"alice\",\"what\":[\"blog\"]}]"}`,
			want:   Notification{Type: TypeFollow, Actor: "bob", Subject: "alice"},
		},
		{
			name:   "unfollow ignored",
			opName: "custom_json",
			body:   `{"id":"follow","json":"[\"follow\",{\"follower\":\"bob\",\"following\":\"alice\",\"what\":[]}]"}`,
			none:   true,
		},
		{
			name:   "reshare of own post",
			opName: "custom_json",
			body:   `{"id":"follow","json":"[\"reblog\",{\"account\":\"bob\",\"author\":\"alice\",\"permlink\":\"my-post\"}]"}`,
			want:   Notification{Type: TypeReshare, Actor: "bob", Subject: "alice/my-post", Permlink: "my-post"},
		},
		{
			name:   "unrelated custom_json ignored",
			opName: "custom_json",
			body:   `{"id":"sm_market","json":"{}"}`,
			none:   true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := s.classify("alice", HistoryEntry{
				Timestamp: ts, OpName: tc.opName, OpBody: json.RawMessage(tc.body),
			})
			if tc.none {
				if ok {
					t.Fatalf("expected no notification, got %+v", got)
				}
				return
			}
			if !ok {
				t.Fatal("expected a notification")
			}
			tc.want.Timestamp = ts.Time
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestFeedRebuildAndDedupe(t *testing.T) {
	entries := []string{
		entry(1, "2026-08-01T10:00:00", "vote",
			`{"voter":"bob","author":"alice","permlink":"p1","weight":5000}`),
		entry(2, "2026-08-01T11:00:00", "vote",
			`{"voter":"bob","author":"alice","permlink":"p1","weight":10000}`),
		entry(3, "2026-08-01T12:00:00", "comment",
			`{"parent_author":"alice","parent_permlink":"p1","author":"carol","permlink":"re-p1","body":"hi"}`),
	}
	srv := historyServer(t, entries, 0)
	defer srv.Close()
	s := newTestScanner(t, srv)

	feed, err := s.Feed(context.Background(), "alice")
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	// The re-vote collapses onto one upvote notification; the newest
	// occurrence wins.
	if len(feed) != 2 {
		t.Fatalf("feed length = %d (%+v), want 2", len(feed), feed)
	}
	if feed[0].Type != TypeReply || feed[1].Type != TypeUpvote {
		t.Errorf("order = %v, %v", feed[0].Type, feed[1].Type)
	}
	if !feed[1].Timestamp.Equal(chainTime(t, "2026-08-01T11:00:00").Time) {
		t.Errorf("upvote timestamp = %v, want the latest occurrence", feed[1].Timestamp)
	}

	// Rebuilding from the same history is deterministic.
	again, err := s.Refresh(context.Background(), "alice")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !reflect.DeepEqual(feed, again) {
		t.Errorf("rebuild differs:\n%+v\n%+v", feed, again)
	}
}

func TestWalkShrinksBatchOnRemoteError(t *testing.T) {
	var entries []string
	for i := 1; i <= 40; i++ {
		entries = append(entries, entry(int64(i),
			fmt.Sprintf("2026-08-01T10:%02d:00", i%60), "vote",
			fmt.Sprintf(`{"voter":"bob","author":"alice","permlink":"p%d","weight":100}`, i)))
	}
	// Node refuses anything wider than 25 entries.
	srv := historyServer(t, entries, 25)
	defer srv.Close()

	s := newTestScanner(t, srv)
	s.BatchSize = 100
	s.MinBatch = 10

	feed, err := s.Feed(context.Background(), "alice")
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(feed) != 40 {
		t.Errorf("feed length = %d, want 40", len(feed))
	}
}

func TestReadStateSurvivesRebuild(t *testing.T) {
	entries := []string{
		entry(1, "2026-08-01T10:00:00", "vote",
			`{"voter":"bob","author":"alice","permlink":"p1","weight":100}`),
		entry(2, "2026-08-01T11:00:00", "comment",
			`{"parent_author":"alice","parent_permlink":"p1","author":"carol","permlink":"re","body":"x"}`),
	}
	srv := historyServer(t, entries, 0)
	defer srv.Close()
	s := newTestScanner(t, srv)
	ctx := context.Background()

	feed, err := s.Feed(ctx, "alice")
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if n, _ := s.UnreadCount(ctx, "alice"); n != 2 {
		t.Fatalf("unread = %d, want 2", n)
	}

	if err := s.MarkRead(ctx, "alice", feed[1]); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	feed, _ = s.Refresh(ctx, "alice")
	if feed[1].Read != true || feed[0].Read != false {
		t.Errorf("read flags = %v/%v after rebuild", feed[0].Read, feed[1].Read)
	}

	if err := s.MarkAllRead(ctx, "alice"); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if n, _ := s.UnreadCount(ctx, "alice"); n != 0 {
		t.Errorf("unread after mark-all = %d", n)
	}
}

func TestConcurrentFeedsGetIndependentCopies(t *testing.T) {
	entries := []string{
		entry(1, "2026-08-01T10:00:00", "vote",
			`{"voter":"bob","author":"alice","permlink":"p1","weight":100}`),
		entry(2, "2026-08-01T11:00:00", "comment",
			`{"parent_author":"alice","parent_permlink":"p1","author":"carol","permlink":"re","body":"x"}`),
	}
	// A slow node keeps the callers overlapped so they collapse into
	// one rebuild.
	handler := historyHandler(entries, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		handler(w, r)
	}))
	defer srv.Close()
	s := newTestScanner(t, srv)
	ctx := context.Background()

	feeds := make([][]Notification, 4)
	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range feeds {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			feeds[i], errs[i] = s.Feed(ctx, "alice")
		}(i)
	}
	wg.Wait()

	for i := range feeds {
		if errs[i] != nil {
			t.Fatalf("feed %d: %v", i, errs[i])
		}
		if len(feeds[i]) != 2 {
			t.Fatalf("feed %d length = %d, want 2", i, len(feeds[i]))
		}
	}
	// Each caller must own its slice; flagging one feed may not leak
	// into another.
	feeds[0][0].Read = true
	for i := 1; i < len(feeds); i++ {
		if feeds[i][0].Read {
			t.Errorf("feed %d shares backing storage with feed 0", i)
		}
	}
}

func TestPageSlicing(t *testing.T) {
	feed := make([]Notification, 5)
	if got := Page(feed, 0, 2); len(got) != 2 {
		t.Errorf("page 0 = %d items", len(got))
	}
	if got := Page(feed, 2, 2); len(got) != 1 {
		t.Errorf("last page = %d items", len(got))
	}
	if got := Page(feed, 3, 2); got != nil {
		t.Errorf("past-end page = %v", got)
	}
}

func TestFilter(t *testing.T) {
	feed := []Notification{
		{Type: TypeReply}, {Type: TypeUpvote}, {Type: TypeFollow}, {Type: TypeUpvote},
	}
	got := Filter(feed, TypeUpvote)
	if len(got) != 2 {
		t.Errorf("filtered = %d, want 2", len(got))
	}
	if len(Filter(feed)) != 4 {
		t.Error("no-type filter must pass everything through")
	}
}

func chainTime(t *testing.T, s string) chain.Time {
	t.Helper()
	parsed, err := time.Parse(chain.TimeFormat, s)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return chain.Time{Time: parsed.UTC()}
}
