// Package social exposes the content services a client application
// calls: feeds, posts, comments, votes, follows, profiles and local
// drafts. Reads go through the cache, writes through the authorization
// broker, and every write invalidates the cache prefixes it staled.
package social

import (
	"encoding/json"

	"hive-client/chain"
)

// Discussion is a post or comment as the condenser API returns it.
type Discussion struct {
	Author         string          `json:"author"`
	Permlink       string          `json:"permlink"`
	ParentAuthor   string          `json:"parent_author"`
	ParentPermlink string          `json:"parent_permlink"`
	Category       string          `json:"category"`
	Title          string          `json:"title"`
	Body           string          `json:"body"`
	JSONMetadata   string          `json:"json_metadata"`
	Created        chain.Time      `json:"created"`
	LastUpdate     chain.Time      `json:"last_update"`
	Children       int             `json:"children"`
	NetVotes       int             `json:"net_votes"`
	PendingPayout  string          `json:"pending_payout_value"`
	ActiveVotes    json.RawMessage `json:"active_votes,omitempty"`
}

// Ref is the author/permlink pair identifying a discussion.
func (d Discussion) Ref() string {
	return d.Author + "/" + d.Permlink
}

// IsComment reports whether the discussion is a reply rather than a
// top-level post.
func (d Discussion) IsComment() bool {
	return d.ParentAuthor != ""
}

// VoteRecord is one entry of a discussion's active vote list.
type VoteRecord struct {
	Voter   string     `json:"voter"`
	Percent int        `json:"percent"`
	Time    chain.Time `json:"time"`
}

// Account is the condenser account shape, trimmed to what clients use.
type Account struct {
	Name                string     `json:"name"`
	PostCount           int        `json:"post_count"`
	Created             chain.Time `json:"created"`
	JSONMetadata        string     `json:"json_metadata"`
	PostingJSONMetadata string     `json:"posting_json_metadata"`
	Reputation          int64      `json:"reputation"`
}

// Profile is the metadata document embedded in an account.
type Profile struct {
	Name    string `json:"name,omitempty"`
	About   string `json:"about,omitempty"`
	Website string `json:"website,omitempty"`
	Avatar  string `json:"profile_image,omitempty"`
	Cover   string `json:"cover_image,omitempty"`
}

// ParseProfile extracts the profile document from account metadata,
// preferring the posting copy. Malformed metadata yields an empty
// profile rather than an error.
func ParseProfile(acct Account) Profile {
	for _, raw := range []string{acct.PostingJSONMetadata, acct.JSONMetadata} {
		if raw == "" {
			continue
		}
		var doc struct {
			Profile Profile `json:"profile"`
		}
		if err := json.Unmarshal([]byte(raw), &doc); err == nil && doc.Profile != (Profile{}) {
			return doc.Profile
		}
	}
	return Profile{}
}

// FollowCounts is the follower/following tally for an account.
type FollowCounts struct {
	Account        string `json:"account"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
}

// FollowRecord is one edge of the follow graph.
type FollowRecord struct {
	Follower  string   `json:"follower"`
	Following string   `json:"following"`
	What      []string `json:"what"`
}
