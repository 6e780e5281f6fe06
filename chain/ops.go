package chain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operation is one entry of a broadcast: a type tag plus a payload.
// Implementations are immutable value types once constructed.
type Operation interface {
	// Type returns the wire name of the operation ("vote", "comment", ...).
	Type() string
	// RequiredAuthority returns the minimum signing tier the operation needs.
	RequiredAuthority() Authority
	// SemanticTarget identifies the effect of the operation independent of
	// its payload details. Two operations with the same target would race
	// for the same on-chain outcome.
	SemanticTarget() string
}

// VoteOperation casts or removes a vote on a post or comment.
// Weight is in basis points: 10000 is a full upvote, 0 removes the vote.
type VoteOperation struct {
	Voter    string `json:"voter"`
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
	Weight   int16  `json:"weight"`
}

func (op VoteOperation) Type() string                 { return "vote" }
func (op VoteOperation) RequiredAuthority() Authority { return AuthorityPosting }
func (op VoteOperation) SemanticTarget() string {
	return "vote/" + op.Voter + "/" + op.Author + "/" + op.Permlink
}

// CommentOperation creates or edits a post (empty parent author) or a
// reply (parent author set). Edits reuse the author+permlink of the
// original.
type CommentOperation struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	JSONMetadata   string `json:"json_metadata"`
}

func (op CommentOperation) Type() string                 { return "comment" }
func (op CommentOperation) RequiredAuthority() Authority { return AuthorityPosting }
func (op CommentOperation) SemanticTarget() string {
	return "comment/" + op.Author + "/" + op.ParentAuthor + "/" + op.ParentPermlink
}

// CustomJSONOperation carries structured plugin data (follows, reshares).
type CustomJSONOperation struct {
	RequiredAuths        []string `json:"required_auths"`
	RequiredPostingAuths []string `json:"required_posting_auths"`
	ID                   string   `json:"id"`
	JSON                 string   `json:"json"`
}

func (op CustomJSONOperation) Type() string { return "custom_json" }

func (op CustomJSONOperation) RequiredAuthority() Authority {
	if len(op.RequiredAuths) > 0 {
		return AuthorityActive
	}
	return AuthorityPosting
}

func (op CustomJSONOperation) SemanticTarget() string {
	accounts := append(append([]string{}, op.RequiredAuths...), op.RequiredPostingAuths...)
	// The payload is part of the target: two different follow payloads from
	// the same account are distinct effects, but byte-identical ones race.
	return "custom/" + op.ID + "/" + strings.Join(accounts, ",") + "/" + op.JSON
}

// AccountUpdate2Operation updates account metadata. Updating only the
// posting metadata needs posting authority; touching the top-level
// metadata requires active.
type AccountUpdate2Operation struct {
	Account             string `json:"account"`
	JSONMetadata        string `json:"json_metadata"`
	PostingJSONMetadata string `json:"posting_json_metadata"`
	Extensions          []any  `json:"extensions"`
}

func (op AccountUpdate2Operation) Type() string { return "account_update2" }

func (op AccountUpdate2Operation) RequiredAuthority() Authority {
	if op.JSONMetadata != "" {
		return AuthorityActive
	}
	return AuthorityPosting
}

func (op AccountUpdate2Operation) SemanticTarget() string {
	return "profile/" + op.Account
}

// HighestAuthority returns the strongest authority any of the operations
// requires; a transaction is signed once at that tier.
func HighestAuthority(ops []Operation) Authority {
	for _, op := range ops {
		if op.RequiredAuthority() == AuthorityActive {
			return AuthorityActive
		}
	}
	return AuthorityPosting
}

// WireOperations renders operations as the [type, body] pairs the
// broadcast API expects.
func WireOperations(ops []Operation) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(ops))
	for _, op := range ops {
		pair, err := json.Marshal([2]any{op.Type(), op})
		if err != nil {
			return nil, fmt.Errorf("chain: marshal %s operation: %w", op.Type(), err)
		}
		out = append(out, pair)
	}
	return out, nil
}
