// Package notify reconstructs a notifications feed for an account from
// its raw on-chain operation history. The chain keeps no notification
// endpoint; everything here is derived client-side from
// get_account_history and cached.
package notify

import (
	"encoding/json"
	"fmt"

	"hive-client/chain"
)

// HistoryEntry is one account-history item. The wire shape is a
// two-element array: [sequence, {timestamp, op: [name, body], ...}].
type HistoryEntry struct {
	Sequence  int64
	Timestamp chain.Time
	OpName    string
	OpBody    json.RawMessage
}

func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	var outer [2]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return fmt.Errorf("notify: history entry shape: %w", err)
	}
	if err := json.Unmarshal(outer[0], &e.Sequence); err != nil {
		return fmt.Errorf("notify: history sequence: %w", err)
	}

	var inner struct {
		Timestamp chain.Time         `json:"timestamp"`
		Op        [2]json.RawMessage `json:"op"`
	}
	if err := json.Unmarshal(outer[1], &inner); err != nil {
		return fmt.Errorf("notify: history body: %w", err)
	}
	if err := json.Unmarshal(inner.Op[0], &e.OpName); err != nil {
		return fmt.Errorf("notify: history op name: %w", err)
	}
	e.Timestamp = inner.Timestamp
	e.OpBody = inner.Op[1]
	return nil
}

// voteOp, commentOp and customJSONOp mirror the operation payloads the
// scanner classifies. Fields not needed for classification are omitted.
type voteOp struct {
	Voter    string `json:"voter"`
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
	Weight   int    `json:"weight"`
}

type commentOp struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
	Body           string `json:"body"`
}

type customJSONOp struct {
	ID                   string   `json:"id"`
	JSON                 string   `json:"json"`
	RequiredPostingAuths []string `json:"required_posting_auths"`
}

// followPayload is the decoded body of a custom_json "follow" plugin
// message: ["follow", {follower, following, what}] or
// ["reblog", {account, author, permlink}].
type followPayload struct {
	Kind string
	Body json.RawMessage
}

func decodeFollowPayload(raw string) (*followPayload, error) {
	var pair [2]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		return nil, err
	}
	var p followPayload
	if err := json.Unmarshal(pair[0], &p.Kind); err != nil {
		return nil, err
	}
	p.Body = pair[1]
	return &p, nil
}
