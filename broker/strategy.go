// Package broker authorizes and broadcasts signed chain operations.
// One of three mutually exclusive credential strategies does the
// signing: a delegated signer app, an external token service, or a
// locally held key. The broker itself adds in-flight de-duplication so
// a double-tapped action broadcasts once.
package broker

import (
	"context"
	"encoding/json"

	"hive-client/chain"
)

// Result is the outcome of a broadcast.
type Result struct {
	// TxID is the transaction ID assigned by the chain, when known.
	TxID string `json:"id,omitempty"`
	// BlockNum is the block the transaction landed in, when known.
	BlockNum uint32 `json:"block_num,omitempty"`
	// Raw is the backend's full response for callers that need more.
	Raw json.RawMessage `json:"-"`
}

// CredentialStrategy signs and broadcasts a set of operations under
// one authority level. Implementations are safe for concurrent use.
type CredentialStrategy interface {
	// Name identifies the strategy in errors and logs.
	Name() string
	// Broadcast signs ops at the given authority and submits them.
	// Cancellation by the user returns ErrCancelled; a backend refusal
	// returns *AuthorizationError.
	Broadcast(ctx context.Context, ops []chain.Operation, authority chain.Authority) (*Result, error)
}
