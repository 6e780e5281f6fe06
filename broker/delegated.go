package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"hive-client/chain"
)

// SignPrompt is the bridge to a delegated signer application (a
// browser extension or keychain app holding the user's keys). The
// implementation shows the user a confirmation and reports back.
type SignPrompt interface {
	// RequestSignature presents ops for approval at the given
	// authority and blocks until the user responds or ctx ends.
	RequestSignature(ctx context.Context, ops []json.RawMessage, authority chain.Authority) (*PromptResponse, error)
}

// PromptResponse is the signer app's answer to a signature request.
type PromptResponse struct {
	Approved  bool            `json:"approved"`
	Cancelled bool            `json:"cancelled"`
	TxID      string          `json:"tx_id"`
	BlockNum  uint32          `json:"block_num"`
	Message   string          `json:"message"`
	Result    json.RawMessage `json:"result"`
}

// DelegatedStrategy hands signing to an external signer app via a
// SignPrompt. Keys never touch this process.
type DelegatedStrategy struct {
	prompt SignPrompt
}

// NewDelegatedStrategy wires a signer prompt.
func NewDelegatedStrategy(prompt SignPrompt) *DelegatedStrategy {
	return &DelegatedStrategy{prompt: prompt}
}

func (s *DelegatedStrategy) Name() string { return "delegated" }

func (s *DelegatedStrategy) Broadcast(ctx context.Context, ops []chain.Operation, authority chain.Authority) (*Result, error) {
	wire, err := chain.WireOperations(ops)
	if err != nil {
		return nil, err
	}
	resp, err := s.prompt.RequestSignature(ctx, wire, authority)
	if err != nil {
		return nil, fmt.Errorf("broker: signer app: %w", err)
	}
	switch {
	case resp.Cancelled:
		return nil, ErrCancelled
	case !resp.Approved:
		reason := resp.Message
		if reason == "" {
			reason = "request refused by signer app"
		}
		return nil, &AuthorizationError{Strategy: s.Name(), Reason: reason}
	}
	return &Result{TxID: resp.TxID, BlockNum: resp.BlockNum, Raw: resp.Result}, nil
}
