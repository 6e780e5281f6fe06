package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"hive-client/chain"
	"hive-client/rpc"
)

// LocalKeyStrategy signs with keys held in this process. Intended for
// bots and CLI tooling; interactive clients should prefer a delegated
// signer so keys stay out of the client.
type LocalKeyStrategy struct {
	client  *rpc.Client
	chainID []byte
	expiry  time.Duration
	keys    map[chain.Authority]*btcec.PrivateKey
}

// NewLocalKeyStrategy loads WIF keys per authority tier. Missing tiers
// are allowed; broadcasting at a tier with no key returns
// ErrNoCredential.
func NewLocalKeyStrategy(client *rpc.Client, chainID []byte, wifs map[chain.Authority]string) (*LocalKeyStrategy, error) {
	keys := make(map[chain.Authority]*btcec.PrivateKey, len(wifs))
	for authority, wif := range wifs {
		key, err := chain.DecodeWIF(wif)
		if err != nil {
			return nil, fmt.Errorf("broker: %s key: %w", authority, err)
		}
		keys[authority] = key
	}
	return &LocalKeyStrategy{
		client:  client,
		chainID: chainID,
		expiry:  time.Minute,
		keys:    keys,
	}, nil
}

func (s *LocalKeyStrategy) Name() string { return "local-key" }

type globalProperties struct {
	HeadBlockNumber uint32 `json:"head_block_number"`
	HeadBlockID     string `json:"head_block_id"`
}

func (s *LocalKeyStrategy) Broadcast(ctx context.Context, ops []chain.Operation, authority chain.Authority) (*Result, error) {
	key, ok := s.keys[authority]
	if !ok {
		return nil, ErrNoCredential
	}

	var props globalProperties
	if err := s.client.CallInto(ctx, "condenser_api.get_dynamic_global_properties", nil, &props); err != nil {
		return nil, err
	}

	tx, err := chain.NewTransaction(props.HeadBlockNumber, props.HeadBlockID, s.expiry, ops)
	if err != nil {
		return nil, err
	}
	if err := tx.Sign(key, s.chainID); err != nil {
		return nil, err
	}

	var resp struct {
		TxID     string `json:"id"`
		BlockNum uint32 `json:"block_num"`
	}
	raw, err := s.client.Call(ctx, "condenser_api.broadcast_transaction_synchronous", []any{tx})
	if err != nil {
		if remote, ok := err.(*rpc.RemoteError); ok && isAuthorityRejection(remote) {
			return nil, &AuthorizationError{Strategy: s.Name(), Reason: remote.Message}
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("broker: decode broadcast result: %w", err)
	}
	return &Result{TxID: resp.TxID, BlockNum: resp.BlockNum, Raw: raw}, nil
}

// isAuthorityRejection spots the node errors that mean the signature
// did not satisfy the required authority.
func isAuthorityRejection(err *rpc.RemoteError) bool {
	for _, marker := range []string{
		"missing required posting authority",
		"missing required active authority",
		"unsatisfied authority",
	} {
		if strings.Contains(err.Message, marker) {
			return true
		}
	}
	return false
}
