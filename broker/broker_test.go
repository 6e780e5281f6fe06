package broker

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"hive-client/chain"
	"hive-client/rpc"
)

func testSigningKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	raw, err := hex.DecodeString("edc90d06fee17615229c8526dc005d959e4af3bdc0b48c5776c951bcafedec85")
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	key, _ := btcec.PrivKeyFromBytes(raw)
	return key
}

// blockingStrategy holds every broadcast until released, so tests can
// observe the in-flight window.
type blockingStrategy struct {
	started chan struct{}
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (s *blockingStrategy) Name() string { return "blocking" }

func (s *blockingStrategy) Broadcast(ctx context.Context, ops []chain.Operation, authority chain.Authority) (*Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	s.started <- struct{}{}
	<-s.release
	return &Result{TxID: "abc123"}, nil
}

func TestBroadcastRejectsDuplicateInFlight(t *testing.T) {
	strategy := &blockingStrategy{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	b := New(strategy, nil)

	vote := chain.VoteOperation{Voter: "alice", Author: "bob", Permlink: "post", Weight: 10000}

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Broadcast(context.Background(), []chain.Operation{vote})
		errCh <- err
	}()
	<-strategy.started

	// Identical action while the first is awaiting authorization.
	_, err := b.Broadcast(context.Background(), []chain.Operation{vote})
	if !errors.Is(err, ErrDuplicateInFlight) {
		t.Fatalf("expected ErrDuplicateInFlight, got %v", err)
	}

	close(strategy.release)
	if err := <-errCh; err != nil {
		t.Fatalf("first broadcast: %v", err)
	}

	// After completion the same action is acceptable again.
	strategy.release = make(chan struct{})
	close(strategy.release)
	go func() { <-strategy.started }()
	if _, err := b.Broadcast(context.Background(), []chain.Operation{vote}); err != nil {
		t.Fatalf("post-completion broadcast: %v", err)
	}

	if stats := b.Stats(); stats.Duplicates != 1 || stats.Broadcasts != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestBroadcastDifferentTargetsRunConcurrently(t *testing.T) {
	strategy := &blockingStrategy{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	b := New(strategy, nil)

	errCh := make(chan error, 2)
	for _, permlink := range []string{"post-1", "post-2"} {
		vote := chain.VoteOperation{Voter: "alice", Author: "bob", Permlink: permlink, Weight: 10000}
		go func() {
			_, err := b.Broadcast(context.Background(), []chain.Operation{vote})
			errCh <- err
		}()
	}
	<-strategy.started
	<-strategy.started
	close(strategy.release)
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("broadcast %d: %v", i, err)
		}
	}
}

type cancelPrompt struct{}

func (cancelPrompt) RequestSignature(ctx context.Context, ops []json.RawMessage, authority chain.Authority) (*PromptResponse, error) {
	return &PromptResponse{Cancelled: true}, nil
}

func TestDelegatedCancellationIsNotAFailure(t *testing.T) {
	b := New(NewDelegatedStrategy(cancelPrompt{}), nil)
	vote := chain.VoteOperation{Voter: "alice", Author: "bob", Permlink: "p", Weight: 100}

	_, err := b.Broadcast(context.Background(), []chain.Operation{vote})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if IsAuthorization(err) {
		t.Error("cancellation must not look like an authorization failure")
	}
	if stats := b.Stats(); stats.Cancels != 1 || stats.Broadcasts != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestBroadcastEmptyOpsIsValidationError(t *testing.T) {
	b := New(NewDelegatedStrategy(cancelPrompt{}), nil)
	_, err := b.Broadcast(context.Background(), nil)
	var ve *chain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTokenStrategyRejectedTokenIsAuthorizationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "tx1"})
	}))
	defer srv.Close()

	vote := []chain.Operation{chain.VoteOperation{Voter: "a", Author: "b", Permlink: "p", Weight: 1}}

	bad := NewTokenStrategy(srv.URL, "expired")
	_, err := bad.Broadcast(context.Background(), vote, chain.AuthorityPosting)
	if !IsAuthorization(err) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}

	good := NewTokenStrategy(srv.URL, "good")
	result, err := good.Broadcast(context.Background(), vote, chain.AuthorityPosting)
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if result.TxID != "tx1" {
		t.Errorf("tx id = %q", result.TxID)
	}
}

func TestTokenStrategyHotSignLinkAndQR(t *testing.T) {
	s := NewTokenStrategy("https://signer.example", "")
	ops := []chain.Operation{chain.VoteOperation{Voter: "a", Author: "b", Permlink: "p", Weight: 1}}

	link, err := s.HotSignLink(ops, "https://app.example/done")
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if link[:len("https://signer.example/sign/ops?")] != "https://signer.example/sign/ops?" {
		t.Errorf("link = %s", link)
	}

	png, err := s.SigningLinkQR(ops, "", 128)
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	// PNG magic header.
	if len(png) < 8 || png[1] != 'P' || png[2] != 'N' || png[3] != 'G' {
		t.Error("expected PNG output")
	}
}

func TestLocalKeyStrategyBroadcast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpc.Request
		json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "condenser_api.get_dynamic_global_properties":
			resp["result"] = map[string]any{
				"head_block_number": 50000000,
				"head_block_id":     "02faf08000000000000000000000000000000000",
			}
		case "condenser_api.broadcast_transaction_synchronous":
			// The transaction must arrive signed.
			var params []struct {
				Signatures []string `json:"signatures"`
			}
			rawParams, _ := json.Marshal(req.Params)
			json.Unmarshal(rawParams, &params)
			if len(params) != 1 || len(params[0].Signatures) != 1 {
				resp["error"] = map[string]any{"code": -32000, "message": "missing signature"}
				break
			}
			resp["result"] = map[string]any{"id": "deadbeef", "block_num": 50000001}
		default:
			resp["error"] = map[string]any{"code": -32601, "message": "unknown method"}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := rpc.New(rpc.Config{Endpoints: []string{srv.URL}, CallTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("rpc client: %v", err)
	}

	chainID, err := chain.DecodeChainID(chain.MainnetChainID)
	if err != nil {
		t.Fatalf("chain id: %v", err)
	}
	wif := chain.EncodeWIF(testSigningKey(t))
	strategy, err := NewLocalKeyStrategy(client, chainID, map[chain.Authority]string{
		chain.AuthorityPosting: wif,
	})
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}

	b := New(strategy, nil)
	result, err := b.Broadcast(context.Background(), []chain.Operation{
		chain.VoteOperation{Voter: "alice", Author: "bob", Permlink: "p", Weight: 10000},
	})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if result.TxID != "deadbeef" || result.BlockNum != 50000001 {
		t.Errorf("result = %+v", result)
	}

	// No active key loaded, so an active-tier action has no credential.
	_, err = strategy.Broadcast(context.Background(), []chain.Operation{
		chain.CustomJSONOperation{RequiredAuths: []string{"alice"}, ID: "x", JSON: "{}"},
	}, chain.AuthorityActive)
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}
}
