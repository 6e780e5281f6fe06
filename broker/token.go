package broker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/skip2/go-qrcode"

	"hive-client/chain"
)

// TokenStrategy broadcasts through an external signing service that
// holds an offline grant for the account. The service authenticates
// the bearer token, signs server-side and submits.
type TokenStrategy struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewTokenStrategy points at a signing service. baseURL is the service
// root, token the bearer credential previously granted.
func NewTokenStrategy(baseURL, token string) *TokenStrategy {
	return &TokenStrategy{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *TokenStrategy) Name() string { return "token" }

type tokenBroadcastRequest struct {
	Operations []json.RawMessage `json:"operations"`
	Authority  string            `json:"authority"`
}

type tokenBroadcastResponse struct {
	TxID     string          `json:"id"`
	BlockNum uint32          `json:"block_num"`
	Error    string          `json:"error"`
	Result   json.RawMessage `json:"result"`
}

func (s *TokenStrategy) Broadcast(ctx context.Context, ops []chain.Operation, authority chain.Authority) (*Result, error) {
	if s.token == "" {
		return nil, ErrNoCredential
	}
	wire, err := chain.WireOperations(ops)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(tokenBroadcastRequest{
		Operations: wire,
		Authority:  string(authority),
	})
	if err != nil {
		return nil, fmt.Errorf("broker: encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/broadcast", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("broker: token service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &AuthorizationError{Strategy: s.Name(), Reason: "token rejected by signing service"}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("broker: token service response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("broker: token service status %d: %s", resp.StatusCode, raw)
	}

	var decoded tokenBroadcastResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("broker: decode token response: %w", err)
	}
	if decoded.Error != "" {
		return nil, &AuthorizationError{Strategy: s.Name(), Reason: decoded.Error}
	}
	return &Result{TxID: decoded.TxID, BlockNum: decoded.BlockNum, Raw: decoded.Result}, nil
}

// HotSignLink builds the service URL a user opens to approve ops
// interactively when no token is held yet.
func (s *TokenStrategy) HotSignLink(ops []chain.Operation, redirect string) (string, error) {
	wire, err := chain.WireOperations(ops)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(wire)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("ops", base64.URLEncoding.EncodeToString(encoded))
	if redirect != "" {
		q.Set("redirect_uri", redirect)
	}
	return s.baseURL + "/sign/ops?" + q.Encode(), nil
}

// SigningLinkQR renders a hot-sign link as a PNG QR code so the
// approval can be completed on a second device.
func (s *TokenStrategy) SigningLinkQR(ops []chain.Operation, redirect string, size int) ([]byte, error) {
	link, err := s.HotSignLink(ops, redirect)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("broker: render signing QR: %w", err)
	}
	return png, nil
}
