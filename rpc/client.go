package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config configures an endpoint pool.
type Config struct {
	// Endpoints is the ordered node list. At least one is required.
	Endpoints []string
	// RetryBudget is the total number of attempts per call (default 3).
	RetryBudget int
	// CallTimeout bounds each individual attempt (default 30s).
	CallTimeout time.Duration
	// RatePerSecond paces requests per endpoint; 0 disables pacing.
	RatePerSecond float64
	// RateBurst is the limiter burst size (default 1 when pacing is on).
	RateBurst int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a failover JSON-RPC client over an ordered endpoint pool.
//
// Rotation is sticky: a failure advances the current endpoint index and
// a success leaves it alone, so a degraded node is naturally avoided
// until the pool cycles back to it.
type Client struct {
	endpoints []string
	budget    int
	timeout   time.Duration
	logger    *slog.Logger

	http Transport
	ws   Transport

	mu       sync.Mutex
	current  int
	limiters map[string]*rate.Limiter

	nextID atomic.Uint64

	callsTotal    atomic.Int64
	retriesTotal  atomic.Int64
	failuresTotal atomic.Int64
}

// New validates the configuration and builds a pool. An empty endpoint
// list is a configuration error, fatal at startup by design.
func New(cfg Config) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("rpc: endpoint pool must not be empty")
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = 3
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{
		endpoints: append([]string(nil), cfg.Endpoints...),
		budget:    cfg.RetryBudget,
		timeout:   cfg.CallTimeout,
		logger:    cfg.Logger,
		http:      NewHTTPTransport(cfg.CallTimeout),
		ws:        NewWSTransport(),
		limiters:  make(map[string]*rate.Limiter),
	}

	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		for _, ep := range c.endpoints {
			c.limiters[ep] = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
		}
	}
	return c, nil
}

// Active returns the endpoint the next call will try first.
func (c *Client) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoints[c.current]
}

// Call issues method with params, rotating through the pool on failure.
// After the retry budget is exhausted it returns the error from the
// final attempt, either a *NetworkError or a *RemoteError.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.callsTotal.Add(1)
	if params == nil {
		params = []any{}
	}

	req := &Request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	var lastErr error
	for attempt := 1; attempt <= c.budget; attempt++ {
		endpoint := c.Active()

		if lim := c.limiters[endpoint]; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return nil, &NetworkError{Endpoint: endpoint, Attempts: attempt, Err: err}
			}
		}

		result, err := c.attempt(ctx, endpoint, req, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		c.logger.Warn("rpc: endpoint failed, rotating",
			"endpoint", endpoint, "method", method, "attempt", attempt, "error", err)
		c.retriesTotal.Add(1)
		c.rotate()

		if ctx.Err() != nil {
			break
		}
	}

	c.failuresTotal.Add(1)
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, endpoint string, req *Request, attempt int) (json.RawMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.transportFor(endpoint).RoundTrip(callCtx, endpoint, req)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Attempts: attempt, Err: err}
	}
	if resp.Error != nil {
		return nil, &RemoteError{
			Endpoint: endpoint,
			Attempts: attempt,
			Code:     resp.Error.Code,
			Message:  resp.Error.Message,
		}
	}
	return resp.Result, nil
}

// CallInto unmarshals the call result into out.
func (c *Client) CallInto(ctx context.Context, method string, params any, out any) error {
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("rpc: decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) rotate() {
	c.mu.Lock()
	c.current = (c.current + 1) % len(c.endpoints)
	c.mu.Unlock()
}

func (c *Client) transportFor(endpoint string) Transport {
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return c.ws
	}
	return c.http
}

// Close releases pooled connections.
func (c *Client) Close() {
	if ws, ok := c.ws.(*WSTransport); ok {
		ws.Close()
	}
}

// Stats is a snapshot of the pool's counters.
type Stats struct {
	Calls    int64
	Retries  int64
	Failures int64
}

// Stats returns current counter values.
func (c *Client) Stats() Stats {
	return Stats{
		Calls:    c.callsTotal.Load(),
		Retries:  c.retriesTotal.Load(),
		Failures: c.failuresTotal.Load(),
	}
}
