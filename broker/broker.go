package broker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"hive-client/chain"
)

// Broker routes operations through the configured credential strategy
// and rejects actions whose semantic targets are already being
// authorized. Authorization can take many seconds (a user staring at a
// prompt); without the in-flight set, a second tap would broadcast the
// same vote twice.
type Broker struct {
	strategy CredentialStrategy
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}

	broadcasts atomic.Int64
	duplicates atomic.Int64
	cancels    atomic.Int64
}

// New builds a broker over one strategy. Strategies are mutually
// exclusive per account; swapping credentials means building a new
// broker.
func New(strategy CredentialStrategy, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		strategy: strategy,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// StrategyName reports which credential strategy is active.
func (b *Broker) StrategyName() string {
	if b.strategy == nil {
		return "none"
	}
	return b.strategy.Name()
}

// Broadcast authorizes and submits ops at the weakest authority that
// satisfies all of them. An identical action already awaiting
// authorization returns ErrDuplicateInFlight immediately.
func (b *Broker) Broadcast(ctx context.Context, ops []chain.Operation) (*Result, error) {
	if b.strategy == nil {
		return nil, ErrNoCredential
	}
	if len(ops) == 0 {
		return nil, chain.NewValidationError("operations", "empty operation list")
	}

	key := actionKey(ops)
	if !b.acquire(key) {
		b.duplicates.Add(1)
		b.logger.Info("broker: duplicate action rejected", "action", key)
		return nil, ErrDuplicateInFlight
	}
	defer b.release(key)

	authority := chain.HighestAuthority(ops)
	result, err := b.strategy.Broadcast(ctx, ops, authority)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			b.cancels.Add(1)
			b.logger.Info("broker: signing cancelled", "action", key)
		} else {
			b.logger.Warn("broker: broadcast failed",
				"strategy", b.strategy.Name(), "action", key, "error", err)
		}
		return nil, err
	}

	b.broadcasts.Add(1)
	b.logger.Info("broker: broadcast confirmed",
		"strategy", b.strategy.Name(), "tx", result.TxID)
	return result, nil
}

// actionKey is the dedupe identity of an operation set: the sorted
// semantic targets, independent of operation order.
func actionKey(ops []chain.Operation) string {
	targets := make([]string, 0, len(ops))
	for _, op := range ops {
		targets = append(targets, op.SemanticTarget())
	}
	sort.Strings(targets)
	return strings.Join(targets, "|")
}

// acquire atomically claims key, reporting false if already held.
func (b *Broker) acquire(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, held := b.inflight[key]; held {
		return false
	}
	b.inflight[key] = struct{}{}
	return true
}

func (b *Broker) release(key string) {
	b.mu.Lock()
	delete(b.inflight, key)
	b.mu.Unlock()
}

// Stats is a snapshot of broker counters.
type Stats struct {
	Broadcasts int64
	Duplicates int64
	Cancels    int64
}

// Stats returns current counter values.
func (b *Broker) Stats() Stats {
	return Stats{
		Broadcasts: b.broadcasts.Load(),
		Duplicates: b.duplicates.Load(),
		Cancels:    b.cancels.Load(),
	}
}
