package social

import (
	"log/slog"

	"hive-client/broker"
	"hive-client/cache"
	"hive-client/rpc"
)

// Service bundles the dependencies every content operation needs. All
// collaborators are injected; the zero value is unusable.
type Service struct {
	client   *rpc.Client
	store    *cache.Store
	broker   *broker.Broker
	ttl      cache.TTLProfile
	pageSize int
	logger   *slog.Logger
}

// Options tunes a Service.
type Options struct {
	// PageSize is the default feed page length (default 20).
	PageSize int
	// TTL overrides the stock cache lifetimes.
	TTL *cache.TTLProfile
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewService wires a content service. store and b may be nil for
// read-only, uncached use.
func NewService(client *rpc.Client, store *cache.Store, b *broker.Broker, opts Options) *Service {
	ttl := cache.DefaultTTLProfile()
	if opts.TTL != nil {
		ttl = *opts.TTL
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:   client,
		store:    store,
		broker:   b,
		ttl:      ttl,
		pageSize: pageSize,
		logger:   logger,
	}
}
