// Package config holds the application-level settings for a client
// built on this module: node endpoints, cache lifetimes, pagination
// defaults and scan limits. Settings load from a JSON file with
// environment overrides for deployment knobs.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"hive-client/cache"
	"hive-client/chain"
)

// Config is the full settings document.
type Config struct {
	// Endpoints is the ordered RPC node pool.
	Endpoints []string `json:"endpoints"`
	// RetryBudget is the attempts per RPC call.
	RetryBudget int `json:"retry_budget"`
	// CallTimeoutSeconds bounds each RPC attempt.
	CallTimeoutSeconds int `json:"call_timeout_seconds"`
	// RatePerSecond paces requests per endpoint; 0 disables pacing.
	RatePerSecond float64 `json:"rate_per_second"`

	// PageSize is the default feed page length.
	PageSize int `json:"page_size"`

	// ChainID identifies the network for transaction signing.
	ChainID string `json:"chain_id"`

	// TTL holds cache lifetimes per content stream.
	TTL cache.TTLProfile `json:"ttl"`

	// HistoryBatch is the initial notification scan window.
	HistoryBatch int `json:"history_batch"`
	// HistoryMaxIterations caps one notification scan.
	HistoryMaxIterations int `json:"history_max_iterations"`

	// RedisURL, when set, backs the cache with Redis instead of memory.
	RedisURL string `json:"redis_url"`
	// DataPath, when set, stores durable state (drafts, read flags) in
	// a SQLite database at this path.
	DataPath string `json:"data_path"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Endpoints: []string{
			"https://api.hive.blog",
			"https://api.deathwing.me",
			"https://anyx.io",
		},
		RetryBudget:          3,
		CallTimeoutSeconds:   30,
		PageSize:             20,
		ChainID:              chain.MainnetChainID,
		TTL:                  cache.DefaultTTLProfile(),
		HistoryBatch:         1000,
		HistoryMaxIterations: 50,
	}
}

// CallTimeout returns the per-attempt timeout as a duration.
func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// Load reads path, layering the file over defaults and environment
// overrides over the file. A missing file is not an error; the
// defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			slog.Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if nodes := os.Getenv("HIVE_ENDPOINTS"); nodes != "" {
		cfg.Endpoints = splitList(nodes)
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.RedisURL = url
	}
	if path := os.Getenv("HIVE_DATA_PATH"); path != "" {
		cfg.DataPath = path
	}
	if id := os.Getenv("HIVE_CHAIN_ID"); id != "" {
		cfg.ChainID = id
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c Config) validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("config: endpoint list is empty")
	}
	if _, err := chain.DecodeChainID(c.ChainID); err != nil {
		return err
	}
	return nil
}
