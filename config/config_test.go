package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Endpoints) == 0 || cfg.RetryBudget != 3 || cfg.PageSize != 20 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.CallTimeout() != 30*time.Second {
		t.Errorf("timeout = %v", cfg.CallTimeout())
	}
}

func TestLoadFileLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"page_size": 50, "endpoints": ["https://node.example"]}`), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PageSize != 50 {
		t.Errorf("page size = %d", cfg.PageSize)
	}
	if len(cfg.Endpoints) != 1 || cfg.Endpoints[0] != "https://node.example" {
		t.Errorf("endpoints = %v", cfg.Endpoints)
	}
	// Untouched fields keep their defaults.
	if cfg.RetryBudget != 3 {
		t.Errorf("retry budget = %d", cfg.RetryBudget)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HIVE_ENDPOINTS", "https://a.example, https://b.example")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Endpoints) != 2 || cfg.Endpoints[1] != "https://b.example" {
		t.Errorf("endpoints = %v", cfg.Endpoints)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("redis url = %q", cfg.RedisURL)
	}
}

func TestLoadRejectsBadChainID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"chain_id": "zz"}`), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed chain id")
	}
}
