package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "APP_ENV", "DB_MAX_CONNS", "CACHE_BACKEND", "CHAIN_WRITER_MODE", "AUTH_CHAIN_ID", "WATCHER_MAX_ATTEMPTS", "WORLD_API_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8090" {
		t.Fatalf("expected default port 8090, got %s", cfg.Port)
	}
	if cfg.Env != "local" || cfg.IsProduction() {
		t.Fatalf("expected local env, got %s", cfg.Env)
	}
	if cfg.DBMaxConns != 25 {
		t.Fatalf("expected default DBMaxConns 25, got %d", cfg.DBMaxConns)
	}
	if cfg.CacheBackend != "memory" || cfg.ChainWriterMode != "stub" {
		t.Fatalf("expected memory cache and stub writer, got %s/%s", cfg.CacheBackend, cfg.ChainWriterMode)
	}
	if cfg.AuthChainID != 480 {
		t.Fatalf("expected World Chain id 480, got %d", cfg.AuthChainID)
	}
	if cfg.WatcherMaxAttempts != 90 || cfg.WatcherPollInterval != 2*time.Second {
		t.Fatalf("unexpected watcher defaults: %d %s", cfg.WatcherMaxAttempts, cfg.WatcherPollInterval)
	}
	if cfg.WorldAPIURL != "https://developer.worldcoin.org" {
		t.Fatalf("unexpected world api url %s", cfg.WorldAPIURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("APP_ENV", "production")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("CHAIN_READ_TIMEOUT", "5s")
	t.Setenv("SUBGRAPH_MOCK", "true")
	t.Setenv("WORLD_APP_ID", "app_staging_123")

	cfg := Load()

	if cfg.Addr() != ":9000" {
		t.Fatalf("expected :9000, got %s", cfg.Addr())
	}
	if !cfg.IsProduction() {
		t.Fatalf("production env not detected")
	}
	if cfg.CacheBackend != "redis" {
		t.Fatalf("cache backend should be lower-cased, got %s", cfg.CacheBackend)
	}
	if cfg.ChainReadTimeout != 5*time.Second || !cfg.SubgraphMock {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.WorldAppID != "app_staging_123" {
		t.Fatalf("world app id not applied")
	}
}
