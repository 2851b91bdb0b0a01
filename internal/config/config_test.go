package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Repository.Backend != "memory" || cfg.Vectors.Backend != "memory" {
		t.Fatalf("expected memory backends by default, got %+v", cfg)
	}
	if cfg.WatchDebounce() != defaultConfig().WatchDebounce() {
		t.Fatalf("unexpected default debounce")
	}
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compendium.yaml")
	body := "repository:\n  backend: postgres\n  connection_string: postgres://x\nvectors:\n  backend: qdrant\n  dsn: http://localhost:6333\n  collection: docs\n  dimensions: 768\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Repository.Backend != "postgres" || cfg.Repository.ConnectionString != "postgres://x" {
		t.Fatalf("unexpected repository config: %+v", cfg.Repository)
	}
	if cfg.Vectors.Backend != "qdrant" || cfg.Vectors.Dimensions != 768 {
		t.Fatalf("unexpected vector config: %+v", cfg.Vectors)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Repository.Backend != "memory" {
		t.Fatalf("expected defaults preserved, got %+v", cfg)
	}
}

func TestLoad_RateLimitDefaultsAndEnvOverride(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RateLimit.PerMinute != 60 || cfg.RateLimit.PerHour != 1000 {
		t.Fatalf("unexpected default rate limit: %+v", cfg.RateLimit)
	}

	t.Setenv("COMPENDIUM_RATE_LIMIT_PER_MINUTE", "10")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RateLimit.PerMinute != 10 {
		t.Fatalf("expected env override for per-minute rate limit, got %+v", cfg.RateLimit)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compendium.yaml")
	body := "repository:\n  backend: memory\n  connection_string: postgres://file\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("COMPENDIUM_REPOSITORY_BACKEND", "postgres")
	t.Setenv("COMPENDIUM_DATABASE_URL", "postgres://env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Repository.Backend != "postgres" || cfg.Repository.ConnectionString != "postgres://env" {
		t.Fatalf("expected env override, got %+v", cfg.Repository)
	}
}
