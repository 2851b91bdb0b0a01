// Package config loads compendium's server configuration the way the
// teacher's config layer does: compiled-in defaults, overlaid by an
// optional YAML file, overlaid by environment variables (with .env
// support for local development).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	yaml "gopkg.in/yaml.v3"
)

// RepositoryConfig selects the relational store backend.
type RepositoryConfig struct {
	Backend          string `yaml:"backend"` // "memory" (default) or "postgres"
	ConnectionString string `yaml:"connection_string"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	Backend    string `yaml:"backend"` // "memory" (default), "postgres", or "qdrant"
	DSN        string `yaml:"dsn"`
	Collection string `yaml:"collection"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "http" (default) or "openai"
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Path     string `yaml:"path"`
	Dim      int    `yaml:"dim"`
}

// EntityExtractionConfig selects the concept/relationship extraction
// backend used during indexing and GraphRAG synthesis.
type EntityExtractionConfig struct {
	Provider string `yaml:"provider"` // "anthropic" (default), "openai", or "gemini"
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// RepoSyncConfig describes one repository the git sync runner keeps in
// sync with its indexed representation.
type RepoSyncConfig struct {
	Name           string   `yaml:"name"`
	URL            string   `yaml:"url"`
	LocalPath      string   `yaml:"local_path"`
	Branch         string   `yaml:"branch"`
	Project        string   `yaml:"project"`
	MonitoredPaths []string `yaml:"monitored_paths,omitempty"`
}

// GitSyncConfig configures the periodic sync scheduler.
type GitSyncConfig struct {
	IntervalSeconds int              `yaml:"interval_seconds"`
	Repos           []RepoSyncConfig `yaml:"repos,omitempty"`
}

// RateLimitConfig configures the per-(tool, client) token bucket that gates
// tool invocations.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerHour   int `yaml:"per_hour"`
}

// KafkaConfig configures the optional event-bus fan-out sink.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic"`
}

// Config is compendium's full runtime configuration.
type Config struct {
	DataPath        string                  `yaml:"data_path"`
	Repository      RepositoryConfig        `yaml:"repository"`
	Vectors         VectorStoreConfig       `yaml:"vectors"`
	ExternalVectors VectorStoreConfig       `yaml:"external_vectors"`
	Embedding       EmbeddingConfig         `yaml:"embedding"`
	EntityExtract   EntityExtractionConfig  `yaml:"entity_extraction"`
	GitSync         GitSyncConfig           `yaml:"git_sync"`
	Kafka           KafkaConfig             `yaml:"kafka"`
	RateLimit       RateLimitConfig         `yaml:"rate_limit"`
	WatchDebounceMS int                     `yaml:"watch_debounce_ms"`
}

func defaultConfig() Config {
	return Config{
		DataPath:        "./data",
		Repository:      RepositoryConfig{Backend: "memory"},
		Vectors:         VectorStoreConfig{Backend: "memory", Dimensions: 1536, Metric: "cosine"},
		Embedding:       EmbeddingConfig{Provider: "http", Dim: 1536},
		EntityExtract:   EntityExtractionConfig{Provider: "anthropic"},
		GitSync:         GitSyncConfig{IntervalSeconds: 300},
		RateLimit:       RateLimitConfig{PerMinute: 60, PerHour: 1000},
		WatchDebounceMS: 500,
	}
}

// Load builds a Config from compiled-in defaults, an optional YAML file at
// path (skipped silently if path is empty or the file does not exist), and
// environment variable overrides, in that order — the same
// defaults-then-file-then-env layering the teacher's own config loader
// applies. .env is loaded into the process environment first via
// godotenv, for local development convenience.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	log.Info().Str("repository_backend", cfg.Repository.Backend).
		Str("vector_backend", cfg.Vectors.Backend).
		Str("embedding_provider", cfg.Embedding.Provider).
		Msg("config: loaded")

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("COMPENDIUM_DATA_PATH")); v != "" {
		cfg.DataPath = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPENDIUM_REPOSITORY_BACKEND")); v != "" {
		cfg.Repository.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPENDIUM_DATABASE_URL")); v != "" {
		cfg.Repository.ConnectionString = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPENDIUM_VECTOR_BACKEND")); v != "" {
		cfg.Vectors.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPENDIUM_VECTOR_DSN")); v != "" {
		cfg.Vectors.DSN = v
	}
	if v := intFromEnv("COMPENDIUM_VECTOR_DIMENSIONS"); v > 0 {
		cfg.Vectors.Dimensions = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPENDIUM_EMBEDDING_PROVIDER")); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPENDIUM_EMBEDDING_API_KEY")); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPENDIUM_EMBEDDING_MODEL")); v != "" {
		cfg.Embedding.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" && cfg.EntityExtract.APIKey == "" {
		cfg.EntityExtract.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("COMPENDIUM_ENTITY_PROVIDER")); v != "" {
		cfg.EntityExtract.Provider = v
	}
	if v := intFromEnv("COMPENDIUM_GITSYNC_INTERVAL_SECONDS"); v > 0 {
		cfg.GitSync.IntervalSeconds = v
	}
	if v := intFromEnv("COMPENDIUM_RATE_LIMIT_PER_MINUTE"); v > 0 {
		cfg.RateLimit.PerMinute = v
	}
	if v := intFromEnv("COMPENDIUM_RATE_LIMIT_PER_HOUR"); v > 0 {
		cfg.RateLimit.PerHour = v
	}
	if v := intFromEnv("COMPENDIUM_WATCH_DEBOUNCE_MS"); v > 0 {
		cfg.WatchDebounceMS = v
	}
}

// WatchDebounce returns the configured debounce delay as a time.Duration.
func (c Config) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}

// GitSyncInterval returns the configured sync interval as a time.Duration.
func (c Config) GitSyncInterval() time.Duration {
	return time.Duration(c.GitSync.IntervalSeconds) * time.Second
}

func intFromEnv(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
