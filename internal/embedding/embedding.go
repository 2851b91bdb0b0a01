// Package embedding converts chunk text into fixed-dimension vectors behind
// a pluggable Embedder interface, with a content-hash-keyed cache in front
// of whichever backend is configured.
package embedding

import (
	"context"

	"compendium/internal/errs"
)

// Embedder converts a batch of texts into embedding vectors.
type Embedder interface {
	// EmbedBatch returns one vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name identifies the backing model, used as part of the cache key so
	// switching models never serves a stale vector from a different model.
	Name() string
	// Dimension reports the embedding's fixed dimensionality.
	Dimension() int
}

// Config selects and configures an Embedder backend.
type Config struct {
	Provider string // "http" or "openai"
	BaseURL  string
	APIKey   string
	Model    string
	Path     string // used by the "http" provider; defaults to "/v1/embeddings"
	Dim      int
}

// New builds the Embedder named by cfg.Provider, mirroring the provider
// factory's switch-on-name construction pattern.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", "http":
		return newHTTPEmbedder(cfg), nil
	case "openai":
		return newOpenAIEmbedder(cfg), nil
	default:
		return nil, errs.New(errs.KindInvalidArgument, "unknown embedding provider: "+cfg.Provider)
	}
}
