package entityextract

import (
	"fmt"
	"strings"
)

// Config selects and configures a Generator backend.
type Config struct {
	Provider string // "anthropic" (default), "openai", or "gemini"
	APIKey   string
	Model    string
	BaseURL  string
}

// NewGenerator builds the Generator named by cfg.Provider, matching the
// provider-selection pattern used for the embedding and GraphRAG synthesis
// backends.
func NewGenerator(cfg Config) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "anthropic":
		return newAnthropicGenerator(cfg), nil
	case "openai":
		return newOpenAIGenerator(cfg), nil
	case "gemini", "google":
		return newGeminiGenerator(cfg)
	default:
		return nil, fmt.Errorf("unsupported entity extraction provider: %q", cfg.Provider)
	}
}
