// Package entityextract pulls concepts and relationships out of chunk text
// using a generation model, for the graph mirror the indexer maintains
// alongside the vector store.
package entityextract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"compendium/internal/resilience"
)

// Concept is a named entity mentioned in a chunk.
type Concept struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
}

// Relationship links two concepts discovered in the same chunk.
type Relationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Result is the extraction output for one chunk.
type Result struct {
	Concepts      []Concept      `json:"concepts"`
	Relationships []Relationship `json:"relationships"`
}

// Generator produces raw text completions from a prompt. Each provider
// backend (Anthropic, OpenAI, Gemini) implements this against its own SDK.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Extractor is the public entry point used by the indexer.
type Extractor interface {
	Extract(ctx context.Context, chunkText string) (Result, error)
}

type llmExtractor struct {
	gen      Generator
	pipeline *resilience.Pipeline
}

// New wraps gen behind the embedding resilience pipeline so a flaky
// generation backend can't stall indexing.
func New(gen Generator) Extractor {
	return &llmExtractor{gen: gen, pipeline: resilience.New(resilience.EmbeddingPipeline())}
}

const extractionPrompt = `Extract the concepts and relationships mentioned in the following text.
Respond with ONLY a JSON object of the form:
{"concepts":[{"name":"...","description":"...","category":"...","aliases":["..."]}],"relationships":[{"source":"...","target":"...","label":"..."}]}
Use empty arrays if none are found. Do not include any text outside the JSON object.

Text:
%s`

// Extract is best-effort: a failure of the generation call or a malformed
// response logs a warning and returns a zero Result rather than failing
// the caller's indexing operation.
func (e *llmExtractor) Extract(ctx context.Context, chunkText string) (Result, error) {
	if strings.TrimSpace(chunkText) == "" {
		return Result{}, nil
	}

	prompt := fmt.Sprintf(extractionPrompt, chunkText)
	out, err := e.pipeline.Do(ctx, func(ctx context.Context) (any, error) {
		return e.gen.Generate(ctx, prompt)
	})
	if err != nil {
		log.Warn().Err(err).Msg("entity extraction generation failed, skipping")
		return Result{}, nil
	}

	raw, _ := out.(string)
	result, err := parseResult(raw)
	if err != nil {
		log.Warn().Err(err).Str("response", raw).Msg("entity extraction response was not valid JSON, skipping")
		return Result{}, nil
	}
	return result, nil
}

func parseResult(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	// Models occasionally wrap the JSON object in a fenced code block despite
	// instructions; strip it before decoding.
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(raw, "```")
		raw = strings.TrimSpace(raw)
	}

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Result{}, err
	}
	return result, nil
}
