package embedding

import (
	"context"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"compendium/internal/errs"
)

// openAIEmbedder calls the OpenAI (or OpenAI-compatible) embeddings API via
// the official SDK client.
type openAIEmbedder struct {
	cfg    Config
	client sdk.Client
}

func newOpenAIEmbedder(cfg Config) *openAIEmbedder {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openAIEmbedder{cfg: cfg, client: sdk.NewClient(opts...)}
}

func (e *openAIEmbedder) Name() string   { return e.cfg.Model }
func (e *openAIEmbedder) Dimension() int { return e.cfg.Dim }

func (e *openAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := sdk.EmbeddingNewParams{
		Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: e.cfg.Model,
	}
	if e.cfg.Dim > 0 {
		params.Dimensions = sdk.Int(int64(e.cfg.Dim))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, errs.Wrap(errs.KindProviderUnavailable, "openai embeddings request failed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errs.New(errs.KindProviderContractViolation, "openai returned a mismatched embedding count")
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		if int(d.Index) < 0 || int(d.Index) >= len(out) {
			return nil, errs.New(errs.KindProviderContractViolation, "openai embedding index out of range")
		}
		out[d.Index] = vec
	}
	return out, nil
}
