package entityextract

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicGenerator struct {
	client anthropic.Client
	model  string
}

func newAnthropicGenerator(cfg Config) *anthropicGenerator {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &anthropicGenerator{client: anthropic.NewClient(opts...), model: model}
}

func (g *anthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String(), nil
}
