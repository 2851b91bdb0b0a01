package entityextract

import (
	"context"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

type openAIGenerator struct {
	client sdk.Client
	model  string
}

func newOpenAIGenerator(cfg Config) *openAIGenerator {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	model := cfg.Model
	if model == "" {
		model = sdk.ChatModelGPT4o
	}
	return &openAIGenerator{client: sdk.NewClient(opts...), model: model}
}

func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model: g.model,
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
