package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/httpclient"
)

// openaiProvider talks to OpenAI or any OpenAI-compatible endpoint.
type openaiProvider struct {
	client *openai.Client
	model  string
	gen    generation
}

func newOpenAI(account conf.ProviderAccount, gen generation, hc *httpclient.Client) *openaiProvider {
	cfg := openai.DefaultConfig(account.APIKey)
	if account.BaseURL != "" {
		cfg.BaseURL = account.BaseURL
	}
	cfg.HTTPClient = hc.HTTPClient()
	return &openaiProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  account.Model,
		gen:    gen,
	}
}

func (p *openaiProvider) Name() string { return NameOpenAI }

func (p *openaiProvider) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.gen.maxTokens,
		Temperature: p.gen.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", callError(err, NameOpenAI)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", emptyReply(NameOpenAI)
	}
	return resp.Choices[0].Message.Content, nil
}

// HealthCheck lists models, which is cheap and validates the key.
func (p *openaiProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return errors.External(err, component, NameOpenAI)
	}
	return nil
}
