package llm

import (
	"context"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/httpclient"
)

type anthropicProvider struct {
	client anthropic.Client
	model  string
	apiKey string
	gen    generation
}

// sharedDoer sends SDK requests through the shared client so they carry
// the worker's user agent, default timeout and error accounting.
type sharedDoer struct {
	client *httpclient.Client
}

func (d sharedDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.Context(), req)
}

func newAnthropic(account conf.ProviderAccount, gen generation, hc *httpclient.Client) *anthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(account.APIKey),
		option.WithHTTPClient(sharedDoer{client: hc}),
		// Retries belong to the job, not the call.
		option.WithMaxRetries(0),
	}
	if account.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(account.BaseURL))
	}
	return &anthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  account.Model,
		apiKey: account.APIKey,
		gen:    gen,
	}
}

func (p *anthropicProvider) Name() string { return NameAnthropic }

func (p *anthropicProvider) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(p.gen.maxTokens),
		Temperature: anthropic.Float(float64(p.gen.temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", callError(err, NameAnthropic)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", emptyReply(NameAnthropic)
	}
	return b.String(), nil
}

// HealthCheck only verifies that a key is configured; it does not spend a
// model call.
func (p *anthropicProvider) HealthCheck(context.Context) error {
	if p.apiKey == "" {
		return configError(errMissingKey(NameAnthropic))
	}
	return nil
}
