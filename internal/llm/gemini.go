package llm

import (
	"context"

	"google.golang.org/genai"

	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/httpclient"
)

type geminiProvider struct {
	client *genai.Client
	// initErr is kept so a provider built without a key fails on use.
	initErr error
	model   string
	gen     generation
}

func newGemini(account conf.ProviderAccount, gen generation, hc *httpclient.Client) *geminiProvider {
	p := &geminiProvider{model: account.Model, gen: gen}
	if account.APIKey == "" {
		p.initErr = configError(errMissingKey(NameGemini))
		return p
	}

	cfg := &genai.ClientConfig{
		APIKey:     account.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc.HTTPClient(),
	}
	if account.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = account.BaseURL
	}
	// Client construction does no I/O for the Gemini API backend.
	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		p.initErr = configError(err)
		return p
	}
	p.client = client
	return p
}

func (p *geminiProvider) Name() string { return NameGemini }

func (p *geminiProvider) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	if p.initErr != nil {
		return "", p.initErr
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.gen.temperature),
		MaxOutputTokens: int32(p.gen.maxTokens),
	})
	if err != nil {
		return "", callError(err, NameGemini)
	}

	text := resp.Text()
	if text == "" {
		return "", emptyReply(NameGemini)
	}
	return text, nil
}

// HealthCheck only verifies that the client could be built with a key.
func (p *geminiProvider) HealthCheck(context.Context) error {
	return p.initErr
}
