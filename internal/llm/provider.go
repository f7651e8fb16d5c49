// Package llm provides the language-model backends used for workout
// extraction. One Provider is selected from configuration at startup.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/httpclient"
	"github.com/morse-fitness/morse-worker/internal/logger"
)

const component = "llm"

// Provider is a text-completion backend.
type Provider interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// GenerateResponse sends a single user prompt and returns the text reply.
	GenerateResponse(ctx context.Context, prompt string) (string, error)
	// HealthCheck reports whether the backend is usable.
	HealthCheck(ctx context.Context) error
}

// Provider names.
const (
	NameAnthropic = "anthropic"
	NameGemini    = "gemini"
	NameOpenAI    = "openai"
)

// generation holds the sampling settings shared by every backend.
type generation struct {
	maxTokens   int
	temperature float32
}

// New selects the configured provider. An explicit provider requires its
// key. With "auto" the first configured of gemini, anthropic and openai is
// used. No usable provider is a configuration error.
func New(settings *conf.LLMSettings, client *httpclient.Client, log logger.Logger) (Provider, error) {
	if log == nil {
		log = logger.Global().Module(component)
	}
	if client == nil {
		client = httpclient.New(&httpclient.Config{DefaultTimeout: settings.Timeout})
	}

	gen := generation{maxTokens: settings.MaxTokens, temperature: settings.Temperature}
	build := map[string]func() Provider{
		NameAnthropic: func() Provider { return newAnthropic(settings.Anthropic, gen, client) },
		NameGemini:    func() Provider { return newGemini(settings.Gemini, gen, client) },
		NameOpenAI:    func() Provider { return newOpenAI(settings.OpenAI, gen, client) },
	}
	keys := map[string]string{
		NameAnthropic: settings.Anthropic.APIKey,
		NameGemini:    settings.Gemini.APIKey,
		NameOpenAI:    settings.OpenAI.APIKey,
	}

	requested := canonicalName(settings.Provider)
	if requested != "auto" {
		if _, known := build[requested]; !known {
			return nil, configError(fmt.Errorf("unknown llm provider %q", settings.Provider))
		}
		if keys[requested] == "" {
			return nil, configError(fmt.Errorf("llm provider %s selected but no API key is configured", requested))
		}
		log.Info("using llm provider", logger.String("provider", requested))
		return build[requested](), nil
	}

	for _, name := range []string{NameGemini, NameAnthropic, NameOpenAI} {
		if keys[name] != "" {
			log.Info("auto-selected llm provider", logger.String("provider", name))
			return build[name](), nil
		}
	}

	return nil, configError(fmt.Errorf("no llm provider configured: set an API key for gemini, anthropic or openai"))
}

func canonicalName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return "auto"
	case "anthropic", "claude":
		return NameAnthropic
	case "google", "gemini":
		return NameGemini
	case "openai":
		return NameOpenAI
	default:
		return name
	}
}

func configError(err error) error {
	return errors.New(err).
		Component(component).
		Category(errors.CategoryConfiguration).
		Build()
}

func callError(err error, provider string) error {
	return errors.External(fmt.Errorf("%s: %w", provider, err), component, provider)
}

func emptyReply(provider string) error {
	return errors.New(fmt.Errorf("%s returned an empty response", provider)).
		Component(component).
		Category(errors.CategoryIntegration).
		Context("service", provider).
		Build()
}

func errMissingKey(provider string) error {
	return fmt.Errorf("%s API key is not configured", provider)
}
