// Package transcription adapts speech-to-text backends to the worker.
package transcription

import (
	"context"
	"fmt"
	"strings"

	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/httpclient"
)

const component = "transcription"

// Backend names.
const (
	BackendOpenAI = "openai"
	BackendHTTP   = "http"
)

// Result is a finished transcription.
type Result struct {
	Text             string
	Confidence       float64 // [0,1]
	DurationSeconds  float64 // 0 when the backend does not report it
	ProcessingTimeMS int64
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (Result, error)
}

// New builds the configured backend.
func New(settings *conf.TranscriptionSettings, client *httpclient.Client) (Transcriber, error) {
	if client == nil {
		client = httpclient.New(&httpclient.Config{DefaultTimeout: settings.Timeout})
	}

	switch strings.ToLower(strings.TrimSpace(settings.Backend)) {
	case BackendOpenAI, "":
		if settings.APIKey == "" {
			return nil, configError("openai transcription backend requires an API key")
		}
		return newOpenAI(settings, client), nil
	case BackendHTTP:
		if settings.Endpoint == "" {
			return nil, configError("http transcription backend requires an endpoint")
		}
		return newHTTP(settings.Endpoint, settings.APIKey, client), nil
	default:
		return nil, configError(fmt.Sprintf("unknown transcription backend %q", settings.Backend))
	}
}

func configError(msg string) error {
	return errors.Newf("%s", msg).
		Component(component).
		Category(errors.CategoryConfiguration).
		Build()
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
