package transcription

import (
	"context"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/httpclient"
)

// whisper calls the OpenAI audio transcription endpoint.
type whisper struct {
	client   *openai.Client
	model    string
	language string
}

func newOpenAI(settings *conf.TranscriptionSettings, hc *httpclient.Client) *whisper {
	cfg := openai.DefaultConfig(settings.APIKey)
	if settings.Endpoint != "" {
		cfg.BaseURL = settings.Endpoint
	}
	cfg.HTTPClient = hc.HTTPClient()

	model := settings.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &whisper{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		language: settings.Language,
	}
}

func (w *whisper) Transcribe(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
		Language: w.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Result{}, errors.External(err, component, BackendOpenAI)
	}

	logprobs := make([]float64, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		logprobs = append(logprobs, seg.AvgLogprob)
	}

	return Result{
		Text:             strings.TrimSpace(resp.Text),
		Confidence:       segmentConfidence(logprobs),
		DurationSeconds:  resp.Duration,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}, nil
}

// segmentConfidence averages exp(avg_logprob) over segments. No segments
// means the backend gave no signal, reported as full confidence.
func segmentConfidence(logprobs []float64) float64 {
	if len(logprobs) == 0 {
		return 1.0
	}
	var sum float64
	for _, lp := range logprobs {
		sum += math.Exp(lp)
	}
	return clamp01(sum / float64(len(logprobs)))
}
