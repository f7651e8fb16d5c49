package speaker

import (
	"context"

	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/httpclient"
)

const embeddingService = "speaker-embedding"

// Embedder turns a prepared waveform into a voice embedding.
type Embedder interface {
	Embed(ctx context.Context, samples []float64, rate int) ([]float64, error)
}

// HTTPEmbedder calls the embedding model service.
type HTTPEmbedder struct {
	endpoint string
	client   *httpclient.Client
}

type embedRequest struct {
	Samples    []float64 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
}

type embedResponse struct {
	Success      bool      `json:"success"`
	Embedding    []float64 `json:"embedding"`
	QualityScore float64   `json:"quality_score"`
	Error        string    `json:"error"`
}

// NewHTTPEmbedder returns an embedder posting to endpoint.
func NewHTTPEmbedder(endpoint string, client *httpclient.Client) *HTTPEmbedder {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &HTTPEmbedder{endpoint: endpoint, client: client}
}

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, samples []float64, rate int) ([]float64, error) {
	var out embedResponse
	if err := e.client.PostJSON(ctx, embeddingService, e.endpoint, nil,
		embedRequest{Samples: samples, SampleRate: rate}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "embedding service reported failure"
		}
		return nil, errors.External(errors.NewStd(msg), component, embeddingService)
	}
	if len(out.Embedding) == 0 {
		return nil, errors.External(errors.NewStd("embedding service returned an empty vector"), component, embeddingService)
	}
	return out.Embedding, nil
}
