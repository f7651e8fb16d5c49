package transcription

import (
	"context"
	"strings"
	"time"

	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/httpclient"
)

// remote posts the file path to a self-hosted transcription service that
// shares the upload volume.
type remote struct {
	endpoint string
	apiKey   string
	client   *httpclient.Client
}

type remoteRequest struct {
	FilePath string `json:"file_path"`
}

type remoteResponse struct {
	Success          bool    `json:"success"`
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"`
	DurationSeconds  float64 `json:"duration_seconds"`
	ProcessingTimeMS int64   `json:"processing_time_ms"`
	Error            string  `json:"error"`
}

func newHTTP(endpoint, apiKey string, client *httpclient.Client) *remote {
	return &remote{endpoint: endpoint, apiKey: apiKey, client: client}
}

func (r *remote) Transcribe(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	var headers map[string]string
	if r.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + r.apiKey}
	}

	var out remoteResponse
	if err := r.client.PostJSON(ctx, component, r.endpoint, headers, remoteRequest{FilePath: path}, &out); err != nil {
		return Result{}, err
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "transcription service reported failure"
		}
		return Result{}, errors.External(errors.NewStd(msg), component, BackendHTTP)
	}

	elapsed := out.ProcessingTimeMS
	if elapsed <= 0 {
		elapsed = time.Since(start).Milliseconds()
	}
	return Result{
		Text:             strings.TrimSpace(out.Text),
		Confidence:       clamp01(out.Confidence),
		DurationSeconds:  out.DurationSeconds,
		ProcessingTimeMS: elapsed,
	}, nil
}
