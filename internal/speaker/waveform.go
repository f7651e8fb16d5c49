// Package speaker identifies who recorded a workout by comparing a voice
// embedding of the upload against stored voice profiles, and auto-claims
// the workout on a confident match.
package speaker

import (
	"context"
	"math"
	"time"

	"github.com/morse-fitness/morse-worker/internal/myaudio"
)

// DefaultSampleRate is the rate embeddings are computed at.
const DefaultSampleRate = 16000

const (
	minSeconds = 1
	maxSeconds = 30
)

// AudioReader decodes an upload of any supported format to mono samples.
type AudioReader interface {
	Read(ctx context.Context, path string, rate int, limit time.Duration) (*myaudio.Clip, error)
}

// LoadWaveform reads a recording and prepares it for embedding: mono,
// resampled to rate, padded to one second, truncated to thirty seconds
// and peak-normalized.
func LoadWaveform(ctx context.Context, audio AudioReader, path string, rate int) ([]float64, error) {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	clip, err := audio.Read(ctx, path, rate, maxSeconds*time.Second)
	if err != nil {
		return nil, err
	}
	return PrepareWaveform(clip.Samples, clip.SampleRate, rate), nil
}

// PrepareWaveform applies the embedding preprocessing to raw samples.
// All-zero input stays zero.
func PrepareWaveform(samples []float64, from, rate int) []float64 {
	out := myaudio.ResampleAudio(samples, from, rate)

	if minLen := rate * minSeconds; len(out) < minLen {
		padded := make([]float64, minLen)
		copy(padded, out)
		out = padded
	}
	if maxLen := rate * maxSeconds; len(out) > maxLen {
		out = out[:maxLen]
	}

	// Never normalize in place; ResampleAudio may return its input.
	normalized := make([]float64, len(out))
	var peak float64
	for _, v := range out {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 {
		return normalized
	}
	for i, v := range out {
		normalized[i] = v / peak
	}
	return normalized
}
