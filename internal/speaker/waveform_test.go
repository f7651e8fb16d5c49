package speaker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morse-fitness/morse-worker/internal/myaudio"
	"github.com/morse-fitness/morse-worker/internal/testutil"
)

func TestPrepareWaveformPadsShortInput(t *testing.T) {
	t.Parallel()

	out := PrepareWaveform([]float64{0.25, -0.5}, 16000, 16000)
	require.Len(t, out, 16000)
	assert.InDelta(t, 0.5, out[0], 1e-12)
	assert.InDelta(t, -1.0, out[1], 1e-12)
	assert.Zero(t, out[2])
	assert.Zero(t, out[15999])
}

func TestPrepareWaveformTruncatesLongInput(t *testing.T) {
	t.Parallel()

	in := make([]float64, 16000*31)
	for i := range in {
		in[i] = 0.1
	}
	in[len(in)-1] = 0.9 // past the cut, must not affect the peak

	out := PrepareWaveform(in, 16000, 16000)
	require.Len(t, out, 16000*30)
	assert.InDelta(t, 1.0, out[0], 1e-12)
}

func TestPrepareWaveformSilenceStaysZero(t *testing.T) {
	t.Parallel()

	out := PrepareWaveform(make([]float64, 20000), 16000, 16000)
	for _, v := range out {
		require.False(t, math.IsNaN(v))
		require.Zero(t, v)
	}
}

func TestLoadWaveformResamples(t *testing.T) {
	t.Parallel()

	path := testutil.SineWAV(t, "voice.wav", 8000, 300, 2, 0.4)
	samples, err := LoadWaveform(t.Context(), myaudio.NewReader("", "", 0), path, 16000)
	require.NoError(t, err)

	assert.InDelta(t, 32000, len(samples), 1)
	var peak float64
	for _, v := range samples {
		peak = math.Max(peak, math.Abs(v))
	}
	assert.InDelta(t, 1.0, peak, 1e-9)
}

func TestQualityScore(t *testing.T) {
	t.Parallel()

	// Silence: no SNR, no voiced frames, low centroid, one second.
	silence := make([]float64, 16000)
	assert.InDelta(t, 0.5*centroidWeight+0.2*durationWeight, QualityScore(silence, 16000), 1e-9)

	tone := make([]float64, 16000*5)
	for i := range tone {
		tone[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / 16000)
	}
	score := QualityScore(tone, 16000)
	assert.GreaterOrEqual(t, score, centroidWeight+durationWeight)
	assert.LessOrEqual(t, score, 1.0)
	assert.Greater(t, score, QualityScore(silence, 16000))

	assert.Zero(t, QualityScore(nil, 16000))
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	vals := []float64{4, 1, 3, 2, 5}
	assert.InDelta(t, 1.0, percentile(vals, 0), 1e-12)
	assert.InDelta(t, 5.0, percentile(vals, 1), 1e-12)
	assert.InDelta(t, 2.2, percentile(vals, 0.3), 1e-12)
	assert.Equal(t, []float64{4, 1, 3, 2, 5}, vals)
}

func TestReflectPad(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []float64{3, 2, 1, 2, 3, 4, 3, 2}, reflectPad([]float64{1, 2, 3, 4}, 2))
	assert.Equal(t, []float64{0, 7, 0}, reflectPad([]float64{7}, 1))
}
