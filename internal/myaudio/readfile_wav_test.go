package myaudio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/testutil"
)

func TestReadWAV_BitDepths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		bitDepth int
		value    int
	}{
		{"16-bit", 16, 16384},
		{"24-bit", 24, 4194304},
		{"32-bit", 32, 1073741824},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := testutil.WriteWAV(t, "clip.wav", 8000, tt.bitDepth, 1, []int{tt.value, -tt.value, 0})
			clip, err := ReadWAV(path)
			require.NoError(t, err)

			assert.Equal(t, 8000, clip.SampleRate)
			require.Len(t, clip.Samples, 3)
			assert.InDelta(t, 0.5, clip.Samples[0], 1e-6)
			assert.InDelta(t, -0.5, clip.Samples[1], 1e-6)
			assert.InDelta(t, 0.0, clip.Samples[2], 1e-9)
		})
	}
}

func TestReadWAV_DownmixesStereo(t *testing.T) {
	t.Parallel()

	path := testutil.WriteWAV(t, "stereo.wav", 16000, 16, 2, []int{16384, 0, -16384, -16384})
	clip, err := ReadWAV(path)
	require.NoError(t, err)

	require.Len(t, clip.Samples, 2)
	assert.InDelta(t, 0.25, clip.Samples[0], 1e-6)
	assert.InDelta(t, -0.5, clip.Samples[1], 1e-6)
}

func TestReadWAV_Errors(t *testing.T) {
	t.Parallel()

	_, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	junk := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(junk, []byte("not a wav file at all"), 0o600))
	_, err = ReadWAV(junk)
	require.Error(t, err)
	assert.Equal(t, errors.KindExternalService, errors.KindOf(err))
}

func TestDuration(t *testing.T) {
	t.Parallel()

	path := testutil.SineWAV(t, "tone.wav", 16000, 440, 2, 0.5)
	d, err := Duration(path)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, 0.01)
}

func TestResampleAudio(t *testing.T) {
	t.Parallel()

	in := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	assert.Equal(t, in, ResampleAudio(in, 16000, 16000))
	assert.Equal(t, in, ResampleAudio(in, 0, 16000))

	down := ResampleAudio(in, 16000, 8000)
	assert.InDeltaSlice(t, []float64{0, 2, 4, 6}, down, 1e-12)

	up := ResampleAudio([]float64{0, 1}, 8000, 16000)
	require.Len(t, up, 4)
	assert.InDelta(t, 0.0, up[0], 1e-12)
	assert.InDelta(t, 0.5, up[1], 1e-12)
	assert.InDelta(t, 1.0, up[2], 1e-12)

	clip := &Clip{Samples: in, SampleRate: 16000}
	assert.InDelta(t, 0.0005, clip.Seconds(), 1e-9)
	assert.Equal(t, 8000, clip.Resampled(8000).SampleRate)
}

func TestResampleAudioFollowsSine(t *testing.T) {
	t.Parallel()

	const (
		from = 44100
		to   = 16000
		freq = 440.0
	)
	in := make([]float64, from)
	for i := range in {
		in[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/from)
	}

	out := ResampleAudio(in, from, to)
	require.Len(t, out, to)
	// The last few samples interpolate against the clamped edge.
	for i := 0; i < len(out)-4; i++ {
		want := 0.5 * math.Sin(2*math.Pi*freq*float64(i)/to)
		require.InDelta(t, want, out[i], 1e-3, "sample %d", i)
	}
}
