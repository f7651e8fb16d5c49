package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

// WriteWAV writes interleaved integer PCM to a WAV file in a temp
// directory and returns its path.
func WriteWAV(t *testing.T, name string, rate, bitDepth, channels int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, rate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: rate, NumChannels: channels},
		SourceBitDepth: bitDepth,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

// SineWAV writes a 16-bit mono sine tone of the given length.
func SineWAV(t *testing.T, name string, rate int, freq, seconds, amplitude float64) string {
	t.Helper()

	n := int(float64(rate) * seconds)
	data := make([]int, n)
	for i := range data {
		data[i] = int(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return WriteWAV(t, name, rate, 16, 1, data)
}
