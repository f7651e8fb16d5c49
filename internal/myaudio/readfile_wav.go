// Package myaudio reads uploaded recordings into float samples for speaker
// verification and probes their duration. WAV is decoded with go-audio;
// other formats go through FFmpeg.
package myaudio

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/morse-fitness/morse-worker/internal/errors"
)

const component = "myaudio"

// readBufferSize is the number of interleaved samples decoded per PCMBuffer call.
const readBufferSize = 64 * 1024

// Clip is a decoded mono recording with samples in [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
}

// Seconds returns the clip length.
func (c *Clip) Seconds() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// ReadWAV decodes a 16, 24 or 32-bit PCM WAV file. Multi-channel audio is
// down-mixed to mono by averaging channels.
func ReadWAV(path string) (*Clip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fileError(err, path, "open_wav")
	}
	defer func() { _ = file.Close() }()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, invalidAudio(path, "input is not a valid WAV audio file")
	}

	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, invalidAudio(path, err.Error())
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		return nil, invalidAudio(path, fmt.Sprintf("unsupported number of channels: %d", channels))
	}

	buf := &audio.IntBuffer{
		Data:   make([]int, readBufferSize-readBufferSize%channels),
		Format: &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: channels},
	}

	var samples []float64
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, errors.New(fmt.Errorf("decode %s: %w", path, err)).
				Component(component).
				Category(errors.CategoryAudio).
				Context("operation", "decode_wav").
				Build()
		}
		if n == 0 {
			break
		}

		frames := buf.Data[:n]
		for i := 0; i+channels <= len(frames); i += channels {
			var sum float64
			for ch := range channels {
				sum += float64(frames[i+ch])
			}
			samples = append(samples, sum/float64(channels)/divisor)
		}
	}

	return &Clip{Samples: samples, SampleRate: int(decoder.SampleRate)}, nil
}

// Duration returns the playback length in seconds from the WAV header.
func Duration(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fileError(err, path, "probe_duration")
	}
	defer func() { _ = file.Close() }()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return 0, invalidAudio(path, "input is not a valid WAV audio file")
	}
	if err := decoder.FwdToPCM(); err != nil {
		return 0, errors.New(fmt.Errorf("read duration of %s: %w", path, err)).
			Component(component).
			Category(errors.CategoryAudio).
			Context("operation", "probe_duration").
			Build()
	}

	bytesPerSecond := int(decoder.SampleRate) * int(decoder.NumChans) * int(decoder.BitDepth) / 8
	if bytesPerSecond == 0 {
		return 0, invalidAudio(path, "header reports zero byte rate")
	}
	return float64(decoder.PCMSize) / float64(bytesPerSecond), nil
}

// getAudioDivisor returns the scale for converting integer PCM to [-1, 1].
func getAudioDivisor(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported audio file bit depth: %d", bitDepth)
	}
}

func fileError(err error, path, op string) error {
	return errors.New(err).
		Component(component).
		Category(errors.CategoryFileIO).
		Context("operation", op).
		Context("path", path).
		Build()
}

func invalidAudio(path, msg string) error {
	return errors.Newf("%s: %s", path, msg).
		Component(component).
		Category(errors.CategoryAudio).
		Context("operation", "read_wav").
		Build()
}
