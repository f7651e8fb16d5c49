package myaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"github.com/morse-fitness/morse-worker/internal/errors"
)

// DefaultDecodeTimeout bounds one FFmpeg or ffprobe run.
const DefaultDecodeTimeout = 2 * time.Minute

// Reader loads uploads of any format. WAV is decoded in process; anything
// else (MP3, M4A, ...) is converted to 16-bit mono PCM by FFmpeg.
type Reader struct {
	FfmpegPath  string // empty disables decoding of non-WAV input
	FfprobePath string // empty disables duration probing of non-WAV input
	Timeout     time.Duration
}

// NewReader creates a Reader using the given tool paths.
func NewReader(ffmpegPath, ffprobePath string, timeout time.Duration) *Reader {
	if timeout <= 0 {
		timeout = DefaultDecodeTimeout
	}
	return &Reader{FfmpegPath: ffmpegPath, FfprobePath: ffprobePath, Timeout: timeout}
}

// Read returns the recording as mono samples. Non-WAV input is decoded at
// rate; WAV keeps its own rate. A positive limit stops decoding after that
// much audio.
func (r *Reader) Read(ctx context.Context, path string, rate int, limit time.Duration) (*Clip, error) {
	isWAV, err := isWAVFile(path)
	if err != nil {
		return nil, err
	}
	if isWAV {
		clip, err := ReadWAV(path)
		if err != nil {
			return nil, err
		}
		if keep := int(limit.Seconds() * float64(clip.SampleRate)); limit > 0 && len(clip.Samples) > keep {
			clip.Samples = clip.Samples[:keep]
		}
		return clip, nil
	}
	return r.decodeWithFFmpeg(ctx, path, rate, limit)
}

// Duration returns the playback length in seconds, from the WAV header or
// from ffprobe for other formats.
func (r *Reader) Duration(ctx context.Context, path string) (float64, error) {
	isWAV, err := isWAVFile(path)
	if err != nil {
		return 0, err
	}
	if isWAV {
		return Duration(path)
	}
	return r.probeDuration(ctx, path)
}

// Available reports whether the configured tools can be found. An empty
// path is not checked.
func (r *Reader) Available() error {
	for _, tool := range []string{r.FfmpegPath, r.FfprobePath} {
		if tool == "" {
			continue
		}
		if _, err := exec.LookPath(tool); err != nil {
			return errors.New(fmt.Errorf("%s not found: %w", tool, err)).
				Component(component).
				Category(errors.CategoryConfiguration).
				Build()
		}
	}
	return nil
}

func isWAVFile(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, fileError(err, path, "open_audio")
	}
	defer func() { _ = file.Close() }()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	return decoder.IsValidFile(), nil
}

// decodeWithFFmpeg has FFmpeg write raw s16le mono PCM to stdout.
func (r *Reader) decodeWithFFmpeg(ctx context.Context, path string, rate int, limit time.Duration) (*Clip, error) {
	if r.FfmpegPath == "" {
		return nil, invalidAudio(path, "not a WAV file and FFmpeg is not configured")
	}
	if rate <= 0 {
		return nil, invalidAudio(path, fmt.Sprintf("invalid decode sample rate %d", rate))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-i", path}
	if limit > 0 {
		args = append(args, "-t", strconv.FormatFloat(limit.Seconds(), 'f', 3, 64))
	}
	args = append(args,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-")

	cmd := exec.CommandContext(ctx, r.FfmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, toolError(ctx, "decode_ffmpeg", path, err, stderr.String())
	}

	raw := stdout.Bytes()
	samples := make([]float64, len(raw)/2)
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(raw[2*i:]))) / 32768.0
	}
	if len(samples) == 0 {
		return nil, invalidAudio(path, "FFmpeg decoded no audio")
	}
	return &Clip{Samples: samples, SampleRate: rate}, nil
}

func (r *Reader) probeDuration(ctx context.Context, path string) (float64, error) {
	if r.FfprobePath == "" {
		return 0, invalidAudio(path, "not a WAV file and ffprobe is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	// -show_entries format=duration with bare output prints just the number
	cmd := exec.CommandContext(ctx, r.FfprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, toolError(ctx, "probe_duration", path, err, stderr.String())
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" || out == "N/A" {
		return 0, invalidAudio(path, "ffprobe could not determine the duration")
	}
	seconds, err := strconv.ParseFloat(out, 64)
	if err != nil || seconds <= 0 {
		return 0, invalidAudio(path, fmt.Sprintf("ffprobe reported invalid duration %q", out))
	}
	return seconds, nil
}

func (r *Reader) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultDecodeTimeout
	}
	return r.Timeout
}

// toolError reports a failed FFmpeg or ffprobe run, preferring the tool's
// own stderr over the exit status.
func toolError(ctx context.Context, op, path string, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%s of %s stopped: %w", op, path, ctxErr)
	} else if msg := strings.TrimSpace(stderr); msg != "" {
		err = fmt.Errorf("%s of %s failed: %s: %w", op, path, msg, err)
	} else {
		err = fmt.Errorf("%s of %s failed: %w", op, path, err)
	}
	return errors.New(err).
		Component(component).
		Category(errors.CategoryAudio).
		Context("operation", op).
		Build()
}
