// Package extraction turns transcripts into normalized workouts through a
// language-model provider.
package extraction

import (
	"context"
	"time"

	"github.com/morse-fitness/morse-worker/internal/llm"
	"github.com/morse-fitness/morse-worker/internal/logger"
)

const component = "extraction"

// Request is one extraction call. IsSession with RecordingCount > 1 asks
// the model to merge same-named exercises across recordings.
type Request struct {
	Text           string
	IsSession      bool
	RecordingCount int
}

// Extractor calls the provider and normalizes its reply.
type Extractor struct {
	provider llm.Provider
	log      logger.Logger
	now      func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// NewExtractor creates an Extractor.
func NewExtractor(provider llm.Provider, log logger.Logger, opts ...Option) *Extractor {
	if log == nil {
		log = logger.Global().Module(component)
	}
	e := &Extractor{provider: provider, log: log, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Provider returns the backing provider name.
func (e *Extractor) Provider() string {
	return e.provider.Name()
}

// Extract builds the prompt, calls the provider and normalizes the reply.
// Provider failures are external-service errors; replies that cannot be
// read as a workout are validation errors.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Workout, error) {
	today := e.now()
	log := e.log.WithContext(ctx)

	start := time.Now()
	reply, err := e.provider.GenerateResponse(ctx, buildPrompt(req, today))
	if err != nil {
		return nil, err
	}

	raw, err := parseReply(reply)
	if err != nil {
		log.Warn("unparseable model reply",
			logger.String("provider", e.provider.Name()),
			logger.Int("reply_length", len(reply)),
			logger.Error(err))
		return nil, err
	}

	workout, err := Normalize(raw, today)
	if err != nil {
		return nil, err
	}

	log.Info("workout extracted",
		logger.String("provider", e.provider.Name()),
		logger.Int("exercises", workout.TotalExercises),
		logger.Int("recordings", max(req.RecordingCount, 1)),
		logger.Duration("elapsed", time.Since(start)))
	return workout, nil
}
