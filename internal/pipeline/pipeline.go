// Package pipeline turns one recording, or one session of recordings, into
// a saved workout.
//
// A file moves through transcription, extraction and saving, each tracked
// as a stage. Speaker verification runs after the save and never fails the
// file. Every failure is confined to the file or session being processed:
// its status becomes failed, an event is published and the error is
// returned to the caller for logging.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/morse-fitness/morse-worker/internal/datastore"
	"github.com/morse-fitness/morse-worker/internal/extraction"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/myaudio"
	"github.com/morse-fitness/morse-worker/internal/notify"
	"github.com/morse-fitness/morse-worker/internal/observability/metrics"
	"github.com/morse-fitness/morse-worker/internal/session"
	"github.com/morse-fitness/morse-worker/internal/speaker"
	"github.com/morse-fitness/morse-worker/internal/stages"
	"github.com/morse-fitness/morse-worker/internal/transcription"
)

const component = "pipeline"

// Default upload path translation.
const (
	DefaultRewriteFrom = "/services/api/uploads/"
	DefaultRewriteTo   = "/app/uploads/"
)

// Extractor turns a transcript into a normalized workout.
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (*extraction.Workout, error)
}

// Verifier runs speaker verification for a saved workout.
type Verifier interface {
	Verify(ctx context.Context, req speaker.VerifyRequest) speaker.Outcome
}

// Deps are the collaborators of a Pipeline. Verifier, Publisher and
// Metrics are optional.
type Deps struct {
	Store       *datastore.Store
	Transcriber transcription.Transcriber
	Extractor   Extractor
	Verifier    Verifier
	Pool        *Pool
	Publisher   notify.Publisher
	Metrics     *metrics.PipelineMetrics
	Log         logger.Logger
}

// Pipeline processes files and sessions one at a time.
type Pipeline struct {
	store       *datastore.Store
	tracker     *stages.Tracker
	aggregator  *session.Aggregator
	transcriber transcription.Transcriber
	extractor   Extractor
	verifier    Verifier
	pool        *Pool
	publisher   notify.Publisher
	metrics     *metrics.PipelineMetrics
	log         logger.Logger

	rewriteFrom          string
	rewriteTo            string
	transcriptionTimeout time.Duration
	extractionTimeout    time.Duration
	probeDuration        func(ctx context.Context, path string) (float64, error)
	now                  func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPathRewrite sets the upload path translation. An empty from disables it.
func WithPathRewrite(from, to string) Option {
	return func(p *Pipeline) {
		p.rewriteFrom = from
		p.rewriteTo = to
	}
}

// WithTimeouts sets per-call timeouts for transcription and extraction.
// Zero uses the pool default.
func WithTimeouts(transcribe, extract time.Duration) Option {
	return func(p *Pipeline) {
		p.transcriptionTimeout = transcribe
		p.extractionTimeout = extract
	}
}

// WithDurationProbe replaces the file probe used when the transcription
// backend reports no duration. myaudio.Reader.Duration fits.
func WithDurationProbe(fn func(ctx context.Context, path string) (float64, error)) Option {
	return func(p *Pipeline) { p.probeDuration = fn }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(d Deps, opts ...Option) *Pipeline {
	log := d.Log
	if log == nil {
		log = logger.Global().Module(component)
	}
	pool := d.Pool
	if pool == nil {
		pool = NewPool(1, 0)
	}
	publisher := d.Publisher
	if publisher == nil {
		publisher = notify.Nop{}
	}

	p := &Pipeline{
		store:         d.Store,
		tracker:       stages.NewTracker(d.Store, log.Module("stages")),
		aggregator:    session.NewAggregator(d.Store, log.Module("session")),
		transcriber:   d.Transcriber,
		extractor:     d.Extractor,
		verifier:      d.Verifier,
		pool:          pool,
		publisher:     publisher,
		metrics:       d.Metrics,
		log:           log,
		rewriteFrom:   DefaultRewriteFrom,
		rewriteTo:     DefaultRewriteTo,
		probeDuration: myaudio.NewReader("ffmpeg", "ffprobe", 0).Duration,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if d.Metrics != nil {
		pool.SetObserver(p.observeCall)
	}
	return p
}

// Tracker exposes the stage tracker for progress reads.
func (p *Pipeline) Tracker() *stages.Tracker {
	return p.tracker
}

func (p *Pipeline) observeCall(name string, elapsed time.Duration, err error) {
	p.metrics.RecordDuration(name, elapsed.Seconds())
	if err != nil {
		p.metrics.RecordOperation(name, metrics.OutcomeFailure)
		p.metrics.RecordExternalError(name)
		return
	}
	p.metrics.RecordOperation(name, metrics.OutcomeSuccess)
}

// traced tags ctx with the job and a fresh trace id, so every log line of
// one attempt can be correlated across components.
func traced(ctx context.Context, kind, id string) context.Context {
	return logger.WithJob(logger.WithTraceID(ctx, uuid.NewString()), kind, id)
}

func (p *Pipeline) publish(ctx context.Context, e notify.Event) {
	e.Timestamp = p.now().UTC()
	if err := p.publisher.Publish(ctx, e); err != nil {
		p.log.WithContext(ctx).Warn("failed to publish event",
			logger.String("event", e.Type),
			logger.Error(err))
	}
}
