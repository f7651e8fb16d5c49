package speaker

import (
	"context"
	"time"

	"github.com/morse-fitness/morse-worker/internal/datastore/entities"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/myaudio"
)

const component = "speaker"

// Store is the persistence the verifier needs.
type Store interface {
	ProfileSource
	SaveVoiceEmbedding(ctx context.Context, audioFileID string, embedding []float64, quality float64) error
	SaveSpeakerVerification(ctx context.Context, v *entities.SpeakerVerification) (string, error)
	ClaimWorkout(ctx context.Context, workoutID, userID string, similarity float64) (bool, error)
}

// Runner executes an external call under a timeout. The pipeline's
// bounded pool satisfies it.
type Runner interface {
	Run(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) error
}

// VerifyRequest identifies the recording and the workout saved from it.
type VerifyRequest struct {
	AudioFileID string
	WorkoutID   string
	Path        string
}

// Outcome reports what verification did. Err is informational; a failed
// verification never fails the job.
type Outcome struct {
	Success    bool
	Quality    float64
	Similarity float64
	Tier       Tier
	MatchFound bool
	ProfileID  string
	UserID     string
	Claimed    bool
	Err        error
}

// Verifier runs the speaker verification side-pipeline.
type Verifier struct {
	store      Store
	embedder   Embedder
	profiles   *profileCache
	runner     Runner
	audio      AudioReader
	log        logger.Logger
	sampleRate int
	timeout    time.Duration
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithRunner routes the embedding call through r.
func WithRunner(r Runner) Option {
	return func(v *Verifier) { v.runner = r }
}

// WithAudioReader sets the decoder used for uploads.
func WithAudioReader(r AudioReader) Option {
	return func(v *Verifier) {
		if r != nil {
			v.audio = r
		}
	}
}

// WithSampleRate overrides the embedding sample rate.
func WithSampleRate(rate int) Option {
	return func(v *Verifier) {
		if rate > 0 {
			v.sampleRate = rate
		}
	}
}

// WithTimeout bounds the embedding call.
func WithTimeout(d time.Duration) Option {
	return func(v *Verifier) { v.timeout = d }
}

// WithProfileCacheTTL caches active profiles for ttl. Zero disables caching.
func WithProfileCacheTTL(ttl time.Duration) Option {
	return func(v *Verifier) { v.profiles = newProfileCache(v.store, ttl) }
}

// NewVerifier creates a verifier.
func NewVerifier(store Store, embedder Embedder, log logger.Logger, opts ...Option) *Verifier {
	if log == nil {
		log = logger.Global().Module(component)
	}
	v := &Verifier{
		store:      store,
		embedder:   embedder,
		audio:      myaudio.NewReader("ffmpeg", "ffprobe", 0),
		log:        log,
		sampleRate: DefaultSampleRate,
		timeout:    time.Minute,
	}
	v.profiles = newProfileCache(store, 0)
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// InvalidateProfiles drops cached profiles.
func (v *Verifier) InvalidateProfiles() {
	v.profiles.Invalidate()
}

// Verify extracts an embedding for the recording, matches it against the
// active profiles, records the attempt and claims the workout on a high
// confidence match. Failures are reported in Outcome.Err and logged.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) Outcome {
	log := v.log.WithContext(ctx).With(
		logger.String("audio_file_id", req.AudioFileID),
		logger.String("workout_id", req.WorkoutID),
	)
	out := Outcome{Tier: TierNoMatch}

	samples, err := LoadWaveform(ctx, v.audio, req.Path, v.sampleRate)
	if err != nil {
		log.Warn("speaker verification skipped: audio not loadable", logger.Error(err))
		out.Err = err
		return out
	}
	out.Quality = QualityScore(samples, v.sampleRate)

	var raw []float64
	err = v.run(ctx, func(ctx context.Context) error {
		var err error
		raw, err = v.embedder.Embed(ctx, samples, v.sampleRate)
		return err
	})
	if err != nil {
		log.Warn("speaker verification skipped: embedding failed", logger.Error(err))
		out.Err = err
		return out
	}
	embedding := Normalize(raw)
	if len(embedding) != EmbeddingDim {
		log.Warn("unexpected embedding dimension",
			logger.Int("dimension", len(embedding)),
			logger.Int("expected", EmbeddingDim))
	}

	if err := v.store.SaveVoiceEmbedding(ctx, req.AudioFileID, embedding, out.Quality); err != nil {
		log.Warn("failed to persist voice embedding", logger.Error(err))
		out.Err = err
		return out
	}
	out.Success = true

	profiles, err := v.profiles.Active(ctx)
	if err != nil {
		log.Warn("failed to load voice profiles", logger.Error(err))
		out.Err = err
		return out
	}
	if len(profiles) == 0 {
		log.Info("no voice profiles, workout stays unclaimed", logger.Float64("quality", out.Quality))
		return out
	}

	match := Match(embedding, profiles)
	out.Similarity = match.Similarity
	out.Tier = match.Tier
	out.MatchFound = match.MatchFound
	if match.Skipped > 0 {
		log.Warn("voice profiles skipped for dimension mismatch", logger.Int("skipped", match.Skipped))
	}
	if match.Best != nil {
		out.ProfileID = match.Best.ID
		out.UserID = match.Best.UserID
	}

	log.Info("speaker verification result",
		logger.Float64("similarity", out.Similarity),
		logger.String("tier", string(out.Tier)),
		logger.Float64("quality", out.Quality))

	if match.MatchFound && match.Best != nil && req.WorkoutID != "" {
		claimed, err := v.store.ClaimWorkout(ctx, req.WorkoutID, match.Best.UserID, match.Similarity)
		if err != nil {
			log.Warn("auto-claim failed", logger.Error(err))
			out.Err = err
		}
		out.Claimed = claimed
	}

	if match.Best != nil {
		profileID := match.Best.ID
		if _, err := v.store.SaveSpeakerVerification(ctx, &entities.SpeakerVerification{
			AudioFileID:     req.AudioFileID,
			VoiceProfileID:  &profileID,
			SimilarityScore: match.Similarity,
			ConfidenceLevel: string(match.Tier),
			AutoLinked:      out.Claimed,
		}); err != nil {
			log.Warn("failed to record speaker verification", logger.Error(err))
			if out.Err == nil {
				out.Err = err
			}
		}
	}

	return out
}

func (v *Verifier) run(ctx context.Context, fn func(context.Context) error) error {
	if v.runner != nil {
		return v.runner.Run(ctx, embeddingService, v.timeout, fn)
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	return fn(ctx)
}
