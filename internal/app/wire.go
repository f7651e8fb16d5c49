package app

import (
	"context"
	"net/http"
	"time"

	"github.com/morse-fitness/morse-worker/internal/datastore"
	"github.com/morse-fitness/morse-worker/internal/extraction"
	"github.com/morse-fitness/morse-worker/internal/httpclient"
	"github.com/morse-fitness/morse-worker/internal/llm"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/myaudio"
	"github.com/morse-fitness/morse-worker/internal/notify"
	"github.com/morse-fitness/morse-worker/internal/observability"
	metricspkg "github.com/morse-fitness/morse-worker/internal/observability/metrics"
	"github.com/morse-fitness/morse-worker/internal/pipeline"
	"github.com/morse-fitness/morse-worker/internal/speaker"
	"github.com/morse-fitness/morse-worker/internal/transcription"
)

// Services are the long-lived components of a running worker.
type Services struct {
	Store       *datastore.Store
	Metrics     *observability.Metrics
	HTTP        *httpclient.Client
	Provider    llm.Provider
	Transcriber transcription.Transcriber
	Publisher   notify.Publisher
	Pipeline    *pipeline.Pipeline
}

// OpenStore connects to the database. Failure here is fatal for the worker.
func (c *Context) OpenStore(ctx context.Context) (*datastore.Store, error) {
	store, err := datastore.Open(ctx, &c.Settings.Database, c.Logger("datastore"))
	if err != nil {
		return nil, err
	}
	if c.Settings.Database.AutoMigrate {
		if err := store.AutoMigrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// Build opens the store and assembles the pipeline with its collaborators.
func (c *Context) Build(ctx context.Context) (*Services, error) {
	s := c.Settings
	log := c.Logger("app")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	store, err := c.OpenStore(ctx)
	if err != nil {
		return nil, err
	}

	svc := &Services{
		Store:   store,
		Metrics: metrics,
		HTTP:    httpclient.New(&httpclient.Config{DefaultTimeout: s.Pool.CallTimeout, UserAgent: "morse-worker/" + c.BuildInfo.Version}),
	}
	svc.HTTP.SetAfterResponseHook(httpErrorHook(metrics.Pipeline))

	svc.Provider, err = llm.New(&s.LLM, svc.HTTP, c.Logger("llm"))
	if err != nil {
		svc.Close()
		return nil, err
	}

	svc.Transcriber, err = transcription.New(&s.Transcription, svc.HTTP)
	if err != nil {
		svc.Close()
		return nil, err
	}

	svc.Publisher = c.publisher(ctx, metrics)

	audio := myaudio.NewReader(s.Audio.FfmpegPath, s.Audio.FfprobePath, s.Audio.DecodeTimeout)

	pool := pipeline.NewPool(s.Pool.Size, s.Pool.CallTimeout)
	deps := pipeline.Deps{
		Store:       store,
		Transcriber: svc.Transcriber,
		Extractor:   extraction.NewExtractor(svc.Provider, c.Logger("extraction")),
		Pool:        pool,
		Publisher:   svc.Publisher,
		Metrics:     metrics.Pipeline,
		Log:         c.Logger("pipeline"),
	}
	if s.Speaker.Enabled {
		deps.Verifier = speaker.NewVerifier(store,
			speaker.NewHTTPEmbedder(s.Speaker.EmbeddingEndpoint, svc.HTTP),
			c.Logger("speaker"),
			speaker.WithRunner(pool),
			speaker.WithAudioReader(audio),
			speaker.WithSampleRate(s.Speaker.SampleRate),
			speaker.WithTimeout(s.Speaker.Timeout),
			speaker.WithProfileCacheTTL(s.Speaker.ProfileCacheTTL))
	}

	svc.Pipeline = pipeline.New(deps,
		pipeline.WithPathRewrite(s.Worker.PathRewriteFrom, s.Worker.PathRewriteTo),
		pipeline.WithTimeouts(s.Transcription.Timeout, s.LLM.Timeout),
		pipeline.WithDurationProbe(audio.Duration))

	log.Info("worker components ready",
		logger.String("llm_provider", svc.Provider.Name()),
		logger.String("transcription_backend", s.Transcription.Backend),
		logger.Bool("speaker_verification", s.Speaker.Enabled),
		logger.Bool("mqtt", s.MQTT.Enabled))
	return svc, nil
}

// publisher connects to MQTT when enabled. A broker that cannot be reached
// at startup disables events rather than stopping the worker.
func (c *Context) publisher(ctx context.Context, metrics *observability.Metrics) notify.Publisher {
	if !c.Settings.MQTT.Enabled {
		return notify.Nop{}
	}
	log := c.Logger("notify")
	p := notify.NewMQTTPublisher(c.Settings.MQTT, metrics.MQTT, log)
	if err := p.Connect(ctx); err != nil {
		log.Warn("MQTT unavailable, job events disabled", logger.Error(err))
		return notify.Nop{}
	}
	return p
}

// Close releases everything Build acquired.
func (s *Services) Close() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.HTTP != nil {
		s.HTTP.Close()
	}
	if s.Store != nil {
		_ = s.Store.Close()
	}
}

// httpErrorHook counts failed collaborator HTTP exchanges.
func httpErrorHook(rec metricspkg.Recorder) func(*http.Request, *http.Response, time.Duration, error) {
	return func(_ *http.Request, resp *http.Response, _ time.Duration, err error) {
		switch {
		case err != nil:
			rec.RecordError("http", "transport")
		case resp.StatusCode >= http.StatusInternalServerError:
			rec.RecordError("http", "server_error")
		case resp.StatusCode >= http.StatusBadRequest:
			rec.RecordError("http", "client_error")
		}
	}
}
