package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/logger"
	metricspkg "github.com/morse-fitness/morse-worker/internal/observability/metrics"
)

// Endpoint serves /metrics over HTTP.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           logger.Logger
}

// NewEndpoint creates the metrics endpoint. It returns an error when
// metrics are disabled in settings.
func NewEndpoint(settings *conf.MetricsSettings, metrics *Metrics, log logger.Logger) (*Endpoint, error) {
	if !settings.Enabled {
		return nil, errors.New("metrics not enabled in settings")
	}
	if log == nil {
		log = logger.Global().Module("metrics")
	}
	return &Endpoint{
		listenAddress: settings.Listen,
		metrics:       metrics,
		log:           log,
	}, nil
}

// Start runs the HTTP server until quitChan is closed.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	e.server = &http.Server{
		Addr:              e.listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Go(func() {
		e.log.Info("metrics endpoint starting", logger.String("address", e.listenAddress))
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics HTTP server error", logger.Error(err))
		}
	})

	wg.Go(func() {
		e.gracefulShutdown(quitChan)
	})
}

// gracefulShutdown waits for the quit signal and shuts down the server gracefully.
func (e *Endpoint) gracefulShutdown(quitChan <-chan struct{}) {
	<-quitChan
	e.log.Info("stopping metrics endpoint")
	ctx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		e.log.Error("metrics server shutdown error", logger.Error(err))
	}
}
