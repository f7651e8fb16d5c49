package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/observability/metrics"
)

// Expirer deletes unclaimed workouts created before cutoff.
type Expirer interface {
	DeleteExpiredUnclaimed(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner removes unclaimed workouts nobody claimed within the TTL.
type Cleaner struct {
	store   Expirer
	ttl     time.Duration
	metrics *metrics.PipelineMetrics
	log     logger.Logger
	now     func() time.Time
}

// NewCleaner creates a Cleaner. m may be nil.
func NewCleaner(store Expirer, ttl time.Duration, m *metrics.PipelineMetrics, log logger.Logger) *Cleaner {
	if log == nil {
		log = logger.Global().Module(component)
	}
	return &Cleaner{store: store, ttl: ttl, metrics: m, log: log, now: time.Now}
}

// Run deletes expired workouts once and returns how many were removed.
func (c *Cleaner) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := c.now().Add(-c.ttl)

	n, err := c.store.DeleteExpiredUnclaimed(ctx, cutoff)
	c.metrics.RecordDuration(metrics.OpCleanup, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordOperation(metrics.OpCleanup, metrics.OutcomeFailure)
		c.log.Error("error cleaning up expired workouts", logger.Error(err))
		return 0, err
	}

	c.metrics.RecordOperation(metrics.OpCleanup, metrics.OutcomeSuccess)
	c.metrics.AddCleanupDeleted(n)
	if n > 0 {
		c.log.Info("cleaned up expired workouts",
			logger.Int64("deleted", n),
			logger.Time("cutoff", cutoff))
	}
	return n, nil
}

// cronLogger routes cron's own messages through the module logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(pairs(keysAndValues), logger.Error(err))...)
}

func pairs(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}

// newScheduler returns a cron running the cleaner on spec. An empty spec
// returns nil.
func newScheduler(ctx context.Context, spec string, cleaner *Cleaner, log logger.Logger) (*cron.Cron, error) {
	if spec == "" || cleaner == nil {
		return nil, nil
	}

	cl := cronLogger{log: log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(spec, func() {
		_, _ = cleaner.Run(ctx)
	}); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return c, nil
}
