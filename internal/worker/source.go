package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/pipeline"
)

// jobDataField is the hash field holding the queued job payload.
const jobDataField = "data"

// JobSource delivers queued jobs. Next blocks for at most the source's
// timeout and returns nil, nil when no job arrived.
type JobSource interface {
	Next(ctx context.Context) (*pipeline.Job, error)
	Close() error
}

// redisAPI is the part of the go-redis client the source uses.
type redisAPI interface {
	Ping(ctx context.Context) *redis.StatusCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Close() error
}

// RedisSource reads jobs from a Bull queue: job ids are popped from the
// wait list and payloads read from the per-job hash.
type RedisSource struct {
	client  redisAPI
	waitKey string
	prefix  string
	timeout time.Duration
	log     logger.Logger
}

// NewRedisSource connects to the configured Redis server and checks the
// connection.
func NewRedisSource(ctx context.Context, settings *conf.QueueSettings, log logger.Logger) (*RedisSource, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     settings.Addr(),
		Password: settings.Password,
		DB:       settings.DB,
		// BLPOP holds the connection for the block timeout
		ReadTimeout: settings.BlockTimeout + 5*time.Second,
	})

	src := newRedisSource(client, settings, log)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.New(err).
			Component(component).
			Category(errors.CategoryNetwork).
			Context("operation", "redis_connect").
			Context("addr", settings.Addr()).
			Build()
	}
	return src, nil
}

func newRedisSource(client redisAPI, settings *conf.QueueSettings, log logger.Logger) *RedisSource {
	if log == nil {
		log = logger.Global().Module(component)
	}
	return &RedisSource{
		client:  client,
		waitKey: settings.WaitKey,
		prefix:  settings.JobKeyPrefix,
		timeout: settings.BlockTimeout,
		log:     log,
	}
}

// Next pops one job id and loads its payload. Ids without a hash and
// payloads that cannot be decoded are logged and skipped.
func (s *RedisSource) Next(ctx context.Context) (*pipeline.Job, error) {
	res, err := s.client.BLPop(ctx, s.timeout, s.waitKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, queueError(err, "blpop")
	}
	if len(res) < 2 {
		return nil, nil
	}

	jobID := res[1]
	hash, err := s.client.HGetAll(ctx, s.prefix+jobID).Result()
	if err != nil {
		return nil, queueError(err, "hgetall")
	}
	if len(hash) == 0 {
		s.log.Error("job not found in queue", logger.String("job_id", jobID))
		return nil, nil
	}

	data, ok := hash[jobDataField]
	if !ok {
		data = "{}"
	}
	job, err := pipeline.DecodeJob([]byte(data))
	if err != nil {
		s.log.Error("failed to parse job data", logger.String("job_id", jobID), logger.Error(err))
		return nil, nil
	}

	s.log.Info("job received", logger.String("job_id", jobID), logger.String("audio_file_id", job.AudioFileID))
	return &job, nil
}

// Close releases the Redis connection.
func (s *RedisSource) Close() error {
	return s.client.Close()
}

func queueError(err error, op string) error {
	return errors.New(err).
		Component(component).
		Category(errors.CategoryJobQueue).
		Context("operation", op).
		Build()
}
