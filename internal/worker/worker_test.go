package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/datastore"
	"github.com/morse-fitness/morse-worker/internal/errors"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/observability/metrics"
	"github.com/morse-fitness/morse-worker/internal/pipeline"
	"github.com/morse-fitness/morse-worker/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingProcessor struct {
	mu       sync.Mutex
	files    []string
	sessions []string
	fileErr  error
	onFile   func()
}

func (p *recordingProcessor) ProcessFile(ctx context.Context, job pipeline.Job) error {
	p.mu.Lock()
	p.files = append(p.files, job.AudioFileID)
	onFile := p.onFile
	p.mu.Unlock()
	if onFile != nil {
		onFile()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return p.fileErr
}

func (p *recordingProcessor) ProcessSession(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = append(p.sessions, id)
	return nil
}

func (p *recordingProcessor) snapshot() ([]string, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.files...), append([]string(nil), p.sessions...)
}

type staticScanner struct {
	files    []datastore.PendingFile
	sessions []datastore.PendingSession
	limit    int
}

func (s *staticScanner) PendingAudioFiles(_ context.Context, limit int) ([]datastore.PendingFile, error) {
	s.limit = limit
	return s.files, nil
}

func (s *staticScanner) PendingSessions(context.Context, int) ([]datastore.PendingSession, error) {
	return s.sessions, nil
}

// chanSource hands out jobs sent on its channel and reports a timeout
// otherwise.
type chanSource struct {
	jobs chan *pipeline.Job
	errs chan error
}

func (s *chanSource) Next(ctx context.Context) (*pipeline.Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-s.errs:
		return nil, err
	case job := <-s.jobs:
		return job, nil
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func (s *chanSource) Close() error { return nil }

func TestWorkerDrainsFilesThenSessions(t *testing.T) {
	t.Parallel()
	proc := &recordingProcessor{}
	scan := &staticScanner{
		files:    []datastore.PendingFile{{ID: "f1"}, {ID: "f2"}},
		sessions: []datastore.PendingSession{{ID: "s1"}},
	}
	w := New(proc, scan, nil, nil, &conf.WorkerSettings{ScanLimit: 7}, logger.NewDiscard())

	w.Drain(context.Background())

	files, sessions := proc.snapshot()
	assert.Equal(t, []string{"f1", "f2"}, files)
	assert.Equal(t, []string{"s1"}, sessions)
	assert.Equal(t, 7, scan.limit)
}

func TestWorkerFailedJobDoesNotStopLoop(t *testing.T) {
	t.Parallel()
	proc := &recordingProcessor{fileErr: errors.NewStd("transcription failed")}
	src := &chanSource{jobs: make(chan *pipeline.Job, 2), errs: make(chan error)}
	src.jobs <- &pipeline.Job{AudioFileID: "a"}
	src.jobs <- &pipeline.Job{AudioFileID: "b"}

	done := make(chan struct{})
	proc.onFile = func() {
		files, _ := proc.snapshot()
		if len(files) == 2 {
			close(done)
		}
	}

	w := New(proc, &staticScanner{}, src, nil, &conf.WorkerSettings{ScanInterval: time.Hour}, logger.NewDiscard())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout, "both jobs should be processed")
	cancel()
	require.NoError(t, <-errCh)
}

func TestWorkerJobRunsToCompletionAfterCancel(t *testing.T) {
	t.Parallel()
	proc := &recordingProcessor{}
	src := &chanSource{jobs: make(chan *pipeline.Job, 1), errs: make(chan error)}
	src.jobs <- &pipeline.Job{AudioFileID: "a"}

	ctx, cancel := context.WithCancel(context.Background())
	proc.onFile = cancel

	w := New(proc, &staticScanner{}, src, nil, &conf.WorkerSettings{ScanInterval: time.Hour}, logger.NewDiscard())
	require.NoError(t, w.Run(ctx))

	files, _ := proc.snapshot()
	assert.Equal(t, []string{"a"}, files)
}

func TestWorkerSourceErrorsBackOff(t *testing.T) {
	t.Parallel()
	proc := &recordingProcessor{}
	src := &chanSource{jobs: make(chan *pipeline.Job, 1), errs: make(chan error, 1)}
	src.errs <- errors.NewStd("connection reset")

	done := make(chan struct{})
	proc.onFile = func() { close(done) }

	w := New(proc, &staticScanner{}, src, nil, &conf.WorkerSettings{ScanInterval: time.Hour}, logger.NewDiscard())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	src.jobs <- &pipeline.Job{AudioFileID: "after-error"}
	testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout, "job after a source error should be processed")
	cancel()
	require.NoError(t, <-errCh)
}

func TestWorkerPollLoopRescans(t *testing.T) {
	t.Parallel()
	proc := &recordingProcessor{}
	scan := &staticScanner{files: []datastore.PendingFile{{ID: "f1"}}}

	done := make(chan struct{})
	var once sync.Once
	proc.onFile = func() {
		if files, _ := proc.snapshot(); len(files) >= 2 {
			once.Do(func() { close(done) })
		}
	}

	w := New(proc, scan, nil, nil, &conf.WorkerSettings{ScanInterval: 10 * time.Millisecond}, logger.NewDiscard())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	testutil.WaitForChannel(t, done, testutil.DefaultTestTimeout, "the file should be seen again on rescan")
	cancel()
	require.NoError(t, <-errCh)
}

func TestWorkerRejectsBadCleanupSchedule(t *testing.T) {
	t.Parallel()
	cleaner := NewCleaner(testutil.NewStore(t), time.Hour, nil, logger.NewDiscard())
	w := New(&recordingProcessor{}, &staticScanner{}, nil, cleaner,
		&conf.WorkerSettings{CleanupSchedule: "every full moon"}, logger.NewDiscard())
	require.Error(t, w.Run(context.Background()))
}

type fakeExpirer struct {
	cutoff time.Time
	n      int64
}

func (f *fakeExpirer) DeleteExpiredUnclaimed(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, nil
}

func TestCleanerUsesTTL(t *testing.T) {
	t.Parallel()
	m, err := metrics.NewPipelineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	exp := &fakeExpirer{n: 3}
	c := NewCleaner(exp, 30*24*time.Hour, m, logger.NewDiscard())
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	n, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, now.AddDate(0, 0, -30), exp.cutoff)
	assert.InDelta(t, 3, promtest.ToFloat64(m.CleanupDeleted), 0)
}

// fakeRedis serves BLPOP from a list of ids and HGETALL from a map.
type fakeRedis struct {
	ids    []string
	hashes map[string]map[string]string
	popErr error
	closed bool
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) BLPop(_ context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	if f.popErr != nil {
		return redis.NewStringSliceResult(nil, f.popErr)
	}
	if len(f.ids) == 0 {
		return redis.NewStringSliceResult(nil, redis.Nil)
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return redis.NewStringSliceResult([]string{keys[0], id}, nil)
}

func (f *fakeRedis) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	return redis.NewMapStringStringResult(f.hashes[key], nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func testQueueSettings() *conf.QueueSettings {
	return &conf.QueueSettings{
		WaitKey:      "bull:audio transcription:wait",
		JobKeyPrefix: "bull:audio transcription:",
		BlockTimeout: 5 * time.Second,
	}
}

func TestRedisSourceNext(t *testing.T) {
	t.Parallel()
	fr := &fakeRedis{
		ids: []string{"17", "18", "19"},
		hashes: map[string]map[string]string{
			"bull:audio transcription:17": {
				"data": `{"audioFileId":"file-17","filePath":"/services/api/uploads/a.wav","userId":"u1","deviceUuid":"d1","originalFilename":"a.wav"}`,
				"name": "transcribe",
			},
			"bull:audio transcription:19": {"data": "{broken"},
		},
	}
	src := newRedisSource(fr, testQueueSettings(), logger.NewDiscard())
	ctx := context.Background()

	job, err := src.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "file-17", job.AudioFileID)
	assert.Equal(t, "/services/api/uploads/a.wav", job.FilePath)
	assert.Equal(t, "d1", job.DeviceUUID)

	// 18 has no hash
	job, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)

	// 19 is not valid JSON
	job, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)

	// queue empty: timeout
	job, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)

	require.NoError(t, src.Close())
	assert.True(t, fr.closed)
}

func TestRedisSourceErrorIsTransient(t *testing.T) {
	t.Parallel()
	src := newRedisSource(&fakeRedis{popErr: errors.NewStd("connection refused")}, testQueueSettings(), logger.NewDiscard())

	job, err := src.Next(context.Background())
	assert.Nil(t, job)
	require.Error(t, err)
	assert.Equal(t, errors.KindTransient, errors.KindOf(err))
}
