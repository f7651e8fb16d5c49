// Package worker drives the pipeline: it catches up on work left in the
// database, then takes jobs from the queue, or rescans the database when
// no queue is configured.
package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/morse-fitness/morse-worker/internal/conf"
	"github.com/morse-fitness/morse-worker/internal/datastore"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/pipeline"
)

const component = "worker"

// sourceRetryMax caps the wait after repeated queue errors.
const sourceRetryMax = 10 * time.Second

// Processor runs single jobs. *pipeline.Pipeline implements it.
type Processor interface {
	ProcessFile(ctx context.Context, job pipeline.Job) error
	ProcessSession(ctx context.Context, sessionID string) error
}

// Scanner finds work left in the database.
type Scanner interface {
	PendingAudioFiles(ctx context.Context, limit int) ([]datastore.PendingFile, error)
	PendingSessions(ctx context.Context, limit int) ([]datastore.PendingSession, error)
}

// Worker processes jobs strictly one at a time.
type Worker struct {
	proc     Processor
	scan     Scanner
	source   JobSource
	cleaner  *Cleaner
	schedule string
	interval time.Duration
	limit    int
	log      logger.Logger
}

// New creates a Worker. A nil source makes the worker poll the database
// every ScanInterval. A nil cleaner disables scheduled cleanup.
func New(proc Processor, scan Scanner, source JobSource, cleaner *Cleaner, settings *conf.WorkerSettings, log logger.Logger) *Worker {
	if log == nil {
		log = logger.Global().Module(component)
	}
	interval := settings.ScanInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	limit := settings.ScanLimit
	if limit <= 0 {
		limit = 50
	}
	return &Worker{
		proc:     proc,
		scan:     scan,
		source:   source,
		cleaner:  cleaner,
		schedule: settings.CleanupSchedule,
		interval: interval,
		limit:    limit,
		log:      log,
	}
}

// Run drains pending work and then serves jobs until ctx is cancelled. A
// job in progress when ctx is cancelled runs to completion first.
func (w *Worker) Run(ctx context.Context) error {
	scheduler, err := newScheduler(ctx, w.schedule, w.cleaner, w.log)
	if err != nil {
		return err
	}
	if scheduler != nil {
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	w.log.Info("worker starting",
		logger.Bool("queue", w.source != nil),
		logger.Duration("scan_interval", w.interval))

	w.Drain(ctx)

	if w.source == nil {
		w.log.Info("no job queue configured, polling the database")
		return w.pollLoop(ctx)
	}
	w.log.Info("starting job polling")
	return w.sourceLoop(ctx)
}

// Drain processes pending files, then pending sessions.
func (w *Worker) Drain(ctx context.Context) {
	w.drainFiles(ctx)
	w.drainSessions(ctx)
}

func (w *Worker) drainFiles(ctx context.Context) {
	files, err := w.scan.PendingAudioFiles(ctx, w.limit)
	if err != nil {
		w.log.Error("error processing pending files", logger.Error(err))
		return
	}
	for _, f := range files {
		if ctx.Err() != nil {
			return
		}
		w.log.Info("processing pending file", logger.String("audio_file_id", f.ID))
		w.processFile(ctx, pipeline.Job{
			AudioFileID:      f.ID,
			FilePath:         f.FilePath,
			UserID:           f.UserID,
			DeviceUUID:       f.DeviceUUID,
			OriginalFilename: f.OriginalFilename,
		})
	}
}

func (w *Worker) drainSessions(ctx context.Context) {
	sessions, err := w.scan.PendingSessions(ctx, w.limit)
	if err != nil {
		w.log.Error("error processing pending sessions", logger.Error(err))
		return
	}
	for _, s := range sessions {
		if ctx.Err() != nil {
			return
		}
		w.log.Info("processing pending session", logger.String("session_id", s.ID))
		if err := w.proc.ProcessSession(context.WithoutCancel(ctx), s.ID); err != nil {
			w.log.Warn("session failed", logger.String("session_id", s.ID), logger.Error(err))
		}
	}
}

func (w *Worker) processFile(ctx context.Context, job pipeline.Job) {
	if err := w.proc.ProcessFile(context.WithoutCancel(ctx), job); err != nil {
		w.log.Warn("job failed", logger.String("audio_file_id", job.AudioFileID), logger.Error(err))
		return
	}
	w.log.Info("job completed successfully", logger.String("audio_file_id", job.AudioFileID))
}

func (w *Worker) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

func (w *Worker) sourceLoop(ctx context.Context) error {
	retry := backoff.NewExponentialBackOff()
	retry.MaxInterval = sourceRetryMax
	retry.MaxElapsedTime = 0
	lastSessionScan := time.Now()

	for {
		if ctx.Err() != nil {
			return nil
		}
		// sessions are never queued, so they are picked up by scanning
		if time.Since(lastSessionScan) >= w.interval {
			w.drainSessions(ctx)
			lastSessionScan = time.Now()
		}

		job, err := w.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := retry.NextBackOff()
			w.log.Error("error polling for jobs", logger.Error(err), logger.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()

		if job != nil {
			w.processFile(ctx, *job)
		}
	}
}
