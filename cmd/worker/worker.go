package worker

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/morse-fitness/morse-worker/internal/app"
	"github.com/morse-fitness/morse-worker/internal/logger"
	"github.com/morse-fitness/morse-worker/internal/observability"
	"github.com/morse-fitness/morse-worker/internal/worker"
)

// Command creates the command that runs the processing loop.
func Command(ctx *app.Context) *cobra.Command {
	var once, poll bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process recordings and sessions",
		Long:  "Drain pending recordings and sessions, then serve jobs from the Redis queue or by polling the database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.Close()
			return run(cmd.Context(), ctx, once, poll)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&once, "once", false, "Drain pending work and exit")
	flags.BoolVar(&poll, "poll", false, "Ignore the job queue and poll the database")
	flags.Duration("scan-interval", 0, "Interval between database scans")
	flags.Int("scan-limit", 0, "Maximum rows picked up per scan")
	flags.Int("pool-size", 0, "Concurrent external calls")

	ctx.Bind("worker.scan_interval", flags.Lookup("scan-interval"))
	ctx.Bind("worker.scan_limit", flags.Lookup("scan-limit"))
	ctx.Bind("pool.size", flags.Lookup("pool-size"))

	return cmd
}

func run(parent context.Context, appCtx *app.Context, once, poll bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := appCtx.Logger("main")
	settings := appCtx.Settings
	go rotateOnHangup(ctx, appCtx, log)

	svc, err := appCtx.Build(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	cleaner := worker.NewCleaner(svc.Store, settings.Worker.UnclaimedTTL, svc.Metrics.Pipeline, appCtx.Logger("cleanup"))

	if once {
		w := worker.New(svc.Pipeline, svc.Store, nil, nil, &settings.Worker, appCtx.Logger("worker"))
		w.Drain(ctx)
		return nil
	}

	var source worker.JobSource
	if settings.Queue.Enabled && !poll {
		src, err := worker.NewRedisSource(ctx, &settings.Queue, appCtx.Logger("queue"))
		if err != nil {
			log.Warn("job queue unavailable, falling back to database polling", logger.Error(err))
		} else {
			source = src
			defer func() { _ = src.Close() }()
		}
	}

	quit := make(chan struct{})
	var wg sync.WaitGroup
	if settings.Metrics.Enabled {
		endpoint, err := observability.NewEndpoint(&settings.Metrics, svc.Metrics, appCtx.Logger("metrics"))
		if err != nil {
			return err
		}
		endpoint.Start(&wg, quit)
	}

	w := worker.New(svc.Pipeline, svc.Store, source, cleaner, &settings.Worker, appCtx.Logger("worker"))
	err = w.Run(ctx)

	close(quit)
	wg.Wait()
	log.Info("worker stopped")
	return err
}

// rotateOnHangup rolls the log file over on SIGHUP until ctx is done.
func rotateOnHangup(ctx context.Context, appCtx *app.Context, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := appCtx.RotateLogs(); err != nil {
				log.Warn("log rotation failed", logger.Error(err))
			}
		}
	}
}
