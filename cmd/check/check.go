package check

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/morse-fitness/morse-worker/internal/app"
	"github.com/morse-fitness/morse-worker/internal/httpclient"
	"github.com/morse-fitness/morse-worker/internal/llm"
	"github.com/morse-fitness/morse-worker/internal/myaudio"
	"github.com/morse-fitness/morse-worker/internal/worker"
)

const checkTimeout = 15 * time.Second

// Command creates the command that checks connectivity to collaborators.
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check database, model provider, queue and audio tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.Close()
			c, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()

			failed := 0
			report := func(name string, err error) {
				failed += printResult(cmd.OutOrStdout(), name, err)
			}

			report("database", checkDatabase(c, ctx))
			report("llm", checkProvider(c, ctx))
			report("audio", checkAudio(ctx))
			if ctx.Settings.Queue.Enabled {
				report("queue", checkQueue(c, ctx))
			}

			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func printResult(w io.Writer, name string, err error) int {
	if err != nil {
		fmt.Fprintf(w, "%-10s FAIL  %v\n", name, err)
		return 1
	}
	fmt.Fprintf(w, "%-10s ok\n", name)
	return 0
}

func checkDatabase(c context.Context, ctx *app.Context) error {
	store, err := ctx.OpenStore(c)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return store.Ping(c)
}

func checkProvider(c context.Context, ctx *app.Context) error {
	client := httpclient.New(&httpclient.Config{DefaultTimeout: checkTimeout})
	defer client.Close()
	provider, err := llm.New(&ctx.Settings.LLM, client, ctx.Logger("llm"))
	if err != nil {
		return err
	}
	return provider.HealthCheck(c)
}

func checkAudio(ctx *app.Context) error {
	a := ctx.Settings.Audio
	return myaudio.NewReader(a.FfmpegPath, a.FfprobePath, a.DecodeTimeout).Available()
}

func checkQueue(c context.Context, ctx *app.Context) error {
	src, err := worker.NewRedisSource(c, &ctx.Settings.Queue, ctx.Logger("queue"))
	if err != nil {
		return err
	}
	return src.Close()
}
