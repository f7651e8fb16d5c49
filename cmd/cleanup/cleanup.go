package cleanup

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/morse-fitness/morse-worker/internal/app"
	"github.com/morse-fitness/morse-worker/internal/worker"
)

// Command creates the command that deletes expired unclaimed workouts once.
func Command(ctx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired unclaimed workouts",
		Long:  "Delete workouts that were never claimed by a user and are older than the configured TTL.",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.Close()

			store, err := ctx.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ttl := ctx.Settings.Worker.UnclaimedTTL
			deleted, err := worker.NewCleaner(store, ttl, nil, ctx.Logger("cleanup")).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d unclaimed workouts older than %s\n", deleted, ttl.Round(time.Second))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Duration("ttl", 0, "Age after which unclaimed workouts are deleted")
	ctx.Bind("worker.unclaimed_ttl", flags.Lookup("ttl"))

	return cmd
}
