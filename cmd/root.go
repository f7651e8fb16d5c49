package cmd

import (
	"github.com/spf13/cobra"

	"github.com/morse-fitness/morse-worker/cmd/check"
	"github.com/morse-fitness/morse-worker/cmd/cleanup"
	"github.com/morse-fitness/morse-worker/cmd/config"
	"github.com/morse-fitness/morse-worker/cmd/worker"
	"github.com/morse-fitness/morse-worker/internal/app"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *app.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "morse-worker",
		Short:         "Morse voice workout worker",
		Long:          "Turns uploaded voice recordings into structured workouts.",
		Version:       ctx.BuildInfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, ctx)

	rootCmd.AddCommand(
		worker.Command(ctx),
		cleanup.Command(ctx),
		check.Command(ctx),
		config.Command(ctx),
	)

	// Configuration and logging are initialized once, after flags are parsed
	// and before any subcommand runs.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return ctx.Init()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, ctx *app.Context) {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.ConfigFile, "config", "c", "", "Path to config.yaml (default: ./config.yaml, ~/.config/morse, /etc/morse)")
	flags.BoolVarP(&ctx.Debug, "debug", "d", false, "Enable debug output")
	flags.String("log-level", "", "Default log level (trace, debug, info, warn, error)")

	ctx.Bind("logging.default_level", flags.Lookup("log-level"))
	ctx.Bind("logging.console.level", flags.Lookup("log-level"))
}
