package config

import (
	"github.com/spf13/cobra"

	"github.com/morse-fitness/morse-worker/internal/app"
)

// Command creates the command that prints the effective configuration.
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the merged configuration from defaults, config.yaml, .env and the environment. Secrets are masked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.Close()
			out, err := ctx.Settings.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
