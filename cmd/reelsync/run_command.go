package main

import (
	"github.com/spf13/cobra"

	"reelsync/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon in the foreground",
		Long: `Run the sync daemon in the foreground until interrupted.

The daemon reconciles the catalog once at startup, then watches every library
root for changes, converts incompatible files and refreshes metadata on a
schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.logLevel(),
				Development: development,
			})
		},
	}
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log lines")
	return cmd
}
