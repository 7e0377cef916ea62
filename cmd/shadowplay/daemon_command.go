package main

import (
	"github.com/spf13/cobra"

	"shadowplay/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	var noAutoStart bool

	cmd := &cobra.Command{
		Use:          "daemon",
		Aliases:      []string{"run"},
		Short:        "Run the shadowplay daemon in the foreground",
		Hidden:       true,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				NoAutoStart: noAutoStart,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "development", false, "Enable development logging output")
	cmd.Flags().BoolVar(&noAutoStart, "no-auto-start", false, "Do not begin mirroring until requested over IPC")
	return cmd
}
