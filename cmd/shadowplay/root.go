package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var socketFlag string
	var configFlag string

	ctx := newCommandContext(&socketFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "shadowplay",
		Short:         "Mirror remote Plex playback in a local mpv instance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "Path to the shadowplay daemon socket")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	for _, cmd := range newDaemonCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(newDaemonRunCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newResolveCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
