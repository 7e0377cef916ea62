package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"shadowplay/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigPathCommand())

	return configCmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load("")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Secrets stay out of terminal output.
			redacted := *cfg
			if redacted.Plex.Token != "" {
				redacted.Plex.Token = "<redacted>"
			}
			if redacted.TVDB.APIKey != "" {
				redacted.TVDB.APIKey = "<redacted>"
			}

			encoded, err := toml.Marshal(redacted)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the resolved configuration file path",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return fmt.Errorf("determine config path: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, path)
			if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
				fmt.Fprintln(out, "(file does not exist yet; run `shadowplay config init`)")
			}
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set the Plex URL, token, and path mappings before mirroring.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load("")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
