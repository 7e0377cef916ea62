package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shadowplay/internal/identity"
	"shadowplay/internal/images"
	"shadowplay/internal/logging"
	"shadowplay/internal/resolver"
	"shadowplay/internal/services/anilist"
	"shadowplay/internal/services/tvdb"
)

// newResolveCommand performs a one-shot identity lookup without the daemon.
// Useful to seed or debug the cache before a session shows up.
func newResolveCommand(ctx *commandContext) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "resolve <folder-path>",
		Short: "Resolve a series folder against the metadata catalogs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			folderPath := strings.TrimSpace(args[0])
			if folderPath == "" {
				return fmt.Errorf("folder path is required")
			}
			folderName := filepath.Base(folderPath)

			store, err := identity.Open(cfg)
			if err != nil {
				return fmt.Errorf("open identity store: %w", err)
			}
			defer store.Close()

			if refresh {
				if _, err := store.Invalidate(cmd.Context(), folderPath); err != nil {
					return fmt.Errorf("invalidate cached identity: %w", err)
				}
			}

			timeout := time.Duration(cfg.AniList.RequestTimeout) * time.Second
			primary, err := anilist.New(cfg.AniList.Endpoint, timeout)
			if err != nil {
				return fmt.Errorf("init anilist client: %w", err)
			}

			covers := images.NewCache(cfg.Paths.ImageCacheDir, timeout)
			opts := []resolver.Option{
				resolver.WithCovers(covers),
				resolver.WithCatalogTimeout(time.Duration(cfg.Sync.CatalogTimeout) * time.Second),
			}
			if cfg.TVDB.Enabled {
				secondary, err := tvdb.New(cfg.TVDB.APIKey, cfg.TVDB.BaseURL, timeout)
				if err != nil {
					return fmt.Errorf("init tvdb client: %w", err)
				}
				opts = append(opts, resolver.WithSecondary(secondary))
			}

			res, err := resolver.New(store, primary, cfg.Matching.AcceptThreshold, logging.NewNop(), opts...)
			if err != nil {
				return fmt.Errorf("init resolver: %w", err)
			}

			result, err := res.Resolve(cmd.Context(), folderName, folderPath)
			if err != nil {
				return fmt.Errorf("resolve %q: %w", folderName, err)
			}

			stdout := cmd.OutOrStdout()
			record := result.Record
			origin := "catalog lookup"
			if result.FromCache {
				origin = "cache"
			}
			if !record.Resolved {
				fmt.Fprintf(stdout, "Unresolved (%s): no catalog match for %q\n", origin, folderName)
				fmt.Fprintln(stdout, "Re-run with --refresh after fixing the folder name or catalog settings.")
				return nil
			}

			rows := [][]string{
				{"Title", record.Title},
				{"Identity", record.Source + "/" + record.SourceID},
				{"Search term", record.SearchTerm},
				{"Score", strconv.FormatFloat(record.Score, 'f', 2, 64)},
				{"Origin", origin},
			}
			if record.CoverFile != "" {
				rows = append(rows, []string{"Cover", covers.PathFor(record.CoverFile)})
			}
			fmt.Fprintln(stdout, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Drop any cached identity before resolving")
	return cmd
}
