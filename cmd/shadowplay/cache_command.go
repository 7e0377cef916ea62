package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shadowplay/internal/ipc"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the folder identity cache",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached folder identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CacheList()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(stdout, "Identity cache is empty")
					return nil
				}

				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					identity := "-"
					if entry.Resolved {
						identity = entry.Source + "/" + entry.SourceID
					}
					score := "-"
					if entry.Resolved {
						score = strconv.FormatFloat(entry.Score, 'f', 2, 64)
					}
					rows = append(rows, []string{
						entry.FolderPath,
						yesNo(entry.Resolved),
						entry.Title,
						identity,
						score,
					})
				}
				table := renderTable(
					[]string{"Folder", "Resolved", "Title", "Identity", "Score"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				)
				fmt.Fprintln(stdout, table)
				return nil
			})
		},
	}

	invalidateCmd := &cobra.Command{
		Use:   "invalidate <folder-path>",
		Short: "Remove one cached identity so the next session re-resolves it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CacheInvalidate(folder)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Removed {
					fmt.Fprintf(stdout, "Invalidated %s\n", folder)
				} else {
					fmt.Fprintf(stdout, "No cached identity for %s\n", folder)
				}
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CacheClear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached identities\n", resp.Removed)
				return nil
			})
		},
	}

	cacheCmd.AddCommand(listCmd)
	cacheCmd.AddCommand(invalidateCmd)
	cacheCmd.AddCommand(clearCmd)
	return cacheCmd
}
