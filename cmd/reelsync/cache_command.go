package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelsync/internal/enrichment"
	"reelsync/internal/media"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the metadata cache",
	}
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func metadataCache(ctx *commandContext) (*enrichment.Cache, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.cliLogger(cfg)
	if err != nil {
		return nil, err
	}
	return enrichment.NewCache(cfg.Paths.CacheDir, logger), nil
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached provider responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := metadataCache(ctx)
			if err != nil {
				return err
			}
			entries, err := cache.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No cached metadata in %s\n", cache.Dir())
				return nil
			}
			list := newListing("Title", "Title key", "Cached", "Size").numeric(4)
			for _, e := range entries {
				list.row(e.Title, e.TitleKey, e.CachedAt.Local().Format("2006-01-02 15:04"), media.HumanSize(e.Size))
			}
			fmt.Fprintln(out, list)
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached provider response",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := metadataCache(ctx)
			if err != nil {
				return err
			}
			removed, err := cache.Clear()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached entries from %s\n", removed, cache.Dir())
			return nil
		},
	}
}
