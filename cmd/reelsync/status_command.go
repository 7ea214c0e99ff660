package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelsync/internal/catalog"
	"reelsync/internal/config"
	"reelsync/internal/daemon"
	"reelsync/internal/daemonrun"
	"reelsync/internal/deps"
	"reelsync/internal/enrichment"
	"reelsync/internal/logging"
	"reelsync/internal/media"
	"reelsync/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show library, tool, catalog and daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			sections := []statusSection{
				daemonSection(cfg),
				librarySection(cfg),
				toolSection(cmd.Context(), cfg),
				catalogSection(cmd.Context(), store),
				metadataSection(cfg),
			}
			renderStatus(out, sections, shouldColorize(out))
			return nil
		},
	}
}

func daemonSection(cfg *config.Config) statusSection {
	section := statusSection{Title: "Daemon"}
	held, err := daemon.LockHeld(cfg)
	switch {
	case err != nil:
		section.add("Sync daemon", healthDegraded, err.Error())
	case held:
		detail := "running"
		if pid, err := daemonrun.ReadPID(cfg.PIDPath()); err == nil {
			detail = fmt.Sprintf("running (pid %d)", pid)
		}
		section.add("Sync daemon", healthReady, detail)
	default:
		section.note("Sync daemon", "not running")
	}
	return section
}

func librarySection(cfg *config.Config) statusSection {
	section := statusSection{Title: "Library"}
	for _, root := range cfg.Roots() {
		label := "Movies"
		if root.Category == media.CategorySeries {
			label = "Series"
		}
		check := preflight.CheckDirectoryAccess(root.Path, root.Path)
		if !check.Passed {
			section.add(label, healthDown, check.Detail)
			continue
		}
		detail := root.Path
		if space, err := preflight.FreeSpace(root.Path); err == nil {
			detail += " (" + space.String() + ")"
		}
		section.add(label, healthReady, detail)
	}
	return section
}

func toolSection(ctx context.Context, cfg *config.Config) statusSection {
	section := statusSection{Title: "Tools"}
	for _, status := range deps.CheckBinaries(ctx, deps.Requirements(cfg)) {
		switch {
		case status.Available:
			detail := status.Path
			if status.Version != "" {
				detail = status.Version
			}
			section.add(status.Name, healthReady, detail)
		case status.Optional:
			section.add(status.Name, healthDegraded, status.Detail)
		default:
			section.add(status.Name, healthDown, status.Detail)
		}
	}
	return section
}

func catalogSection(ctx context.Context, store *catalog.Store) statusSection {
	section := statusSection{Title: "Catalog"}
	stats, err := store.Stats(ctx)
	if err != nil {
		section.add("Database", healthDown, err.Error())
		return section
	}
	section.add("Database", healthReady, store.Path())
	section.note("Entries", fmt.Sprintf("%d (%d movies, %d series)",
		stats.Entries, stats.ByCategory[media.CategoryMovie], stats.ByCategory[media.CategorySeries]))
	section.note("Files", strconv.Itoa(stats.Instances))
	section.note("Enriched", fmt.Sprintf("%d of %d", stats.Enriched, stats.Entries))
	return section
}

func metadataSection(cfg *config.Config) statusSection {
	section := statusSection{Title: "Metadata"}
	if strings.TrimSpace(cfg.TMDB.APIKey) == "" {
		section.add("TMDB", healthDegraded, "no api key; serving cached metadata only")
	} else {
		section.add("TMDB", healthReady, "api key configured")
	}
	section.note("Key frames", yesNo(cfg.KeyFrames.Enabled))
	subs := yesNo(cfg.Subtitles.Enabled)
	if cfg.Subtitles.Enabled && cfg.Subtitles.ExtractEmbedded {
		subs += ", embedded " + strings.Join(cfg.Subtitles.Languages, "/")
	}
	section.note("Subtitles", subs)
	cache := enrichment.NewCache(cfg.Paths.CacheDir, logging.NewNop())
	section.note("Cache", fmt.Sprintf("%d entries in %s", cache.Count(), cache.Dir()))
	return section
}
