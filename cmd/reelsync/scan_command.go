package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"reelsync/internal/daemon"
	"reelsync/internal/ingest"
	"reelsync/internal/pipeline"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Reconcile the catalog with the library once",
		Long: `Reconcile the catalog with the library once and exit.

Missing files are removed from the catalog, new files are ingested, queued
conversions run to completion and stale metadata is refreshed. With --dry-run
nothing is written, deleted or converted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			unlock, err := daemon.AcquireLock(cfg)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			defer unlock()

			logger, err := ctx.cliLogger(cfg)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cfg, store, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			report, err := p.Scan(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			printScanReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without touching the catalog or files")
	return cmd
}

func printScanReport(out io.Writer, report pipeline.Report) {
	plan := report.Plan
	if report.DryRun {
		fmt.Fprintln(out, "Dry run: no changes were made")
	}
	fmt.Fprintf(out, "Scanned:  %d files\n", plan.Scanned)
	fmt.Fprintf(out, "New:      %d\n", len(plan.New))
	fmt.Fprintf(out, "Missing:  %d\n", len(plan.Missing))
	fmt.Fprintf(out, "Moved:    %d\n", len(plan.Moved))
	if len(plan.Duplicates) > 0 {
		fmt.Fprintf(out, "Local duplicates: %d\n", len(plan.Duplicates))
	}
	if len(plan.Failed) > 0 {
		fmt.Fprintf(out, "Unreadable: %d\n", len(plan.Failed))
	}
	for _, root := range plan.MissingRoots {
		fmt.Fprintf(out, "Root not found (scanned as empty): %s\n", root.Path)
	}
	for _, dir := range plan.Skipped {
		fmt.Fprintf(out, "Unreadable directory (entries kept): %s\n", dir)
	}
	if !report.DryRun {
		fmt.Fprintf(out, "Deleted:  %d\n", plan.Deleted)
		fmt.Fprintf(out, "Ingested: %d, queued: %d, deferred: %d, duplicate: %d, failed: %d\n",
			report.Count(ingest.OutcomeIngested),
			report.Count(ingest.OutcomeQueued),
			report.Count(ingest.OutcomeDeferred),
			report.Count(ingest.OutcomeDuplicate),
			report.Failed,
		)
		fmt.Fprintf(out, "Transcoded: %d\n", report.Transcoded)
		fmt.Fprintf(out, "Metadata: %d checked, %d updated, %d failed\n",
			report.Enrichment.Checked, report.Enrichment.Updated, report.Enrichment.Failed)
	}

	if len(plan.New) > 0 {
		list := newListing("Category", "File", "Folder", "Fingerprint")
		for _, local := range plan.New {
			list.row(string(local.File.Category), local.File.Filename,
				relativeTo(local.File.Root, local.File.Dir), shortFingerprint(local.Fingerprint))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, list)
	}
	if len(plan.Moved) > 0 {
		list := newListing("From", "To", "Fingerprint")
		for _, m := range plan.Moved {
			list.row(m.From, m.To, shortFingerprint(m.Fingerprint))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, list)
	}
	if len(plan.Missing) > 0 {
		list := newListing("#", "Missing path", "Fingerprint").numeric(1)
		for i, m := range plan.Missing {
			list.row(strconv.Itoa(i+1), m.Path, shortFingerprint(m.Fingerprint))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, list)
	}
}

func relativeTo(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return dir
	}
	return rel
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
