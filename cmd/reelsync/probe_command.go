package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"reelsync/internal/compat"
	"reelsync/internal/config"
	"reelsync/internal/identity"
	"reelsync/internal/media"
	"reelsync/internal/media/ffprobe"
	"reelsync/internal/parser"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>...",
		Short: "Show how files would be identified and classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			policy := compat.PolicyFromConfig(cfg)
			prober := ffprobe.NewProber(cfg.FFprobeBinary(), cfg.ProbeTimeout())

			var (
				batch []compat.Candidate
				errs  []error
			)
			for i, arg := range args {
				if i > 0 {
					fmt.Fprintln(out)
				}
				candidate, err := inspectOne(cmd.Context(), out, cfg, policy, prober, arg)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				batch = append(batch, candidate)
			}
			if len(args) > 1 {
				printPartition(out, policy, batch)
			}
			return errors.Join(errs...)
		},
	}
}

func inspectOne(ctx context.Context, out io.Writer, cfg *config.Config, policy compat.Policy, prober *ffprobe.Prober, arg string) (compat.Candidate, error) {
	path, err := filepath.Abs(arg)
	if err != nil {
		return compat.Candidate{}, fmt.Errorf("resolve path: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return compat.Candidate{}, fmt.Errorf("probe: %w", err)
	}

	root, ok := media.ResolveRoot(cfg.Roots(), path)
	if !ok {
		root = media.Root{Category: media.CategoryMovie, Path: filepath.Dir(path)}
	}
	file := media.NewFile(root, path)
	parsed := parser.New().Parse(file)

	pairs := [][2]string{
		{"Path", path},
		{"Category", root.Category.String()},
		{"Title", parsed.Title},
		{"Year", parsed.Year},
		{"Resolution", parsed.Resolution},
	}
	if !ok {
		pairs[1][1] += " (outside library roots)"
	}
	if root.Category == media.CategorySeries {
		pairs = append(pairs,
			[2]string{"Season", strconv.Itoa(parsed.Season)},
			[2]string{"Episode", strconv.Itoa(parsed.Episode)},
			[2]string{"Episode title", parsed.EpisodeTitle},
		)
	}
	pairs = append(pairs, [2]string{"Title key", identity.TitleKey(root.Category, parsed.Title)})

	fp, err := identity.NewHasher(cfg.Sync.FingerprintBytes).Fingerprint(path)
	if err != nil {
		pairs = append(pairs, [2]string{"Fingerprint", "error: " + err.Error()})
	} else {
		pairs = append(pairs, [2]string{"Fingerprint", fp})
	}

	tech, probeErr := prober.Probe(ctx, path)
	if probeErr == nil {
		pairs = append(pairs,
			[2]string{"Video", tech.VideoCodec + " " + tech.Resolution},
			[2]string{"Audio", tech.AudioCodec},
			[2]string{"Duration", tech.Duration},
			[2]string{"Bitrate", tech.Bitrate},
			[2]string{"Frame rate", tech.FrameRate},
			[2]string{"Compatibility", verdictText(policy.Classify(tech, file.Extension()))},
		)
	}

	fmt.Fprintln(out, renderPairs(pairs))
	if probeErr != nil {
		return compat.Candidate{}, fmt.Errorf("probe %s: %w", path, probeErr)
	}
	return compat.Candidate{File: file, Technical: tech}, nil
}

func printPartition(out io.Writer, policy compat.Policy, batch []compat.Candidate) {
	compatible, incompatible := policy.Partition(batch)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Compatible: %d, needs conversion: %d\n", len(compatible), len(incompatible))
	if len(incompatible) == 0 {
		return
	}
	list := newListing("File", "Verdict")
	for _, candidate := range incompatible {
		list.row(candidate.File.Filename, verdictText(policy.Classify(candidate.Technical, candidate.File.Extension())))
	}
	fmt.Fprintln(out, list)
}

func verdictText(v compat.Verdict) string {
	switch {
	case v.Compatible:
		return v.String()
	case v.RemuxOnly():
		return v.String() + " (remux)"
	default:
		return v.String() + " (transcode)"
	}
}
