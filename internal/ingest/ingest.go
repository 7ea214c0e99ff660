package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"reelsync/internal/catalog"
	"reelsync/internal/compat"
	"reelsync/internal/identity"
	"reelsync/internal/logging"
	"reelsync/internal/media"
	"reelsync/internal/parser"
	"reelsync/internal/services"
	"reelsync/internal/transcode"
)

// Catalog is the subset of the catalog store ingestion writes through.
type Catalog interface {
	InstancePath(ctx context.Context, fingerprint string) (string, bool, error)
	MovePaths(ctx context.Context, moves map[string]string) (int64, error)
	Ingest(ctx context.Context, record media.Record) (catalog.IngestResult, error)
}

// Prober returns normalized technical metadata for a file.
type Prober interface {
	Probe(ctx context.Context, path string) (media.Technical, error)
}

// Fingerprinter computes the partial-content fingerprint of a file.
type Fingerprinter interface {
	Fingerprint(path string) (string, error)
}

// Transcoder accepts files the compatibility policy rejected.
type Transcoder interface {
	Enqueue(job transcode.Job) error
}

// Enricher is notified after a catalog write.
type Enricher interface {
	Notify(entryID int64)
}

// KeyFramer extracts a still for an instance.
type KeyFramer interface {
	Extract(ctx context.Context, path, fingerprint string, durationSeconds float64) (string, error)
}

// SubtitleCollector lists sidecar subtitles for a media path, extracting
// embedded tracks when configured.
type SubtitleCollector interface {
	Collect(ctx context.Context, mediaPath string) []string
}

// Outcome is what happened to one file.
type Outcome string

const (
	OutcomeIngested  Outcome = "ingested"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeMoved     Outcome = "moved"
	OutcomeQueued    Outcome = "queued"
	OutcomeDeferred  Outcome = "deferred"
	OutcomeSkipped   Outcome = "skipped"
)

// Result reports the outcome for one file.
type Result struct {
	File        media.File
	Fingerprint string
	Outcome     Outcome
	EntryID     int64
	Verdict     compat.Verdict
}

// Options wires the collaborators. Catalog, Prober and Hasher are required;
// the rest may be nil to disable the corresponding step.
type Options struct {
	Catalog    Catalog
	Prober     Prober
	Hasher     Fingerprinter
	Policy     compat.Policy
	Parser     parser.Parser
	Transcoder Transcoder
	Enricher   Enricher
	KeyFrames  KeyFramer
	Subtitles  SubtitleCollector
}

// Ingestor routes files through the ingestion path. It holds no per-file
// state and is safe for concurrent use.
type Ingestor struct {
	opts   Options
	logger *slog.Logger
}

// New returns an Ingestor.
func New(opts Options, logger *slog.Logger) (*Ingestor, error) {
	if opts.Catalog == nil || opts.Prober == nil || opts.Hasher == nil {
		return nil, errors.New("ingest: catalog, prober and hasher are required")
	}
	if opts.Parser.Now == nil {
		opts.Parser = parser.New()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingestor{opts: opts, logger: logging.NewComponentLogger(logger, "ingest")}, nil
}

// Process ingests file. An empty fingerprint is computed here. Probe failures
// skip the file and are returned so callers can classify them; a missing
// probe binary is returned as services.ErrToolMissing.
func (i *Ingestor) Process(ctx context.Context, file media.File, fingerprint string) (Result, error) {
	return i.process(ctx, file, fingerprint, true)
}

// Transcoded ingests the output of a finished transcode job. It matches the
// transcode.Completion signature. The file is never queued again, even when
// it still fails the policy.
func (i *Ingestor) Transcoded(ctx context.Context, file media.File) error {
	_, err := i.process(ctx, file, "", false)
	return err
}

func (i *Ingestor) process(ctx context.Context, file media.File, fingerprint string, allowTranscode bool) (Result, error) {
	path := file.Path()
	ctx = services.WithCategory(services.WithPath(ctx, path), file.Category.String())
	logger := logging.WithContext(ctx, i.logger)
	result := Result{File: file, Fingerprint: fingerprint}

	if result.Fingerprint == "" {
		fp, err := i.opts.Hasher.Fingerprint(path)
		if err != nil {
			return result, err
		}
		result.Fingerprint = fp
	}

	catalogued, known, err := i.opts.Catalog.InstancePath(ctx, result.Fingerprint)
	if err != nil {
		return result, err
	}
	if known {
		return i.known(ctx, logger, result, catalogued)
	}

	tech, err := i.opts.Prober.Probe(ctx, path)
	if err != nil {
		result.Outcome = OutcomeSkipped
		hint := "check that the file is a complete media file"
		if errors.Is(err, services.ErrToolMissing) {
			hint = "install ffprobe or set tools.ffprobe"
		}
		logging.WarnWithContext(logger, "probe failed", "probe_failed",
			append(logging.Failure(err, hint), logging.String(logging.FieldImpact, "file not catalogued"))...,
		)
		return result, err
	}

	result.Verdict = i.opts.Policy.Classify(tech, file.Extension())
	if !result.Verdict.Compatible {
		if allowTranscode {
			return i.enqueue(logger, result, tech)
		}
		logging.WarnWithContext(logger, "transcoded output still incompatible", "transcode_output_incompatible",
			logging.String("verdict", result.Verdict.String()),
			logging.String(logging.FieldImpact, "catalogued as is"),
			logging.String(logging.FieldErrorHint, "review transcode encoder settings against the compatibility policy"),
		)
	}

	record, err := i.Record(ctx, file, result.Fingerprint, tech)
	if err != nil {
		result.Outcome = OutcomeSkipped
		return result, err
	}
	written, err := i.opts.Catalog.Ingest(ctx, record)
	if err != nil {
		logging.ErrorWithContext(logger, "catalog write failed", "catalog_write_failed",
			logging.Failure(err, "check catalog.db permissions and free space")...,
		)
		return result, err
	}
	if written.Duplicate {
		result.Outcome = OutcomeDuplicate
		return result, nil
	}

	result.Outcome = OutcomeIngested
	result.EntryID = written.EntryID
	logger.Info("file ingested",
		logging.String("title", record.DisplayTitle()),
		logging.String(logging.FieldTitleKey, record.Key()),
		logging.String(logging.FieldFingerprint, result.Fingerprint),
		logging.Int64("entry_id", written.EntryID),
		logging.Bool("entry_created", written.EntryCreated),
	)
	if written.Replaced != "" {
		logger.Info("stale instance at path replaced", logging.String("replaced_fingerprint", written.Replaced))
	}
	if i.opts.Enricher != nil {
		i.opts.Enricher.Notify(written.EntryID)
	}
	return result, nil
}

// known handles a fingerprint that is already catalogued. When its recorded
// path no longer exists the file was moved and the instance follows it;
// otherwise the file is a second copy.
func (i *Ingestor) known(ctx context.Context, logger *slog.Logger, result Result, catalogued string) (Result, error) {
	path := result.File.Path()
	result.Outcome = OutcomeDuplicate
	if catalogued == path {
		return result, nil
	}
	if _, err := os.Stat(catalogued); err == nil || !errors.Is(err, os.ErrNotExist) {
		logger.Debug("fingerprint already catalogued",
			logging.String(logging.FieldFingerprint, result.Fingerprint),
			logging.String("catalogued_path", catalogued),
		)
		return result, nil
	}
	if _, err := i.opts.Catalog.MovePaths(ctx, map[string]string{result.Fingerprint: path}); err != nil {
		return result, err
	}
	result.Outcome = OutcomeMoved
	logger.Info("catalogued file moved",
		logging.String("from", catalogued),
		logging.String("to", path),
		logging.String(logging.FieldFingerprint, result.Fingerprint),
	)
	return result, nil
}

func (i *Ingestor) enqueue(logger *slog.Logger, result Result, tech media.Technical) (Result, error) {
	if i.opts.Transcoder == nil {
		result.Outcome = OutcomeSkipped
		logger.Info("incompatible file left unconverted", logging.String("verdict", result.Verdict.String()))
		return result, nil
	}
	err := i.opts.Transcoder.Enqueue(transcode.Job{File: result.File, Verdict: result.Verdict, Technical: tech})
	if errors.Is(err, transcode.ErrQueueFull) {
		result.Outcome = OutcomeDeferred
		return result, nil
	}
	if err != nil {
		return result, err
	}
	result.Outcome = OutcomeQueued
	return result, nil
}

// Record builds the catalog payload for file from its parsed name, technical
// metadata and sidecars.
func (i *Ingestor) Record(ctx context.Context, file media.File, fingerprint string, tech media.Technical) (media.Record, error) {
	path := file.Path()
	info, err := os.Stat(path)
	if err != nil {
		marker := services.ErrTransient
		if os.IsNotExist(err) {
			marker = services.ErrNotFound
		}
		return nil, services.Wrap(marker, "ingest", "stat", path, err)
	}

	instance := media.Instance{
		Fingerprint: fingerprint,
		Path:        path,
		Extension:   file.Extension(),
		SizeBytes:   info.Size(),
		FileSize:    media.HumanSize(info.Size()),
		Technical:   tech,
	}
	if i.opts.KeyFrames != nil {
		name, err := i.opts.KeyFrames.Extract(ctx, path, fingerprint, tech.DurationSeconds)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, i.logger), "key frame extraction failed", "keyframe_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "instance stored without a key frame"),
				logging.String(logging.FieldErrorHint, "check ffmpeg and keyframe_dir permissions"),
			)
		}
		instance.KeyFrame = name
	}
	if i.opts.Subtitles != nil {
		instance.Subtitles = i.opts.Subtitles.Collect(ctx, path)
	}

	parsed := i.opts.Parser.Parse(file)
	switch file.Category {
	case media.CategoryMovie:
		return media.MovieRecord{
			Title:    parsed.Title,
			TitleKey: identity.TitleKey(media.CategoryMovie, parsed.Title),
			Year:     parsed.Year,
			Instance: instance,
		}, nil
	case media.CategorySeries:
		return media.SeriesRecord{
			Title:        parsed.Title,
			TitleKey:     identity.TitleKey(media.CategorySeries, parsed.Title),
			Year:         parsed.Year,
			Season:       parsed.Season,
			Episode:      parsed.Episode,
			EpisodeTitle: parsed.EpisodeTitle,
			Tiebreaker:   parsed.Tiebreaker,
			Instance:     instance,
		}, nil
	default:
		return nil, services.Wrap(services.ErrValidation, "ingest", "record",
			fmt.Sprintf("unknown category %q for %s", strings.TrimSpace(string(file.Category)), path), nil)
	}
}
