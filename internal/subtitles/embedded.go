package subtitles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reelsync/internal/logging"
	"reelsync/internal/services"
)

var commandContext = exec.CommandContext

// textCodecs are the subtitle codecs ffmpeg can render as WebVTT. Bitmap
// tracks (PGS, VobSub) are skipped.
var textCodecs = map[string]struct{}{
	"subrip":   {},
	"srt":      {},
	"ass":      {},
	"ssa":      {},
	"webvtt":   {},
	"mov_text": {},
	"text":     {},
}

// Stream is one embedded subtitle track as reported by ffprobe.
type Stream struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec_name"`
	Language string `json:"-"`
	Title    string `json:"-"`
	// Position is the stream's ordinal among subtitle streams, the N in
	// ffmpeg's "0:s:N" selector.
	Position int `json:"-"`
}

// Extractor pulls embedded text subtitle tracks into WebVTT files in the
// dedicated "subs_<stem>" folder beside the media file.
type Extractor struct {
	ffprobe        string
	ffmpeg         string
	languages      map[string]struct{}
	listTimeout   time.Duration
	extractTimeout time.Duration
	logger         *slog.Logger
}

// NewExtractor returns an Extractor keeping tracks whose language tag is in
// languages.
func NewExtractor(ffprobe, ffmpeg string, languages []string, listTimeout, extractTimeout time.Duration, logger *slog.Logger) *Extractor {
	if strings.TrimSpace(ffprobe) == "" {
		ffprobe = "ffprobe"
	}
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	langs := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		langs[strings.ToLower(strings.TrimSpace(lang))] = struct{}{}
	}
	return &Extractor{
		ffprobe:        ffprobe,
		ffmpeg:         ffmpeg,
		languages:      langs,
		listTimeout:   listTimeout,
		extractTimeout: extractTimeout,
		logger:         logging.NewComponentLogger(logger, "subtitles"),
	}
}

// Streams lists the subtitle streams of the file at path.
func (e *Extractor) Streams(ctx context.Context, path string) ([]Stream, error) {
	if e.listTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.listTimeout)
		defer cancel()
	}
	args := []string{
		"-v", "error",
		"-select_streams", "s",
		"-show_entries", "stream=index,codec_name:stream_tags=title,language",
		"-of", "json",
		path,
	}
	cmd := commandContext(ctx, e.ffprobe, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, e.commandError(ctx, "list streams", e.ffprobe, path, stderr.String(), err)
	}

	var payload struct {
		Streams []struct {
			Stream
			Tags struct {
				Language string `json:"language"`
				Title    string `json:"title"`
			} `json:"tags"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, services.Wrap(services.ErrProbe, "subtitles", "parse streams", path, err)
	}
	streams := make([]Stream, 0, len(payload.Streams))
	for i, raw := range payload.Streams {
		stream := raw.Stream
		stream.Language = strings.ToLower(strings.TrimSpace(raw.Tags.Language))
		stream.Title = raw.Tags.Title
		stream.Position = i
		streams = append(streams, stream)
	}
	return streams, nil
}

// Extract writes every wanted text track of mediaPath as
// subs_<stem>/<stem>_<index><language>.vtt and returns the written paths.
// Existing non-empty outputs are reused. A track that fails to convert is
// logged and skipped; a missing binary aborts.
func (e *Extractor) Extract(ctx context.Context, mediaPath string) ([]string, error) {
	streams, err := e.Streams(ctx, mediaPath)
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	dir := filepath.Join(filepath.Dir(mediaPath), "subs_"+stem)

	var out []string
	for _, stream := range streams {
		if !e.wanted(stream) {
			continue
		}
		target := filepath.Join(dir, stem+"_"+strconv.Itoa(stream.Index)+stream.Language+extVTT)
		if info, err := os.Stat(target); err == nil && info.Size() > 0 {
			out = append(out, target)
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return out, fmt.Errorf("create subtitle dir: %w", err)
		}
		if err := e.extractStream(ctx, mediaPath, target, stream); err != nil {
			_ = os.Remove(target)
			if errors.Is(err, services.ErrToolMissing) || ctx.Err() != nil {
				return out, err
			}
			logging.WarnWithContext(e.logger, "embedded subtitle extraction failed", "subtitle_extract_failed",
				logging.String(logging.FieldPath, mediaPath),
				logging.Int("stream_index", stream.Index),
				logging.String("language", stream.Language),
				logging.Error(err),
				logging.String(logging.FieldImpact, "this track is not stored"),
			)
			continue
		}
		out = append(out, target)
	}
	if len(out) == 0 {
		_ = os.Remove(dir)
	}
	return out, nil
}

func (e *Extractor) wanted(stream Stream) bool {
	if _, ok := e.languages[stream.Language]; !ok {
		return false
	}
	_, ok := textCodecs[strings.ToLower(stream.Codec)]
	return ok
}

func (e *Extractor) extractStream(ctx context.Context, mediaPath, target string, stream Stream) error {
	if e.extractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.extractTimeout)
		defer cancel()
	}
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", mediaPath,
		"-map", "0:s:" + strconv.Itoa(stream.Position),
		"-c:s", "webvtt",
		target,
	}
	cmd := commandContext(ctx, e.ffmpeg, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return e.commandError(ctx, "extract stream", e.ffmpeg, mediaPath, stderr.String(), err)
	}
	if info, err := os.Stat(target); err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "subtitles", "extract stream", "ffmpeg produced no output", err)
	}
	return nil
}

func (e *Extractor) commandError(ctx context.Context, op, binary, path, stderr string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return services.Wrap(services.ErrToolMissing, "subtitles", op, binary, err)
	case ctx.Err() != nil:
		return services.Wrap(services.ErrTimeout, "subtitles", op, path, ctx.Err())
	default:
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = path
		}
		return services.Wrap(services.ErrExternalTool, "subtitles", op, detail, err)
	}
}
