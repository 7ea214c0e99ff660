package subtitles

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"reelsync/internal/fileutil"
	"reelsync/internal/logging"
	"reelsync/internal/services"
)

const (
	extSRT = ".srt"
	extVTT = ".vtt"

	vttHeader = "WEBVTT"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Finder discovers and normalizes sidecar subtitles.
type Finder struct {
	convert   bool
	extractor *Extractor
	logger    *slog.Logger
}

// NewFinder returns a Finder. With convert set, .srt sidecars are converted
// to .vtt and the .vtt path is reported instead. The .srt is left in place.
// A non-nil extractor is used for files that have no sidecars.
func NewFinder(convert bool, extractor *Extractor, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Finder{convert: convert, extractor: extractor, logger: logging.NewComponentLogger(logger, "subtitles")}
}

// Collect returns the subtitle paths for the media file at mediaPath, sorted.
// Conversion and extraction failures are logged; whatever was found is kept.
func (f *Finder) Collect(ctx context.Context, mediaPath string) []string {
	found, err := Discover(mediaPath)
	if err != nil {
		f.logger.Debug("subtitle discovery failed", logging.String(logging.FieldPath, mediaPath), logging.Error(err))
		return nil
	}
	if len(found) == 0 && f.extractor != nil {
		extracted, err := f.extractor.Extract(ctx, mediaPath)
		if err != nil {
			logging.WarnWithContext(f.logger, "embedded subtitles not extracted", "subtitle_extract_failed",
				append(logging.Failure(err, "install ffmpeg or set subtitles.extract_embedded = false"),
					logging.String(logging.FieldPath, mediaPath),
					logging.String(logging.FieldImpact, "instance stored without embedded subtitles"))...,
			)
		}
		found = extracted
	}

	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	for _, path := range found {
		if !f.convert || strings.ToLower(filepath.Ext(path)) != extSRT {
			add(path)
			continue
		}
		target := strings.TrimSuffix(path, filepath.Ext(path)) + extVTT
		if err := ConvertFile(path, target); err != nil {
			logging.WarnWithContext(f.logger, "subtitle conversion failed", "subtitle_convert_failed",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the srt sidecar is stored unconverted"),
			)
			add(path)
			continue
		}
		add(target)
	}
	sort.Strings(out)
	return out
}

// Discover lists .srt and .vtt sidecars for mediaPath without modifying them.
func Discover(mediaPath string) ([]string, error) {
	dir := filepath.Dir(mediaPath)
	stem := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))

	dedicated := filepath.Join(dir, "subs_"+stem)
	if info, err := os.Stat(dedicated); err == nil && info.IsDir() {
		entries, err := os.ReadDir(dedicated)
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "subtitles", "discover", dedicated, err)
		}
		var out []string
		for _, entry := range entries {
			if !entry.IsDir() && isSubtitle(entry.Name()) {
				out = append(out, filepath.Join(dedicated, entry.Name()))
			}
		}
		return out, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "subtitles", "discover", dir, err)
	}
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isSubtitle(name) {
			continue
		}
		subStem := strings.TrimSuffix(name, filepath.Ext(name))
		if subStem == stem || strings.HasPrefix(subStem, stem+".") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}

// ConvertFile writes the WebVTT rendition of the SubRip file src to dst. An
// existing dst at least as new as src is kept.
func ConvertFile(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat srt: %w", err)
	}
	if dstInfo, err := os.Stat(dst); err == nil && !dstInfo.ModTime().Before(srcInfo.ModTime()) {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read srt: %w", err)
	}
	converted, err := ConvertSRT(data)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(dst, converted, 0o644)
}

// ConvertSRT converts SubRip content to WebVTT: a header is prepended and
// the millisecond comma in cue timings becomes a period. Cue text is left
// untouched.
func ConvertSRT(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	var out bytes.Buffer
	out.WriteString(vttHeader + "\n\n")

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.Contains(line, "-->") {
			line = strings.ReplaceAll(line, ",", ".")
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan srt: %w", err)
	}
	return out.Bytes(), nil
}

func isSubtitle(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case extSRT, extVTT:
		return true
	default:
		return false
	}
}
