package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reelsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Both library roots exist and are empty; retry and debounce delays are
// shortened so tests do not sleep for seconds.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.KeyFrameDir = filepath.Join(base, "keyframes")
	cfgVal.Library.Movies = []string{filepath.Join(base, "library", "movies")}
	cfgVal.Library.Series = []string{filepath.Join(base, "library", "series")}
	cfgVal.TMDB.APIKey = ""
	cfgVal.TMDB.MinRequestIntervalMS = 1
	cfgVal.Transcode.DeleteRetryDelayMS = 10
	cfgVal.Sync.ReadyRetryDelayMS = 10
	cfgVal.Sync.ReadyRetries = 5
	cfgVal.Sync.DebounceMS = 50
	cfgVal.Subtitles.ExtractEmbedded = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	for _, root := range builder.cfg.Roots() {
		if err := os.MkdirAll(root.Path, 0o755); err != nil {
			t.Fatalf("mkdir root %s: %v", root.Path, err)
		}
	}
	return builder.cfg
}

// WithTMDB points the enrichment client at baseURL with the given key.
func WithTMDB(key, baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.APIKey = key
		b.cfg.TMDB.BaseURL = baseURL
	}
}

// WithRoots replaces the library roots. Paths are relative to the test base
// directory unless absolute.
func WithRoots(movies, series []string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Library.Movies = b.resolve(movies)
		b.cfg.Library.Series = b.resolve(series)
	}
}

// WithKeyFrames enables key frame extraction.
func WithKeyFrames() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.KeyFrames.Enabled = true
	}
}

func (b *configBuilder) resolve(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if !filepath.IsAbs(path) {
			path = filepath.Join(b.baseDir, path)
		}
		out = append(out, path)
	}
	return out
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffprobe and ffmpeg are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffprobe", "ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// MoviesRoot returns the first configured movie root.
func MoviesRoot(cfg *config.Config) string {
	return cfg.Library.Movies[0]
}

// SeriesRoot returns the first configured series root.
func SeriesRoot(cfg *config.Config) string {
	return cfg.Library.Series[0]
}
