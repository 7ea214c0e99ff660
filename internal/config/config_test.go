package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reelsync/internal/config"
	"reelsync/internal/media"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "reelsync")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.CatalogPath() != filepath.Join(wantData, "catalog.db") {
		t.Fatalf("unexpected catalog path: %q", cfg.CatalogPath())
	}
	if len(cfg.Library.Movies) != 1 || cfg.Library.Movies[0] != filepath.Join(tempHome, "library", "movies") {
		t.Fatalf("unexpected movie roots: %v", cfg.Library.Movies)
	}
	if cfg.Compatibility.VideoCodec != "h264" || cfg.Compatibility.AudioCodec != "aac" || cfg.Compatibility.Extension != "mp4" {
		t.Fatalf("unexpected compatibility defaults: %+v", cfg.Compatibility)
	}
	if cfg.Sync.FingerprintBytes != 2*1024*1024 {
		t.Fatalf("unexpected fingerprint bytes: %d", cfg.Sync.FingerprintBytes)
	}
	if cfg.TMDBMinInterval().Milliseconds() != 200 {
		t.Fatalf("unexpected tmdb interval: %v", cfg.TMDBMinInterval())
	}
	if cfg.TMDB.APIKey != "" {
		t.Fatalf("expected empty TMDB key, got %q", cfg.TMDB.APIKey)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.CacheDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if _, err := os.Stat(cfg.Library.Movies[0]); !os.IsNotExist(err) {
		t.Fatalf("library roots must not be created, stat err=%v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "env-key")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "reelsync.toml")

	type payload struct {
		Library struct {
			Movies     []string `toml:"movies"`
			Series     []string `toml:"series"`
			Extensions []string `toml:"extensions"`
		} `toml:"library"`
		Compatibility struct {
			VideoCodec string `toml:"video_codec"`
			Extension  string `toml:"extension"`
		} `toml:"compatibility"`
		Sync struct {
			WatcherWorkers int `toml:"watcher_workers"`
		} `toml:"sync"`
	}
	custom := payload{}
	custom.Library.Movies = []string{filepath.Join(tempDir, "films"), filepath.Join(tempDir, "films")}
	custom.Library.Series = []string{filepath.Join(tempDir, "shows")}
	custom.Library.Extensions = []string{"MKV", ".mp4"}
	custom.Compatibility.VideoCodec = " HEVC "
	custom.Compatibility.Extension = ".MKV"
	custom.Sync.WatcherWorkers = 8

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if len(cfg.Library.Movies) != 1 {
		t.Fatalf("expected duplicate roots to collapse, got %v", cfg.Library.Movies)
	}
	if got := strings.Join(cfg.Library.Extensions, ","); got != ".mkv,.mp4" {
		t.Fatalf("unexpected extensions: %q", got)
	}
	if cfg.Compatibility.VideoCodec != "hevc" || cfg.Compatibility.Extension != "mkv" {
		t.Fatalf("unexpected compatibility: %+v", cfg.Compatibility)
	}
	if cfg.Compatibility.AudioCodec != "aac" {
		t.Fatalf("expected default audio codec to survive partial config, got %q", cfg.Compatibility.AudioCodec)
	}
	if cfg.Sync.WatcherWorkers != 8 {
		t.Fatalf("unexpected watcher workers: %d", cfg.Sync.WatcherWorkers)
	}
	if cfg.TMDB.APIKey != "env-key" {
		t.Fatalf("expected TMDB key from env, got %q", cfg.TMDB.APIKey)
	}

	roots := cfg.Roots()
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %v", roots)
	}
	if roots[0].Category != media.CategoryMovie || roots[1].Category != media.CategorySeries {
		t.Fatalf("unexpected root ordering: %v", roots)
	}
}

func TestLoadRejectsEmptyLibrary(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "reelsync.toml")
	content := "[library]\nmovies = []\nseries = []\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error when no library roots are configured")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"scan workers", func(c *config.Config) { c.Sync.ScanWorkers = 0 }},
		{"queue size", func(c *config.Config) { c.Transcode.QueueSize = 0 }},
		{"video codec", func(c *config.Config) { c.Compatibility.VideoCodec = "" }},
		{"probe timeout", func(c *config.Config) { c.Tools.ProbeTimeoutSeconds = 0 }},
		{"subtitle languages", func(c *config.Config) {
			c.Subtitles.ExtractEmbedded = true
			c.Subtitles.Languages = nil
		}},
		{"keyframe position", func(c *config.Config) {
			c.KeyFrames.Enabled = true
			c.KeyFrames.Position = 1.5
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			cfg.Paths.LogDir = t.TempDir()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Transcode.VideoEncoder != "libx264" {
		t.Fatalf("unexpected encoder from sample: %q", cfg.Transcode.VideoEncoder)
	}
}
