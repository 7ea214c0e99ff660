package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"reelsync/internal/media"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for state, logs and caches.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	CacheDir    string `toml:"cache_dir"`
	KeyFrameDir string `toml:"keyframe_dir"`
}

// Library maps categories to the root directories that hold them.
type Library struct {
	Movies     []string `toml:"movies"`
	Series     []string `toml:"series"`
	Extensions []string `toml:"extensions"`
}

// Compatibility is the directly-playable codec/container policy.
type Compatibility struct {
	VideoCodec string `toml:"video_codec"`
	AudioCodec string `toml:"audio_codec"`
	Extension  string `toml:"extension"`
}

// Tools configures the external media inspector and encoder.
type Tools struct {
	FFprobe              string `toml:"ffprobe"`
	FFmpeg               string `toml:"ffmpeg"`
	ProbeTimeoutSeconds  int    `toml:"probe_timeout_seconds"`
	EncodeTimeoutSeconds int    `toml:"encode_timeout_seconds"`
}

// Transcode contains encoder parameters and transcode queue limits.
type Transcode struct {
	VideoEncoder           string `toml:"video_encoder"`
	Preset                 string `toml:"preset"`
	CRF                    int    `toml:"crf"`
	PixelFormat            string `toml:"pixel_format"`
	AudioEncoder           string `toml:"audio_encoder"`
	AudioChannels          int    `toml:"audio_channels"`
	QueueSize              int    `toml:"queue_size"`
	DeleteRetries          int    `toml:"delete_retries"`
	DeleteRetryDelayMS     int    `toml:"delete_retry_delay_ms"`
	RemuxCompatibleStreams bool   `toml:"remux_compatible_streams"`
}

// Sync contains scanner, reconciler and watcher tuning.
type Sync struct {
	ScanWorkers           int   `toml:"scan_workers"`
	WatcherWorkers        int   `toml:"watcher_workers"`
	FingerprintBytes      int64 `toml:"fingerprint_bytes"`
	ReadyRetries          int   `toml:"ready_retries"`
	ReadyRetryDelayMS     int   `toml:"ready_retry_delay_ms"`
	SuppressionTTLSeconds int   `toml:"suppression_ttl_seconds"`
	DebounceMS            int   `toml:"debounce_ms"`
}

// TMDB contains configuration for The Movie Database API and the enrichment policy.
type TMDB struct {
	APIKey                string `toml:"api_key"`
	BaseURL               string `toml:"base_url"`
	Language              string `toml:"language"`
	MinRequestIntervalMS  int    `toml:"min_request_interval_ms"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	StaleAfterHours       int    `toml:"stale_after_hours"`
	RefreshIntervalHours  int    `toml:"refresh_interval_hours"`
	RefreshBatchSize      int    `toml:"refresh_batch_size"`
}

// KeyFrames controls optional still-frame extraction.
type KeyFrames struct {
	Enabled bool `toml:"enabled"`
	// Position is the fraction of the duration at which the frame is grabbed.
	Position float64 `toml:"position"`
}

// Subtitles controls sidecar subtitle discovery and the extraction of
// embedded text tracks when a file has no sidecars.
type Subtitles struct {
	Enabled         bool     `toml:"enabled"`
	ConvertSRT      bool     `toml:"convert_srt"`
	ExtractEmbedded bool     `toml:"extract_embedded"`
	Languages       []string `toml:"languages"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for reelsync.
//
// Configuration sections by subsystem:
//   - Paths: state, log, cache and key frame directories
//   - Library: category to root directory mapping
//   - Compatibility: directly-playable codec/container policy
//   - Tools: ffprobe/ffmpeg binaries and process ceilings
//   - Transcode: encoder parameters and queue limits
//   - Sync: scan/watch concurrency, readiness retries, suppression TTL
//   - TMDB: metadata provider access and staleness policy
//   - KeyFrames, Subtitles: optional ingestion extras
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Library       Library       `toml:"library"`
	Compatibility Compatibility `toml:"compatibility"`
	Tools         Tools         `toml:"tools"`
	Transcode     Transcode     `toml:"transcode"`
	Sync          Sync          `toml:"sync"`
	TMDB          TMDB          `toml:"tmdb"`
	KeyFrames     KeyFrames     `toml:"keyframes"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to. Library
// roots are never created here: a missing root is scanned as empty.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.CacheDir}
	if c.KeyFrames.Enabled {
		dirs = append(dirs, c.Paths.KeyFrameDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Roots returns every configured library root tagged with its category,
// sorted by category then path.
func (c *Config) Roots() []media.Root {
	roots := make([]media.Root, 0, len(c.Library.Movies)+len(c.Library.Series))
	for _, path := range c.Library.Movies {
		roots = append(roots, media.Root{Category: media.CategoryMovie, Path: path})
	}
	for _, path := range c.Library.Series {
		roots = append(roots, media.Root{Category: media.CategorySeries, Path: path})
	}
	sort.SliceStable(roots, func(i, j int) bool {
		if roots[i].Category != roots[j].Category {
			return roots[i].Category < roots[j].Category
		}
		return roots[i].Path < roots[j].Path
	})
	return roots
}

// CatalogPath returns the SQLite catalog location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "reelsync.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "reelsync.pid")
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Tools.FFprobe); bin != "" {
		return bin
	}
	return defaultFFprobe
}

// FFmpegBinary returns the ffmpeg executable used for transcoding and key frames.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Tools.FFmpeg); bin != "" {
		return bin
	}
	return defaultFFmpeg
}

// ProbeTimeout bounds a single ffprobe invocation.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Tools.ProbeTimeoutSeconds) * time.Second
}

// EncodeTimeout bounds a single ffmpeg invocation.
func (c *Config) EncodeTimeout() time.Duration {
	return time.Duration(c.Tools.EncodeTimeoutSeconds) * time.Second
}

// DeleteRetryDelay is the pause between source deletion attempts.
func (c *Config) DeleteRetryDelay() time.Duration {
	return time.Duration(c.Transcode.DeleteRetryDelayMS) * time.Millisecond
}

// ReadyRetryDelay is the pause between file readiness checks.
func (c *Config) ReadyRetryDelay() time.Duration {
	return time.Duration(c.Sync.ReadyRetryDelayMS) * time.Millisecond
}

// SuppressionTTL is how long a self-generated path stays suppressed.
func (c *Config) SuppressionTTL() time.Duration {
	return time.Duration(c.Sync.SuppressionTTLSeconds) * time.Second
}

// Debounce is the window in which repeated events for a path collapse.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Sync.DebounceMS) * time.Millisecond
}

// TMDBMinInterval is the minimum delay between metadata provider requests.
func (c *Config) TMDBMinInterval() time.Duration {
	return time.Duration(c.TMDB.MinRequestIntervalMS) * time.Millisecond
}

// TMDBRequestTimeout bounds one metadata provider HTTP request.
func (c *Config) TMDBRequestTimeout() time.Duration {
	return time.Duration(c.TMDB.RequestTimeoutSeconds) * time.Second
}

// StaleAfter is the enrichment freshness window.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.TMDB.StaleAfterHours) * time.Hour
}

// RefreshInterval is the period of the background enrichment refresh.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.TMDB.RefreshIntervalHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
