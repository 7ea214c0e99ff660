package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	c.normalizeCompatibility()
	c.normalizeTools()
	c.normalizeTMDB()
	c.normalizeSubtitles()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.KeyFrameDir) == "" {
		c.Paths.KeyFrameDir = defaultKeyFrameDir
	}
	if c.Paths.KeyFrameDir, err = expandPath(c.Paths.KeyFrameDir); err != nil {
		return fmt.Errorf("paths.keyframe_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLibrary() error {
	var err error
	if c.Library.Movies, err = normalizeRoots(c.Library.Movies); err != nil {
		return fmt.Errorf("library.movies: %w", err)
	}
	if c.Library.Series, err = normalizeRoots(c.Library.Series); err != nil {
		return fmt.Errorf("library.series: %w", err)
	}

	exts := make([]string, 0, len(c.Library.Extensions))
	seen := make(map[string]struct{}, len(c.Library.Extensions))
	for _, ext := range c.Library.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	c.Library.Extensions = exts
	return nil
}

func normalizeRoots(roots []string) ([]string, error) {
	out := make([]string, 0, len(roots))
	seen := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		expanded, err := expandPath(root)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		out = append(out, expanded)
	}
	return out, nil
}

func (c *Config) normalizeCompatibility() {
	c.Compatibility.VideoCodec = strings.ToLower(strings.TrimSpace(c.Compatibility.VideoCodec))
	c.Compatibility.AudioCodec = strings.ToLower(strings.TrimSpace(c.Compatibility.AudioCodec))
	c.Compatibility.Extension = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Compatibility.Extension)), ".")
}

func (c *Config) normalizeTools() {
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	c.Transcode.VideoEncoder = strings.TrimSpace(c.Transcode.VideoEncoder)
	c.Transcode.AudioEncoder = strings.TrimSpace(c.Transcode.AudioEncoder)
	c.Transcode.Preset = strings.TrimSpace(c.Transcode.Preset)
	c.Transcode.PixelFormat = strings.TrimSpace(c.Transcode.PixelFormat)
}

func (c *Config) normalizeTMDB() {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
}

func (c *Config) normalizeSubtitles() {
	langs := make([]string, 0, len(c.Subtitles.Languages))
	for _, lang := range c.Subtitles.Languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang != "" && !slices.Contains(langs, lang) {
			langs = append(langs, lang)
		}
	}
	c.Subtitles.Languages = langs
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
