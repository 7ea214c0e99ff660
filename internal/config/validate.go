package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateCompatibility(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateKeyFrames(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSubtitles() error {
	if c.Subtitles.Enabled && c.Subtitles.ExtractEmbedded && len(c.Subtitles.Languages) == 0 {
		return errors.New("subtitles.languages must not be empty when extract_embedded is set")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if len(c.Library.Movies)+len(c.Library.Series) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("library has no roots; set library.movies or library.series in %s (create with 'reelsync config init')", defaultPath)
	}
	if len(c.Library.Extensions) == 0 {
		return errors.New("library.extensions must list at least one extension")
	}
	return nil
}

func (c *Config) validateCompatibility() error {
	if c.Compatibility.VideoCodec == "" {
		return errors.New("compatibility.video_codec must be set")
	}
	if c.Compatibility.AudioCodec == "" {
		return errors.New("compatibility.audio_codec must be set")
	}
	if c.Compatibility.Extension == "" {
		return errors.New("compatibility.extension must be set")
	}
	return nil
}

func (c *Config) validateTools() error {
	if c.Tools.ProbeTimeoutSeconds <= 0 {
		return errors.New("tools.probe_timeout_seconds must be positive")
	}
	if c.Tools.EncodeTimeoutSeconds <= 0 {
		return errors.New("tools.encode_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.VideoEncoder == "" {
		return errors.New("transcode.video_encoder must be set")
	}
	if c.Transcode.AudioEncoder == "" {
		return errors.New("transcode.audio_encoder must be set")
	}
	if c.Transcode.QueueSize <= 0 {
		return errors.New("transcode.queue_size must be positive")
	}
	if c.Transcode.DeleteRetries <= 0 {
		return errors.New("transcode.delete_retries must be positive")
	}
	if c.Transcode.DeleteRetryDelayMS < 0 {
		return errors.New("transcode.delete_retry_delay_ms must not be negative")
	}
	if c.Transcode.AudioChannels < 0 {
		return errors.New("transcode.audio_channels must not be negative")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.ScanWorkers <= 0 {
		return errors.New("sync.scan_workers must be positive")
	}
	if c.Sync.WatcherWorkers <= 0 {
		return errors.New("sync.watcher_workers must be positive")
	}
	if c.Sync.FingerprintBytes <= 0 {
		return errors.New("sync.fingerprint_bytes must be positive")
	}
	if c.Sync.ReadyRetries <= 0 {
		return errors.New("sync.ready_retries must be positive")
	}
	if c.Sync.SuppressionTTLSeconds <= 0 {
		return errors.New("sync.suppression_ttl_seconds must be positive")
	}
	if c.Sync.DebounceMS < 0 || c.Sync.ReadyRetryDelayMS < 0 {
		return errors.New("sync delays must not be negative")
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.MinRequestIntervalMS < 0 {
		return errors.New("tmdb.min_request_interval_ms must not be negative")
	}
	if c.TMDB.RequestTimeoutSeconds <= 0 {
		return errors.New("tmdb.request_timeout_seconds must be positive")
	}
	if c.TMDB.StaleAfterHours <= 0 {
		return errors.New("tmdb.stale_after_hours must be positive")
	}
	if c.TMDB.RefreshIntervalHours < 0 {
		return errors.New("tmdb.refresh_interval_hours must not be negative")
	}
	if c.TMDB.RefreshBatchSize <= 0 {
		return errors.New("tmdb.refresh_batch_size must be positive")
	}
	return nil
}

func (c *Config) validateKeyFrames() error {
	if !c.KeyFrames.Enabled {
		return nil
	}
	if c.KeyFrames.Position <= 0 || c.KeyFrames.Position >= 1 {
		return errors.New("keyframes.position must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}
