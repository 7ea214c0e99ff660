package config

import "reelsync/internal/media"

const (
	defaultConfigPath            = "~/.config/reelsync/config.toml"
	defaultDataDir               = "~/.local/share/reelsync"
	defaultLogDir                = "~/.local/share/reelsync/logs"
	defaultCacheDir              = "~/.cache/reelsync/tmdb"
	defaultKeyFrameDir           = "~/.local/share/reelsync/keyframes"
	defaultMoviesRoot            = "~/library/movies"
	defaultSeriesRoot            = "~/library/series"
	defaultVideoCodec            = "h264"
	defaultAudioCodec            = "aac"
	defaultContainer             = "mp4"
	defaultFFprobe               = "ffprobe"
	defaultFFmpeg                = "ffmpeg"
	defaultProbeTimeoutSeconds   = 60
	defaultEncodeTimeoutSeconds  = 6 * 60 * 60
	defaultVideoEncoder          = "libx264"
	defaultPreset                = "fast"
	defaultCRF                   = 19
	defaultPixelFormat           = "yuv420p"
	defaultAudioEncoder          = "aac"
	defaultAudioChannels         = 2
	defaultQueueSize             = 256
	defaultDeleteRetries         = 5
	defaultDeleteRetryDelayMS    = 1000
	defaultScanWorkers           = 4
	defaultWatcherWorkers        = 3
	defaultFingerprintBytes      = 2 * 1024 * 1024
	defaultReadyRetries          = 10
	defaultReadyRetryDelayMS     = 1000
	defaultSuppressionTTLSeconds = 60 * 60
	defaultDebounceMS            = 1000
	defaultTMDBLanguage          = "en-US"
	defaultTMDBBaseURL           = "https://api.themoviedb.org/3"
	defaultTMDBMinIntervalMS     = 200
	defaultTMDBTimeoutSeconds    = 10
	defaultStaleAfterHours       = 24
	defaultRefreshIntervalHours  = 12
	defaultRefreshBatchSize      = 100
	defaultKeyFramePosition      = 1.0 / 11.0
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			CacheDir:    defaultCacheDir,
			KeyFrameDir: defaultKeyFrameDir,
		},
		Library: Library{
			Movies:     []string{defaultMoviesRoot},
			Series:     []string{defaultSeriesRoot},
			Extensions: append([]string(nil), media.DefaultExtensions...),
		},
		Compatibility: Compatibility{
			VideoCodec: defaultVideoCodec,
			AudioCodec: defaultAudioCodec,
			Extension:  defaultContainer,
		},
		Tools: Tools{
			FFprobe:              defaultFFprobe,
			FFmpeg:               defaultFFmpeg,
			ProbeTimeoutSeconds:  defaultProbeTimeoutSeconds,
			EncodeTimeoutSeconds: defaultEncodeTimeoutSeconds,
		},
		Transcode: Transcode{
			VideoEncoder:           defaultVideoEncoder,
			Preset:                 defaultPreset,
			CRF:                    defaultCRF,
			PixelFormat:            defaultPixelFormat,
			AudioEncoder:           defaultAudioEncoder,
			AudioChannels:          defaultAudioChannels,
			QueueSize:              defaultQueueSize,
			DeleteRetries:          defaultDeleteRetries,
			DeleteRetryDelayMS:     defaultDeleteRetryDelayMS,
			RemuxCompatibleStreams: true,
		},
		Sync: Sync{
			ScanWorkers:           defaultScanWorkers,
			WatcherWorkers:        defaultWatcherWorkers,
			FingerprintBytes:      defaultFingerprintBytes,
			ReadyRetries:          defaultReadyRetries,
			ReadyRetryDelayMS:     defaultReadyRetryDelayMS,
			SuppressionTTLSeconds: defaultSuppressionTTLSeconds,
			DebounceMS:            defaultDebounceMS,
		},
		TMDB: TMDB{
			BaseURL:               defaultTMDBBaseURL,
			Language:              defaultTMDBLanguage,
			MinRequestIntervalMS:  defaultTMDBMinIntervalMS,
			RequestTimeoutSeconds: defaultTMDBTimeoutSeconds,
			StaleAfterHours:       defaultStaleAfterHours,
			RefreshIntervalHours:  defaultRefreshIntervalHours,
			RefreshBatchSize:      defaultRefreshBatchSize,
		},
		KeyFrames: KeyFrames{
			Position: defaultKeyFramePosition,
		},
		Subtitles: Subtitles{
			Enabled:         true,
			ConvertSRT:      true,
			ExtractEmbedded: true,
			Languages:       []string{"en", "eng"},
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
