package config

const (
	defaultConfigPath         = "~/.config/audio2subs/config.toml"
	defaultStateDir           = "~/.local/state/audio2subs"
	defaultLogDir             = "~/.local/state/audio2subs/logs"
	defaultWorkDir            = "~/.cache/audio2subs"
	defaultSocketPath         = "/tmp/mpv-socket"
	defaultConnectTimeout     = 30
	defaultChunkSeconds       = 60
	defaultOverlapSeconds     = 1.0
	defaultRetryLimit         = 3
	defaultSeekDemoteSeconds  = 120
	defaultDuplicateTolerance = 0.25
	defaultCPSMax             = 17
	defaultMinDuration        = 0.8
	defaultMaxDuration        = 7.0
	defaultPauseSplit         = 2.0
	defaultMinGap             = 0.15
	defaultPadding            = 0.15
	defaultMaxCharsPerLine    = 42
	defaultSuffix             = ".ai.ass"
	defaultFontName           = "Arial"
	defaultFontSize           = 65
	defaultPrimaryColor       = "&H00FFFFFF"
	defaultOutlineColor       = "&H00000000"
	defaultRewriteThrottle    = 3.0
	defaultPublishRetries     = 3
	defaultPublishBackoffMS   = 200
	defaultPublishMaxFailures = 5
	defaultRequestTimeout     = 300
	defaultWhisperServerURL   = "http://127.0.0.1:8080"
	defaultMetricsBind        = "127.0.0.1:9464"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 14
)

// Backend identifiers accepted by transcription.backend.
const (
	BackendWhisperX      = "whisperx"
	BackendWhisperServer = "whisperserver"
	BackendOpenAI        = "openai"
	BackendWhisperCPP    = "whispercpp"
	BackendMock          = "mock"
)

// Tie-break policies accepted by chunking.tie_break.
const (
	TieBreakFirstProcessed = "first_processed"
	TieBreakNearestCenter  = "nearest_center"
)

// Subtitle formats accepted by subtitles.format.
const (
	FormatASS = "ass"
	FormatSRT = "srt"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			WorkDir:  defaultWorkDir,
		},
		Player: Player{
			SocketPath:         defaultSocketPath,
			AutoSelectSubtitle: true,
			ConnectTimeout:     defaultConnectTimeout,
		},
		Chunking: Chunking{
			ChunkSeconds:       defaultChunkSeconds,
			OverlapSeconds:     defaultOverlapSeconds,
			RetryLimit:         defaultRetryLimit,
			SeekDemoteSeconds:  defaultSeekDemoteSeconds,
			TieBreak:           TieBreakFirstProcessed,
			DuplicateTolerance: defaultDuplicateTolerance,
		},
		Subtitles: Subtitles{
			CPSMax:          defaultCPSMax,
			MinDuration:     defaultMinDuration,
			MaxDuration:     defaultMaxDuration,
			PauseSplit:      defaultPauseSplit,
			MinGap:          defaultMinGap,
			Padding:         defaultPadding,
			MaxCharsPerLine: defaultMaxCharsPerLine,
			SentenceBreak:   true,
			Suffix:          defaultSuffix,
			Format:          FormatASS,
			FontName:        defaultFontName,
			FontSize:        defaultFontSize,
			PrimaryColor:    defaultPrimaryColor,
			OutlineColor:    defaultOutlineColor,
		},
		Publish: Publish{
			RewriteThrottleSeconds: defaultRewriteThrottle,
			Retries:                defaultPublishRetries,
			RetryBackoffMS:         defaultPublishBackoffMS,
			MaxConsecutiveFailures: defaultPublishMaxFailures,
		},
		Transcription: Transcription{
			Backend:        BackendWhisperX,
			CUDA:           true,
			ServerURL:      defaultWhisperServerURL,
			RequestTimeout: defaultRequestTimeout,
			VADMethod:      "silero",
		},
		Journal: Journal{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout:  10,
			SessionComplete: true,
			Errors:          true,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
