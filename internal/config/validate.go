package config

import (
	"errors"
	"fmt"
	"strings"

	"audio2subs/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateChunking,
		c.validateSubtitles,
		c.validatePublish,
		c.validateTranscription,
		c.validateNotifications,
		c.validateLogging,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateChunking() error {
	ch := c.Chunking
	if ch.ChunkSeconds <= 0 {
		return errors.New("chunking.chunk_seconds must be positive")
	}
	if ch.OverlapSeconds < 0 {
		return errors.New("chunking.overlap_seconds must be non-negative")
	}
	if ch.OverlapSeconds*2 >= float64(ch.ChunkSeconds) {
		return errors.New("chunking.overlap_seconds must be less than half of chunk_seconds")
	}
	if ch.RetryLimit < 0 {
		return errors.New("chunking.retry_limit must be non-negative")
	}
	if ch.SeekDemoteSeconds < 0 {
		return errors.New("chunking.seek_demote_seconds must be non-negative")
	}
	switch ch.TieBreak {
	case TieBreakFirstProcessed, TieBreakNearestCenter:
	default:
		return fmt.Errorf("chunking.tie_break must be %q or %q", TieBreakFirstProcessed, TieBreakNearestCenter)
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	s := c.Subtitles
	if s.CPSMax <= 0 {
		return errors.New("subtitles.cps_max must be positive")
	}
	if s.MinDuration <= 0 {
		return errors.New("subtitles.min_duration must be positive")
	}
	if s.MaxDuration <= s.MinDuration {
		return errors.New("subtitles.max_duration must be greater than min_duration")
	}
	if s.PauseSplit <= 0 {
		return errors.New("subtitles.pause_split must be positive")
	}
	if s.MinGap < 0 || s.Padding < 0 {
		return errors.New("subtitles.min_gap and subtitles.padding must be non-negative")
	}
	if s.MaxCharsPerLine <= 0 {
		return errors.New("subtitles.max_chars_per_line must be positive")
	}
	switch s.Format {
	case FormatASS, FormatSRT:
	default:
		return fmt.Errorf("subtitles.format must be %q or %q", FormatASS, FormatSRT)
	}
	if !strings.HasPrefix(s.Suffix, ".") {
		return errors.New("subtitles.suffix must start with a dot")
	}
	if s.FontSize <= 0 {
		return errors.New("subtitles.font_size must be positive")
	}
	for key, value := range map[string]string{"primary_color": s.PrimaryColor, "outline_color": s.OutlineColor} {
		if !validASSColor(value) {
			return fmt.Errorf("subtitles.%s must look like &HAABBGGRR", key)
		}
	}
	return nil
}

func (c *Config) validatePublish() error {
	p := c.Publish
	if p.RewriteThrottleSeconds < 0 {
		return errors.New("publish.rewrite_throttle_seconds must be non-negative")
	}
	if p.Retries < 0 {
		return errors.New("publish.retries must be non-negative")
	}
	if p.RetryBackoffMS < 0 {
		return errors.New("publish.retry_backoff_ms must be non-negative")
	}
	if p.MaxConsecutiveFailures <= 0 {
		return errors.New("publish.max_consecutive_failures must be positive")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	switch t.Backend {
	case BackendWhisperX, BackendWhisperServer, BackendOpenAI, BackendWhisperCPP, BackendMock:
	default:
		return fmt.Errorf("transcription.backend %q is not supported (use whisperx, whisperserver, openai, whispercpp, or mock)", t.Backend)
	}
	if t.Language != "" && !strings.EqualFold(t.Language, "auto") && language.ToISO2(t.Language) == "" {
		return fmt.Errorf("transcription.language %q is not a recognised language code", t.Language)
	}
	switch t.VADMethod {
	case "silero", "pyannote":
	default:
		return errors.New("transcription.vad_method must be silero or pyannote")
	}
	if t.Backend == BackendWhisperCPP && t.ModelPath == "" {
		return errors.New("transcription.model_path must be set when transcription.backend is whispercpp")
	}
	if t.Backend == BackendOpenAI && t.APIKey == "" && t.BaseURL == "" {
		return errors.New("transcription.api_key must be set (or OPENAI_API_KEY exported) when transcription.backend is openai")
	}
	if t.Backend == BackendWhisperServer && !strings.HasPrefix(t.ServerURL, "http") {
		return errors.New("transcription.server_url must be an http(s) URL")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}

func validASSColor(value string) bool {
	if !strings.HasPrefix(value, "&H") || len(value) != 10 {
		return false
	}
	for _, r := range value[2:] {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			return false
		}
	}
	return true
}
