package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.applyEnvOverrides()
	c.normalizePlayer()
	c.normalizeChunking()
	c.normalizeSubtitles()
	if err := c.normalizeTranscription(); err != nil {
		return err
	}
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	defaults := map[*string]string{
		&c.Paths.StateDir: defaultStateDir,
		&c.Paths.LogDir:   defaultLogDir,
		&c.Paths.WorkDir:  defaultWorkDir,
	}
	for field, fallback := range defaults {
		if strings.TrimSpace(*field) == "" {
			*field = fallback
		}
	}
	var err error
	if c.Paths.StateDir, err = ExpandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = ExpandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.WorkDir, err = ExpandPath(strings.TrimSpace(c.Paths.WorkDir)); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	return nil
}

// applyEnvOverrides honours the variables the mpv launcher script exports.
// They win over the file because they are set per invocation.
func (c *Config) applyEnvOverrides() {
	if value, ok := lookupTrimmed("MPV_SOCKET"); ok {
		c.Player.SocketPath = value
	}
	if value, ok := lookupTrimmed("AUDIO2SUBS_CHUNK_DURATION"); ok {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			c.Chunking.ChunkSeconds = seconds
		}
	}
	if value, ok := lookupTrimmed("AUDIO2SUBS_PERSISTENT_MODE"); ok {
		c.Player.PersistentMode = envTruthy(value)
	}
	if value, ok := lookupTrimmed("AUDIO2SUBS_CPU_ONLY"); ok && envTruthy(value) {
		c.Transcription.CUDA = false
	}
}

func (c *Config) normalizePlayer() {
	c.Player.SocketPath = strings.TrimSpace(c.Player.SocketPath)
	if c.Player.SocketPath == "" {
		c.Player.SocketPath = defaultSocketPath
	}
	if c.Player.ConnectTimeout <= 0 {
		c.Player.ConnectTimeout = defaultConnectTimeout
	}
}

func (c *Config) normalizeChunking() {
	c.Chunking.TieBreak = strings.ToLower(strings.TrimSpace(c.Chunking.TieBreak))
	if c.Chunking.TieBreak == "" {
		c.Chunking.TieBreak = TieBreakFirstProcessed
	}
	if c.Chunking.DuplicateTolerance <= 0 {
		c.Chunking.DuplicateTolerance = defaultDuplicateTolerance
	}
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.Format = strings.ToLower(strings.TrimSpace(c.Subtitles.Format))
	if c.Subtitles.Format == "" {
		c.Subtitles.Format = FormatASS
	}
	c.Subtitles.Suffix = strings.TrimSpace(c.Subtitles.Suffix)
	if c.Subtitles.Suffix == "" {
		c.Subtitles.Suffix = ".ai." + c.Subtitles.Format
	}
	c.Subtitles.FontName = strings.TrimSpace(c.Subtitles.FontName)
	if c.Subtitles.FontName == "" {
		c.Subtitles.FontName = defaultFontName
	}
	c.Subtitles.PrimaryColor = strings.ToUpper(strings.TrimSpace(c.Subtitles.PrimaryColor))
	if c.Subtitles.PrimaryColor == "" {
		c.Subtitles.PrimaryColor = defaultPrimaryColor
	}
	c.Subtitles.OutlineColor = strings.ToUpper(strings.TrimSpace(c.Subtitles.OutlineColor))
	if c.Subtitles.OutlineColor == "" {
		c.Subtitles.OutlineColor = defaultOutlineColor
	}
}

func (c *Config) normalizeTranscription() error {
	t := &c.Transcription
	t.Backend = strings.ToLower(strings.TrimSpace(t.Backend))
	if t.Backend == "" {
		t.Backend = BackendWhisperX
	}
	t.Model = strings.TrimSpace(t.Model)
	t.Language = strings.TrimSpace(t.Language)
	t.ServerURL = strings.TrimRight(strings.TrimSpace(t.ServerURL), "/")
	if t.ServerURL == "" {
		t.ServerURL = defaultWhisperServerURL
	}
	t.BaseURL = strings.TrimSpace(t.BaseURL)
	t.APIKey = strings.TrimSpace(t.APIKey)
	if t.APIKey == "" {
		if value, ok := lookupTrimmed("OPENAI_API_KEY"); ok {
			t.APIKey = value
		}
	}
	t.VADMethod = strings.ToLower(strings.TrimSpace(t.VADMethod))
	if t.VADMethod == "" {
		t.VADMethod = "silero"
	}
	t.HFToken = strings.TrimSpace(t.HFToken)
	if t.HFToken == "" {
		if value, ok := lookupTrimmed("HUGGING_FACE_HUB_TOKEN"); ok {
			t.HFToken = value
		} else if value, ok := lookupTrimmed("HF_TOKEN"); ok {
			t.HFToken = value
		}
	}
	if t.RequestTimeout <= 0 {
		t.RequestTimeout = defaultRequestTimeout
	}
	if t.ModelPath = strings.TrimSpace(t.ModelPath); t.ModelPath != "" {
		expanded, err := ExpandPath(t.ModelPath)
		if err != nil {
			return fmt.Errorf("transcription.model_path: %w", err)
		}
		t.ModelPath = expanded
	}
	return nil
}

func (c *Config) normalizeJournal() error {
	path := strings.TrimSpace(c.Journal.Path)
	if path == "" {
		c.Journal.Path = filepath.Join(c.Paths.StateDir, "journal.db")
		return nil
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	c.Journal.Path = expanded
	return nil
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
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func envTruthy(value string) bool {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
