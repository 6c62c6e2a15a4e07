package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	WorkDir  string `toml:"work_dir"`
}

// Player contains the mpv connection settings.
type Player struct {
	SocketPath         string `toml:"socket_path"`
	AutoSelectSubtitle bool   `toml:"auto_select_subtitle"`
	PersistentMode     bool   `toml:"persistent_mode"`
	ConnectTimeout     int    `toml:"connect_timeout"`
}

// Chunking controls how the timeline is split and scheduled.
type Chunking struct {
	ChunkSeconds       int     `toml:"chunk_seconds"`
	OverlapSeconds     float64 `toml:"overlap_seconds"`
	RetryLimit         int     `toml:"retry_limit"`
	SeekDemoteSeconds  float64 `toml:"seek_demote_seconds"`
	TieBreak           string  `toml:"tie_break"`
	DuplicateTolerance float64 `toml:"duplicate_tolerance"`
}

// Subtitles contains the line assembly rules and output styling.
type Subtitles struct {
	CPSMax          float64 `toml:"cps_max"`
	MinDuration     float64 `toml:"min_duration"`
	MaxDuration     float64 `toml:"max_duration"`
	PauseSplit      float64 `toml:"pause_split"`
	MinGap          float64 `toml:"min_gap"`
	Padding         float64 `toml:"padding"`
	MaxCharsPerLine int     `toml:"max_chars_per_line"`
	SentenceBreak   bool    `toml:"sentence_break"`
	Suffix          string  `toml:"suffix"`
	Format          string  `toml:"format"`
	FontName        string  `toml:"font_name"`
	FontSize        int     `toml:"font_size"`
	PrimaryColor    string  `toml:"primary_color"`
	OutlineColor    string  `toml:"outline_color"`
}

// Publish controls how often and how persistently the subtitle file is rewritten.
type Publish struct {
	RewriteThrottleSeconds float64 `toml:"rewrite_throttle_seconds"`
	Retries                int     `toml:"retries"`
	RetryBackoffMS         int     `toml:"retry_backoff_ms"`
	MaxConsecutiveFailures int     `toml:"max_consecutive_failures"`
}

// Transcription selects and configures the ASR backend.
type Transcription struct {
	Backend        string `toml:"backend"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	CUDA           bool   `toml:"cuda"`
	ServerURL      string `toml:"server_url"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	ModelPath      string `toml:"model_path"`
	RequestTimeout int    `toml:"request_timeout"`
	VADMethod      string `toml:"vad_method"`
	HFToken        string `toml:"hf_token"`
}

// Journal configures the SQLite session ledger.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic       string `toml:"ntfy_topic"`
	RequestTimeout  int    `toml:"request_timeout"`
	SessionComplete bool   `toml:"session_complete"`
	Errors          bool   `toml:"errors"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for audio2subs.
//
// Configuration sections by subsystem:
//   - Paths: state, log, and scratch directories
//   - Player: mpv IPC socket and subtitle track behaviour
//   - Chunking: chunk length, overlap, retries, and seek handling
//   - Subtitles: readability rules and ASS styling
//   - Publish: rewrite throttle and write retries
//   - Transcription: ASR backend selection
//   - Journal, Notifications, Metrics, Logging: operational surfaces
type Config struct {
	Paths         Paths         `toml:"paths"`
	Player        Player        `toml:"player"`
	Chunking      Chunking      `toml:"chunking"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Publish       Publish       `toml:"publish"`
	Transcription Transcription `toml:"transcription"`
	Journal       Journal       `toml:"journal"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}
	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// locate resolves the config file to read. An explicit path is used as given
// even when missing; otherwise the user config wins over ./audio2subs.toml.
func locate(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		return expanded, exists, err
	}

	userPath, err := ExpandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	localPath, err := filepath.Abs("audio2subs.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, localPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// EnsureDirectories creates the state, log, and work directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "audio2subs.lock")
}

// ControlSocketPath is the JSON-RPC control socket.
func (c *Config) ControlSocketPath() string {
	return filepath.Join(c.Paths.StateDir, "audio2subs.sock")
}

// PIDPath is the pid file written while the service runs.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "audio2subs.pid")
}

// RewriteThrottle converts publish.rewrite_throttle_seconds to a duration.
func (c *Config) RewriteThrottle() time.Duration {
	return time.Duration(c.Publish.RewriteThrottleSeconds * float64(time.Second))
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// ExpandPath resolves a leading ~ against the home directory and returns an
// absolute, cleaned path. The empty string is returned unchanged.
func ExpandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value[1:], "/"))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", value, err)
	}
	return abs, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config %s: %w", path, err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
