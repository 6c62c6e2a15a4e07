package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"audio2subs/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MPV_SOCKET", "AUDIO2SUBS_CHUNK_DURATION", "AUDIO2SUBS_PERSISTENT_MODE",
		"AUDIO2SUBS_CPU_ONLY", "OPENAI_API_KEY", "HF_TOKEN", "HUGGING_FACE_HUB_TOKEN",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "audio2subs", "config.toml"); resolved != want {
		t.Fatalf("resolved = %q, want %q", resolved, want)
	}
	if want := filepath.Join(tempHome, ".local", "state", "audio2subs"); cfg.Paths.StateDir != want {
		t.Fatalf("state dir = %q, want %q", cfg.Paths.StateDir, want)
	}
	if want := filepath.Join(cfg.Paths.StateDir, "journal.db"); cfg.Journal.Path != want {
		t.Fatalf("journal path = %q, want %q", cfg.Journal.Path, want)
	}
	if cfg.Chunking.ChunkSeconds != 60 || cfg.Subtitles.CPSMax != 17 || cfg.Player.SocketPath != "/tmp/mpv-socket" {
		t.Fatalf("unexpected defaults: %+v %+v %+v", cfg.Chunking, cfg.Subtitles, cfg.Player)
	}
	if cfg.Chunking.TieBreak != config.TieBreakFirstProcessed {
		t.Fatalf("tie break = %q", cfg.Chunking.TieBreak)
	}
	if cfg.LockPath() != filepath.Join(cfg.Paths.StateDir, "audio2subs.lock") {
		t.Fatalf("lock path = %q", cfg.LockPath())
	}
}

func TestLoadReadsFileAndAppliesEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[player]
socket_path = "/tmp/from-file"

[chunking]
chunk_seconds = 30
overlap_seconds = 0.5

[subtitles]
format = "SRT"
suffix = ""

[transcription]
backend = "mock"
cuda = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MPV_SOCKET", "/tmp/from-env")
	t.Setenv("AUDIO2SUBS_CHUNK_DURATION", "45")
	t.Setenv("AUDIO2SUBS_PERSISTENT_MODE", "true")
	t.Setenv("AUDIO2SUBS_CPU_ONLY", "1")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Player.SocketPath != "/tmp/from-env" {
		t.Fatalf("socket = %q, want env override", cfg.Player.SocketPath)
	}
	if cfg.Chunking.ChunkSeconds != 45 {
		t.Fatalf("chunk seconds = %d, want 45", cfg.Chunking.ChunkSeconds)
	}
	if !cfg.Player.PersistentMode {
		t.Fatal("expected persistent mode from env")
	}
	if cfg.Transcription.CUDA {
		t.Fatal("expected CPU-only override to disable cuda")
	}
	if cfg.Subtitles.Format != config.FormatSRT || cfg.Subtitles.Suffix != ".ai.srt" {
		t.Fatalf("format=%q suffix=%q", cfg.Subtitles.Format, cfg.Subtitles.Suffix)
	}
	if cfg.Chunking.OverlapSeconds != 0.5 {
		t.Fatalf("overlap = %v", cfg.Chunking.OverlapSeconds)
	}
}

func TestLoadOpenAIKeyFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[transcription]\nbackend = \"openai\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected missing api key error")
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transcription.APIKey != "sk-test" {
		t.Fatalf("api key = %q", cfg.Transcription.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"chunk", func(c *config.Config) { c.Chunking.ChunkSeconds = 0 }, "chunking.chunk_seconds"},
		{"overlap", func(c *config.Config) { c.Chunking.OverlapSeconds = 30 }, "chunking.overlap_seconds"},
		{"tie break", func(c *config.Config) { c.Chunking.TieBreak = "random" }, "chunking.tie_break"},
		{"cps", func(c *config.Config) { c.Subtitles.CPSMax = 0 }, "subtitles.cps_max"},
		{"durations", func(c *config.Config) { c.Subtitles.MaxDuration = 0.5 }, "subtitles.max_duration"},
		{"format", func(c *config.Config) { c.Subtitles.Format = "vtt" }, "subtitles.format"},
		{"color", func(c *config.Config) { c.Subtitles.PrimaryColor = "white" }, "subtitles.primary_color"},
		{"backend", func(c *config.Config) { c.Transcription.Backend = "vosk" }, "transcription.backend"},
		{"language", func(c *config.Config) { c.Transcription.Language = "klingon" }, "transcription.language"},
		{"whispercpp", func(c *config.Config) { c.Transcription.Backend = config.BackendWhisperCPP }, "transcription.model_path"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	def := config.Default()
	if decoded.Subtitles != def.Subtitles {
		t.Fatalf("sample subtitles %+v differ from defaults %+v", decoded.Subtitles, def.Subtitles)
	}
	if decoded.Chunking != def.Chunking {
		t.Fatalf("sample chunking %+v differ from defaults %+v", decoded.Chunking, def.Chunking)
	}
	if decoded.Publish != def.Publish {
		t.Fatalf("sample publish %+v differ from defaults %+v", decoded.Publish, def.Publish)
	}
}
