package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"audio2subs/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a per-test temp directory with the
// mock backend, fast publishing and no metrics listener.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Player.SocketPath = filepath.Join(base, "mpv.sock")
	cfgVal.Player.ConnectTimeout = 1
	cfgVal.Journal.Path = filepath.Join(base, "state", "journal.db")
	cfgVal.Transcription.Backend = config.BackendMock
	cfgVal.Publish.RewriteThrottleSeconds = 0.01
	cfgVal.Publish.RetryBackoffMS = 1
	cfgVal.Metrics.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithBackend selects the transcription backend.
func WithBackend(id string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.Backend = id
	}
}

// WithChunking overrides chunk length and overlap.
func WithChunking(seconds int, overlap float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Chunking.ChunkSeconds = seconds
		b.cfg.Chunking.OverlapSeconds = overlap
	}
}

// WithFormat selects the subtitle output format and matching suffix.
func WithFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Subtitles.Format = format
		b.cfg.Subtitles.Suffix = ".ai." + format
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
