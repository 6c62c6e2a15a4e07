package daemonrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audio2subs/internal/audio"
	"audio2subs/internal/config"
	"audio2subs/internal/controller"
	"audio2subs/internal/journal"
	"audio2subs/internal/services"
	"audio2subs/internal/testsupport"
)

func TestOptionsApply(t *testing.T) {
	cfg := config.Default()
	Options{SocketPath: "/tmp/mpv.sock", Backend: "mock", Persistent: true, LogLevel: "debug"}.apply(&cfg)
	if cfg.Player.SocketPath != "/tmp/mpv.sock" || cfg.Transcription.Backend != "mock" {
		t.Fatalf("player/backend not applied: %+v %+v", cfg.Player, cfg.Transcription)
	}
	if !cfg.Player.PersistentMode || cfg.Logging.Level != "debug" {
		t.Fatalf("persistent/log level not applied: %+v %+v", cfg.Player, cfg.Logging)
	}

	defaults := config.Default()
	before := defaults
	Options{}.apply(&defaults)
	if defaults.Player != before.Player || defaults.Transcription != before.Transcription {
		t.Fatal("zero options changed the config")
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "audio2subs-1.log")
	second := filepath.Join(dir, "audio2subs-2.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	if got := testsupport.ReadFile(t, filepath.Join(dir, "audio2subs.log")); got != "audio2subs-2.log" {
		t.Fatalf("pointer content = %q", got)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio2subs.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	got := strings.TrimSpace(testsupport.ReadFile(t, path))
	if got == "" || got == "0" {
		t.Fatalf("pid file = %q", got)
	}
}

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "width": 1920, "height": 800},
    {"index": 1, "codec_type": "audio", "channels": 2, "tags": {"language": "eng", "title": "Commentary"}},
    {"index": 2, "codec_type": "audio", "channels": 6, "tags": {"language": "eng"}, "disposition": {"default": 1}}
  ],
  "format": {"duration": "5400.5"}
}`

func TestProbeMedia(t *testing.T) {
	binDir := t.TempDir()
	script := "#!/bin/sh\ncat <<'JSON'\n" + probeJSON + "\nJSON\n"
	if err := os.WriteFile(filepath.Join(binDir, "ffprobe"), []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	cfg := testsupport.NewConfig(t)
	cfg.Transcription.Language = "en"
	media, err := ProbeMedia(cfg)(context.Background(), "/films/movie.mkv")
	if err != nil {
		t.Fatalf("ProbeMedia: %v", err)
	}
	want := controller.Media{Duration: 5400.5, Width: 1920, Height: 800, AudioTrack: 1}
	if media != want {
		t.Fatalf("media = %+v, want %+v", media, want)
	}
}

func TestTranscribeWritesSubtitles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithChunking(10, 1))
	video := testsupport.WriteVideo(t, filepath.Join(testsupport.BaseDir(cfg), "films"), "Alien (1979).mkv")
	output := filepath.Join(t.TempDir(), "alien.ass")

	status, err := Transcribe(context.Background(), cfg, TranscribeOptions{
		Video:  video,
		Output: output,
		Probe: func(context.Context, string) (controller.Media, error) {
			return controller.Media{Duration: 25, Width: 1280, Height: 720, AudioTrack: 0}, nil
		},
		Source: audio.NewStaticSource(audio.Silence(25)),
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if status.Outcome != journal.StatusComplete || status.SubtitlePath != output {
		t.Fatalf("status = %+v", status)
	}
	if content := testsupport.ReadFile(t, output); !strings.Contains(content, "Dialogue:") {
		t.Fatalf("output missing dialogue:\n%s", content)
	}

	store := testsupport.MustOpenJournal(t, cfg)
	sess, err := store.GetSession(context.Background(), status.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != journal.StatusComplete || sess.VideoPath != video {
		t.Fatalf("session = %+v", sess)
	}
}

func TestTranscribeRejectsUnknownDuration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := Transcribe(context.Background(), cfg, TranscribeOptions{
		Video: filepath.Join(testsupport.BaseDir(cfg), "missing.mkv"),
		Probe: func(context.Context, string) (controller.Media, error) {
			return controller.Media{}, nil
		},
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
