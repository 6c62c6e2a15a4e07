package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audio2subs/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))
	logger = NewComponentLogger(logger, "engine")
	logger.Info("chunk transcribed", Int("chunk_id", 3), String("video", "my movie.mkv"))

	line := buf.String()
	for _, want := range []string{" INFO engine: chunk transcribed", "chunk_id=3", `video="my movie.mkv"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be rendered as prefix, got %q", line)
	}
}

func TestConsoleHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, new(slog.LevelVar), false))
	logger.WithGroup("chunk").Info("done", Int("id", 4), slog.Group("span", Float64("start", 1.5)))
	line := buf.String()
	if !strings.Contains(line, "chunk.id=4") || !strings.Contains(line, "chunk.span.start=1.5") {
		t.Fatalf("unexpected grouped output %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be suppressed, got %q", buf.String())
	}
}

func TestJSONHandlerRewritesKeys(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl, false))
	logger.Warn("slow chunk", Int("chunk_id", 9))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["level"] != "warn" {
		t.Fatalf("level = %v, want warn", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key in %v", payload)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, new(slog.LevelVar), false))
	WarnWithContext(logger, "publish retry", "publish_retry", String(FieldImpact, "subtitles delayed"))
	line := buf.String()
	for _, want := range []string{"event_type=publish_retry", `error_hint="check logs for details"`, `impact="subtitles delayed"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestWithContextAddsSessionFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(newConsoleHandler(&buf, new(slog.LevelVar), false))
	ctx := services.WithSessionID(context.Background(), "abc")
	ctx = services.WithChunkID(ctx, 2)
	WithContext(ctx, base).Info("hello")
	if line := buf.String(); !strings.Contains(line, "session_id=abc") || !strings.Contains(line, "chunk_id=2") {
		t.Fatalf("missing context fields in %q", line)
	}
}

func TestTeeLoggerWritesToAllHandlers(t *testing.T) {
	var a, b bytes.Buffer
	base := slog.New(newConsoleHandler(&a, new(slog.LevelVar), false))
	logger := TeeLogger(base, newJSONHandler(&b, new(slog.LevelVar), false))
	logger.Info("fan out")
	if !strings.Contains(a.String(), "fan out") || !strings.Contains(b.String(), "fan out") {
		t.Fatalf("expected both outputs, got %q and %q", a.String(), b.String())
	}
	if _, ok := TeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected noop handler when all inputs are nil")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.log")
	keepPath := filepath.Join(dir, "current.log")
	otherPath := filepath.Join(dir, "notes.txt")
	for _, p := range []string{oldPath, keepPath, otherPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().AddDate(0, 0, -30)
	for _, p := range []string{oldPath, keepPath, otherPath} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	removed := CleanupOldLogs(NewNop(), 7, RetentionTarget{Dir: dir, Pattern: "*.log", Exclude: []string{keepPath}})
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, p := range []string{keepPath, otherPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s to remain: %v", p, err)
		}
	}
}

func TestProgressSampler(t *testing.T) {
	s := NewProgressSampler(25)
	steps := []struct {
		percent float64
		stage   string
		want    bool
	}{
		{0, "transcribing", true},
		{10, "transcribing", false},
		{25, "transcribing", true},
		{49, "transcribing", false},
		{100, "transcribing", true},
		{100, "complete", true},
		{-1, "complete", false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, step.stage); got != step.want {
			t.Fatalf("step %d: ShouldLog(%v, %q) = %v, want %v", i, step.percent, step.stage, got, step.want)
		}
	}
	s.Reset()
	if !s.ShouldLog(0, "transcribing") {
		t.Fatal("expected emit after reset")
	}
	var nilSampler *ProgressSampler
	if !nilSampler.ShouldLog(1, "x") {
		t.Fatal("nil sampler should always log")
	}
}
