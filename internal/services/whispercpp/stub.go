//go:build !whispercpp

package whispercpp

import (
	"context"
	"log/slog"

	"audio2subs/internal/asr"
	"audio2subs/internal/audio"
)

// Backend is unavailable in builds without the whispercpp tag.
type Backend struct{}

// New always fails: the binary was built without whisper.cpp.
func New(Config, *slog.Logger) (*Backend, error) {
	return nil, asr.Fatalf("load model", "whisper.cpp support not compiled in (build with -tags whispercpp)")
}

func (b *Backend) Name() string { return "whispercpp" }

func (b *Backend) Transcribe(context.Context, audio.PCM) ([]asr.Word, error) {
	return nil, asr.Fatalf("transcribe", "whisper.cpp support not compiled in")
}

func (b *Backend) Close() error { return nil }
