//go:build whispercpp

package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"audio2subs/internal/asr"
	"audio2subs/internal/audio"
	langpkg "audio2subs/internal/language"
	"audio2subs/internal/logging"
)

// Backend implements asr.Backend with a model held in memory for the life of
// the process.
type Backend struct {
	model  whisperlib.Model
	cfg    Config
	logger *slog.Logger
}

// New loads the model at cfg.ModelPath.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return nil, asr.Fatalf("load model", "model path must not be empty")
	}
	model, err := whisperlib.New(cfg.ModelPath)
	if err != nil {
		return nil, asr.Fatal("load model", fmt.Errorf("%s: %w", cfg.ModelPath, err))
	}
	return &Backend{model: model, cfg: cfg, logger: logging.NewComponentLogger(logger, "whispercpp")}, nil
}

func (b *Backend) Name() string { return "whispercpp" }

func (b *Backend) Close() error {
	if b.model != nil {
		return b.model.Close()
	}
	return nil
}

// Transcribe runs inference on a fresh context. One segment is produced per
// word by enabling token timestamps with a maximum segment length of one.
func (b *Backend) Transcribe(ctx context.Context, pcm audio.PCM) ([]asr.Word, error) {
	if pcm.Empty() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wctx, err := b.model.NewContext()
	if err != nil {
		return nil, asr.Fatal("create context", err)
	}
	if lang := langpkg.ToISO2(b.cfg.Language); lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			logging.WarnWithContext(b.logger, "language not supported by model", "whispercpp_language",
				logging.String("language", lang),
				logging.Error(err),
				logging.String(logging.FieldImpact, "model auto-detects the language"),
			)
		}
	}
	if b.cfg.Threads > 0 {
		wctx.SetThreads(b.cfg.Threads)
	}
	wctx.SetTokenTimestamps(true)
	wctx.SetMaxSegmentLength(1)
	wctx.SetSplitOnWord(true)

	if err := wctx.Process(pcm.Float32(), nil, nil, nil); err != nil {
		return nil, asr.Transient("process audio", err)
	}

	var words []asr.Word
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, asr.Transient("read segment", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		words = append(words, asr.Word{
			Text:  text,
			Start: segment.Start.Seconds(),
			End:   segment.End.Seconds(),
		})
	}
	return words, nil
}
