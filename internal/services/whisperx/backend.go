package whisperx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"audio2subs/internal/asr"
	"audio2subs/internal/audio"
	langpkg "audio2subs/internal/language"
	"audio2subs/internal/logging"
)

// Backend implements asr.Backend on top of the WhisperX CLI.
type Backend struct {
	cfg           Config
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// New creates a WhisperX backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if cfg.UVXBinary == "" {
		cfg.UVXBinary = UVXCommand
	}
	return &Backend{cfg: cfg, logger: logging.NewComponentLogger(logger, "whisperx")}
}

// WithCommandRunner sets a custom command runner (for testing).
func (b *Backend) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	b.commandRunner = runner
}

// SetVADMethod updates the VAD method at runtime (used when HF token validation fails).
func (b *Backend) SetVADMethod(method string) {
	b.cfg.VADMethod = method
}

func (b *Backend) Name() string { return "whisperx" }

// Model returns the configured model name for logging.
func (b *Backend) Model() string {
	if b.cfg.Model != "" {
		return b.cfg.Model
	}
	return DefaultModel
}

func (b *Backend) Close() error { return nil }

// Transcribe writes pcm to a scratch WAV, runs WhisperX on it and returns the
// aligned words.
func (b *Backend) Transcribe(ctx context.Context, pcm audio.PCM) ([]asr.Word, error) {
	if pcm.Empty() {
		return nil, nil
	}
	if b.cfg.WorkDir != "" {
		if err := os.MkdirAll(b.cfg.WorkDir, 0o755); err != nil {
			return nil, asr.Fatal("prepare work dir", err)
		}
	}
	dir, err := os.MkdirTemp(b.cfg.WorkDir, "whisperx-*")
	if err != nil {
		return nil, asr.Transient("prepare scratch dir", err)
	}
	defer os.RemoveAll(dir)

	source := filepath.Join(dir, "chunk.wav")
	if err := os.WriteFile(source, pcm.WAV(), 0o644); err != nil {
		return nil, asr.Transient("write chunk wav", err)
	}

	started := time.Now()
	if err := b.run(ctx, b.cfg.UVXBinary, b.buildArgs(source, dir)...); err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, exec.ErrNotFound):
			return nil, asr.Fatal("whisperx", err)
		default:
			return nil, asr.Transient("whisperx", err)
		}
	}
	segments, err := LoadSegments(filepath.Join(dir, "chunk.json"))
	if err != nil {
		return nil, asr.Transient("read whisperx output", err)
	}
	words := SegmentWords(segments)
	b.logger.Debug("whisperx chunk transcribed",
		logging.Seconds("audio_seconds", pcm.Seconds()),
		logging.Int("segments", len(segments)),
		logging.Int("words", len(words)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return words, nil
}

// run executes a command, using the custom runner if set.
func (b *Backend) run(ctx context.Context, name string, args ...string) error {
	if b.commandRunner != nil {
		return b.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (b *Backend) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 32)

	if b.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", b.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--print_progress", "False",
	)

	vadMethod := b.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && b.cfg.HFToken != "" {
		args = append(args, "--hf_token", b.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(b.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if b.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}
