package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"audio2subs/internal/logging"
	"audio2subs/internal/services"
)

// FFmpegCommand is the default ffmpeg binary name.
const FFmpegCommand = "ffmpeg"

// commandRunner runs name with args and copies its standard output to stdout
// until the process exits.
type commandRunner func(ctx context.Context, name string, args []string, stdout io.Writer) error

// ExtractorOptions configures an Extractor.
type ExtractorOptions struct {
	FFmpegBinary string
	Video        string
	// AudioTrack is the zero-based audio stream index, or -1 for ffmpeg's
	// default selection.
	AudioTrack int
	Duration   float64
	// TempDir holds the decoded PCM file. Empty uses the system default.
	TempDir string
	Logger  *slog.Logger
}

// Extractor decodes a video's audio track to PCM in the background and
// serves reads as soon as the requested range has been decoded.
type Extractor struct {
	opts   ExtractorOptions
	runner commandRunner
	logger *slog.Logger

	file *os.File

	mu      sync.Mutex
	cond    *sync.Cond
	written int64
	done    bool
	closed  bool
	err     error
}

// NewExtractor creates the backing temp file. Call Run to start decoding.
func NewExtractor(opts ExtractorOptions) (*Extractor, error) {
	if strings.TrimSpace(opts.Video) == "" {
		return nil, services.Wrap(services.ErrValidation, "audio", "new extractor", "video path required", nil)
	}
	if opts.FFmpegBinary == "" {
		opts.FFmpegBinary = FFmpegCommand
	}
	if opts.TempDir != "" {
		if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "audio", "new extractor", "ensure temp dir", err)
		}
	}
	file, err := os.CreateTemp(opts.TempDir, "audio2subs-*.pcm")
	if err != nil {
		return nil, services.Wrap(services.ErrAudioSource, "audio", "new extractor", "create temp file", err)
	}
	e := &Extractor{
		opts:   opts,
		runner: runCommand,
		logger: logging.NewComponentLogger(opts.Logger, "audio"),
		file:   file,
	}
	e.cond = sync.NewCond(&e.mu)
	return e, nil
}

// WithCommandRunner replaces process execution (for testing).
func (e *Extractor) WithCommandRunner(runner commandRunner) {
	e.runner = runner
}

// Run decodes the whole track and returns when ffmpeg exits. Reads waiting on
// data that never arrives are released with an error.
func (e *Extractor) Run(ctx context.Context) error {
	args := BuildExtractArgs(e.opts.Video, e.opts.AudioTrack)
	e.logger.Debug("audio extraction started",
		logging.String("video", e.opts.Video),
		logging.Int("audio_track", e.opts.AudioTrack),
	)
	runErr := e.runner(ctx, e.opts.FFmpegBinary, args, &progressWriter{e: e})

	e.mu.Lock()
	e.done = true
	if runErr != nil {
		e.err = services.Wrap(services.ErrAudioSource, "audio", "extract", "ffmpeg failed", runErr)
	}
	written := e.written
	err := e.err
	e.cond.Broadcast()
	e.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if written == 0 {
		e.mu.Lock()
		e.err = services.Wrap(services.ErrAudioSource, "audio", "extract", "ffmpeg produced no audio", nil)
		err = e.err
		e.mu.Unlock()
		return err
	}
	e.logger.Info("audio extraction complete",
		logging.Seconds("decoded_seconds", float64(written)/BytesPerSecond),
	)
	return nil
}

type progressWriter struct {
	e *Extractor
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.e.file.Write(p)
	w.e.mu.Lock()
	w.e.written += int64(n)
	closed := w.e.closed
	w.e.cond.Broadcast()
	w.e.mu.Unlock()
	if err != nil {
		return n, err
	}
	if closed {
		return n, errors.New("extractor closed")
	}
	return n, nil
}

// Read blocks until [start, end] has been decoded. When extraction finished
// before end, the available tail is returned. A failed extraction yields an
// error wrapping services.ErrAudioSource.
func (e *Extractor) Read(ctx context.Context, start, end float64) (PCM, error) {
	if end <= start {
		return PCM{}, services.Wrap(services.ErrValidation, "audio", "read", fmt.Sprintf("invalid range %.3f-%.3f", start, end), nil)
	}
	need := ByteOffset(end)

	stop := context.AfterFunc(ctx, func() {
		e.mu.Lock()
		e.cond.Broadcast()
		e.mu.Unlock()
	})
	defer stop()

	e.mu.Lock()
	for e.written < need && !e.done && !e.closed && ctx.Err() == nil {
		e.cond.Wait()
	}
	written, closed, failure := e.written, e.closed, e.err
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return PCM{}, err
	}
	if closed {
		return PCM{}, services.Wrap(services.ErrAudioSource, "audio", "read", "extractor closed", nil)
	}
	if written < need && failure != nil {
		return PCM{}, failure
	}
	lo, hi, err := clampRange(start, end, written)
	if err != nil {
		return PCM{}, err
	}
	buf := make([]byte, hi-lo)
	n, err := e.file.ReadAt(buf, lo)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == hi-lo) {
		return PCM{}, services.Wrap(services.ErrAudioSource, "audio", "read", "read decoded audio", err)
	}
	return NewPCM(buf[:n]), nil
}

// Decoded returns the decoded length in seconds so far.
func (e *Extractor) Decoded() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(e.written) / BytesPerSecond
}

func (e *Extractor) Duration() float64 { return e.opts.Duration }

// Close releases waiting readers and removes the temp file.
func (e *Extractor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	closeErr := e.file.Close()
	if err := os.Remove(e.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return closeErr
}

// BuildExtractArgs returns the ffmpeg arguments that decode a track to raw
// 16 kHz mono s16le on stdout. track < 0 lets ffmpeg pick the default stream.
func BuildExtractArgs(video string, track int) []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
	}
	if track >= 0 {
		args = append(args, "-map", fmt.Sprintf("0:a:%d", track))
	}
	return append(args,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"pipe:1",
	)
}

func runCommand(ctx context.Context, name string, args []string, stdout io.Writer) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
