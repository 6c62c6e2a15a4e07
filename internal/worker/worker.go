package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"audio2subs/internal/asr"
	"audio2subs/internal/audio"
	"audio2subs/internal/chunk"
	"audio2subs/internal/logging"
	"audio2subs/internal/schedule"
	"audio2subs/internal/services"
)

// Outcome describes what happened to one attempt.
type Outcome string

const (
	OutcomeDone Outcome = "done"
	// OutcomeRetry means the attempt failed and the chunk is pending again.
	OutcomeRetry Outcome = "retry"
	// OutcomeFailed means the chunk will not be attempted again.
	OutcomeFailed Outcome = "failed"
	// OutcomeFatal means the backend is unusable and the session ends.
	OutcomeFatal Outcome = "fatal"
)

// Result is one finished attempt.
type Result struct {
	Chunk   chunk.Chunk
	Words   []chunk.Word
	Err     error
	Outcome Outcome
	Elapsed time.Duration
}

// Sink receives every attempt outcome before the scheduler records it, so a
// chunk reported done by the scheduler already has its words delivered.
type Sink interface {
	Handle(ctx context.Context, result Result)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, result Result)

func (f SinkFunc) Handle(ctx context.Context, result Result) { f(ctx, result) }

// Transcriber is satisfied by *asr.Handle.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, pcm audio.PCM) ([]asr.Word, error)
}

// Options tunes the loop.
type Options struct {
	// RetryDelay is waited after a transient failure before the next claim.
	RetryDelay time.Duration
}

// Worker is the serialized transcription loop.
type Worker struct {
	sched  *schedule.Scheduler
	source audio.Source
	asr    Transcriber
	sink   Sink
	opts   Options
	logger *slog.Logger
}

// New wires a worker.
func New(sched *schedule.Scheduler, source audio.Source, transcriber Transcriber, sink Sink, opts Options, logger *slog.Logger) *Worker {
	if sink == nil {
		sink = SinkFunc(func(context.Context, Result) {})
	}
	return &Worker{
		sched:  sched,
		source: source,
		asr:    transcriber,
		sink:   sink,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "worker"),
	}
}

// Run processes chunks until every chunk is terminal or ctx is cancelled,
// both of which return nil. A fatal backend error is returned.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		c, ok := w.sched.Next()
		if !ok {
			if w.sched.Finished() {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-w.sched.Changed():
			}
			continue
		}
		if err := w.process(ctx, c); err != nil {
			return err
		}
	}
}

func (w *Worker) process(ctx context.Context, c chunk.Chunk) error {
	cctx := services.WithChunkID(ctx, c.ID)
	logger := logging.WithContext(cctx, w.logger)
	started := time.Now()

	pcm, err := w.source.Read(cctx, c.Start, c.End)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		w.sink.Handle(ctx, Result{Chunk: c, Err: err, Outcome: OutcomeFailed, Elapsed: time.Since(started)})
		if _, markErr := w.sched.MarkFailedPermanent(c.ID); markErr != nil {
			return markErr
		}
		logging.WarnWithContext(logger, "chunk audio unavailable", "audio_read_failed",
			logging.Error(err),
			logging.Seconds("start", c.Start),
			logging.Seconds("end", c.End),
			logging.String(logging.FieldErrorHint, "check that the video's audio track decodes with ffmpeg"),
			logging.String(logging.FieldImpact, "no subtitles for this chunk"),
		)
		return nil
	}

	words, err := w.asr.Transcribe(cctx, pcm)
	elapsed := time.Since(started)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}
		return w.failed(ctx, logger, c, err, elapsed)
	}

	abs := Absolute(c, words)
	w.sink.Handle(ctx, Result{Chunk: c, Words: abs, Outcome: OutcomeDone, Elapsed: elapsed})
	if err := w.sched.MarkDone(c.ID); err != nil {
		return err
	}
	logger.Debug("chunk transcribed",
		logging.Seconds("start", c.Start),
		logging.Seconds("end", c.End),
		logging.Int("words", len(abs)),
		logging.Int("attempt", c.Attempts),
		logging.Duration("elapsed", elapsed),
	)
	return nil
}

func (w *Worker) failed(ctx context.Context, logger *slog.Logger, c chunk.Chunk, err error, elapsed time.Duration) error {
	if asr.IsFatal(err) {
		w.sink.Handle(ctx, Result{Chunk: c, Err: err, Outcome: OutcomeFatal, Elapsed: elapsed})
		_, _ = w.sched.MarkFailedPermanent(c.ID)
		return fmt.Errorf("chunk %d: %w", c.ID, err)
	}

	outcome := OutcomeRetry
	if c.Attempts > w.retryLimit() {
		outcome = OutcomeFailed
	}
	w.sink.Handle(ctx, Result{Chunk: c, Err: err, Outcome: outcome, Elapsed: elapsed})
	status, markErr := w.sched.MarkFailed(c.ID)
	if markErr != nil {
		return markErr
	}
	if status == chunk.StatusFailed {
		logging.WarnWithContext(logger, "chunk failed after retries", "chunk_failed",
			logging.Error(err),
			logging.Int("attempts", c.Attempts),
			logging.String(logging.FieldErrorHint, "check the transcription backend logs"),
			logging.String(logging.FieldImpact, "a gap is left in the subtitles"),
		)
		return nil
	}
	logger.Info("chunk attempt failed, will retry",
		logging.Int("attempt", c.Attempts),
		logging.Error(err),
	)
	if w.opts.RetryDelay > 0 {
		timer := time.NewTimer(w.opts.RetryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	return nil
}

func (w *Worker) retryLimit() int {
	return w.sched.RetryLimit()
}

// Absolute converts buffer-relative words to media time, tags them with the
// chunk ID and clamps them to the chunk span.
func Absolute(c chunk.Chunk, words []asr.Word) []chunk.Word {
	out := make([]chunk.Word, 0, len(words))
	for _, w := range words {
		start := math.Min(c.Start+w.Start, c.End)
		end := math.Min(math.Max(c.Start+w.End, start), c.End)
		out = append(out, chunk.Word{Text: w.Text, Start: start, End: end, ChunkID: c.ID})
	}
	return out
}
