package asr

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"audio2subs/internal/audio"
	"audio2subs/internal/services"
)

// Word is a recognized token. Times are seconds from the start of the buffer.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Backend transcribes a single buffer of 16 kHz mono PCM.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, pcm audio.PCM) ([]Word, error)
	Close() error
}

// ErrClosed is returned by a Handle after Close.
var ErrClosed = errors.New("asr handle closed")

// Handle is the exclusive owner of a Backend.
type Handle struct {
	mu      sync.Mutex
	backend Backend
	closed  bool
	busy    atomic.Bool
	calls   atomic.Int64
}

// NewHandle takes ownership of backend. Callers must not use the backend
// directly afterwards.
func NewHandle(backend Backend) *Handle {
	return &Handle{backend: backend}
}

// Name reports the wrapped backend identifier.
func (h *Handle) Name() string {
	if h == nil || h.backend == nil {
		return ""
	}
	return h.backend.Name()
}

// Busy reports whether a transcription is running.
func (h *Handle) Busy() bool { return h.busy.Load() }

// Calls returns how many transcriptions were started.
func (h *Handle) Calls() int64 { return h.calls.Load() }

// Transcribe runs the backend on pcm. Calls are serialized; a second caller
// waits for the first to finish. Returned words are trimmed, non-empty, have
// End >= Start >= 0 and are sorted by start.
func (h *Handle) Transcribe(ctx context.Context, pcm audio.PCM) ([]Word, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, Fatal("transcribe", ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.busy.Store(true)
	defer h.busy.Store(false)
	h.calls.Add(1)

	words, err := h.backend.Transcribe(ctx, pcm)
	if err != nil {
		return nil, err
	}
	return Clean(words, pcm.Seconds()), nil
}

// Close releases the backend. Further calls fail with ErrClosed.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.backend.Close()
}

// Clean normalizes backend output: blank tokens are dropped, times are
// clamped to [0, limit] when limit > 0, and words are sorted by start.
func Clean(words []Word, limit float64) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		w.Text = strings.Join(strings.Fields(w.Text), " ")
		if w.Text == "" || math.IsNaN(w.Start) || math.IsNaN(w.End) {
			continue
		}
		w.Start = math.Max(0, w.Start)
		if limit > 0 {
			w.Start = math.Min(w.Start, limit)
			w.End = math.Min(w.End, limit)
		}
		if w.End < w.Start {
			w.End = w.Start
		}
		out = append(out, w)
	}
	slices.SortStableFunc(out, func(a, b Word) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
	return out
}

// Class is the recovery category of a backend error.
type Class int

const (
	ClassTransient Class = iota
	ClassFatal
)

func (c Class) String() string {
	if c == ClassFatal {
		return "fatal"
	}
	return "transient"
}

// Transient marks err as retryable.
func Transient(op string, err error) error {
	return services.Wrap(services.ErrTransient, "asr", op, "", err)
}

// Fatal marks err as ending the session.
func Fatal(op string, err error) error {
	return services.Wrap(services.ErrFatal, "asr", op, "", err)
}

// Transientf builds a transient error from a message.
func Transientf(op, format string, args ...any) error {
	return services.Wrap(services.ErrTransient, "asr", op, fmt.Sprintf(format, args...), nil)
}

// Fatalf builds a fatal error from a message.
func Fatalf(op, format string, args ...any) error {
	return services.Wrap(services.ErrFatal, "asr", op, fmt.Sprintf(format, args...), nil)
}

// Classify maps err to a recovery class. Fatal and configuration markers are
// fatal, as is a closed handle. Everything else is retried.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassTransient
	case errors.Is(err, services.ErrFatal),
		errors.Is(err, services.ErrConfiguration),
		errors.Is(err, ErrClosed):
		return ClassFatal
	default:
		return ClassTransient
	}
}

// IsFatal is shorthand for Classify(err) == ClassFatal.
func IsFatal(err error) bool { return err != nil && Classify(err) == ClassFatal }

// IsTransient reports whether err is a retryable backend failure.
func IsTransient(err error) bool { return err != nil && Classify(err) == ClassTransient }
