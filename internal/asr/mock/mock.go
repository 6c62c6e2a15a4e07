// Package mock provides a scripted asr.Backend for tests and dry runs.
package mock

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"audio2subs/internal/asr"
	"audio2subs/internal/audio"
)

// Step is one scripted response.
type Step struct {
	Words []asr.Word
	Err   error
}

// Backend replays scripted steps in order. When the script is exhausted it
// falls back to Generate, or an empty result.
type Backend struct {
	mu     sync.Mutex
	script []Step
	calls  []audio.PCM
	closed bool

	// Generate produces words for calls past the end of the script.
	Generate func(call int, pcm audio.PCM) ([]asr.Word, error)
	// Delay is slept before each response, honouring context cancellation.
	Delay time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
}

// New returns a backend that replays steps.
func New(steps ...Step) *Backend {
	return &Backend{script: steps}
}

// Speech returns a backend that emits one word per second of audio, each
// spanning 0.1-0.5 s past the second boundary.
func Speech() *Backend {
	b := New()
	b.Generate = func(call int, pcm audio.PCM) ([]asr.Word, error) {
		n := int(pcm.Seconds())
		words := make([]asr.Word, 0, n)
		for i := range n {
			words = append(words, asr.Word{Text: "word", Start: float64(i) + 0.1, End: float64(i) + 0.5})
		}
		return words, nil
	}
	return b
}

func (b *Backend) Name() string { return "mock" }

func (b *Backend) Transcribe(ctx context.Context, pcm audio.PCM) ([]asr.Word, error) {
	cur := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		prev := b.maxActive.Load()
		if cur <= prev || b.maxActive.CompareAndSwap(prev, cur) {
			break
		}
	}

	if b.Delay > 0 {
		timer := time.NewTimer(b.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	b.mu.Lock()
	call := len(b.calls)
	b.calls = append(b.calls, pcm)
	var step *Step
	if call < len(b.script) {
		step = &b.script[call]
	}
	generate := b.Generate
	b.mu.Unlock()

	if step != nil {
		return cloneWords(step.Words), step.Err
	}
	if generate != nil {
		return generate(call, pcm)
	}
	return nil, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Calls returns how many transcriptions were requested.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// MaxConcurrent returns the highest number of overlapping Transcribe calls.
func (b *Backend) MaxConcurrent() int { return int(b.maxActive.Load()) }

// Words builds words from "text@start-end" triples, e.g. "hello@0.1-0.4".
func Words(specs ...string) []asr.Word {
	out := make([]asr.Word, 0, len(specs))
	for _, spec := range specs {
		text, times, ok := strings.Cut(spec, "@")
		if !ok {
			continue
		}
		lo, hi, _ := strings.Cut(times, "-")
		out = append(out, asr.Word{Text: text, Start: atof(lo), End: atof(hi)})
	}
	return out
}

func cloneWords(words []asr.Word) []asr.Word {
	return append([]asr.Word(nil), words...)
}

func atof(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
