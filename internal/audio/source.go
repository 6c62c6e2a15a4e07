package audio

import (
	"context"
	"fmt"
	"math"

	"audio2subs/internal/services"
)

// Source provides PCM for arbitrary time ranges of one media file.
type Source interface {
	// Read returns the samples covering [start, end] seconds. It may block
	// until the range is available.
	Read(ctx context.Context, start, end float64) (PCM, error)
	// Duration is the total media length in seconds.
	Duration() float64
	Close() error
}

// StaticSource serves reads from an in-memory buffer.
type StaticSource struct {
	pcm PCM
}

// NewStaticSource wraps pcm. The buffer is not copied.
func NewStaticSource(pcm PCM) *StaticSource {
	return &StaticSource{pcm: pcm}
}

func (s *StaticSource) Read(ctx context.Context, start, end float64) (PCM, error) {
	if err := ctx.Err(); err != nil {
		return PCM{}, err
	}
	lo, hi, err := clampRange(start, end, int64(len(s.pcm.Samples)))
	if err != nil {
		return PCM{}, err
	}
	return NewPCM(s.pcm.Samples[lo:hi]), nil
}

func (s *StaticSource) Duration() float64 { return s.pcm.Seconds() }

func (s *StaticSource) Close() error { return nil }

func clampRange(start, end float64, available int64) (int64, int64, error) {
	if math.IsNaN(start) || math.IsNaN(end) || end <= start {
		return 0, 0, services.Wrap(services.ErrValidation, "audio", "read", fmt.Sprintf("invalid range %.3f-%.3f", start, end), nil)
	}
	lo := ByteOffset(start)
	hi := min(ByteOffset(end), available)
	if lo >= hi {
		return 0, 0, services.Wrap(services.ErrAudioSource, "audio", "read", fmt.Sprintf("range %.3f-%.3f is past the end of the audio", start, end), nil)
	}
	return lo, hi, nil
}
