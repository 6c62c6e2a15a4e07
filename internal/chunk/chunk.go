package chunk

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Status is the lifecycle state of a chunk.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further work will happen for the chunk.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Span is a closed time range in seconds.
type Span struct {
	Lo float64
	Hi float64
}

// Empty reports whether the span covers no time.
func (s Span) Empty() bool { return s.Hi < s.Lo }

// Union returns the smallest span covering both.
func (s Span) Union(o Span) Span {
	if s.Empty() {
		return o
	}
	if o.Empty() {
		return s
	}
	return Span{Lo: math.Min(s.Lo, o.Lo), Hi: math.Max(s.Hi, o.Hi)}
}

// Contains reports whether t lies inside the span, bounds included.
func (s Span) Contains(t float64) bool { return t >= s.Lo && t <= s.Hi }

// Overlaps reports whether the spans share more than a single instant.
func (s Span) Overlaps(o Span) bool {
	return math.Min(s.Hi, o.Hi)-math.Max(s.Lo, o.Lo) > 0
}

// EmptySpan is the identity for Union.
var EmptySpan = Span{Lo: math.Inf(1), Hi: math.Inf(-1)}

// Chunk is one transcription unit covering [Start, End] of the source audio.
type Chunk struct {
	ID       int
	Start    float64
	End      float64
	Status   Status
	Attempts int
	// Demoted marks an in-flight chunk that a seek moved far from the playhead.
	Demoted bool
	// Core is the part of the span not shared with a neighbouring chunk.
	Core Span
}

func (c Chunk) Mid() float64      { return (c.Start + c.End) / 2 }
func (c Chunk) Duration() float64 { return c.End - c.Start }
func (c Chunk) Span() Span        { return Span{Lo: c.Start, Hi: c.End} }

// Contains reports whether t lies inside the chunk span.
func (c Chunk) Contains(t float64) bool { return t >= c.Start && t <= c.End }

func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d [%.2f-%.2f] %s", c.ID, c.Start, c.End, c.Status)
}

// Split pre-splits a timeline of total seconds into fixed-length chunks. Chunk
// i covers [i*length-overlap, (i+1)*length+overlap] clamped to [0, total], and
// its core is the nominal [i*length, (i+1)*length] span. Adjacent cores touch,
// so every instant belongs to at least one core.
func Split(total, length, overlap float64) ([]Chunk, error) {
	switch {
	case total <= 0 || math.IsNaN(total) || math.IsInf(total, 0):
		return nil, fmt.Errorf("split: total duration must be positive, got %v", total)
	case length <= 0:
		return nil, fmt.Errorf("split: chunk length must be positive, got %v", length)
	case overlap < 0:
		return nil, errors.New("split: overlap must be non-negative")
	case overlap*2 >= length:
		return nil, fmt.Errorf("split: overlap %.2fs must be less than half the chunk length %.2fs", overlap, length)
	}

	count := int(math.Ceil(total / length))
	// A trailing sliver shorter than a millisecond is folded into the last chunk.
	if count > 1 && total-float64(count-1)*length < 0.001 {
		count--
	}
	chunks := make([]Chunk, 0, count)
	for i := range count {
		lo := float64(i) * length
		hi := math.Min(float64(i+1)*length, total)
		if i == count-1 {
			hi = total
		}
		chunks = append(chunks, Chunk{
			ID:     i,
			Start:  math.Max(0, lo-overlap),
			End:    math.Min(total, hi+overlap),
			Status: StatusPending,
			Core:   Span{Lo: lo, Hi: hi},
		})
	}
	return chunks, nil
}

// Index returns the nominal chunk index covering t.
func Index(t, length float64) int {
	if t <= 0 || length <= 0 {
		return 0
	}
	return int(t / length)
}

// Word is one transcribed token with absolute media timestamps.
type Word struct {
	Text    string
	Start   float64
	End     float64
	ChunkID int
}

func (w Word) Mid() float64      { return (w.Start + w.End) / 2 }
func (w Word) Duration() float64 { return w.End - w.Start }
func (w Word) Span() Span        { return Span{Lo: w.Start, Hi: w.End} }

// Normalize trims the text and repairs inverted timestamps.
func (w Word) Normalize() Word {
	w.Text = strings.TrimSpace(w.Text)
	if w.Start < 0 {
		w.Start = 0
	}
	if w.End < w.Start {
		w.End = w.Start
	}
	return w
}

// MinWordDuration is the shortest span a word keeps after Sequence.
const MinWordDuration = 0.01

// Sequence normalizes words, drops blank ones and sorts the rest by start.
// Overlapping neighbours are made successive: the earlier word is trimmed to
// the later one's start while it keeps MinWordDuration, and the later word
// starts no sooner than the earlier one ends. Every word lasts at least
// MinWordDuration. Sequenced input comes back unchanged.
func Sequence(words []Word) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		if w = w.Normalize(); w.Text != "" {
			out = append(out, w)
		}
	}
	slices.SortStableFunc(out, func(a, b Word) int { return cmp.Compare(a.Start, b.Start) })
	for i := range out {
		w := &out[i]
		if i > 0 {
			prev := &out[i-1]
			if w.Start < prev.End {
				prev.End = math.Max(w.Start, prev.Start+MinWordDuration)
			}
			w.Start = math.Max(w.Start, prev.End)
		}
		w.End = math.Max(w.End, w.Start+MinWordDuration)
	}
	return out
}
