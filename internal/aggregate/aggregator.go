package aggregate

import (
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/google/btree"

	"audio2subs/internal/chunk"
)

// DefaultDuplicateTolerance is the midpoint distance under which identical
// words from different chunks are treated as one.
const DefaultDuplicateTolerance = 0.25

// Options configures the merge rule.
type Options struct {
	TieBreak           TieBreak
	DuplicateTolerance float64
}

// Origin identifies the chunk a batch of words came from.
type Origin struct {
	ChunkID int
	Core    chunk.Span
	Center  float64
}

// OriginOf derives the origin of c.
func OriginOf(c chunk.Chunk) Origin {
	return Origin{ChunkID: c.ID, Core: c.Core, Center: c.Mid()}
}

type entry struct {
	word chunk.Word
	seq  uint64
}

func lessEntry(a, b entry) bool {
	switch {
	case a.word.Start != b.word.Start:
		return a.word.Start < b.word.Start
	case a.word.End != b.word.End:
		return a.word.End < b.word.End
	case a.word.ChunkID != b.word.ChunkID:
		return a.word.ChunkID < b.word.ChunkID
	}
	return a.seq < b.seq
}

type chunkMeta struct {
	origin Origin
	order  int
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu       sync.RWMutex
	opts     Options
	tree     *btree.BTreeG[entry]
	chunks   map[int]chunkMeta
	gaps     []chunk.Span
	seq      uint64
	maxDur   float64
	dropped  int
	revision uint64
	dirty    chunk.Span
}

// New constructs an empty aggregator.
func New(opts Options) *Aggregator {
	if opts.TieBreak == "" {
		opts.TieBreak = FirstProcessed
	}
	if opts.DuplicateTolerance < 0 {
		opts.DuplicateTolerance = 0
	}
	return &Aggregator{
		opts:   opts,
		tree:   btree.NewG(16, lessEntry),
		chunks: make(map[int]chunkMeta),
		dirty:  chunk.EmptySpan,
	}
}

// Accept merges the words of one chunk. A chunk is accepted at most once;
// repeated calls return false and change nothing. The chunk's words are
// sequenced first, so stored words never overlap. Each word either replaces
// every duplicate it beats under Prefer or is discarded.
func (a *Aggregator) Accept(origin Origin, words []chunk.Word) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, seen := a.chunks[origin.ChunkID]; seen {
		return false
	}
	meta := chunkMeta{origin: origin, order: len(a.chunks)}
	a.chunks[origin.ChunkID] = meta

	affected := chunk.EmptySpan
	for _, w := range chunk.Sequence(words) {
		w.ChunkID = origin.ChunkID
		cand := Candidate{Word: w, Core: origin.Core, Center: origin.Center, Order: meta.order}

		rivals := a.duplicatesLocked(w)
		keep := true
		for _, r := range rivals {
			if !Prefer(cand, a.candidateLocked(r), a.opts.TieBreak) {
				keep = false
				break
			}
		}
		if !keep {
			a.dropped++
			continue
		}
		for _, r := range rivals {
			a.tree.Delete(r)
			a.dropped++
			affected = affected.Union(r.word.Span())
		}
		a.seq++
		a.tree.ReplaceOrInsert(entry{word: w, seq: a.seq})
		a.maxDur = math.Max(a.maxDur, w.Duration())
		affected = affected.Union(w.Span())
	}
	a.touchLocked(affected)
	return true
}

func (a *Aggregator) candidateLocked(e entry) Candidate {
	meta := a.chunks[e.word.ChunkID]
	return Candidate{Word: e.word, Core: meta.origin.Core, Center: meta.origin.Center, Order: meta.order}
}

// duplicatesLocked returns words from other chunks that w would duplicate:
// their spans intersect, or they carry the same text with midpoints within
// the tolerance.
func (a *Aggregator) duplicatesLocked(w chunk.Word) []entry {
	tol := a.opts.DuplicateTolerance
	lo := w.Start - a.maxDur - tol
	hi := w.End + tol
	var out []entry
	a.tree.AscendGreaterOrEqual(pivot(lo), func(e entry) bool {
		if e.word.Start > hi {
			return false
		}
		if e.word.ChunkID == w.ChunkID {
			return true
		}
		if w.Span().Overlaps(e.word.Span()) ||
			(math.Abs(e.word.Mid()-w.Mid()) <= tol && sameText(e.word.Text, w.Text)) {
			out = append(out, e)
		}
		return true
	})
	return out
}

func sameText(a, b string) bool {
	trim := func(s string) string {
		return strings.TrimFunc(strings.ToLower(s), func(r rune) bool {
			return strings.ContainsRune(".,!?;:\"'()-", r)
		})
	}
	return trim(a) == trim(b)
}

func pivot(start float64) entry {
	return entry{word: chunk.Word{Start: start, End: math.Inf(-1), ChunkID: math.MinInt}}
}

// MarkGap records a time range that will never receive words.
func (a *Aggregator) MarkGap(span chunk.Span) {
	if span.Empty() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gaps = mergeSpans(append(a.gaps, span))
	a.touchLocked(span)
}

// Gaps returns the merged gap ranges in time order.
func (a *Aggregator) Gaps() []chunk.Span {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.gaps)
}

func mergeSpans(spans []chunk.Span) []chunk.Span {
	slices.SortFunc(spans, func(x, y chunk.Span) int {
		switch {
		case x.Lo < y.Lo:
			return -1
		case x.Lo > y.Lo:
			return 1
		}
		return 0
	})
	out := spans[:0]
	for _, s := range spans {
		if n := len(out); n > 0 && s.Lo <= out[n-1].Hi {
			out[n-1].Hi = math.Max(out[n-1].Hi, s.Hi)
			continue
		}
		out = append(out, s)
	}
	return out
}

// WordsInRange returns words whose midpoint lies in [lo, hi), ordered by
// start time.
func (a *Aggregator) WordsInRange(lo, hi float64) []chunk.Word {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []chunk.Word
	a.tree.AscendGreaterOrEqual(pivot(lo-a.maxDur), func(e entry) bool {
		if e.word.Start >= hi {
			return false
		}
		if mid := e.word.Mid(); mid >= lo && mid < hi {
			out = append(out, e.word)
		}
		return true
	})
	return out
}

// Words returns every word in order.
func (a *Aggregator) Words() []chunk.Word {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]chunk.Word, 0, a.tree.Len())
	a.tree.Ascend(func(e entry) bool {
		out = append(out, e.word)
		return true
	})
	return out
}

// Len returns the number of words held.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tree.Len()
}

// Accepted reports whether the chunk's result was taken.
func (a *Aggregator) Accepted(chunkID int) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.chunks[chunkID]
	return ok
}

// Dropped counts duplicate words discarded by the merge rule.
func (a *Aggregator) Dropped() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dropped
}

func (a *Aggregator) touchLocked(span chunk.Span) {
	if span.Empty() {
		return
	}
	a.revision++
	a.dirty = a.dirty.Union(span)
}

// Revision increments on every change to words or gaps.
func (a *Aggregator) Revision() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.revision
}

// DirtySince returns the span touched since the last effective Checkpoint
// together with the current revision. ok is false when nothing changed after
// revision since.
func (a *Aggregator) DirtySince(since uint64) (chunk.Span, uint64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.revision == since || a.dirty.Empty() {
		return chunk.EmptySpan, a.revision, false
	}
	return a.dirty, a.revision, true
}

// Checkpoint clears the dirty span if no change happened after revision.
// Otherwise the span keeps accumulating so the next DirtySince covers both.
func (a *Aggregator) Checkpoint(revision uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if revision == a.revision {
		a.dirty = chunk.EmptySpan
	}
}
