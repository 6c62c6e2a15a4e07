package schedule

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"audio2subs/internal/chunk"
	"audio2subs/internal/logging"
)

// Options tunes retry and seek behaviour.
type Options struct {
	// RetryLimit is how many extra attempts a chunk gets after its first failure.
	RetryLimit int
	// SeekDemoteDistance is the distance from a seek target beyond which an
	// in-flight chunk is demoted.
	SeekDemoteDistance float64
	// JumpThreshold turns a position update that moves farther than this into
	// a seek. Zero disables jump detection.
	JumpThreshold float64
}

// Progress summarizes chunk states.
type Progress struct {
	Total      int
	Done       int
	Failed     int
	InProgress int
	Pending    int
}

// Percent reports the share of chunks in a terminal state.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return (p.Done + p.Failed) * 100 / p.Total
}

// Scheduler owns chunk status and hands out the pending chunk closest to the
// playhead. All methods are safe for concurrent use and never block beyond
// the internal mutex.
type Scheduler struct {
	mu        sync.Mutex
	opts      Options
	chunks    map[int]*chunk.Chunk
	pending   []int
	position  float64
	havePos   bool
	demotions int
	changed   chan struct{}
	logger    *slog.Logger
}

// New constructs an empty scheduler.
func New(opts Options, logger *slog.Logger) *Scheduler {
	if opts.RetryLimit < 0 {
		opts.RetryLimit = 0
	}
	return &Scheduler{
		opts:    opts,
		chunks:  make(map[int]*chunk.Chunk),
		changed: make(chan struct{}, 1),
		logger:  logging.NewComponentLogger(logger, "scheduler"),
	}
}

// Changed is signalled whenever pending work or the position changes.
func (s *Scheduler) Changed() <-chan struct{} {
	return s.changed
}

func (s *Scheduler) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// EnqueueAll registers chunks as pending. Chunks whose ID is already known
// are ignored so a chunk is never scheduled twice.
func (s *Scheduler) EnqueueAll(chunks []chunk.Chunk) int {
	s.mu.Lock()
	added := 0
	for _, c := range chunks {
		if _, exists := s.chunks[c.ID]; exists {
			continue
		}
		c.Status = chunk.StatusPending
		c.Attempts = 0
		c.Demoted = false
		stored := c
		s.chunks[c.ID] = &stored
		s.pending = append(s.pending, c.ID)
		added++
	}
	s.mu.Unlock()
	if added > 0 {
		s.notify()
	}
	return added
}

// Position returns the most recent playback position.
func (s *Scheduler) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// OnPlaybackPosition records the playhead. Only pending ordering is affected.
// A jump larger than JumpThreshold is handled as a seek and reported as true.
func (s *Scheduler) OnPlaybackPosition(t float64) bool {
	if math.IsNaN(t) || t < 0 {
		return false
	}
	s.mu.Lock()
	jumped := s.opts.JumpThreshold > 0 && s.havePos && math.Abs(t-s.position) > s.opts.JumpThreshold
	if jumped {
		s.seekLocked(t)
	} else {
		s.position = t
		s.havePos = true
	}
	s.mu.Unlock()
	s.notify()
	return jumped
}

// OnSeek moves the attention point to t and demotes in-flight chunks that are
// now far from it. Demotion is advisory: the chunk stays in progress and its
// result is still accepted. It returns the IDs that were demoted.
func (s *Scheduler) OnSeek(t float64) []int {
	if math.IsNaN(t) || t < 0 {
		return nil
	}
	s.mu.Lock()
	demoted := s.seekLocked(t)
	s.mu.Unlock()
	s.notify()
	return demoted
}

func (s *Scheduler) seekLocked(t float64) []int {
	s.position = t
	s.havePos = true
	var demoted []int
	for id, c := range s.chunks {
		if c.Status != chunk.StatusInProgress || c.Demoted {
			continue
		}
		if math.Abs(c.Mid()-t) > s.opts.SeekDemoteDistance {
			c.Demoted = true
			demoted = append(demoted, id)
		}
	}
	slices.Sort(demoted)
	s.demotions += len(demoted)
	if len(demoted) > 0 {
		s.logger.Debug("in-flight chunks demoted after seek",
			logging.Seconds("position", t),
			logging.Any("chunk_ids", demoted),
		)
	}
	return demoted
}

// less orders chunks by distance of their midpoint from pos, then by earliest
// start, then by ID.
func less(a, b *chunk.Chunk, pos float64) int {
	da, db := math.Abs(a.Mid()-pos), math.Abs(b.Mid()-pos)
	switch {
	case da < db:
		return -1
	case da > db:
		return 1
	case a.Start < b.Start:
		return -1
	case a.Start > b.Start:
		return 1
	}
	return a.ID - b.ID
}

// Next claims the pending chunk closest to the playhead, marking it in
// progress. It returns false when nothing is pending.
func (s *Scheduler) Next() (chunk.Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return chunk.Chunk{}, false
	}
	best := 0
	for i := 1; i < len(s.pending); i++ {
		if less(s.chunks[s.pending[i]], s.chunks[s.pending[best]], s.position) < 0 {
			best = i
		}
	}
	id := s.pending[best]
	s.pending = slices.Delete(s.pending, best, best+1)
	c := s.chunks[id]
	c.Status = chunk.StatusInProgress
	c.Attempts++
	c.Demoted = false
	return *c, true
}

// PendingOrder returns the pending chunk IDs in the order Next would hand
// them out for the current position.
func (s *Scheduler) PendingOrder() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := slices.Clone(s.pending)
	slices.SortFunc(order, func(a, b int) int {
		return less(s.chunks[a], s.chunks[b], s.position)
	})
	return order
}

// MarkDone records a successful transcription.
func (s *Scheduler) MarkDone(id int) error {
	s.mu.Lock()
	c, ok := s.chunks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("mark done: unknown chunk %d", id)
	}
	if c.Status != chunk.StatusInProgress {
		status := c.Status
		s.mu.Unlock()
		return fmt.Errorf("mark done: chunk %d is %s, not in progress", id, status)
	}
	c.Status = chunk.StatusDone
	c.Demoted = false
	s.mu.Unlock()
	s.notify()
	return nil
}

// MarkFailed records a failed attempt. The chunk returns to pending while it
// has retries left and is permanently failed otherwise. The resulting status
// is returned.
func (s *Scheduler) MarkFailed(id int) (chunk.Status, error) {
	return s.fail(id, false)
}

// MarkFailedPermanent fails a chunk without retrying, used when its audio
// cannot be read.
func (s *Scheduler) MarkFailedPermanent(id int) (chunk.Status, error) {
	return s.fail(id, true)
}

func (s *Scheduler) fail(id int, permanent bool) (chunk.Status, error) {
	s.mu.Lock()
	c, ok := s.chunks[id]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("mark failed: unknown chunk %d", id)
	}
	if c.Status != chunk.StatusInProgress {
		status := c.Status
		s.mu.Unlock()
		return status, fmt.Errorf("mark failed: chunk %d is %s, not in progress", id, status)
	}
	c.Demoted = false
	if !permanent && c.Attempts <= s.opts.RetryLimit {
		c.Status = chunk.StatusPending
		s.pending = append(s.pending, id)
	} else {
		c.Status = chunk.StatusFailed
	}
	status := c.Status
	s.mu.Unlock()
	s.notify()
	return status, nil
}

// Get returns a copy of the chunk with the given ID.
func (s *Scheduler) Get(id int) (chunk.Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	if !ok {
		return chunk.Chunk{}, false
	}
	return *c, true
}

// Snapshot returns copies of all chunks ordered by ID.
func (s *Scheduler) Snapshot() []chunk.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chunk.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b chunk.Chunk) int { return a.ID - b.ID })
	return out
}

// Progress counts chunks by status.
func (s *Scheduler) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := Progress{Total: len(s.chunks)}
	for _, c := range s.chunks {
		switch c.Status {
		case chunk.StatusDone:
			p.Done++
		case chunk.StatusFailed:
			p.Failed++
		case chunk.StatusInProgress:
			p.InProgress++
		default:
			p.Pending++
		}
	}
	return p
}

// Demotions returns how many in-flight chunks seeks have demoted.
func (s *Scheduler) Demotions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.demotions
}

// Finished reports whether every chunk reached a terminal state.
func (s *Scheduler) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chunks {
		if !c.Status.Terminal() {
			return false
		}
	}
	return true
}

// RetryLimit returns the configured number of retries after a first failure.
func (s *Scheduler) RetryLimit() int {
	return s.opts.RetryLimit
}
