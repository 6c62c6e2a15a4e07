package engine

import (
	"time"

	"audio2subs/internal/journal"
	"audio2subs/internal/schedule"
)

// Status is a point-in-time view of a session.
type Status struct {
	SessionID     string
	Video         string
	SubtitlePath  string
	Backend       string
	Position      float64
	Progress      schedule.Progress
	Lines         int
	Words         int
	Gaps          int
	Demotions     int
	Writes        int
	LastPublished time.Time
	Outcome       journal.Status
	Elapsed       time.Duration
}

// Status snapshots the session.
func (e *Engine) Status() Status {
	doc := e.asm.Document()
	s := Status{
		SessionID:    e.params.SessionID,
		Video:        e.params.Video,
		SubtitlePath: e.pub.Path(),
		Backend:      e.asrName,
		Position:     e.sched.Position(),
		Progress:     e.sched.Progress(),
		Lines:        len(doc.Lines),
		Words:        e.agg.Len(),
		Gaps:         len(e.agg.Gaps()),
		Demotions:    e.sched.Demotions(),
		Writes:       e.pub.Writes(),
	}
	if last, ok := e.pub.LastPublished(); ok {
		s.LastPublished = last.At
	}
	e.mu.Lock()
	s.Outcome = e.outcome
	if !e.started.IsZero() {
		s.Elapsed = time.Since(e.started)
	}
	e.mu.Unlock()
	return s
}
