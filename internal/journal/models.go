package journal

import (
	"context"
	"time"
)

// Status is the lifecycle state of a session row.
type Status string

const (
	StatusRunning   Status = "running"
	StatusComplete  Status = "complete"
	StatusPartial   Status = "partial"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Session is one per-video transcription run.
type Session struct {
	ID           string
	VideoPath    string
	SubtitlePath string
	Backend      string
	Duration     float64
	StartedAt    time.Time
	FinishedAt   time.Time
	Status       Status
	ChunksTotal  int
	ChunksDone   int
	ChunksFailed int
	Lines        int
	Error        string
}

// Elapsed returns how long the session ran, or has been running.
func (s Session) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := s.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt)
}

// Summary is written when a session ends.
type Summary struct {
	Status       Status
	ChunksTotal  int
	ChunksDone   int
	ChunksFailed int
	Lines        int
	Error        string
}

// Attempt is one chunk transcription attempt.
type Attempt struct {
	SessionID string
	ChunkID   int
	Attempt   int
	Start     float64
	End       float64
	Outcome   string
	Error     string
	Words     int
	Elapsed   time.Duration
	At        time.Time
}

// Recorder receives session lifecycle events. *Store implements it.
type Recorder interface {
	BeginSession(ctx context.Context, s Session) error
	RecordAttempt(ctx context.Context, a Attempt) error
	FinishSession(ctx context.Context, id string, sum Summary) error
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) BeginSession(context.Context, Session) error          { return nil }
func (NopRecorder) RecordAttempt(context.Context, Attempt) error         { return nil }
func (NopRecorder) FinishSession(context.Context, string, Summary) error { return nil }
