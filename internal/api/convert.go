package api

import (
	"time"

	"audio2subs/internal/deps"
	"audio2subs/internal/engine"
	"audio2subs/internal/journal"
	"audio2subs/internal/schedule"
)

// FromProgress converts scheduler counts.
func FromProgress(p schedule.Progress) Progress {
	return Progress{
		Total:      p.Total,
		Done:       p.Done,
		Failed:     p.Failed,
		InProgress: p.InProgress,
		Pending:    p.Pending,
		Percent:    p.Percent(),
	}
}

// FromEngineStatus converts a live session snapshot.
func FromEngineStatus(s engine.Status) ActiveSession {
	return ActiveSession{
		ID:            s.SessionID,
		Video:         s.Video,
		SubtitlePath:  s.SubtitlePath,
		Backend:       s.Backend,
		Position:      s.Position,
		Progress:      FromProgress(s.Progress),
		Lines:         s.Lines,
		Words:         s.Words,
		Gaps:          s.Gaps,
		Demotions:     s.Demotions,
		Writes:        s.Writes,
		LastPublished: formatTime(s.LastPublished),
		Outcome:       string(s.Outcome),
		ElapsedSecs:   s.Elapsed.Seconds(),
	}
}

// FromSession converts a journal session.
func FromSession(s journal.Session) SessionRecord {
	return SessionRecord{
		ID:           s.ID,
		VideoPath:    s.VideoPath,
		SubtitlePath: s.SubtitlePath,
		Backend:      s.Backend,
		Duration:     s.Duration,
		StartedAt:    formatTime(s.StartedAt),
		FinishedAt:   formatTime(s.FinishedAt),
		Status:       string(s.Status),
		ChunksTotal:  s.ChunksTotal,
		ChunksDone:   s.ChunksDone,
		ChunksFailed: s.ChunksFailed,
		Lines:        s.Lines,
		Error:        s.Error,
		ElapsedSecs:  s.Elapsed().Seconds(),
	}
}

// FromSessions converts a slice of journal sessions.
func FromSessions(sessions []journal.Session) []SessionRecord {
	out := make([]SessionRecord, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, FromSession(s))
	}
	return out
}

// FromAttempts converts journal attempts.
func FromAttempts(attempts []journal.Attempt) []AttemptRecord {
	out := make([]AttemptRecord, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, AttemptRecord{
			ChunkID:     a.ChunkID,
			Attempt:     a.Attempt,
			Start:       a.Start,
			End:         a.End,
			Outcome:     a.Outcome,
			Error:       a.Error,
			Words:       a.Words,
			ElapsedSecs: a.Elapsed.Seconds(),
			At:          formatTime(a.At),
		})
	}
	return out
}

// FromDependencies converts binary checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Version:     s.Version,
			Detail:      s.Detail,
		})
	}
	return out
}

// ParseTime reads a timestamp written by this package.
func ParseTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
