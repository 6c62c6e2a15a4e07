package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"audio2subs/internal/services"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSessionLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess := Session{
		ID:           "8f1d7c36-0a49-4b43-9a53-83f8fd3f2d10",
		VideoPath:    "/films/a.mkv",
		SubtitlePath: "/films/a.ai.ass",
		Backend:      "mock",
		Duration:     600,
		ChunksTotal:  10,
	}
	if err := store.BeginSession(ctx, sess); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	for i, outcome := range []string{"retry", "done"} {
		if err := store.RecordAttempt(ctx, Attempt{
			SessionID: sess.ID,
			ChunkID:   3,
			Attempt:   i + 1,
			Start:     179,
			End:       241,
			Outcome:   outcome,
			Words:     i * 120,
			Elapsed:   1500 * time.Millisecond,
		}); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}
	if err := store.FinishSession(ctx, sess.ID, Summary{
		Status:       StatusPartial,
		ChunksTotal:  10,
		ChunksDone:   9,
		ChunksFailed: 1,
		Lines:        88,
	}); err != nil {
		t.Fatalf("FinishSession: %v", err)
	}

	got, err := store.GetSession(ctx, sess.ID[:8])
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != StatusPartial || got.ChunksDone != 9 || got.Lines != 88 || got.FinishedAt.IsZero() {
		t.Fatalf("session = %+v", got)
	}
	if got.SubtitlePath != sess.SubtitlePath {
		t.Fatalf("subtitle path = %q", got.SubtitlePath)
	}

	attempts, err := store.SessionAttempts(ctx, sess.ID)
	if err != nil {
		t.Fatalf("SessionAttempts: %v", err)
	}
	if len(attempts) != 2 || attempts[0].Outcome != "retry" || attempts[1].Words != 120 {
		t.Fatalf("attempts = %+v", attempts)
	}
	if attempts[0].Elapsed != 1500*time.Millisecond {
		t.Fatalf("elapsed = %v", attempts[0].Elapsed)
	}
}

func TestRecentSessionsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.BeginSession(ctx, Session{
			ID:        id,
			VideoPath: "/films/" + id + ".mkv",
			Backend:   "mock",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("BeginSession: %v", err)
		}
	}
	got, err := store.RecentSessions(ctx, 2)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("sessions = %+v", got)
	}
	if got[0].Status != StatusRunning {
		t.Fatalf("status = %q, want running", got[0].Status)
	}
}

func TestFinishUnknownSession(t *testing.T) {
	store := openTestStore(t)
	err := store.FinishSession(context.Background(), "missing", Summary{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetSessionPrefix(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"abc1", "abc2", "xyz"} {
		if err := store.BeginSession(ctx, Session{ID: id, VideoPath: "/v", Backend: "mock"}); err != nil {
			t.Fatalf("BeginSession: %v", err)
		}
	}
	tests := []struct {
		prefix string
		want   string
		err    error
	}{
		{prefix: "xy", want: "xyz"},
		{prefix: "abc1", want: "abc1"},
		{prefix: "abc", err: services.ErrValidation},
		{prefix: "nope", err: services.ErrNotFound},
	}
	for _, tt := range tests {
		got, err := store.GetSession(ctx, tt.prefix)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Fatalf("GetSession(%q) err = %v, want %v", tt.prefix, err, tt.err)
			}
			continue
		}
		if err != nil || got.ID != tt.want {
			t.Fatalf("GetSession(%q) = %q, %v; want %q", tt.prefix, got.ID, err, tt.want)
		}
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.BeginSession(ctx, Session{ID: "keep", VideoPath: "/v", Backend: "mock"}); err != nil {
		t.Fatalf("BeginSession: %v", err)
	}
	_ = store.Close()

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetSession(ctx, "keep"); err != nil {
		t.Fatalf("GetSession after reopen: %v", err)
	}
}

func TestSchemaMismatchRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.db.ExecContext(ctx, "UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = store.Close()

	if _, err := Open(ctx, path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("err = %v, want ErrSchemaMismatch", err)
	}
}
