package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"audio2subs/internal/config"
	"audio2subs/internal/daemon"
	"audio2subs/internal/journal"
	"audio2subs/internal/logging"
	"audio2subs/internal/services"
	"audio2subs/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config, store *journal.Store) *daemon.Daemon {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockPath != cfg.LockPath() {
		t.Fatalf("lock path = %q, want %q", status.LockPath, cfg.LockPath())
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Stop")
	}
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg, nil)
	second := newDaemon(t, cfg, nil)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("second Start err = %v, want ErrAlreadyRunning", err)
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
}

func TestSessionCommandsWithoutPlayer(t *testing.T) {
	d := newDaemon(t, testsupport.NewConfig(t), nil)
	ctx := context.Background()

	if err := d.StopSession(ctx); !errors.Is(err, daemon.ErrNoPlayer) {
		t.Fatalf("StopSession err = %v", err)
	}
	if err := d.Seek(10); !errors.Is(err, daemon.ErrNoPlayer) {
		t.Fatalf("Seek err = %v", err)
	}
	if err := d.Seek(-1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Seek(-1) err = %v", err)
	}
	if err := d.SetPosition(-1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("SetPosition(-1) err = %v", err)
	}
	if got := d.Status(ctx).APIStatus().PlayerState; got != "detached" {
		t.Fatalf("player state = %q, want detached", got)
	}
}

func TestHistoryFromJournal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	d := newDaemon(t, cfg, store)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	for i, id := range []string{"aaa111", "bbb222"} {
		if err := store.BeginSession(ctx, journal.Session{
			ID:        id,
			VideoPath: "/films/" + id + ".mkv",
			Backend:   "mock",
			StartedAt: started.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("BeginSession: %v", err)
		}
	}
	if err := store.RecordAttempt(ctx, journal.Attempt{SessionID: "bbb222", ChunkID: 0, Attempt: 1, Outcome: "done", Words: 12}); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if err := store.FinishSession(ctx, "bbb222", journal.Summary{Status: journal.StatusComplete, ChunksTotal: 1, ChunksDone: 1}); err != nil {
		t.Fatalf("FinishSession: %v", err)
	}

	sessions, err := d.RecentSessions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "bbb222" {
		t.Fatalf("sessions = %+v", sessions)
	}

	sess, attempts, err := d.SessionDetail(ctx, "bbb")
	if err != nil {
		t.Fatalf("SessionDetail: %v", err)
	}
	if sess.ID != "bbb222" || sess.Status != journal.StatusComplete || len(attempts) != 1 {
		t.Fatalf("detail = %+v %+v", sess, attempts)
	}
	if _, _, err := d.SessionDetail(ctx, "zzz"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("unknown session err = %v", err)
	}
	if got := d.Status(ctx).JournalPath; got != cfg.Journal.Path {
		t.Fatalf("journal path = %q, want %q", got, cfg.Journal.Path)
	}
}

func TestJournalDisabled(t *testing.T) {
	d := newDaemon(t, testsupport.NewConfig(t), nil)
	if _, err := d.RecentSessions(context.Background(), 5); !errors.Is(err, daemon.ErrJournalDisabled) {
		t.Fatalf("RecentSessions err = %v", err)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d := newDaemon(t, testsupport.NewConfig(t), nil)
	sent, msg, err := d.TestNotification(context.Background())
	if err != nil || sent || msg != "ntfy topic not configured" {
		t.Fatalf("TestNotification = %v, %q, %v", sent, msg, err)
	}
}
