package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audio2subs/internal/asr"
	"audio2subs/internal/asr/mock"
	"audio2subs/internal/audio"
	"audio2subs/internal/config"
	"audio2subs/internal/journal"
	"audio2subs/internal/logging"
	"audio2subs/internal/player"
	"audio2subs/internal/services"
	"audio2subs/internal/testsupport"
)

func readyReporter(t *testing.T) *player.Reporter {
	t.Helper()
	machine := player.NewMachine()
	for _, s := range []player.State{player.Starting{}, player.Loading{Backend: "mock"}, player.Ready{}} {
		if err := machine.Transition(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	return player.NewReporter(machine, nil, logging.NewNop())
}

type fixture struct {
	cfg      *config.Config
	video    string
	store    *journal.Store
	reporter *player.Reporter
	backend  *mock.Backend
}

func newFixture(t *testing.T, backend *mock.Backend) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithChunking(10, 1))
	video := testsupport.WriteVideo(t, filepath.Join(testsupport.BaseDir(cfg), "films"), "Heat (1995).mkv")
	return &fixture{
		cfg:      cfg,
		video:    video,
		store:    testsupport.MustOpenJournal(t, cfg),
		reporter: readyReporter(t),
		backend:  backend,
	}
}

func (f *fixture) open(t *testing.T, seconds float64, position float64) *Engine {
	t.Helper()
	eng, err := Open(context.Background(), Params{
		SessionID:  "sess-" + strings.ReplaceAll(t.Name(), "/", "-"),
		Video:      f.video,
		Duration:   seconds,
		AudioTrack: -1,
		Width:      1920,
		Height:     1080,
		Position:   position,
	}, Deps{
		Config:     f.cfg,
		ASR:        asr.NewHandle(f.backend),
		Source:     audio.NewStaticSource(audio.Silence(seconds)),
		Reporter:   f.reporter,
		Recorder:   f.store,
		Logger:     logging.NewNop(),
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return eng
}

func runWithTimeout(t *testing.T, eng *Engine) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return eng.Run(ctx)
}

func TestOpenPublishesEmptyFile(t *testing.T) {
	f := newFixture(t, mock.Speech())
	eng := f.open(t, 35, 0)

	want := strings.TrimSuffix(f.video, ".mkv") + ".ai.ass"
	if eng.SubtitlePath() != want {
		t.Fatalf("subtitle path = %q, want %q", eng.SubtitlePath(), want)
	}
	content := testsupport.ReadFile(t, want)
	if !strings.Contains(content, "[Events]") {
		t.Fatalf("initial file missing events section:\n%s", content)
	}
	if strings.Contains(content, "Dialogue:") {
		t.Fatalf("initial file has dialogue lines:\n%s", content)
	}
	if !strings.Contains(content, "Heat (1995)") {
		t.Fatalf("initial file missing title:\n%s", content)
	}
}

func TestRunTranscribesWholeVideo(t *testing.T) {
	f := newFixture(t, mock.Speech())
	eng := f.open(t, 35, 0)

	if err := runWithTimeout(t, eng); err != nil {
		t.Fatalf("Run: %v", err)
	}
	select {
	case <-eng.Done():
	default:
		t.Fatal("Done not closed after Run")
	}

	content := testsupport.ReadFile(t, eng.SubtitlePath())
	if !strings.Contains(content, "Dialogue:") || !strings.Contains(content, "word") {
		t.Fatalf("subtitles missing dialogue:\n%s", content)
	}

	st := eng.Status()
	if st.Progress.Done != st.Progress.Total || st.Progress.Total == 0 {
		t.Fatalf("progress = %+v", st.Progress)
	}
	if st.Outcome != journal.StatusComplete {
		t.Fatalf("outcome = %q, want complete", st.Outcome)
	}
	if st.Lines == 0 || st.Writes < 2 {
		t.Fatalf("status = %+v", st)
	}
	// One word per second survives overlap deduplication.
	if st.Words != 35 {
		t.Fatalf("words = %d, want 35", st.Words)
	}

	sess, err := f.store.GetSession(context.Background(), eng.Status().SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != journal.StatusComplete || sess.ChunksDone != st.Progress.Total || sess.Lines != st.Lines {
		t.Fatalf("session = %+v", sess)
	}
	if got := f.reporter.Machine().Current().Kind(); got != player.KindComplete {
		t.Fatalf("player state = %s, want complete", got)
	}
}

func TestRunStartsAtPlayhead(t *testing.T) {
	backend := mock.Speech()
	f := newFixture(t, backend)
	eng := f.open(t, 120, 100)

	if err := runWithTimeout(t, eng); err != nil {
		t.Fatalf("Run: %v", err)
	}
	attempts, err := f.store.SessionAttempts(context.Background(), eng.Status().SessionID)
	if err != nil {
		t.Fatalf("SessionAttempts: %v", err)
	}
	if len(attempts) == 0 {
		t.Fatal("no attempts recorded")
	}
	first := attempts[0]
	if first.Start > 100 || first.End < 100 {
		t.Fatalf("first chunk = [%.1f, %.1f], want one containing the playhead", first.Start, first.End)
	}
}

func TestFatalBackendEndsSession(t *testing.T) {
	backend := mock.New(mock.Step{Err: asr.Fatalf("transcribe", "model crashed")})
	f := newFixture(t, backend)
	eng := f.open(t, 35, 0)

	err := runWithTimeout(t, eng)
	if !errors.Is(err, services.ErrFatal) {
		t.Fatalf("Run err = %v, want ErrFatal", err)
	}
	if backend.Calls() != 1 {
		t.Fatalf("backend calls = %d, want 1", backend.Calls())
	}
	sess, err := f.store.GetSession(context.Background(), eng.Status().SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != journal.StatusFailed || sess.Error == "" {
		t.Fatalf("session = %+v", sess)
	}
	state := f.reporter.Machine().Current()
	if state.Kind() != player.KindError {
		t.Fatalf("player state = %s, want error", state)
	}
}

func TestTransientFailuresLeaveGap(t *testing.T) {
	fail := asr.Transientf("transcribe", "server busy")
	steps := make([]mock.Step, 0, 8)
	for range 4 {
		steps = append(steps, mock.Step{Err: fail})
	}
	backend := mock.New(steps...)
	backend.Generate = mock.Speech().Generate
	f := newFixture(t, backend)
	eng := f.open(t, 35, 0)

	if err := runWithTimeout(t, eng); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := eng.Status()
	if st.Progress.Failed != 1 {
		t.Fatalf("failed chunks = %d, want 1", st.Progress.Failed)
	}
	if st.Gaps != 1 {
		t.Fatalf("gaps = %d, want 1", st.Gaps)
	}
	if st.Outcome != journal.StatusPartial {
		t.Fatalf("outcome = %q, want partial", st.Outcome)
	}
	attempts, err := f.store.SessionAttempts(context.Background(), st.SessionID)
	if err != nil {
		t.Fatalf("SessionAttempts: %v", err)
	}
	retries := 0
	for _, a := range attempts {
		if a.Outcome == "retry" {
			retries++
		}
	}
	if retries != f.cfg.Chunking.RetryLimit {
		t.Fatalf("retries = %d, want %d", retries, f.cfg.Chunking.RetryLimit)
	}
}

func TestStopCancelsSession(t *testing.T) {
	backend := mock.Speech()
	backend.Delay = 50 * time.Millisecond
	f := newFixture(t, backend)
	eng := f.open(t, 120, 0)

	errCh := make(chan error, 1)
	go func() { errCh <- runWithTimeout(t, eng) }()

	time.Sleep(80 * time.Millisecond)
	eng.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	st := eng.Status()
	if st.Outcome != journal.StatusCancelled {
		t.Fatalf("outcome = %q, want cancelled", st.Outcome)
	}
	if st.Progress.Done == st.Progress.Total {
		t.Fatalf("every chunk finished despite Stop: %+v", st.Progress)
	}
}

func TestStopBeforeRun(t *testing.T) {
	f := newFixture(t, mock.Speech())
	eng := f.open(t, 35, 0)
	eng.Stop()
	if err := runWithTimeout(t, eng); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := eng.Status().Outcome; got != journal.StatusCancelled {
		t.Fatalf("outcome = %q, want cancelled", got)
	}
}

func TestSeekMovesPosition(t *testing.T) {
	f := newFixture(t, mock.Speech())
	eng := f.open(t, 120, 0)

	eng.SetPosition(5)
	eng.Seek(90)
	if got := eng.Status().Position; got != 90 {
		t.Fatalf("position = %v, want 90", got)
	}
	eng.SetPosition(91)
	if got := eng.Status().Position; got != 91 {
		t.Fatalf("position = %v, want 91", got)
	}
}

func TestOpenValidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handle := asr.NewHandle(mock.Speech())
	tests := []struct {
		name   string
		params Params
		deps   Deps
		want   error
	}{
		{name: "no config", params: Params{Video: "/v.mkv", Duration: 10}, deps: Deps{ASR: handle}, want: services.ErrConfiguration},
		{name: "no video", params: Params{Duration: 10}, deps: Deps{Config: cfg, ASR: handle}, want: services.ErrValidation},
		{name: "zero duration", params: Params{Video: "/v.mkv"}, deps: Deps{Config: cfg, ASR: handle}, want: services.ErrValidation},
		{name: "no backend", params: Params{Video: "/v.mkv", Duration: 10}, deps: Deps{Config: cfg}, want: services.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.params, tt.deps)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOutputTitle(t *testing.T) {
	if got := outputTitle("/films/Heat (1995).mkv"); got != "AI Subtitles: Heat (1995)" {
		t.Fatalf("outputTitle = %q", got)
	}
}
