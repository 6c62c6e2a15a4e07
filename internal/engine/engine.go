package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"audio2subs/internal/aggregate"
	"audio2subs/internal/assemble"
	"audio2subs/internal/audio"
	"audio2subs/internal/chunk"
	"audio2subs/internal/config"
	"audio2subs/internal/journal"
	"audio2subs/internal/logging"
	"audio2subs/internal/observe"
	"audio2subs/internal/player"
	"audio2subs/internal/publish"
	"audio2subs/internal/schedule"
	"audio2subs/internal/services"
	"audio2subs/internal/worker"
)

// flushTimeout bounds the final write after the session ends.
const flushTimeout = 10 * time.Second

// Params describes the video a session transcribes.
type Params struct {
	SessionID string
	Video     string
	// Duration is the media length in seconds.
	Duration float64
	// AudioTrack is the zero-based audio stream, or -1 for ffmpeg's default.
	AudioTrack int
	Width      int
	Height     int
	// OutputPath overrides the subtitle path derived from Video.
	OutputPath string
	// Position is the initial playhead.
	Position float64
}

// Deps are the collaborators shared across sessions.
type Deps struct {
	Config *config.Config
	// ASR is the exclusively owned backend handle.
	ASR worker.Transcriber
	// Source replaces ffmpeg extraction when set.
	Source   audio.Source
	Reporter *player.Reporter
	Recorder journal.Recorder
	Metrics  *observe.Metrics
	Logger   *slog.Logger
	// RetryDelay is waited after a transient chunk failure. Zero means one
	// second.
	RetryDelay time.Duration
}

// Engine is one per-video transcription session.
type Engine struct {
	params   Params
	cfg      *config.Config
	asrName  string
	sched    *schedule.Scheduler
	agg      *aggregate.Aggregator
	asm      *assemble.Assembler
	pub      *publish.Publisher
	throttle *publish.Throttle
	worker   *worker.Worker
	source   audio.Source
	extract  *audio.Extractor
	reporter *player.Reporter
	recorder journal.Recorder
	metrics  *observe.Metrics
	logger   *slog.Logger
	total    int
	started  time.Time

	dirty    chan struct{}
	done     chan struct{}
	sampler  *logging.ProgressSampler
	revision uint64

	mu          sync.Mutex
	cancel      context.CancelFunc
	stopped     bool
	lastPercent int
	demotions   int
	outcome     journal.Status
	runErr      error
}

// Open builds a session and publishes an empty subtitle file. Call Run to
// start transcription.
func Open(ctx context.Context, p Params, deps Deps) (*Engine, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "open", "config required", nil)
	}
	if strings.TrimSpace(p.Video) == "" {
		return nil, services.Wrap(services.ErrValidation, "engine", "open", "video path required", nil)
	}
	if p.Duration <= 0 {
		return nil, services.Wrap(services.ErrValidation, "engine", "open",
			fmt.Sprintf("video duration must be positive, got %.3f", p.Duration), nil)
	}
	if deps.ASR == nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "open", "asr handle required", nil)
	}
	if deps.Recorder == nil {
		deps.Recorder = journal.NopRecorder{}
	}
	if deps.Reporter == nil {
		deps.Reporter = player.NewReporter(player.NewMachine(), nil, deps.Logger)
	}

	ctx = services.WithVideo(services.WithSessionID(ctx, p.SessionID), p.Video)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(deps.Logger, "engine"))

	chunks, err := chunk.Split(p.Duration, float64(cfg.Chunking.ChunkSeconds), cfg.Chunking.OverlapSeconds)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "engine", "split timeline", "", err)
	}
	tieBreak, err := aggregate.ParseTieBreak(cfg.Chunking.TieBreak)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "open", "", err)
	}
	format, err := publish.FormatByName(cfg.Subtitles.Format, cfg.Subtitles.MaxCharsPerLine)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "open", "", err)
	}

	e := &Engine{
		params:   p,
		cfg:      cfg,
		asrName:  deps.ASR.Name(),
		reporter: deps.Reporter,
		recorder: deps.Recorder,
		metrics:  deps.Metrics,
		logger:   logger,
		total:    len(chunks),
		dirty:    make(chan struct{}, 1),
		done:     make(chan struct{}),
		sampler:  logging.NewProgressSampler(10),
		outcome:  journal.StatusRunning,
	}
	e.sched = schedule.New(schedule.Options{
		RetryLimit:         cfg.Chunking.RetryLimit,
		SeekDemoteDistance: cfg.Chunking.SeekDemoteSeconds,
		JumpThreshold:      float64(cfg.Chunking.ChunkSeconds),
	}, logger)
	e.agg = aggregate.New(aggregate.Options{
		TieBreak:           tieBreak,
		DuplicateTolerance: cfg.Chunking.DuplicateTolerance,
	})
	e.asm = assemble.New(RulesFromConfig(cfg.Subtitles), logger)

	if err := e.openPublisher(ctx, format); err != nil {
		return nil, err
	}

	e.source = deps.Source
	if e.source == nil {
		extractor, err := audio.NewExtractor(audio.ExtractorOptions{
			FFmpegBinary: cfg.FFmpegBinary(),
			Video:        p.Video,
			AudioTrack:   p.AudioTrack,
			Duration:     p.Duration,
			TempDir:      filepath.Join(cfg.Paths.WorkDir, "audio"),
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		e.extract = extractor
		e.source = extractor
	}
	retryDelay := deps.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	e.worker = worker.New(e.sched, e.source, deps.ASR, e, worker.Options{RetryDelay: retryDelay}, logger)

	e.sched.EnqueueAll(chunks)
	e.sched.OnPlaybackPosition(p.Position)

	if err := e.recorder.BeginSession(ctx, journal.Session{
		ID:           p.SessionID,
		VideoPath:    p.Video,
		SubtitlePath: e.pub.Path(),
		Backend:      e.asrName,
		Duration:     p.Duration,
		ChunksTotal:  len(chunks),
	}); err != nil {
		logging.WarnWithContext(logger, "journal session not recorded", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this session is missing from history"),
			logging.String(logging.FieldErrorHint, "check the journal path in [journal]"),
		)
	}

	logger.Info("session opened",
		logging.Seconds("duration", p.Duration),
		logging.Int("chunks", len(chunks)),
		logging.String("subtitle_path", e.pub.Path()),
		logging.String("backend", e.asrName),
	)
	return e, nil
}

// openPublisher initializes the subtitle file next to the video, falling
// back to the work directory when that location cannot be written.
func (e *Engine) openPublisher(ctx context.Context, format publish.Format) error {
	cfg := e.cfg
	opts := publish.Options{
		Format: format,
		Header: publish.Header{
			Title:  outputTitle(e.params.Video),
			Width:  e.params.Width,
			Height: e.params.Height,
			Style:  StyleFromConfig(cfg.Subtitles),
		},
		Retries: cfg.Publish.Retries,
		Backoff: time.Duration(cfg.Publish.RetryBackoffMS) * time.Millisecond,
		Reloader: publish.ReloaderFunc(func(ctx context.Context, path string) error {
			return e.reporter.Notifier().ReloadSubtitles(ctx, path)
		}),
		Logger: e.logger,
	}

	path := e.params.OutputPath
	if path == "" {
		path = publish.SubtitlePath(e.params.Video, cfg.Subtitles.Suffix)
	}
	pub := publish.New(path, opts)
	err := pub.Initialize(ctx)
	if err != nil && e.params.OutputPath == "" {
		fallback := publish.FallbackPath(cfg.Paths.WorkDir, e.params.Video, cfg.Subtitles.Suffix)
		logging.WarnWithContext(e.logger, "subtitle directory not writable, using work directory", "subtitle_fallback_path",
			logging.Error(err),
			logging.String("fallback", fallback),
			logging.String(logging.FieldImpact, "the player loads subtitles from the work directory"),
			logging.String(logging.FieldErrorHint, "make the video directory writable to keep subtitles beside the video"),
		)
		pub = publish.New(fallback, opts)
		err = pub.Initialize(ctx)
	}
	if err != nil {
		return err
	}
	e.pub = pub
	e.throttle = publish.NewThrottle(meteredTarget{pub: pub, metrics: e.metrics}, publish.ThrottleOptions{
		Interval:    cfg.RewriteThrottle(),
		MaxFailures: cfg.Publish.MaxConsecutiveFailures,
		Logger:      e.logger,
	})
	return nil
}

// Run transcribes until every chunk is terminal, the context is cancelled,
// Stop is called or the backend fails fatally. The final document is always
// flushed before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	ctx = services.WithVideo(services.WithSessionID(ctx, e.params.SessionID), e.params.Video)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancel = cancel
	e.started = time.Now()
	if e.stopped {
		cancel()
	}
	e.mu.Unlock()
	defer close(e.done)
	defer e.closeSource()

	closeGauge := e.metrics.SessionOpened(ctx)
	defer closeGauge()

	e.reporter.Report(ctx, player.Transcribing{Video: e.params.Video, Total: e.total})

	g, gctx := errgroup.WithContext(ctx)
	stageCtx, stopStages := context.WithCancel(gctx)
	defer stopStages()
	workerDone := make(chan struct{})

	if e.extract != nil {
		g.Go(func() error {
			if err := e.extract.Run(stageCtx); err != nil && stageCtx.Err() == nil {
				logging.WarnWithContext(e.logger, "audio extraction failed", "audio_extraction_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "chunks without decoded audio are left as gaps"),
					logging.String(logging.FieldErrorHint, "run ffmpeg on the video manually to check the audio track"),
				)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(workerDone)
		return e.worker.Run(gctx)
	})
	g.Go(func() error {
		return e.throttle.Run(stageCtx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-e.dirty:
				e.assemble(gctx)
			case <-workerDone:
				e.assemble(gctx)
				stopStages()
				return nil
			}
		}
	})

	err := g.Wait()
	e.finish(ctx, err)
	return err
}

// finish assembles and flushes whatever is left, then reports the outcome.
func (e *Engine) finish(ctx context.Context, runErr error) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	e.assemble(flushCtx)
	if err := e.throttle.Flush(flushCtx); err != nil && runErr == nil {
		runErr = err
	}

	progress := e.sched.Progress()
	status := journal.StatusComplete
	switch {
	case runErr != nil:
		status = journal.StatusFailed
	case !e.sched.Finished():
		status = journal.StatusCancelled
	case progress.Failed > 0:
		status = journal.StatusPartial
	}

	e.mu.Lock()
	e.outcome = status
	e.runErr = runErr
	e.mu.Unlock()

	switch status {
	case journal.StatusComplete, journal.StatusPartial:
		e.reportProgress(flushCtx)
		e.reporter.Report(flushCtx, player.Complete{Video: e.params.Video})
	case journal.StatusFailed:
		e.reporter.Report(flushCtx, player.Error{Message: errorMessage(runErr)})
	}

	doc := e.asm.Document()
	summary := journal.Summary{
		Status:       status,
		ChunksTotal:  progress.Total,
		ChunksDone:   progress.Done,
		ChunksFailed: progress.Failed,
		Lines:        len(doc.Lines),
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	if err := e.recorder.FinishSession(flushCtx, e.params.SessionID, summary); err != nil {
		e.logger.Debug("journal finish not recorded", logging.Error(err))
	}

	outcome := services.SessionOutcome(runErr)
	e.logger.Info("session finished",
		logging.String("status", string(status)),
		logging.String("outcome", outcome),
		logging.Int("chunks_done", progress.Done),
		logging.Int("chunks_failed", progress.Failed),
		logging.Int("lines", len(doc.Lines)),
		logging.Int("duplicates_dropped", e.agg.Dropped()),
		logging.Duration("elapsed", time.Since(e.started)),
	)
}

func errorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, services.ErrPublishIO):
		return "cannot write subtitle file"
	case errors.Is(err, services.ErrFatal):
		return "transcription backend failed"
	default:
		return err.Error()
	}
}

// assemble folds the dirty span into the document and submits it for
// publishing when lines changed.
func (e *Engine) assemble(ctx context.Context) {
	span, rev, ok := e.agg.DirtySince(e.revision)
	if !ok {
		return
	}
	started := time.Now()
	doc, changed := e.asm.Assemble(e.agg, span)
	e.agg.Checkpoint(rev)
	e.revision = rev
	e.metrics.RecordAssembly(ctx, time.Since(started))
	if changed {
		e.throttle.Submit(doc)
	}
	e.reportProgress(ctx)
}

func (e *Engine) reportProgress(ctx context.Context) {
	p := e.sched.Progress()
	percent := p.Percent()
	e.mu.Lock()
	if percent == e.lastPercent && p.Done+p.Failed < p.Total {
		e.mu.Unlock()
		return
	}
	e.lastPercent = percent
	e.mu.Unlock()

	e.reporter.Report(ctx, player.Transcribing{
		Video:   e.params.Video,
		Percent: percent,
		Done:    p.Done,
		Total:   p.Total,
	})
	if e.sampler.ShouldLog(float64(percent), "transcribing") {
		e.logger.Info("transcription progress",
			logging.Int("percent", percent),
			logging.Int("done", p.Done),
			logging.Int("failed", p.Failed),
			logging.Int("total", p.Total),
		)
	}
}

func (e *Engine) signal() {
	select {
	case e.dirty <- struct{}{}:
	default:
	}
}

func (e *Engine) closeSource() {
	if err := e.source.Close(); err != nil {
		e.logger.Debug("audio source close failed", logging.Error(err))
	}
}

// SetPosition records a playhead update. Large jumps are handled as seeks.
func (e *Engine) SetPosition(t float64) {
	if e.sched.OnPlaybackPosition(t) {
		e.logger.Debug("playhead jump treated as seek", logging.Seconds("position", t))
		e.recordDemotions()
	}
}

// Seek moves transcription priority to t.
func (e *Engine) Seek(t float64) {
	demoted := e.sched.OnSeek(t)
	e.logger.Debug("seek", logging.Seconds("position", t), logging.Int("demoted", len(demoted)))
	e.recordDemotions()
}

func (e *Engine) recordDemotions() {
	total := e.sched.Demotions()
	e.mu.Lock()
	delta := total - e.demotions
	e.demotions = total
	e.mu.Unlock()
	e.metrics.AddDemotions(context.Background(), delta)
}

// Stop cancels Run. It does not wait; use Done for that.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.cancel != nil {
		e.cancel()
	}
}

// Done is closed when Run has returned.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until Run returns or ctx ends.
func (e *Engine) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubtitlePath is where the session publishes.
func (e *Engine) SubtitlePath() string {
	return e.pub.Path()
}

// Document returns the current assembled document.
func (e *Engine) Document() assemble.Document {
	return e.asm.Document()
}

type meteredTarget struct {
	pub     *publish.Publisher
	metrics *observe.Metrics
}

func (m meteredTarget) Publish(ctx context.Context, doc assemble.Document) error {
	err := m.pub.Publish(ctx, doc)
	m.metrics.RecordPublish(ctx, err, len(doc.Lines))
	return err
}
