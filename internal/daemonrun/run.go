package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"audio2subs/internal/asr"
	"audio2subs/internal/backend"
	"audio2subs/internal/config"
	"audio2subs/internal/controller"
	"audio2subs/internal/daemon"
	"audio2subs/internal/deps"
	"audio2subs/internal/engine"
	"audio2subs/internal/ipc"
	"audio2subs/internal/journal"
	"audio2subs/internal/logging"
	"audio2subs/internal/media/ffprobe"
	"audio2subs/internal/media/tracks"
	"audio2subs/internal/mpv"
	"audio2subs/internal/notifications"
	"audio2subs/internal/observe"
	"audio2subs/internal/player"
	"audio2subs/internal/preflight"
	"audio2subs/internal/services"
)

const serviceName = "audio2subs"

// Options configures service runtime behavior. Zero values keep the
// configuration file's settings.
type Options struct {
	LogLevel   string
	SocketPath string
	Backend    string
	Persistent bool
	Version    string
}

// apply folds command-line overrides into cfg.
func (o Options) apply(cfg *config.Config) {
	if o.SocketPath != "" {
		cfg.Player.SocketPath = o.SocketPath
	}
	if o.Backend != "" {
		cfg.Transcription.Backend = o.Backend
	}
	if o.Persistent {
		cfg.Player.PersistentMode = true
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
}

// Run attaches to mpv and generates subtitles for every loaded file until
// the player exits, the user stops the service, or a signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	opts.apply(cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "ensure directories", "", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("%s-%s.log", serviceName, runID))
	logger, err := logging.NewFromConfig(cfg, logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s.log link: %v\n", serviceName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: serviceName + "-*.log", Exclude: []string{logPath}},
	)

	statuses := preflight.CheckSystemDeps(signalCtx, cfg)
	logDependencySnapshot(logger, cfg, statuses)
	for _, result := range preflight.Failed(preflight.RunAll(signalCtx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "subtitle generation may fail"),
		)
	}
	if missing := deps.Missing(statuses); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, m := range missing {
			names = append(names, m.Command)
		}
		return services.Wrap(services.ErrExternalTool, "daemon", "check dependencies",
			"missing required binaries: "+strings.Join(names, ", "), nil)
	}

	var (
		store    *journal.Store
		recorder journal.Recorder = journal.NopRecorder{}
	)
	if cfg.Journal.Enabled {
		store, err = journal.Open(signalCtx, cfg.Journal.Path)
		if err != nil {
			logging.WarnWithContext(logger, "session journal unavailable", "journal_open_failed",
				logging.String("path", cfg.Journal.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "sessions are not recorded to history"),
			)
			store = nil
		} else {
			recorder = store
		}
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	d.SetDependencies(statuses)
	runCtx := d.Context()

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	metrics, shutdownMetrics, err := startMetrics(runCtx, cfg, d, opts.Version, logger)
	if err != nil {
		return err
	}
	defer shutdownMetrics()

	ipcServer, err := ipc.NewServer(runCtx, cfg.ControlSocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	client, err := mpv.DialRetry(runCtx, cfg.Player.SocketPath, time.Duration(cfg.Player.ConnectTimeout)*time.Second, logger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return services.Wrap(services.ErrExternalTool, "daemon", "connect to mpv", cfg.Player.SocketPath, err)
	}
	defer client.Close()

	subs := mpv.NewSubtitles(client, cfg.Player.AutoSelectSubtitle, logger)
	notifier := notifications.WrapPlayer(mpv.NewNotifier(client, subs), notifications.NewService(cfg), logger)
	reporter := player.NewReporter(player.NewMachine(), notifier, logger)

	reporter.Report(runCtx, player.Starting{})
	reporter.Report(runCtx, player.Loading{Backend: cfg.Transcription.Backend})
	be, err := backend.New(cfg, logger)
	if err != nil {
		reporter.Report(runCtx, player.Error{Message: "transcription backend unavailable"})
		return err
	}
	handle := asr.NewHandle(be)
	defer handle.Close()
	reporter.Report(runCtx, player.Ready{})

	open := func(ctx context.Context, p engine.Params) (*engine.Engine, error) {
		return engine.Open(ctx, p, engine.Deps{
			Config:   cfg,
			ASR:      handle,
			Reporter: reporter,
			Recorder: recorder,
			Metrics:  metrics,
			Logger:   logger,
		})
	}
	ctrl := controller.New(client, reporter, controller.Options{
		Persistent: cfg.Player.PersistentMode,
		Backend:    handle.Name(),
		Open:       open,
		Probe:      ProbeMedia(cfg),
		Tracks:     subs,
		Logger:     logger,
	})
	d.Attach(ctrl, reporter)
	defer d.Detach()

	logger.Info("attached to mpv",
		logging.String("socket", cfg.Player.SocketPath),
		logging.String("backend", handle.Name()),
		logging.Bool("persistent", cfg.Player.PersistentMode),
	)
	err = ctrl.Run(runCtx)
	logger.Info("audio2subs shutting down")
	return err
}

// startMetrics serves /metrics and the status API when metrics are enabled.
// The returned metrics are never nil.
func startMetrics(ctx context.Context, cfg *config.Config, d *daemon.Daemon, version string, logger *slog.Logger) (*observe.Metrics, func(), error) {
	if !cfg.Metrics.Enabled {
		return observe.NewNopMetrics(), func() {}, nil
	}
	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: serviceName, ServiceVersion: version})
	if err != nil {
		return nil, nil, fmt.Errorf("init metrics: %w", err)
	}
	metrics, err := observe.NewMetrics(provider.MeterProvider)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("init metrics: %w", err)
	}
	srv, err := observe.NewServer(cfg.Metrics.Bind, provider.Handler, logger, d.Routes()...)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, nil, err
	}
	serveCtx, stopServe := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(serveCtx); err != nil {
			logger.Warn("metrics server stopped", logging.Error(err))
		}
	}()
	return metrics, func() {
		stopServe()
		<-done
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}, nil
}

// ProbeMedia reads duration, frame size and the speech track with ffprobe.
func ProbeMedia(cfg *config.Config) controller.ProbeFunc {
	return func(ctx context.Context, path string) (controller.Media, error) {
		result, err := ffprobe.Inspect(ctx, cfg.FFprobeBinary(), path)
		if err != nil {
			return controller.Media{}, err
		}
		width, height := result.VideoSize()
		return controller.Media{
			Duration:   result.DurationSeconds(),
			Width:      width,
			Height:     height,
			AudioTrack: tracks.Select(result.AudioStreams(), cfg.Transcription.Language).Ordinal,
		}, nil
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, serviceName+".log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config, statuses []deps.Status) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("backend", cfg.Transcription.Backend),
		logging.String("model", cfg.Transcription.Model),
		logging.Bool("cuda", cfg.Transcription.CUDA),
		logging.Bool("api_key_present", strings.TrimSpace(cfg.Transcription.APIKey) != ""),
	}
	for _, s := range statuses {
		key := strings.ToLower(s.Command)
		attrs = append(attrs, logging.Bool(key+"_available", s.Available))
		if s.Version != "" {
			attrs = append(attrs, logging.String(key+"_version", s.Version))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
