package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"audio2subs/internal/asr"
	"audio2subs/internal/audio"
	"audio2subs/internal/backend"
	"audio2subs/internal/config"
	"audio2subs/internal/controller"
	"audio2subs/internal/engine"
	"audio2subs/internal/journal"
	"audio2subs/internal/logging"
	"audio2subs/internal/player"
	"audio2subs/internal/services"
)

// TranscribeOptions configures a one-shot transcription without mpv.
type TranscribeOptions struct {
	Video  string
	Output string
	// Notifier receives progress states, for example a terminal renderer.
	Notifier player.Notifier
	Logger   *slog.Logger
	// Probe and Source replace ffprobe and ffmpeg when set.
	Probe  controller.ProbeFunc
	Source audio.Source
}

// Transcribe runs one session over a whole file from the start and returns
// its final status.
func Transcribe(cmdCtx context.Context, cfg *config.Config, opts TranscribeOptions) (engine.Status, error) {
	if cfg == nil {
		return engine.Status{}, fmt.Errorf("config is required")
	}
	video, err := filepath.Abs(opts.Video)
	if err != nil {
		return engine.Status{}, services.Wrap(services.ErrValidation, "transcribe", "resolve video", opts.Video, err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return engine.Status{}, services.Wrap(services.ErrConfiguration, "transcribe", "ensure directories", "", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	probe := opts.Probe
	if probe == nil {
		probe = ProbeMedia(cfg)
	}
	media, err := probe(ctx, video)
	if err != nil {
		return engine.Status{}, services.Wrap(services.ErrExternalTool, "transcribe", "probe media", video, err)
	}
	if media.Duration <= 0 {
		return engine.Status{}, services.Wrap(services.ErrValidation, "transcribe", "probe media", "unknown duration for "+video, nil)
	}

	var recorder journal.Recorder = journal.NopRecorder{}
	if cfg.Journal.Enabled {
		store, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			logger.Warn("session journal unavailable", logging.Error(err))
		} else {
			defer store.Close()
			recorder = store
		}
	}

	reporter := player.NewReporter(player.NewMachine(), opts.Notifier, logger)
	reporter.Report(ctx, player.Starting{})
	reporter.Report(ctx, player.Loading{Backend: cfg.Transcription.Backend})
	be, err := backend.New(cfg, logger)
	if err != nil {
		reporter.Report(ctx, player.Error{Message: "transcription backend unavailable"})
		return engine.Status{}, err
	}
	handle := asr.NewHandle(be)
	defer handle.Close()
	reporter.Report(ctx, player.Ready{})

	eng, err := engine.Open(ctx, engine.Params{
		SessionID:  uuid.NewString(),
		Video:      video,
		Duration:   media.Duration,
		AudioTrack: media.AudioTrack,
		Width:      media.Width,
		Height:     media.Height,
		OutputPath: opts.Output,
	}, engine.Deps{
		Config:   cfg,
		ASR:      handle,
		Source:   opts.Source,
		Reporter: reporter,
		Recorder: recorder,
		Logger:   logger,
	})
	if err != nil {
		return engine.Status{}, err
	}
	err = eng.Run(ctx)
	return eng.Status(), err
}
