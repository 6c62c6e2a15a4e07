package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"audio2subs/internal/engine"
	"audio2subs/internal/logging"
	"audio2subs/internal/mpv"
	"audio2subs/internal/player"
	"audio2subs/internal/services"
)

// Observed property ids.
const (
	observePath = iota + 1
	observeTimePos
	observePause
	observeSID
	observeDuration
)

var observed = []struct {
	id   int
	name string
}{
	{observePath, "path"},
	{observeTimePos, "time-pos"},
	{observePause, "pause"},
	{observeSID, "sid"},
	{observeDuration, "duration"},
}

// ErrNoSession is returned by session commands while no video is active.
var ErrNoSession = errors.New("no active subtitle session")

// Player is the part of the mpv client the controller drives.
type Player interface {
	Events() <-chan mpv.Event
	GetProperty(ctx context.Context, name string, out any) error
	ObserveProperty(ctx context.Context, id int, name string) error
}

// TrackWatcher follows the user's subtitle track selection.
type TrackWatcher interface {
	Reset()
	ObserveSID(value json.RawMessage)
}

// OpenFunc builds a session for one video.
type OpenFunc func(ctx context.Context, p engine.Params) (*engine.Engine, error)

// ProbeFunc fills in media facts mpv has not reported yet.
type ProbeFunc func(ctx context.Context, path string) (Media, error)

// Media describes the loaded video.
type Media struct {
	Duration   float64
	Width      int
	Height     int
	AudioTrack int
}

// Options configures a Controller.
type Options struct {
	// Persistent keeps the controller running after ai-subs/stop.
	Persistent bool
	Backend    string
	Open       OpenFunc
	Probe      ProbeFunc
	Tracks     TrackWatcher
	Logger     *slog.Logger
}

// Controller turns mpv events into subtitle sessions: one engine per loaded
// file, positioned by the playhead.
type Controller struct {
	player   Player
	reporter *player.Reporter
	opts     Options
	logger   *slog.Logger

	paused   bool
	wg       sync.WaitGroup
	mu       sync.Mutex
	current  *engine.Engine
	path     string
	sessions int
}

// New wires a controller.
func New(p Player, reporter *player.Reporter, opts Options) *Controller {
	return &Controller{
		player:   p,
		reporter: reporter,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "controller"),
	}
}

// Run observes the player until it shuts down, disconnects, ctx is cancelled
// or, outside persistent mode, the user stops the service.
func (c *Controller) Run(ctx context.Context) error {
	defer c.wg.Wait()
	defer c.closeSession("controller exiting")

	for _, o := range observed {
		if err := c.player.ObserveProperty(ctx, o.id, o.name); err != nil {
			return services.Wrap(services.ErrExternalTool, "controller", "observe "+o.name, "", err)
		}
	}
	// The file may already be playing when the service attaches.
	c.load(ctx, "")

	events := c.player.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				c.logger.Info("player disconnected")
				return nil
			}
			if done := c.handle(ctx, ev); done {
				return nil
			}
		}
	}
}

// handle applies one event and reports whether the controller should exit.
func (c *Controller) handle(ctx context.Context, ev mpv.Event) bool {
	switch ev.Name {
	case "property-change":
		c.propertyChanged(ctx, ev)
	case "file-loaded":
		c.load(ctx, "")
	case "seek", "playback-restart":
		var pos float64
		if err := c.player.GetProperty(ctx, "time-pos", &pos); err == nil {
			c.Seek(pos)
		}
	case "end-file":
		if ev.Reason != "redirect" {
			c.closeSession("end of file")
		}
	case "client-message":
		if len(ev.Args) > 0 && ev.Args[0] == mpv.MessageStop {
			c.logger.Info("stop requested by player", logging.Bool("persistent", c.opts.Persistent))
			c.closeSession("stopped by user")
			c.reporter.Report(ctx, player.Stopped{})
			return !c.opts.Persistent
		}
	case "shutdown":
		c.logger.Info("player shutting down")
		c.closeSession("player shutdown")
		return true
	}
	return false
}

func (c *Controller) propertyChanged(ctx context.Context, ev mpv.Event) {
	switch ev.Property {
	case "path":
		path, _ := ev.String()
		switch {
		case path == "":
			c.closeSession("file closed")
		case path != c.currentPath():
			c.load(ctx, path)
		}
	case "duration":
		if _, ok := ev.Float(); ok && c.Current() == nil {
			c.load(ctx, "")
		}
	case "time-pos":
		if c.paused {
			return
		}
		if t, ok := ev.Float(); ok {
			c.SetPosition(t)
		}
	case "pause":
		if paused, ok := ev.Bool(); ok {
			c.paused = paused
		}
	case "sid":
		if c.opts.Tracks != nil {
			c.opts.Tracks.ObserveSID(ev.Data)
		}
	}
}

// load opens a session for the file mpv is playing, replacing any session
// for another file. It is a no-op while the duration is still unknown.
func (c *Controller) load(ctx context.Context, path string) {
	if path == "" {
		if err := c.player.GetProperty(ctx, "path", &path); err != nil || path == "" {
			return
		}
	}
	if eng := c.Current(); eng != nil && c.currentPath() == path {
		return
	}
	media, ok := c.media(ctx, path)
	if !ok {
		c.logger.Debug("duration not known yet", logging.String("path", path))
		return
	}

	c.closeSession("new file loaded")
	if c.opts.Tracks != nil {
		c.opts.Tracks.Reset()
	}
	c.ensureReady(ctx)

	var pos float64
	if err := c.player.GetProperty(ctx, "time-pos", &pos); err != nil || math.IsNaN(pos) || pos < 0 {
		pos = 0
	}
	params := engine.Params{
		SessionID:  uuid.NewString(),
		Video:      path,
		Duration:   media.Duration,
		AudioTrack: media.AudioTrack,
		Width:      media.Width,
		Height:     media.Height,
		Position:   pos,
	}
	eng, err := c.opts.Open(ctx, params)
	if err != nil {
		logging.ErrorWithContext(c.logger, "subtitle session failed to open", "session_open_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "no subtitles are generated for this file"),
			logging.String(logging.FieldErrorHint, "check that the video directory or work directory is writable"),
		)
		c.reporter.Report(ctx, player.Error{Message: "cannot start subtitles for this file"})
		return
	}

	c.mu.Lock()
	c.current = eng
	c.path = path
	c.sessions++
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := eng.Run(ctx); err != nil {
			c.logger.Warn("subtitle session ended with error",
				logging.String("path", path),
				logging.Error(err),
			)
		}
	}()
}

// media reads duration, size and audio track from mpv, then the probe.
func (c *Controller) media(ctx context.Context, path string) (Media, bool) {
	m := Media{AudioTrack: -1}
	if err := c.player.GetProperty(ctx, "duration", &m.Duration); err != nil {
		m.Duration = 0
	}
	_ = c.player.GetProperty(ctx, "width", &m.Width)
	_ = c.player.GetProperty(ctx, "height", &m.Height)
	var aid json.RawMessage
	if err := c.player.GetProperty(ctx, "aid", &aid); err == nil {
		var id int
		// mpv numbers audio tracks from 1 in container order.
		if json.Unmarshal(aid, &id) == nil && id > 0 {
			m.AudioTrack = id - 1
		}
	}
	if m.Duration > 0 || c.opts.Probe == nil {
		return m, m.Duration > 0
	}

	probed, err := c.opts.Probe(ctx, path)
	if err != nil {
		c.logger.Debug("probe failed", logging.String("path", path), logging.Error(err))
		return m, false
	}
	m.Duration = probed.Duration
	if m.Width == 0 || m.Height == 0 {
		m.Width, m.Height = probed.Width, probed.Height
	}
	if m.AudioTrack < 0 {
		m.AudioTrack = probed.AudioTrack
	}
	return m, m.Duration > 0 && !math.IsNaN(m.Duration)
}

// ensureReady walks a stopped or failed player state back to ready so a new
// session can report progress.
func (c *Controller) ensureReady(ctx context.Context) {
	switch c.reporter.Machine().Current().Kind() {
	case player.KindStopped, player.KindIdle:
		c.reporter.Report(ctx, player.Starting{})
		c.reporter.Report(ctx, player.Loading{Backend: c.opts.Backend})
		c.reporter.Report(ctx, player.Ready{})
	case player.KindError, player.KindComplete, player.KindTranscribing:
		c.reporter.Report(ctx, player.Ready{})
	}
}

// closeSession stops the current engine and waits for its final flush.
func (c *Controller) closeSession(reason string) {
	c.mu.Lock()
	eng := c.current
	c.current = nil
	c.path = ""
	c.mu.Unlock()
	if eng == nil {
		return
	}
	eng.Stop()
	<-eng.Done()
	c.logger.Info("subtitle session closed",
		logging.String("reason", reason),
		logging.String("path", eng.Status().Video),
	)
}

// Current returns the active engine, or nil.
func (c *Controller) Current() *engine.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) currentPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Sessions counts sessions opened since the controller started.
func (c *Controller) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions
}

// SetPosition forwards a playhead update to the active session.
func (c *Controller) SetPosition(t float64) error {
	eng := c.Current()
	if eng == nil {
		return ErrNoSession
	}
	eng.SetPosition(t)
	return nil
}

// Seek forwards a seek to the active session.
func (c *Controller) Seek(t float64) error {
	eng := c.Current()
	if eng == nil {
		return ErrNoSession
	}
	eng.Seek(t)
	return nil
}

// StopSession ends the active session without leaving the event loop.
func (c *Controller) StopSession(ctx context.Context) error {
	if c.Current() == nil {
		return ErrNoSession
	}
	c.closeSession("stopped over ipc")
	c.reporter.Report(ctx, player.Stopped{})
	return nil
}
