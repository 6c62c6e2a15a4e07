package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"audio2subs/internal/api"
	"audio2subs/internal/config"
	"audio2subs/internal/controller"
	"audio2subs/internal/deps"
	"audio2subs/internal/engine"
	"audio2subs/internal/journal"
	"audio2subs/internal/logging"
	"audio2subs/internal/notifications"
	"audio2subs/internal/player"
	"audio2subs/internal/services"
)

var (
	// ErrAlreadyRunning is returned when another instance holds the lock.
	ErrAlreadyRunning = errors.New("another audio2subs instance is already running")
	// ErrNoPlayer is returned by session commands before mpv is attached.
	ErrNoPlayer = errors.New("no player attached")
	// ErrJournalDisabled is returned by history queries when the journal is off.
	ErrJournalDisabled = errors.New("session journal disabled")
)

// Daemon owns the single-instance lock and exposes the attached player
// session to the IPC and HTTP surfaces.
type Daemon struct {
	cfg     *config.Config
	root    *slog.Logger
	logger  *slog.Logger
	journal *journal.Store

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time

	mu           sync.Mutex
	ctrl         *controller.Controller
	reporter     *player.Reporter
	dependencies []deps.Status
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockPath     string
	JournalPath  string
	Backend      string
	PlayerState  player.State
	Sessions     int
	Uptime       time.Duration
	Session      *engine.Status
	Dependencies []deps.Status
}

// New constructs a daemon. store may be nil when the journal is disabled.
func New(cfg *config.Config, store *journal.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		root:     logger,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		journal:  store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock. The returned daemon context is cancelled
// by Stop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.started = time.Now()
	d.running.Store(true)
	d.logger.Info("audio2subs daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Context is cancelled by Stop. It is nil before Start.
func (d *Daemon) Context() context.Context { return d.ctx }

// Done is closed once Stop is called or the start context ends.
func (d *Daemon) Done() <-chan struct{} {
	if d.ctx == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return d.ctx.Done()
}

// Stop cancels the daemon context and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("audio2subs daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// Attach makes ctrl the target of session commands.
func (d *Daemon) Attach(ctrl *controller.Controller, reporter *player.Reporter) {
	d.mu.Lock()
	d.ctrl = ctrl
	d.reporter = reporter
	d.mu.Unlock()
}

// Detach drops the controller once the player disconnects.
func (d *Daemon) Detach() {
	d.mu.Lock()
	d.ctrl = nil
	d.mu.Unlock()
}

// SetDependencies records the startup dependency snapshot.
func (d *Daemon) SetDependencies(statuses []deps.Status) {
	d.mu.Lock()
	d.dependencies = append([]deps.Status(nil), statuses...)
	d.mu.Unlock()
}

func (d *Daemon) attached() (*controller.Controller, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctrl == nil {
		return nil, ErrNoPlayer
	}
	return d.ctrl, nil
}

// StopSession ends the active session while staying attached to mpv.
func (d *Daemon) StopSession(ctx context.Context) error {
	ctrl, err := d.attached()
	if err != nil {
		return err
	}
	return ctrl.StopSession(ctx)
}

// Seek moves the active session's playhead.
func (d *Daemon) Seek(t float64) error {
	if t < 0 {
		return services.Wrap(services.ErrValidation, "daemon", "seek", "position must not be negative", nil)
	}
	ctrl, err := d.attached()
	if err != nil {
		return err
	}
	return ctrl.Seek(t)
}

// SetPosition reports a playhead update to the active session.
func (d *Daemon) SetPosition(t float64) error {
	if t < 0 {
		return services.Wrap(services.ErrValidation, "daemon", "position", "position must not be negative", nil)
	}
	ctrl, err := d.attached()
	if err != nil {
		return err
	}
	return ctrl.SetPosition(t)
}

// RecentSessions lists journaled sessions, newest first.
func (d *Daemon) RecentSessions(ctx context.Context, limit int) ([]journal.Session, error) {
	if d.journal == nil {
		return nil, ErrJournalDisabled
	}
	return d.journal.RecentSessions(ctx, limit)
}

// SessionDetail returns a journaled session and its attempts.
func (d *Daemon) SessionDetail(ctx context.Context, id string) (journal.Session, []journal.Attempt, error) {
	if d.journal == nil {
		return journal.Session{}, nil, ErrJournalDisabled
	}
	sess, err := d.journal.GetSession(ctx, id)
	if err != nil {
		return journal.Session{}, nil, err
	}
	attempts, err := d.journal.SessionAttempts(ctx, sess.ID)
	if err != nil {
		return journal.Session{}, nil, err
	}
	return sess, attempts, nil
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	d.mu.Lock()
	ctrl, reporter := d.ctrl, d.reporter
	s := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockPath:     d.lockPath,
		Backend:      d.cfg.Transcription.Backend,
		Dependencies: append([]deps.Status(nil), d.dependencies...),
	}
	d.mu.Unlock()

	if d.journal != nil {
		s.JournalPath = d.journal.Path()
	}
	if s.Running {
		s.Uptime = time.Since(d.started)
	}
	if reporter != nil {
		s.PlayerState = reporter.Machine().Current()
	}
	if ctrl != nil {
		s.Sessions = ctrl.Sessions()
		if eng := ctrl.Current(); eng != nil {
			st := eng.Status()
			s.Session = &st
		}
	}
	return s
}

// APIStatus converts Status for the IPC and HTTP surfaces.
func (s Status) APIStatus() api.DaemonStatus {
	out := api.DaemonStatus{
		Running:      s.Running,
		PID:          s.PID,
		LockFilePath: s.LockPath,
		JournalPath:  s.JournalPath,
		Backend:      s.Backend,
		Sessions:     s.Sessions,
		UptimeSecs:   s.Uptime.Seconds(),
		Dependencies: api.FromDependencies(s.Dependencies),
	}
	if s.PlayerState != nil {
		out.PlayerState = s.PlayerState.String()
	} else {
		out.PlayerState = "detached"
	}
	if s.Session != nil {
		active := api.FromEngineStatus(*s.Session)
		out.Session = &active
	}
	return out
}
