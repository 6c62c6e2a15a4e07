package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"audio2subs/internal/assemble"
	"audio2subs/internal/logging"
	"audio2subs/internal/services"
)

// Reloader tells the player that the file at path changed.
type Reloader interface {
	Reload(ctx context.Context, path string) error
}

// ReloaderFunc adapts a function to Reloader.
type ReloaderFunc func(ctx context.Context, path string) error

func (f ReloaderFunc) Reload(ctx context.Context, path string) error { return f(ctx, path) }

// Options configures a Publisher.
type Options struct {
	Format   Format
	Header   Header
	Retries  int
	Backoff  time.Duration
	Reloader Reloader
	Logger   *slog.Logger
}

// Published describes the last successful write.
type Published struct {
	At    time.Time
	Lines int
	Bytes int
}

// Publisher owns the subtitle file of one session. No other component
// writes it.
type Publisher struct {
	path    string
	opts    Options
	logger  *slog.Logger
	writeFn func(path string, data []byte) error

	mu       sync.Mutex
	last     Published
	ok       bool
	failures int
	writes   int
}

// New constructs a Publisher writing to path.
func New(path string, opts Options) *Publisher {
	if opts.Format == nil {
		opts.Format = ASS{}
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Publisher{
		path:    path,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "publisher").With(logging.String("subtitle_path", path)),
		writeFn: writeAtomic,
	}
}

// Path returns the destination file.
func (p *Publisher) Path() string { return p.path }

// Initialize publishes a document with no lines so the player has a valid
// file to load before any chunk completes.
func (p *Publisher) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return services.Wrap(services.ErrPublishIO, "publish", "create directory", filepath.Dir(p.path), err)
	}
	return p.Publish(ctx, assemble.Document{})
}

// Publish renders doc and atomically replaces the destination, retrying with
// exponential backoff. On failure the previous file is left as it was.
func (p *Publisher) Publish(ctx context.Context, doc assemble.Document) error {
	data := p.opts.Format.Render(doc, p.opts.Header)

	var err error
	for attempt := 0; attempt <= p.opts.Retries; attempt++ {
		if attempt > 0 {
			delay := p.opts.Backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return p.fail(ctx.Err())
			case <-time.After(delay):
			}
		}
		if err = p.writeFn(p.path, data); err == nil {
			break
		}
		p.logger.Debug("subtitle write failed",
			logging.Int("attempt", attempt+1),
			logging.Error(err),
		)
	}
	if err != nil {
		return p.fail(err)
	}

	p.mu.Lock()
	p.last = Published{At: time.Now(), Lines: len(doc.Lines), Bytes: len(data)}
	p.ok = true
	p.failures = 0
	p.writes++
	p.mu.Unlock()

	p.logger.Debug("subtitles published",
		logging.Int("lines", len(doc.Lines)),
		logging.Int("bytes", len(data)),
	)

	if p.opts.Reloader != nil {
		if rerr := p.opts.Reloader.Reload(ctx, p.path); rerr != nil {
			logging.WarnWithContext(p.logger, "player reload failed", "subtitle_reload_failed",
				logging.Error(rerr),
				logging.String(logging.FieldImpact, "player keeps showing the previous subtitles"),
				logging.String(logging.FieldErrorHint, "check the mpv IPC connection"),
			)
		}
	}
	return nil
}

func (p *Publisher) fail(err error) error {
	p.mu.Lock()
	p.failures++
	failures := p.failures
	p.mu.Unlock()
	return services.Wrap(services.ErrPublishIO, "publish", "write subtitles",
		fmt.Sprintf("%s (%d consecutive failures)", p.path, failures), err)
}

// LastPublished reports the most recent successful write.
func (p *Publisher) LastPublished() (Published, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.ok
}

// ConsecutiveFailures counts failed Publish calls since the last success.
func (p *Publisher) ConsecutiveFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// Writes counts successful publishes.
func (p *Publisher) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

func writeAtomic(path string, data []byte) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer pending.Cleanup()
	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write pending file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
