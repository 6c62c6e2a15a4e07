package publish

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"audio2subs/internal/assemble"
	"audio2subs/internal/logging"
)

// Target is what a Throttle publishes to.
type Target interface {
	Publish(ctx context.Context, doc assemble.Document) error
}

// ThrottleOptions configures a Throttle.
type ThrottleOptions struct {
	// Interval is the minimum time between writes after the first.
	Interval time.Duration
	// MaxFailures ends Run after this many consecutive failed writes. Zero
	// never gives up.
	MaxFailures int
	Logger      *slog.Logger
}

// Throttle coalesces documents so the file is rewritten immediately the first
// time and at most once per Interval afterwards. Only the newest submitted
// document is ever written.
type Throttle struct {
	target Target
	opts   ThrottleOptions
	logger *slog.Logger
	wake   chan struct{}

	mu       sync.Mutex
	pending  *assemble.Document
	last     time.Time
	failures int
}

// NewThrottle wraps target.
func NewThrottle(target Target, opts ThrottleOptions) *Throttle {
	return &Throttle{
		target: target,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "publish_throttle"),
		wake:   make(chan struct{}, 1),
	}
}

// Submit replaces the pending document.
func (t *Throttle) Submit(doc assemble.Document) {
	t.mu.Lock()
	t.pending = &doc
	t.mu.Unlock()
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Run writes pending documents until ctx ends. It returns an error only when
// MaxFailures consecutive writes fail.
func (t *Throttle) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	for {
		if wait, ok := t.due(); ok {
			if wait <= 0 {
				if err := t.publish(ctx); err != nil {
					return err
				}
				continue
			}
			timer.Reset(wait)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// Flush writes the pending document now, ignoring the interval.
func (t *Throttle) Flush(ctx context.Context) error {
	t.mu.Lock()
	pending := t.pending != nil
	t.mu.Unlock()
	if !pending {
		return nil
	}
	return t.publish(ctx)
}

func (t *Throttle) due() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return 0, false
	}
	if t.last.IsZero() {
		return 0, true
	}
	return time.Until(t.last.Add(t.opts.Interval)), true
}

func (t *Throttle) publish(ctx context.Context) error {
	t.mu.Lock()
	doc := t.pending
	t.pending = nil
	t.last = time.Now()
	t.mu.Unlock()
	if doc == nil {
		return nil
	}

	err := t.target.Publish(ctx, *doc)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		t.failures = 0
		return nil
	}
	t.failures++
	if t.pending == nil {
		t.pending = doc
	}
	logging.WarnWithContext(t.logger, "subtitle publish failed", "subtitle_publish_failed",
		logging.Error(err),
		logging.Int("consecutive_failures", t.failures),
		logging.String(logging.FieldImpact, "player keeps the last complete subtitle file"),
		logging.String(logging.FieldErrorHint, "check free space and permissions on the subtitle directory"),
	)
	if t.opts.MaxFailures > 0 && t.failures >= t.opts.MaxFailures {
		return err
	}
	return nil
}
