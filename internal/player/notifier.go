package player

import (
	"context"
	"log/slog"
	"time"

	"audio2subs/internal/logging"
)

// Notifier is implemented by the player integration.
type Notifier interface {
	Notify(ctx context.Context, s State) error
	ShowText(ctx context.Context, text string, d time.Duration) error
	ReloadSubtitles(ctx context.Context, path string) error
}

// NopNotifier discards everything. It is used by offline transcription.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, State) error                   { return nil }
func (NopNotifier) ShowText(context.Context, string, time.Duration) error { return nil }
func (NopNotifier) ReloadSubtitles(context.Context, string) error         { return nil }

// Reporter applies transitions to a Machine and forwards accepted states to
// a Notifier. Rejected transitions are logged and dropped.
type Reporter struct {
	machine  *Machine
	notifier Notifier
	logger   *slog.Logger
}

// NewReporter wires machine to notifier.
func NewReporter(machine *Machine, notifier Notifier, logger *slog.Logger) *Reporter {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Reporter{machine: machine, notifier: notifier, logger: logging.NewComponentLogger(logger, "player_state")}
}

// Machine returns the underlying state machine.
func (r *Reporter) Machine() *Machine { return r.machine }

// Notifier returns the outbound notifier.
func (r *Reporter) Notifier() Notifier { return r.notifier }

// Report transitions to s and notifies the player. It reports whether the
// transition was accepted.
func (r *Reporter) Report(ctx context.Context, s State) bool {
	from := r.machine.Current()
	if err := r.machine.Transition(s); err != nil {
		r.logger.Debug("state transition rejected",
			logging.String("from", from.String()),
			logging.String("to", s.String()),
		)
		return false
	}
	if err := r.notifier.Notify(ctx, s); err != nil {
		logging.WarnWithContext(r.logger, "player notification failed", "player_notify_failed",
			logging.String("state", s.String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "player does not show the current subtitle status"),
			logging.String(logging.FieldErrorHint, "check that mpv is still running"),
		)
	}
	return true
}
