package notifications

import (
	"context"
	"errors"
	"log/slog"

	"audio2subs/internal/logging"
	"audio2subs/internal/player"
)

// PlayerNotifier forwards every state to the wrapped player notifier and
// pushes complete and error states to ntfy.
type PlayerNotifier struct {
	player.Notifier
	svc    Service
	logger *slog.Logger
}

// WrapPlayer decorates next with push notifications from svc.
func WrapPlayer(next player.Notifier, svc Service, logger *slog.Logger) *PlayerNotifier {
	if next == nil {
		next = player.NopNotifier{}
	}
	return &PlayerNotifier{Notifier: next, svc: svc, logger: logging.NewComponentLogger(logger, "notifications")}
}

// Notify forwards s, then pushes it when it ends a session.
func (p *PlayerNotifier) Notify(ctx context.Context, s player.State) error {
	err := p.Notifier.Notify(ctx, s)

	var pushErr error
	switch st := s.(type) {
	case player.Complete:
		pushErr = p.svc.NotifySessionComplete(ctx, st.Video)
	case player.Error:
		pushErr = p.svc.NotifyError(ctx, errors.New(st.Message), "subtitle session")
	}
	if pushErr != nil {
		p.logger.Warn("push notification failed",
			logging.String("state", s.String()),
			logging.Error(pushErr),
			logging.String(logging.FieldEventType, "ntfy_send_failed"),
		)
	}
	return err
}
