package mpv

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"audio2subs/internal/player"
)

// Script message names broadcast to mpv user scripts.
const (
	MessageStarting = "ai-subs/starting"
	MessageReady    = "ai-subs/ready"
	MessageStarted  = "ai-subs/started"
	MessageProgress = "ai-subs/progress"
	MessageComplete = "ai-subs/complete"
	MessageError    = "ai-subs/error"
	MessageStopped  = "ai-subs/stopped"
	// MessageStop is received from scripts asking the service to stop.
	MessageStop = "ai-subs/stop"
)

// Notifier implements player.Notifier on top of a Client.
type Notifier struct {
	client *Client
	subs   *Subtitles

	mu      sync.Mutex
	started string
}

// NewNotifier wires a notifier. subs may be nil when subtitle reloading is
// handled elsewhere.
func NewNotifier(client *Client, subs *Subtitles) *Notifier {
	return &Notifier{client: client, subs: subs}
}

// Notify sends the script message for s and, for lifecycle states, an OSD
// message.
func (n *Notifier) Notify(ctx context.Context, s player.State) error {
	switch st := s.(type) {
	case player.Starting:
		return errors.Join(
			n.client.ScriptMessage(ctx, MessageStarting),
			n.client.ShowText(ctx, "AI Subtitle Service: Loading model...", 15*time.Second),
		)
	case player.Ready:
		n.setStarted("")
		return errors.Join(
			n.client.ScriptMessage(ctx, MessageReady),
			n.client.ShowText(ctx, "AI Subtitle Service: Ready", 3*time.Second),
		)
	case player.Transcribing:
		var errs []error
		if n.setStarted(st.Video) {
			errs = append(errs, n.client.ScriptMessage(ctx, MessageStarted, filepath.Base(st.Video)))
		}
		errs = append(errs, n.client.ScriptMessage(ctx, MessageProgress,
			strconv.Itoa(st.Percent), strconv.Itoa(st.Done), strconv.Itoa(st.Total)))
		return errors.Join(errs...)
	case player.Complete:
		n.setStarted("")
		return errors.Join(
			n.client.ScriptMessage(ctx, MessageComplete),
			n.client.ShowText(ctx, "AI Subtitles: Complete", 2*time.Second),
		)
	case player.Error:
		return errors.Join(
			n.client.ScriptMessage(ctx, MessageError, st.Message),
			n.client.ShowText(ctx, "AI Service Error: "+st.Message, 5*time.Second),
		)
	case player.Stopped:
		return n.client.ScriptMessage(ctx, MessageStopped)
	}
	return nil
}

// setStarted records the video being transcribed and reports whether it
// differs from the previous one.
func (n *Notifier) setStarted(video string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	changed := video != "" && video != n.started
	n.started = video
	return changed
}

// ShowText displays an OSD message.
func (n *Notifier) ShowText(ctx context.Context, text string, d time.Duration) error {
	return n.client.ShowText(ctx, text, d)
}

// ReloadSubtitles adds or reloads the subtitle track for path.
func (n *Notifier) ReloadSubtitles(ctx context.Context, path string) error {
	if n.subs == nil {
		return nil
	}
	return n.subs.Load(ctx, path)
}
