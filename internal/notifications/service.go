package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"audio2subs/internal/config"
)

const (
	userAgent      = "audio2subs/0.1.0"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 2048
)

// Service defines the push notifications audio2subs sends.
type Service interface {
	NotifySessionComplete(ctx context.Context, video string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService returns an ntfy-backed service, or a service that drops every
// push when no topic is configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfyService{
		topicURL:        topic,
		http:            &http.Client{Timeout: timeout},
		sessionComplete: cfg.Notifications.SessionComplete,
		errors:          cfg.Notifications.Errors,
	}
}

// push is one ntfy message. The body is plain text; everything else travels
// in headers.
type push struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

func (p push) headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	if p.Title != "" {
		h.Set("Title", p.Title)
	}
	if len(p.Tags) > 0 {
		h.Set("Tags", strings.Join(p.Tags, ","))
	}
	switch p.Priority {
	case "", "default":
	default:
		h.Set("Priority", p.Priority)
	}
	return h
}

type ntfyService struct {
	topicURL        string
	http            *http.Client
	sessionComplete bool
	errors          bool
}

func (n *ntfyService) NotifySessionComplete(ctx context.Context, video string) error {
	if !n.sessionComplete {
		return nil
	}
	return n.post(ctx, push{
		Title: "audio2subs - Subtitles Ready",
		Body:  "✅ Subtitles complete: " + strings.TrimSpace(filepath.Base(video)),
		Tags:  []string{"audio2subs", "subtitles", "completed"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	return n.post(ctx, push{
		Title:    "audio2subs - Error",
		Body:     errorBody(err, contextLabel),
		Tags:     []string{"audio2subs", "error", "alert"},
		Priority: "high",
	})
}

func errorBody(err error, label string) string {
	reason := "unknown"
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	if label = strings.TrimSpace(label); label != "" {
		return fmt.Sprintf("❌ Error with %s: %s", label, reason)
	}
	return "❌ Error: " + reason
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.post(ctx, push{
		Title:    "audio2subs - Test",
		Body:     "🧪 Notification system test",
		Tags:     []string{"audio2subs", "test"},
		Priority: "low",
	})
}

func (n *ntfyService) post(ctx context.Context, p push) error {
	if n == nil || n.http == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topicURL, strings.NewReader(p.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header = p.headers()

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("ntfy returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
}

type noopService struct{}

func (noopService) NotifySessionComplete(context.Context, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error    { return nil }
func (noopService) TestNotification(context.Context) error              { return nil }
