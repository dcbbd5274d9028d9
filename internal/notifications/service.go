package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"papercast/internal/config"
)

const userAgent = "papercast/0.1.0"

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyPodcastCompleted(ctx context.Context, title, jobID string, fallback bool) error
	NotifyPodcastFailed(ctx context.Context, filename, jobID, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		failed:    cfg.Notifications.Failed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failed    bool
}

func (n *ntfyService) NotifyPodcastCompleted(ctx context.Context, title, jobID string, fallback bool) error {
	if !n.completed {
		return nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = jobID
	}
	data := payload{
		title:   "papercast - Podcast Ready",
		message: fmt.Sprintf("🎧 Podcast ready: %s\nJob: %s", title, jobID),
		tags:    []string{"papercast", "podcast", "completed"},
	}
	if fallback {
		data.title = "papercast - Podcast Ready (silent placeholder)"
		data.message = fmt.Sprintf("⚠️ Speech synthesis failed for %s; a silent placeholder was saved\nJob: %s", title, jobID)
		data.tags = []string{"papercast", "podcast", "fallback"}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPodcastFailed(ctx context.Context, filename, jobID, reason string) error {
	if !n.failed {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Podcast failed")
	if filename = strings.TrimSpace(filename); filename != "" {
		builder.WriteString(" for ")
		builder.WriteString(filename)
	}
	builder.WriteString(": ")
	if reason = strings.TrimSpace(reason); reason != "" {
		builder.WriteString(reason)
	} else {
		builder.WriteString("unknown")
	}
	builder.WriteString("\nJob: ")
	builder.WriteString(jobID)

	return n.send(ctx, payload{
		title:    "papercast - Error",
		message:  builder.String(),
		tags:     []string{"papercast", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "papercast - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"papercast", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyPodcastCompleted(context.Context, string, string, bool) error { return nil }
func (noopService) NotifyPodcastFailed(context.Context, string, string, string) error  { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
