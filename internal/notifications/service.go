package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"transmirror/internal/config"
	"transmirror/internal/textutil"
)

const userAgent = "Transmirror/0.1.0"

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyDaemonStarted(ctx context.Context, sessionID string) error
	NotifyEncodeCompleted(ctx context.Context, identity string, encodedBytes int64) error
	NotifyEncodeFailed(ctx context.Context, identity string, cause error) error
	NotifyScanCompleted(ctx context.Context, items, encoded, deleted, failed int) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
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
		endpoint: TopicURL(topic),
		client:   &http.Client{Timeout: timeout},
		encoding: cfg.Notifications.Encoding,
		scan:     cfg.Notifications.Scan,
		errors:   cfg.Notifications.Errors,
	}
}

// TopicURL resolves a topic name or full URL to the ntfy publish endpoint.
func TopicURL(topic string) string {
	if strings.HasPrefix(topic, "http://") || strings.HasPrefix(topic, "https://") {
		return topic
	}
	return "https://ntfy.sh/" + topic
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	encoding bool
	scan     bool
	errors   bool
}

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context, sessionID string) error {
	data := payload{
		title:   "Transmirror - Started",
		message: fmt.Sprintf("Daemon started, session %s", strings.TrimSpace(sessionID)),
		tags:    []string{"transmirror", "daemon", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyEncodeCompleted(ctx context.Context, identity string, encodedBytes int64) error {
	if !n.encoding {
		return nil
	}
	data := payload{
		title:   "Transmirror - Encoded",
		message: fmt.Sprintf("Encoding complete: %s (%d MiB)", textutil.DisplayTitle(identity), encodedBytes>>20),
		tags:    []string{"transmirror", "encode", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyEncodeFailed(ctx context.Context, identity string, cause error) error {
	if !n.encoding {
		return nil
	}
	message := fmt.Sprintf("Encoding failed: %s", textutil.DisplayTitle(identity))
	if cause != nil {
		message = fmt.Sprintf("%s\n%s", message, strings.TrimSpace(cause.Error()))
	}
	data := payload{
		title:    "Transmirror - Encode Failed",
		message:  message,
		tags:     []string{"transmirror", "encode", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyScanCompleted(ctx context.Context, items, encoded, deleted, failed int) error {
	if !n.scan {
		return nil
	}
	title := "Transmirror - Scan Complete"
	if failed > 0 {
		title = "Transmirror - Scan Complete (with errors)"
	}
	data := payload{
		title:   title,
		message: fmt.Sprintf("Scan complete: %d items tracked, %d encoded, %d deleted, %d failed", items, encoded, deleted, failed),
		tags:    []string{"transmirror", "scan", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "Transmirror - Error",
		message:  builder.String(),
		tags:     []string{"transmirror", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Transmirror - Test",
		message:  "Notification system test",
		tags:     []string{"transmirror", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifyDaemonStarted(context.Context, string) error { return nil }

func (noopService) NotifyEncodeCompleted(context.Context, string, int64) error { return nil }

func (noopService) NotifyEncodeFailed(context.Context, string, error) error { return nil }

func (noopService) NotifyScanCompleted(context.Context, int, int, int, int) error { return nil }

func (noopService) NotifyError(context.Context, error, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
