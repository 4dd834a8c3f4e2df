package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rtsync/internal/config"
)

const userAgent = "rtsync/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventQueueDrained     Event = "queue_drained"
	EventSyncFailures     Event = "sync_failures"
	EventItemExhausted    Event = "item_exhausted"
	EventError            Event = "error"
	EventTestNotification Event = "test"
)

// Payload carries event fields.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventQueueDrained:     cfg.Notifications.QueueDrained,
			EventSyncFailures:     cfg.Notifications.SyncFailures,
			EventItemExhausted:    cfg.Notifications.SyncFailures,
			EventError:            true,
			EventTestNotification: true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventQueueDrained:
		return message{
			title: "rtsync - Queue Drained",
			body: fmt.Sprintf("✅ Uploaded %s in %s",
				plural(payloadInt(payload, "delivered"), "item"),
				payloadDuration(payload, "duration")),
			tags: []string{"rtsync", "sync", "drained"},
		}, true
	case EventSyncFailures:
		failed := payloadInt(payload, "failed")
		attempted := payloadInt(payload, "attempted")
		body := fmt.Sprintf("⚠️ %d of %s failed; %d still queued",
			failed, plural(attempted, "upload"), payloadInt(payload, "remaining"))
		if last := payloadString(payload, "lastError"); last != "" {
			body += "\nLast error: " + last
		}
		return message{
			title: "rtsync - Upload Failures",
			body:  body,
			tags:  []string{"rtsync", "sync", "failed"},
		}, true
	case EventItemExhausted:
		body := fmt.Sprintf("🛑 Gave up on %s for record %s after %s",
			payloadString(payload, "fileName"),
			payloadString(payload, "recordID"),
			plural(payloadInt(payload, "attempts"), "attempt"))
		if last := payloadString(payload, "lastError"); last != "" {
			body += "\nLast error: " + last
		}
		return message{
			title:    "rtsync - Retry Limit Reached",
			body:     body,
			tags:     []string{"rtsync", "sync", "exhausted"},
			priority: "high",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payloadString(payload, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if text := payloadString(payload, "error"); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "rtsync - Error",
			body:     builder.String(),
			tags:     []string{"rtsync", "error", "alert"},
			priority: "high",
		}, true
	case EventTestNotification:
		return message{
			title:    "rtsync - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"rtsync", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

func payloadString(p Payload, key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func payloadInt(p Payload, key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func payloadDuration(p Payload, key string) string {
	d, _ := p[key].(time.Duration)
	d = d.Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
