package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rtsync/internal/config"
	"rtsync/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventQueueDrained, notifications.Payload{"delivered": 2}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).Publish(context.Background(), notifications.EventError, nil); err != nil {
		t.Fatalf("expected nil config to yield noop, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "queue drained",
			event: notifications.EventQueueDrained,
			payload: notifications.Payload{
				"delivered": 3,
				"duration":  61500 * time.Millisecond,
			},
			expectTitle:   "rtsync - Queue Drained",
			expectMessage: "✅ Uploaded 3 items in 1m2s",
			expectTags:    "rtsync,sync,drained",
		},
		{
			name:  "sync failures",
			event: notifications.EventSyncFailures,
			payload: notifications.Payload{
				"failed":    1,
				"attempted": 3,
				"remaining": 1,
				"lastError": "HTTP 500",
			},
			expectTitle:   "rtsync - Upload Failures",
			expectMessage: "⚠️ 1 of 3 uploads failed; 1 still queued\nLast error: HTTP 500",
			expectTags:    "rtsync,sync,failed",
		},
		{
			name:  "item exhausted",
			event: notifications.EventItemExhausted,
			payload: notifications.Payload{
				"fileName":  "receipt.pdf",
				"recordID":  "rec-9",
				"attempts":  1,
				"lastError": "HTTP 413: file too large",
			},
			expectTitle:    "rtsync - Retry Limit Reached",
			expectMessage:  "🛑 Gave up on receipt.pdf for record rec-9 after 1 attempt\nLast error: HTTP 413: file too large",
			expectTags:     "rtsync,sync,exhausted",
			expectPriority: "high",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "sync",
				"error":   errors.New("database is locked"),
			},
			expectTitle:    "rtsync - Error",
			expectMessage:  "❌ Error with sync: database is locked",
			expectTags:     "rtsync,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTestNotification,
			expectTitle:    "rtsync - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "rtsync,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonoursToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.QueueDrained = false
	cfg.Notifications.SyncFailures = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{
		notifications.EventQueueDrained,
		notifications.EventSyncFailures,
		notifications.EventItemExhausted,
		notifications.Event("unknown"),
	} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for disabled event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTestNotification, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
