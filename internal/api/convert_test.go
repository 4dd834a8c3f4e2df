package api

import (
	"testing"
	"time"

	"rtsync/internal/queue"
	"rtsync/internal/syncer"
)

func TestFromQueueItemMarksExhausted(t *testing.T) {
	attempt := time.Now().Add(-time.Minute)
	item := &queue.Item{
		ID:            "01J9ZQ",
		Status:        queue.StatusFailed,
		RetryCount:    3,
		LastError:     "HTTP 500",
		LastAttemptAt: &attempt,
	}
	dto := FromQueueItem(item, syncer.RetryPolicy{MaxRetries: 3})
	if !dto.Exhausted {
		t.Fatal("expected exhausted flag at the retry cap")
	}
	if dto.NextAttemptAt != "" {
		t.Fatalf("exhausted item should not report a next attempt, got %q", dto.NextAttemptAt)
	}
	if dto.LastAttemptAt == "" || dto.LastError != "HTTP 500" {
		t.Fatalf("expected retry bookkeeping in dto, got %+v", dto)
	}
}

func TestFromQueueItemReportsBackoff(t *testing.T) {
	attempt := time.Now()
	item := &queue.Item{ID: "x", Status: queue.StatusFailed, RetryCount: 1, LastAttemptAt: &attempt}
	dto := FromQueueItem(item, syncer.RetryPolicy{Backoff: []time.Duration{time.Hour}})
	if dto.NextAttemptAt == "" {
		t.Fatal("expected next attempt while backing off")
	}

	dto = FromQueueItem(item, syncer.RetryPolicy{})
	if dto.NextAttemptAt != "" || dto.Exhausted {
		t.Fatalf("zero policy should not hold items back, got %+v", dto)
	}
}

func TestFromPassSummary(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	summary := syncer.PassSummary{
		ID:         "pass-1",
		Reason:     syncer.ReasonManual,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Attempted:  3,
		Delivered:  2,
		Failed:     1,
		LastError:  "HTTP 500",
	}
	dto := FromPassSummary(summary)
	if dto.DurationMS != 1500 {
		t.Fatalf("unexpected duration %d", dto.DurationMS)
	}
	if dto.StartedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected start format %q", dto.StartedAt)
	}
	if dto.Delivered != 2 || dto.Failed != 1 || dto.Reason != "manual" {
		t.Fatalf("unexpected dto %+v", dto)
	}
}

func TestFromSyncStatusCopiesLastPass(t *testing.T) {
	last := syncer.PassSummary{Reason: syncer.ReasonDebounce, Refused: syncer.RefusedEmpty}
	dto := FromSyncStatus(syncer.Status{Online: true, Pending: 2, LastPass: &last})
	if dto.LastPass == nil || dto.LastPass.Refused != "empty" {
		t.Fatalf("expected last pass, got %+v", dto.LastPass)
	}
	if !dto.Online || dto.Pending != 2 {
		t.Fatalf("unexpected status %+v", dto)
	}
}

func TestFormatTimeZero(t *testing.T) {
	if FormatTime(time.Time{}) != "" {
		t.Fatal("expected empty string for zero time")
	}
}
