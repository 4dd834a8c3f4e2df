package api

import (
	"time"

	"rtsync/internal/queue"
	"rtsync/internal/syncer"
)

// FromQueueItem converts a queue record to its API representation. policy
// marks exhausted and backed-off items; the zero policy marks nothing.
func FromQueueItem(item *queue.Item, policy syncer.RetryPolicy) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	dto := QueueItem{
		ID:            item.ID,
		RecordID:      item.RecordID,
		MediaType:     string(item.MediaType),
		FileName:      item.FileName,
		ContentType:   item.ContentType,
		PayloadSize:   item.PayloadSize,
		PayloadSHA256: item.PayloadSHA256,
		Status:        string(item.Status),
		RetryCount:    item.RetryCount,
		LastError:     item.LastError,
		CreatedAt:     FormatTime(item.CreatedAt),
		UpdatedAt:     FormatTime(item.UpdatedAt),
		Exhausted:     policy.Exhausted(item),
	}
	if item.LastAttemptAt != nil {
		dto.LastAttemptAt = FormatTime(*item.LastAttemptAt)
	}
	if !dto.Exhausted {
		if next := policy.NextAttempt(item); next.After(time.Now()) {
			dto.NextAttemptAt = FormatTime(next)
		}
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item, policy syncer.RetryPolicy) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item, policy))
	}
	return out
}

// FromPassSummary converts an orchestrator pass summary.
func FromPassSummary(summary syncer.PassSummary) PassSummary {
	return PassSummary{
		ID:          summary.ID,
		Reason:      summary.Reason,
		Refused:     summary.Refused,
		StartedAt:   FormatTime(summary.StartedAt),
		FinishedAt:  FormatTime(summary.FinishedAt),
		DurationMS:  summary.Duration().Milliseconds(),
		Attempted:   summary.Attempted,
		Delivered:   summary.Delivered,
		Failed:      summary.Failed,
		Skipped:     summary.Skipped,
		Exhausted:   summary.Exhausted,
		Interrupted: summary.Interrupted,
		LastError:   summary.LastError,
	}
}

// FromSyncStatus converts the orchestrator status.
func FromSyncStatus(status syncer.Status) SyncStatus {
	dto := SyncStatus{
		Syncing:   status.Syncing,
		Online:    status.Online,
		Pending:   status.Pending,
		Failed:    status.Failed,
		Exhausted: status.Exhausted,
		LastError: status.LastError,
	}
	if status.LastPass != nil {
		last := FromPassSummary(*status.LastPass)
		dto.LastPass = &last
	}
	return dto
}

// MergeQueueStats produces a string-keyed representation of queue stats.
// Every persisted status is present even when its count is zero.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := map[string]int{
		string(queue.StatusPending): 0,
		string(queue.StatusFailed):  0,
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
