package syncer

import (
	"time"

	"rtsync/internal/config"
	"rtsync/internal/queue"
)

// RetryPolicy decides which failed items a pass attempts. The zero value
// retries every item on every pass without limit.
type RetryPolicy struct {
	// MaxRetries stops attempts once an item has failed this many times.
	// Zero means unlimited.
	MaxRetries int
	// Backoff is the wait after the Nth failure, indexed by RetryCount-1.
	// The last entry repeats.
	Backoff []time.Duration
}

// PolicyFromConfig builds the policy from the [sync] section.
func PolicyFromConfig(cfg *config.Config) (RetryPolicy, error) {
	if cfg == nil {
		return RetryPolicy{}, nil
	}
	backoff, err := cfg.BackoffSchedule()
	if err != nil {
		return RetryPolicy{}, err
	}
	return RetryPolicy{MaxRetries: cfg.Sync.MaxRetries, Backoff: backoff}, nil
}

// Exhausted reports whether item has reached the retry cap. Exhausted items
// stay queued but are no longer attempted.
func (p RetryPolicy) Exhausted(item *queue.Item) bool {
	return p.MaxRetries > 0 && item.RetryCount >= p.MaxRetries
}

// NextAttempt returns when item becomes eligible again, or the zero time when
// it already is.
func (p RetryPolicy) NextAttempt(item *queue.Item) time.Time {
	if item.LastAttemptAt == nil || item.RetryCount <= 0 || len(p.Backoff) == 0 {
		return time.Time{}
	}
	idx := item.RetryCount - 1
	if idx >= len(p.Backoff) {
		idx = len(p.Backoff) - 1
	}
	wait := p.Backoff[idx]
	if wait <= 0 {
		return time.Time{}
	}
	return item.LastAttemptAt.Add(wait)
}

// Eligible reports whether a pass at now should attempt item.
func (p RetryPolicy) Eligible(item *queue.Item, now time.Time) bool {
	if p.Exhausted(item) {
		return false
	}
	next := p.NextAttempt(item)
	return next.IsZero() || !now.Before(next)
}

// nextDue scans items for the earliest moment any of them can be attempted.
// ok is false when nothing is left to attempt.
func (p RetryPolicy) nextDue(items []*queue.Item, now time.Time) (time.Time, bool) {
	var due time.Time
	found := false
	for _, item := range items {
		if item.Status == queue.StatusSynced || p.Exhausted(item) {
			continue
		}
		next := p.NextAttempt(item)
		if next.IsZero() || !now.Before(next) {
			return now, true
		}
		if !found || next.Before(due) {
			due = next
			found = true
		}
	}
	return due, found
}
