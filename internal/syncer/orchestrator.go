package syncer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"rtsync/internal/connectivity"
	"rtsync/internal/logging"
	"rtsync/internal/metrics"
	"rtsync/internal/notifications"
	"rtsync/internal/queue"
	"rtsync/internal/services"
	"rtsync/internal/upload"
)

// Refusal reasons reported in PassSummary.Refused.
const (
	RefusedOffline = "offline"
	RefusedBusy    = "busy"
	RefusedEmpty   = "empty"
)

// Pass trigger reasons.
const (
	ReasonReconnect = "reconnect"
	ReasonDebounce  = "debounce"
	ReasonManual    = "manual"
	// ReasonStartup drains items persisted before the daemon last stopped.
	ReasonStartup = "startup"
)

const notifyTimeout = 10 * time.Second

// Queue is the subset of queue.Manager the orchestrator drives.
type Queue interface {
	List(ctx context.Context) ([]*queue.Item, error)
	Remove(ctx context.Context, id string) error
	Update(ctx context.Context, id string, patch queue.Patch) error
	OpenPayload(id string) (io.ReadCloser, error)
	Snapshot() queue.Snapshot
	Subscribe() (<-chan queue.Snapshot, func())
}

// Uploader performs one delivery attempt.
type Uploader interface {
	Attempt(ctx context.Context, item *queue.Item, payload io.Reader) upload.Outcome
}

// Options tunes an Orchestrator.
type Options struct {
	Debounce time.Duration
	Policy   RetryPolicy
	Metrics  *metrics.Metrics
	Notifier notifications.Service
	Clock    func() time.Time
}

// PassSummary describes one pass or refused trigger.
type PassSummary struct {
	ID     string
	Reason string
	// Refused is set when the trigger was a no-op.
	Refused     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Attempted   int
	Delivered   int
	Failed      int
	Skipped     int
	Exhausted   int
	Interrupted bool
	LastError   string
}

// Duration returns how long the pass ran.
func (s PassSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Status is a point-in-time view for status surfaces.
type Status struct {
	Syncing   bool
	Online    bool
	Pending   int
	Failed    int
	Exhausted int
	LastPass  *PassSummary
	LastError string
}

// Orchestrator owns sync scheduling and pass execution.
type Orchestrator struct {
	queue    Queue
	monitor  connectivity.Detector
	uploader Uploader
	logger   *slog.Logger
	debounce time.Duration
	policy   RetryPolicy
	metrics  *metrics.Metrics
	notifier notifications.Service
	now      func() time.Time

	draining atomic.Bool
	passDone chan struct{}
	triggers chan string

	mu        sync.Mutex
	lastPass  *PassSummary
	lastError string
	notified  map[string]struct{}
}

// New wires an orchestrator.
func New(q Queue, monitor connectivity.Detector, uploader Uploader, logger *slog.Logger, opts Options) *Orchestrator {
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.NewService(nil)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Orchestrator{
		queue:    q,
		monitor:  monitor,
		uploader: uploader,
		logger:   logging.NewComponentLogger(logger, "syncer"),
		debounce: opts.Debounce,
		policy:   opts.Policy,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		now:      opts.Clock,
		passDone: make(chan struct{}, 1),
		triggers: make(chan string, 1),
		notified: make(map[string]struct{}),
	}
}

// SyncNow runs a pass immediately and waits for it.
func (o *Orchestrator) SyncNow(ctx context.Context) (PassSummary, error) {
	return o.RunPass(ctx, ReasonManual)
}

// Trigger asks Run to start a pass soon without waiting. Requests coalesce.
func (o *Orchestrator) Trigger(reason string) {
	select {
	case o.triggers <- reason:
	default:
	}
}

// Syncing reports whether a pass is in progress.
func (o *Orchestrator) Syncing() bool {
	return o.draining.Load()
}

// Status returns the current sync state.
func (o *Orchestrator) Status() Status {
	snap := o.queue.Snapshot()
	status := Status{
		Syncing: o.draining.Load(),
		Online:  o.monitor.Online(),
		Pending: snap.Pending,
		Failed:  snap.Failed,
	}
	for _, item := range snap.Items {
		if o.policy.Exhausted(item) {
			status.Exhausted++
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastPass != nil {
		last := *o.lastPass
		status.LastPass = &last
	}
	status.LastError = o.lastError
	return status
}

// RunPass drains the queue once. Refused triggers return a summary with
// Refused set and a nil error; the error is non-nil only when the queue
// could not be read.
func (o *Orchestrator) RunPass(ctx context.Context, reason string) (PassSummary, error) {
	summary := PassSummary{Reason: reason, StartedAt: o.now().UTC()}

	if !o.monitor.Online() {
		return o.refuse(summary, RefusedOffline), nil
	}
	if !o.draining.CompareAndSwap(false, true) {
		return o.refuse(summary, RefusedBusy), nil
	}
	defer func() {
		o.draining.Store(false)
		select {
		case o.passDone <- struct{}{}:
		default:
		}
	}()

	items, err := o.queue.List(ctx)
	if err != nil {
		summary.FinishedAt = o.now().UTC()
		summary.LastError = err.Error()
		o.recordPass(summary, metrics.PassFailed)
		logging.ErrorWithContext(o.logger, "sync pass could not read queue", "sync_pass_failed",
			logging.String("reason", reason),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'rtsync queue health' to inspect the queue database"),
		)
		o.notify(ctx, notifications.EventError, notifications.Payload{"context": "sync", "error": err})
		return summary, err
	}
	if len(items) == 0 {
		return o.refuse(summary, RefusedEmpty), nil
	}

	summary.ID = uuid.NewString()
	passCtx := services.WithPassID(ctx, summary.ID)
	passLogger := logging.WithContext(passCtx, o.logger)
	passLogger.Info("sync pass started",
		logging.String("reason", reason),
		logging.Int("items", len(items)),
		logging.String(logging.FieldEventType, "sync_pass_started"),
	)

	for _, item := range items {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		if !o.monitor.Online() {
			passLogger.Info("went offline during pass; remaining items stay queued",
				logging.String(logging.FieldEventType, "sync_pass_offline"),
			)
			summary.Interrupted = true
			break
		}
		if item.Status == queue.StatusSynced {
			summary.Skipped++
			continue
		}
		if o.policy.Exhausted(item) {
			summary.Exhausted++
			continue
		}
		if !o.policy.Eligible(item, o.now()) {
			summary.Skipped++
			continue
		}
		if !o.deliver(passCtx, item, &summary) {
			summary.Interrupted = true
			break
		}
	}

	summary.FinishedAt = o.now().UTC()
	result := metrics.PassCompleted
	if summary.Interrupted {
		result = metrics.PassInterrupted
	}
	o.recordPass(summary, result)

	remaining := o.queue.Snapshot().Len()
	passLogger.Info("sync pass finished",
		logging.String("reason", reason),
		logging.Int("attempted", summary.Attempted),
		logging.Int("delivered", summary.Delivered),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("exhausted", summary.Exhausted),
		logging.Int("remaining", remaining),
		logging.Bool("interrupted", summary.Interrupted),
		logging.Duration("duration", summary.Duration()),
		logging.String(logging.FieldEventType, "sync_pass_finished"),
	)

	switch {
	case summary.Failed > 0:
		o.notify(ctx, notifications.EventSyncFailures, notifications.Payload{
			"failed":    summary.Failed,
			"attempted": summary.Attempted,
			"remaining": remaining,
			"lastError": summary.LastError,
		})
	case summary.Delivered > 0 && remaining == 0:
		o.notify(ctx, notifications.EventQueueDrained, notifications.Payload{
			"delivered": summary.Delivered,
			"duration":  summary.Duration(),
		})
	}
	return summary, nil
}

// deliver attempts one item and records the result. It returns false when
// the pass should stop because ctx was cancelled mid-attempt.
func (o *Orchestrator) deliver(ctx context.Context, item *queue.Item, summary *PassSummary) bool {
	itemCtx := services.WithRecordID(services.WithItemID(ctx, item.ID), item.RecordID)
	logger := logging.WithContext(itemCtx, o.logger)
	// Bookkeeping must land even if the caller gives up after the upload.
	bookkeeping := context.WithoutCancel(itemCtx)

	var outcome upload.Outcome
	payload, err := o.queue.OpenPayload(item.ID)
	if err != nil {
		outcome = upload.Outcome{
			Kind:    upload.FailurePayload,
			Reason:  upload.ReasonPayload,
			Message: "open payload: " + err.Error(),
		}
	} else {
		outcome = o.uploader.Attempt(itemCtx, item, payload)
		_ = payload.Close()
	}

	if !outcome.Delivered && outcome.Reason == upload.ReasonCanceled && ctx.Err() != nil {
		logger.Info("upload cancelled; item stays queued unchanged",
			logging.String(logging.FieldEventType, "upload_cancelled"),
		)
		return false
	}

	summary.Attempted++
	o.metrics.RecordAttempt(outcome.Delivered, string(outcome.Kind), outcome.Reason, outcome.Duration)

	if outcome.Delivered {
		summary.Delivered++
		if err := o.queue.Remove(bookkeeping, item.ID); err != nil {
			// The server has the file; the item will be sent again next pass.
			o.setError(err.Error())
			logging.ErrorWithContext(logger, "failed to remove delivered item", "queue_remove_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "item will be uploaded again on the next pass"),
			)
			return true
		}
		logger.Info("upload delivered",
			logging.Int("status", outcome.StatusCode),
			logging.Duration("duration", outcome.Duration),
			logging.String("request_id", outcome.RequestID),
			logging.String(logging.FieldEventType, "upload_delivered"),
		)
		o.forgetNotified(item.ID)
		return true
	}

	summary.Failed++
	summary.LastError = outcome.Message
	o.setError(outcome.Message)
	logging.WarnWithContext(logger, "upload failed; item stays queued", "upload_failed",
		logging.String("kind", string(outcome.Kind)),
		logging.String("reason", outcome.Reason),
		logging.Int("status", outcome.StatusCode),
		logging.String("message", outcome.Message),
		logging.Int("retry_count", item.RetryCount+1),
		logging.String("request_id", outcome.RequestID),
		logging.String(logging.FieldImpact, "retried on a later pass"),
	)

	patch := queue.FailurePatch(item, outcome.Message, o.now().UTC())
	if err := o.queue.Update(bookkeeping, item.ID, patch); err != nil {
		logging.ErrorWithContext(logger, "failed to record upload failure", "queue_update_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "retry count not advanced for this attempt"),
		)
		return true
	}

	failed := item.Clone()
	failed.RetryCount++
	failed.LastError = outcome.Message
	if o.policy.Exhausted(failed) && o.markNotified(item.ID) {
		logging.WarnWithContext(logger, "retry limit reached; item kept but no longer attempted", "upload_exhausted",
			logging.Int("retry_count", failed.RetryCount),
			logging.String(logging.FieldErrorHint, "inspect with 'rtsync queue list' and fix the server-side rejection"),
		)
		o.notify(ctx, notifications.EventItemExhausted, notifications.Payload{
			"fileName":  item.FileName,
			"recordID":  item.RecordID,
			"attempts":  failed.RetryCount,
			"lastError": outcome.Message,
		})
	}
	return true
}

func (o *Orchestrator) refuse(summary PassSummary, reason string) PassSummary {
	summary.Refused = reason
	summary.FinishedAt = summary.StartedAt
	o.metrics.RecordRefusal(reason)
	o.logger.Debug("sync trigger refused",
		logging.String("reason", summary.Reason),
		logging.String("refused", reason),
	)
	return summary
}

func (o *Orchestrator) recordPass(summary PassSummary, result string) {
	o.metrics.RecordPass(result, summary.Duration(), summary.FinishedAt)
	o.mu.Lock()
	defer o.mu.Unlock()
	last := summary
	o.lastPass = &last
	if summary.LastError != "" {
		o.lastError = summary.LastError
	}
}

func (o *Orchestrator) setError(message string) {
	o.mu.Lock()
	o.lastError = message
	o.mu.Unlock()
}

func (o *Orchestrator) markNotified(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.notified[id]; ok {
		return false
	}
	o.notified[id] = struct{}{}
	return true
}

func (o *Orchestrator) forgetNotified(id string) {
	o.mu.Lock()
	delete(o.notified, id)
	o.mu.Unlock()
}

func (o *Orchestrator) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := o.notifier.Publish(notifyCtx, event, payload); err != nil {
		logging.WarnWithContext(o.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "operator not alerted"),
		)
	}
}
