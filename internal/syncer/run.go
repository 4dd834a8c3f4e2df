package syncer

import (
	"context"
	"sync"
	"time"

	"rtsync/internal/logging"
)

// Run schedules passes until ctx is cancelled. It consumes connectivity
// events and queue snapshots, owns the debounce timer, and runs each pass on
// a worker goroutine so triggers keep flowing while a pass drains. Run waits
// for the in-flight pass before returning.
func (o *Orchestrator) Run(ctx context.Context) error {
	events, stopEvents := o.monitor.Subscribe()
	defer stopEvents()
	snapshots, stopSnapshots := o.queue.Subscribe()
	defer stopSnapshots()

	o.metrics.SetOnline(o.monitor.Online())

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	var timerC <-chan time.Time
	arm := func(delay time.Duration) {
		if delay < o.debounce {
			delay = o.debounce
		}
		timer.Reset(delay)
		timerC = timer.C
	}

	var passes sync.WaitGroup
	defer passes.Wait()
	start := func(reason string) {
		passes.Add(1)
		go func() {
			defer passes.Done()
			_, _ = o.RunPass(ctx, reason)
		}()
	}

	o.logger.Info("sync scheduler started",
		logging.Duration("debounce", o.debounce),
		logging.Int("max_retries", o.policy.MaxRetries),
		logging.Int("backoff_steps", len(o.policy.Backoff)),
		logging.String(logging.FieldEventType, "sync_scheduler_started"),
	)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("sync scheduler stopping",
				logging.Bool("pass_in_flight", o.draining.Load()),
				logging.String(logging.FieldEventType, "sync_scheduler_stopped"),
			)
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			o.metrics.SetOnline(ev.Online)
			if ev.Online {
				start(ReasonReconnect)
			} else {
				o.logger.Info("offline; sync paused",
					logging.String("detail", ev.Detail),
					logging.String(logging.FieldEventType, "sync_paused_offline"),
				)
			}

		case snap := <-snapshots:
			o.metrics.SetQueue(snap.Pending, snap.Failed)
			if o.monitor.Online() && snap.Len() > 0 {
				if delay, ok := o.nextDelay(); ok {
					arm(delay)
				}
			}

		case reason := <-o.triggers:
			start(reason)

		case <-timerC:
			timerC = nil
			if o.monitor.Online() && o.queue.Snapshot().Len() > 0 {
				start(ReasonDebounce)
			}

		case <-o.passDone:
			if !o.monitor.Online() {
				continue
			}
			if delay, ok := o.nextDelay(); ok {
				arm(delay)
			}
		}
	}
}

// nextDelay reports how long until some queued item can be attempted.
func (o *Orchestrator) nextDelay() (time.Duration, bool) {
	now := o.now()
	due, ok := o.policy.nextDue(o.queue.Snapshot().Items, now)
	if !ok {
		return 0, false
	}
	return due.Sub(now), true
}
