package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"rtsync/internal/api"
	"rtsync/internal/config"
	"rtsync/internal/connectivity"
	"rtsync/internal/logging"
	"rtsync/internal/metrics"
	"rtsync/internal/notifications"
	"rtsync/internal/queue"
	"rtsync/internal/syncer"
	"rtsync/internal/upload"
)

// Options overrides collaborators that New would otherwise build from config.
type Options struct {
	Monitor  connectivity.Detector
	Uploader syncer.Uploader
	Notifier notifications.Service
	Clock    func() time.Time
}

// Daemon owns the queue, the connectivity monitor and the sync scheduler for
// one data directory and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	queue    *queue.Manager
	monitor  connectivity.Detector
	syncer   *syncer.Orchestrator
	policy   syncer.RetryPolicy
	queueSvc *api.QueueService
	notifier notifications.Service
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	PID              int
	QueueDBPath      string
	LockFilePath     string
	SocketPath       string
	ServerURL        string
	ConnectivityMode string
	ConnectivityNote string
	QueueStats       map[string]int
	Sync             syncer.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	policy, err := syncer.PolicyFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}

	var managerOpts []queue.ManagerOption
	if opts.Clock != nil {
		managerOpts = append(managerOpts, queue.WithClock(opts.Clock))
	}
	mgr := queue.NewManager(store, logger, managerOpts...)

	if opts.Monitor == nil {
		opts.Monitor = connectivity.NewFromConfig(cfg, logger)
	}
	if opts.Uploader == nil {
		opts.Uploader = upload.NewFromConfig(cfg)
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.NewService(cfg)
	}

	m := metrics.New()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m.MustRegister(registry)

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		queue:    mgr,
		monitor:  opts.Monitor,
		policy:   policy,
		queueSvc: api.NewQueueService(store, policy),
		notifier: opts.Notifier,
		metrics:  m,
		registry: registry,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.syncer = syncer.New(mgr, opts.Monitor, opts.Uploader, logger, syncer.Options{
		Debounce: cfg.DebounceInterval(),
		Policy:   policy,
		Metrics:  m,
		Notifier: opts.Notifier,
		Clock:    opts.Clock,
	})
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the connectivity monitor, the
// sync scheduler and the local HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another rtsync daemon instance is already running")
	}

	if removed, err := d.store.SweepOrphans(ctx, queue.OrphanGrace); err != nil {
		logging.WarnWithContext(d.logger, "payload sweep failed", "payload_sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the payload directory"),
		)
	} else if removed > 0 {
		d.logger.Info("removed orphaned payload files",
			logging.Int("removed", removed),
			logging.String(logging.FieldEventType, "payload_sweep"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.monitor.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start connectivity monitor: %w", err)
	}

	// Prime the mirror so status surfaces and the scheduler see items
	// persisted by a previous run.
	if _, err := d.queue.List(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "initial queue read failed", "queue_prime_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run rtsync queue health to inspect the database"),
		)
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return d.syncer.Run(groupCtx)
	})
	if err := d.api.start(groupCtx, group); err != nil {
		cancel()
		_ = group.Wait()
		d.monitor.Stop()
		_ = d.lock.Unlock()
		return err
	}
	d.syncer.Trigger(syncer.ReasonStartup)

	d.cancel = cancel
	d.group = group
	d.running.Store(true)
	online := d.monitor.Online()
	d.logger.Info("rtsync daemon started",
		logging.String("lock", d.lockPath),
		logging.String("server", d.cfg.Server.BaseURL),
		logging.String("connectivity_mode", d.cfg.Connectivity.Mode),
		logging.Bool("online", online),
		logging.Int("queued", d.queue.Snapshot().Len()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop halts background work, waits for an in-flight pass, and releases the
// daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.group != nil {
		if err := d.group.Wait(); err != nil {
			d.logger.Warn("background task ended with error", logging.Error(err))
		}
		d.group = nil
	}
	d.monitor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("rtsync daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// ListQueue returns queue items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]api.QueueItem, error) {
	return d.queueSvc.List(ctx, statuses...)
}

// DescribeItem returns a single queue item or nil when absent.
func (d *Daemon) DescribeItem(ctx context.Context, id string) (*api.QueueItem, error) {
	return d.queueSvc.Describe(ctx, strings.TrimSpace(id))
}

// SyncNow runs a manual pass and waits for it.
func (d *Daemon) SyncNow(ctx context.Context) (syncer.PassSummary, error) {
	return d.syncer.SyncNow(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTestNotification, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// MetricsHandler serves the daemon's Prometheus registry.
func (d *Daemon) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:          d.running.Load(),
		QueueDBPath:      d.store.Path(),
		LockFilePath:     d.lockPath,
		SocketPath:       d.cfg.SocketPath(),
		ServerURL:        d.cfg.Server.BaseURL,
		ConnectivityMode: d.cfg.Connectivity.Mode,
		Sync:             d.syncer.Status(),
	}
	if status.Running {
		status.PID = os.Getpid()
	}
	if reporter, ok := d.monitor.(interface{ State() (bool, string) }); ok {
		_, status.ConnectivityNote = reporter.State()
	}
	stats, err := d.queueSvc.Stats(ctx)
	if err != nil {
		d.logger.Warn("queue stats unavailable", logging.Error(err))
	}
	status.QueueStats = stats
	return status
}

// APIStatus converts a daemon status into its wire form.
func APIStatus(status Status) api.DaemonStatus {
	return api.DaemonStatus{
		Running:          status.Running,
		PID:              status.PID,
		QueueDBPath:      status.QueueDBPath,
		LockFilePath:     status.LockFilePath,
		SocketPath:       status.SocketPath,
		ServerURL:        status.ServerURL,
		ConnectivityMode: status.ConnectivityMode,
		ConnectivityNote: status.ConnectivityNote,
		QueueStats:       status.QueueStats,
		Sync:             api.FromSyncStatus(status.Sync),
	}
}
