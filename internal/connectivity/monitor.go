package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rtsync/internal/config"
	"rtsync/internal/logging"
)

// Options configures a Monitor.
type Options struct {
	SysfsRoot    string
	Interfaces   []string
	PollInterval time.Duration
	// PushEvents enables rtnetlink and udev listeners where available.
	PushEvents bool
	Prober     *Prober
}

// Monitor tracks link state and emits transition events.
type Monitor struct {
	opts      Options
	logger    *slog.Logger
	events    broadcaster
	readLinks func(root string, names []string) ([]Link, error)
	startPush func(ctx context.Context, logger *slog.Logger, nudge func(string)) (stop func(), routeEvents bool)

	mu      sync.Mutex
	online  bool
	detail  string
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	nudges chan string
}

var _ Detector = (*Monitor)(nil)

// New builds a Monitor. Call Start before relying on Online.
func New(opts Options, logger *slog.Logger) *Monitor {
	if opts.SysfsRoot == "" {
		opts.SysfsRoot = "/sys/class/net"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Monitor{
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "connectivity"),
		readLinks: ReadLinks,
		startPush: startPushSources,
		nudges:    make(chan string, 1),
	}
}

// NewFromConfig selects the detector for cfg.Connectivity.Mode.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) Detector {
	if cfg == nil || cfg.Connectivity.Mode == config.ConnectivityManual {
		return NewManual(true)
	}
	return New(Options{
		SysfsRoot:    cfg.Connectivity.SysfsRoot,
		Interfaces:   cfg.Connectivity.Interfaces,
		PollInterval: cfg.PollInterval(),
		PushEvents:   cfg.Connectivity.Mode == config.ConnectivityAuto,
		Prober:       NewProber(cfg.Connectivity.ProbeURL, cfg.ProbeTimeout()),
	}, logger)
}

// Start reads the initial state and begins listening for changes. The
// initial reading never produces an event.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.running = true
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.evaluate(runCtx, "startup", false)

	stopPush := func() {}
	routeEvents := false
	if m.opts.PushEvents && m.startPush != nil {
		stopPush, routeEvents = m.startPush(runCtx, m.logger, m.Nudge)
	}
	poll := !routeEvents || m.opts.Prober != nil

	go m.loop(runCtx, poll, stopPush, done)

	online, detail := m.State()
	m.logger.Info("connectivity monitor started",
		logging.Bool("online", online),
		logging.String("detail", detail),
		logging.Bool("push_events", routeEvents),
		logging.Bool("polling", poll),
		logging.Bool("probe", m.opts.Prober != nil),
		logging.String(logging.FieldEventType, "connectivity_monitor_started"),
	)
	return nil
}

// Stop halts listeners and waits for the event loop to exit.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.running = false
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info("connectivity monitor stopped",
		logging.String(logging.FieldEventType, "connectivity_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	online, _ := m.State()
	return online
}

// State returns the last observed state with a short explanation.
func (m *Monitor) State() (bool, string) {
	if m == nil {
		return false, ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online, m.detail
}

// Subscribe registers for transition events.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	return m.events.subscribe()
}

// Nudge asks the monitor to re-read platform state soon. Bursts coalesce.
func (m *Monitor) Nudge(reason string) {
	if m == nil {
		return
	}
	select {
	case m.nudges <- reason:
	default:
	}
}

func (m *Monitor) loop(ctx context.Context, poll bool, stopPush func(), done chan struct{}) {
	defer close(done)
	defer stopPush()

	var tick <-chan time.Time
	if poll {
		ticker := time.NewTicker(m.opts.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-m.nudges:
			m.evaluate(ctx, reason, true)
		case <-tick:
			m.evaluate(ctx, "poll", true)
		}
	}
}

func (m *Monitor) evaluate(ctx context.Context, reason string, announce bool) {
	online, detail := m.observe(ctx)

	m.mu.Lock()
	changed := online != m.online
	m.online = online
	m.detail = detail
	m.mu.Unlock()

	if !changed || !announce {
		return
	}
	state := "offline"
	if online {
		state = "online"
	}
	m.logger.Info("connectivity changed",
		logging.String("state", state),
		logging.String("reason", reason),
		logging.String("detail", detail),
		logging.String(logging.FieldEventType, "connectivity_"+state),
	)
	m.events.emit(Event{Online: online, At: time.Now().UTC(), Reason: reason, Detail: detail})
}

func (m *Monitor) observe(ctx context.Context) (bool, string) {
	links, err := m.readLinks(m.opts.SysfsRoot, m.opts.Interfaces)
	if err != nil {
		if isMissingSysfs(err) {
			// Without a platform signal, assume online and let upload
			// attempts decide.
			return true, "link state unavailable"
		}
		logging.WarnWithContext(m.logger, "link state read failed; keeping previous state", "connectivity_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check connectivity.sysfs_root"),
			logging.String(logging.FieldImpact, "online/offline transitions may be missed"),
		)
		return m.State()
	}
	up, detail := linkVerdict(links, len(m.opts.Interfaces) > 0)
	if up && m.opts.Prober != nil {
		if err := m.opts.Prober.Check(ctx); err != nil {
			return false, "probe failed: " + err.Error()
		}
	}
	return up, detail
}
