package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"rtsync/internal/api"
	"rtsync/internal/config"
	"rtsync/internal/ipc"
	"rtsync/internal/preflight"
	"rtsync/internal/queue"
)

// LaunchOptions are passed through to the `rtsync daemon` child.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult reports what EnsureStarted did.
type StartResult struct {
	State StartState
	PID   int
}

// Launch starts a detached rtsync daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

const pollInterval = 200 * time.Millisecond

// pollUntil calls probe every pollInterval until it reports done or timeout
// elapses. The last probe error is wrapped into the timeout error.
func pollUntil(timeout time.Duration, what string, probe func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		done, err := probe()
		if done {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if time.Now().Add(pollInterval).After(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}
	if lastErr == nil {
		return fmt.Errorf("timed out after %s waiting for %s", timeout, what)
	}
	return fmt.Errorf("timed out after %s waiting for %s: %w", timeout, what, lastErr)
}

// WaitForClient polls the IPC socket until the daemon accepts a connection.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	var client *ipc.Client
	err := pollUntil(timeout, "daemon socket", func() (bool, error) {
		c, err := ipc.Dial(socketPath)
		if err != nil {
			return false, err
		}
		client = c
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("daemon failed to start: %w", err)
	}
	return client, nil
}

// EnsureStarted launches the daemon unless one already answers on the socket.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	state := StartStateAlreadyRunning
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		state = StartStateStarted
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return StartResult{}, fmt.Errorf("query daemon status: %w", err)
	}
	if !status.Running {
		return StartResult{}, fmt.Errorf("daemon answered but is not running")
	}
	return StartResult{State: state, PID: status.PID}, nil
}

// WaitForShutdown polls until the socket stops answering or the daemon
// reports it is no longer running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	return pollUntil(timeout, "daemon shutdown", func() (bool, error) {
		alive, _, err := ProcessInfo(socketPath)
		if err != nil {
			return false, err
		}
		return !alive, nil
	})
}

// ProcessInfo reports whether a running daemon answers on socketPath and its
// pid when known.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	return status.Running, status.PID, nil
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans up its pid
// file. The lock file is left in place; flock releases with the process.
func ForceKillProcess(pidPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return pid, nil
}

// ErrDaemonNotRunning is returned when nothing answers on the IPC socket.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult reports how the daemon went away.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// StopAndTerminate requests daemon stop and force-kills the process if still
// alive after gracePeriod.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	socketPath := cfg.SocketPath()
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	pid := 0
	if status, statusErr := client.Status(); statusErr == nil {
		pid = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, StopAcknowledged: resp.Stopped}

	_ = WaitForShutdown(socketPath, gracePeriod)
	alive, livePID, aliveErr := ProcessInfo(socketPath)
	if aliveErr != nil || !alive {
		return result, nil
	}
	if livePID == 0 {
		livePID = pid
	}
	killedPID, killErr := ForceKillProcess(cfg.PIDPath(), livePID)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// StatusLine is one labelled row of the status report.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// Snapshot is the status report shown by the CLI.
type Snapshot struct {
	Daemon api.DaemonStatus
	Checks []StatusLine
}

// BuildStatusSnapshot collects daemon status, falling back to reading the
// queue database directly when the daemon is not running.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &Snapshot{Daemon: api.DaemonStatus{
		QueueDBPath:      cfg.QueueDBPath(),
		LockFilePath:     cfg.LockPath(),
		SocketPath:       cfg.SocketPath(),
		ServerURL:        cfg.Server.BaseURL,
		ConnectivityMode: cfg.Connectivity.Mode,
	}}

	client, err := ipc.Dial(cfg.SocketPath())
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil {
			snapshot.Daemon = *resp
		}
	}

	if !snapshot.Daemon.Running {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if _, statErr := os.Stat(cfg.QueueDBPath()); statErr == nil {
			store, openErr := queue.Open(cfg)
			if openErr == nil {
				stats, statsErr := store.Stats(queryCtx)
				_ = store.Close()
				if statsErr == nil {
					snapshot.Daemon.QueueStats = api.MergeQueueStats(stats)
				}
			}
		}
		if snapshot.Daemon.QueueStats == nil {
			snapshot.Daemon.QueueStats = api.MergeQueueStats(nil)
		}
	}

	snapshot.Checks = BuildSystemChecks(ctx, cfg, snapshot.Daemon)
	return snapshot, nil
}

// BuildSystemChecks resolves status lines that combine runtime state and
// config checks.
func BuildSystemChecks(ctx context.Context, cfg *config.Config, status api.DaemonStatus) []StatusLine {
	lines := make([]StatusLine, 0, 8)
	if status.Running {
		lines = append(lines, StatusLine{Label: "rtsync", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", status.PID)})
		switch {
		case status.Sync.Syncing:
			lines = append(lines, StatusLine{Label: "Sync", Severity: "info", Detail: "Pass in progress"})
		case status.Sync.Online:
			lines = append(lines, StatusLine{Label: "Network", Severity: "ok", Detail: "Online"})
		default:
			detail := "Offline"
			if note := strings.TrimSpace(status.ConnectivityNote); note != "" {
				detail = "Offline (" + note + ")"
			}
			lines = append(lines, StatusLine{Label: "Network", Severity: "warn", Detail: detail})
		}
		if status.Sync.Exhausted > 0 {
			lines = append(lines, StatusLine{Label: "Exhausted", Severity: "error",
				Detail: fmt.Sprintf("%d item(s) hit the retry limit", status.Sync.Exhausted)})
		}
	} else {
		lines = append(lines, StatusLine{Label: "rtsync", Severity: "warn", Detail: "Not running (run `rtsync start`)"})
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, result := range preflight.RunAll(checkCtx, cfg) {
		severity := "ok"
		if !result.Passed {
			severity = "warn"
		}
		lines = append(lines, StatusLine{Label: result.Name, Severity: severity, Detail: result.Detail})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, StatusLine{Label: "Notifications", Severity: "info", Detail: "Not configured"})
	}
	return lines
}

func isDaemonUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
