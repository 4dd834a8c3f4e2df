package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rtsync/internal/api"
	"rtsync/internal/daemonctl"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the rtsync daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath(), LogLevel: startLogLevel},
				10*time.Second,
			)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override logging.level for the launched daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the rtsync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Killed unresponsive daemon process (pid %d)\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, network and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, snapshot.Daemon)
			}
			renderStatus(cmd.OutOrStdout(), snapshot, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderStatus(stdout io.Writer, snapshot *daemonctl.Snapshot, colorize bool) {
	for _, line := range renderSectionHeader("System Status", colorize) {
		fmt.Fprintln(stdout, line)
	}
	for _, line := range snapshot.Checks {
		fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
	}

	if pass := snapshot.Daemon.Sync.LastPass; pass != nil {
		fmt.Fprintln(stdout)
		for _, line := range renderSectionHeader("Last Sync Pass", colorize) {
			fmt.Fprintln(stdout, line)
		}
		for _, line := range passLines(*pass, snapshot.Daemon.Sync.LastError, colorize) {
			fmt.Fprintln(stdout, line)
		}
	}

	fmt.Fprintln(stdout)
	for _, line := range renderSectionHeader("Queue Status", colorize) {
		fmt.Fprintln(stdout, line)
	}
	rows := buildQueueStatusRows(snapshot.Daemon.QueueStats)
	if queueIsEmpty(snapshot.Daemon.QueueStats) {
		fmt.Fprintln(stdout, "Queue is empty")
		return
	}
	fmt.Fprint(stdout, renderTable(queueStatusColumns, rows))
}

func passLines(pass api.PassSummary, lastError string, colorize bool) []string {
	lines := make([]string, 0, 4)
	lines = append(lines, renderStatusLine("Reason", statusInfo, pass.Reason, colorize))
	if pass.Refused != "" {
		lines = append(lines, renderStatusLine("Outcome", statusWarn, "Refused: "+pass.Refused, colorize))
		return lines
	}
	kind := statusOK
	if pass.Failed > 0 || pass.Interrupted {
		kind = statusWarn
	}
	if pass.Exhausted > 0 {
		kind = statusError
	}
	lines = append(lines, renderStatusLine("Outcome", kind,
		fmt.Sprintf("%d delivered, %d failed, %d skipped of %d attempted", pass.Delivered, pass.Failed, pass.Skipped, pass.Attempted),
		colorize))
	if finished := formatDisplayTime(pass.FinishedAt); finished != "" {
		lines = append(lines, renderStatusLine("Finished", statusInfo, finished, colorize))
	}
	if lastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, lastError, colorize))
	}
	return lines
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}
