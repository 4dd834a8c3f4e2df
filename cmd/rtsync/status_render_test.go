package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"rtsync/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("rtsync", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "rtsync:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("rtsync", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestStatusKindFromSeverity(t *testing.T) {
	cases := map[string]statusKind{"ok": statusOK, "WARN": statusWarn, "error": statusError, "": statusInfo}
	for input, want := range cases {
		if got := statusKindFromSeverity(input); got != want {
			t.Fatalf("statusKindFromSeverity(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestQueueListRowsFlagRetryState(t *testing.T) {
	rows := buildQueueListRows([]api.QueueItem{
		{ID: "a", Status: "failed", RetryCount: 5, Exhausted: true, PayloadSize: 2048},
		{ID: "b", Status: "failed", RetryCount: 1, NextAttemptAt: "2026-03-01T10:00:00.000Z"},
		{ID: "c", Status: "pending", LastError: strings.Repeat("x", 80)},
	})
	if rows[0][5] != "Failed (exhausted)" || rows[0][4] != "2.0 KiB" {
		t.Fatalf("unexpected exhausted row %v", rows[0])
	}
	if !strings.HasPrefix(rows[1][5], "Failed (retry ") {
		t.Fatalf("unexpected backoff row %v", rows[1])
	}
	if len(rows[2][8]) != 48 || !strings.HasSuffix(rows[2][8], "...") {
		t.Fatalf("expected truncated error, got %q", rows[2][8])
	}
}

func TestPassLinesRefused(t *testing.T) {
	lines := passLines(api.PassSummary{Reason: "manual", Refused: "offline"}, "", false)
	if len(lines) != 2 || !strings.Contains(lines[1], "Refused: offline") {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
