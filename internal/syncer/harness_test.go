package syncer_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"rtsync/internal/connectivity"
	"rtsync/internal/logging"
	"rtsync/internal/notifications"
	"rtsync/internal/queue"
	"rtsync/internal/syncer"
	"rtsync/internal/testsupport"
	"rtsync/internal/upload"
)

type harness struct {
	mgr     *queue.Manager
	store   *queue.Store
	monitor *connectivity.Manual
	orch    *syncer.Orchestrator
}

func newHarness(t *testing.T, online bool, uploader syncer.Uploader, opts syncer.Options) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := testsupport.NewManager(t, store)
	monitor := connectivity.NewManual(online)
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}
	return &harness{
		mgr:     mgr,
		store:   store,
		monitor: monitor,
		orch:    syncer.New(mgr, monitor, uploader, logging.NewNop(), opts),
	}
}

func (h *harness) list(t *testing.T) []*queue.Item {
	t.Helper()
	items, err := h.mgr.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return items
}

// scriptedUploader fails records listed in failures with the given status
// and delivers everything else.
type scriptedUploader struct {
	mu       sync.Mutex
	failures map[string]int
	calls    []string
	before   func(item *queue.Item)
}

func newScriptedUploader() *scriptedUploader {
	return &scriptedUploader{failures: make(map[string]int)}
}

func (u *scriptedUploader) setFailure(recordID string, status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if status == 0 {
		delete(u.failures, recordID)
		return
	}
	u.failures[recordID] = status
}

func (u *scriptedUploader) Attempt(_ context.Context, item *queue.Item, payload io.Reader) upload.Outcome {
	if u.before != nil {
		u.before(item)
	}
	_, _ = io.Copy(io.Discard, payload)

	u.mu.Lock()
	u.calls = append(u.calls, item.RecordID)
	status := u.failures[item.RecordID]
	u.mu.Unlock()

	if status != 0 {
		kind, reason := upload.Classify(status, nil)
		return upload.Outcome{StatusCode: status, Kind: kind, Reason: reason, Message: fmt.Sprintf("HTTP %d", status)}
	}
	return upload.Outcome{Delivered: true, StatusCode: 201}
}

func (u *scriptedUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) count(event notifications.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, e := range n.events {
		if e == event {
			total++
		}
	}
	return total
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
