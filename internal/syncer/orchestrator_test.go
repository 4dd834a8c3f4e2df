package syncer_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rtsync/internal/notifications"
	"rtsync/internal/queue"
	"rtsync/internal/syncer"
	"rtsync/internal/testsupport"
	"rtsync/internal/upload"
)

func TestPassIsolatesFailures(t *testing.T) {
	uploader := newScriptedUploader()
	uploader.setFailure("rec-2", http.StatusInternalServerError)
	h := newHarness(t, true, uploader, syncer.Options{})

	testsupport.Enqueue(t, h.mgr, "rec-1", []byte("one"))
	second := testsupport.Enqueue(t, h.mgr, "rec-2", []byte("two"))
	testsupport.Enqueue(t, h.mgr, "rec-3", []byte("three"))

	summary, err := h.orch.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if summary.Attempted != 3 || summary.Delivered != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	items := h.list(t)
	if len(items) != 1 || items[0].ID != second.ID {
		t.Fatalf("expected only the failed item to remain, got %+v", items)
	}
	if items[0].RetryCount != 1 || items[0].Status != queue.StatusFailed {
		t.Fatalf("unexpected failure bookkeeping %+v", items[0])
	}
	if items[0].LastAttemptAt == nil {
		t.Fatal("expected last attempt time to be recorded")
	}
}

func TestScenarioOfflineEnqueueThenReconnect(t *testing.T) {
	var received atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		n, _ := io.Copy(io.Discard, file)
		received.Add(n)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	adapter := upload.New(upload.Options{BaseURL: server.URL, Tokens: upload.StaticToken("t")})
	h := newHarness(t, false, adapter, syncer.Options{})

	photo := bytes.Repeat([]byte{0xff, 0xd8, 0xff, 0xe0}, 512*1024)
	item := testsupport.Enqueue(t, h.mgr, "rec-A", photo)

	items := h.list(t)
	if len(items) != 1 || items[0].ID != item.ID || items[0].Status != queue.StatusPending || items[0].RetryCount != 0 {
		t.Fatalf("unexpected queue while offline: %+v", items)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	h.monitor.Set(true)
	waitFor(t, "queue to drain after reconnect", func() bool { return len(h.list(t)) == 0 })
	if received.Load() != int64(len(photo)) {
		t.Fatalf("server received %d bytes, want %d", received.Load(), len(photo))
	}
}

func TestScenarioServerErrorIncrementsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := upload.New(upload.Options{BaseURL: server.URL})
	h := newHarness(t, true, adapter, syncer.Options{})
	testsupport.Enqueue(t, h.mgr, "rec-B", []byte("evidence"))

	for pass := 1; pass <= 2; pass++ {
		if _, err := h.orch.SyncNow(context.Background()); err != nil {
			t.Fatalf("pass %d: %v", pass, err)
		}
		items := h.list(t)
		if len(items) != 1 {
			t.Fatalf("pass %d: expected item to remain, got %d", pass, len(items))
		}
		if items[0].RetryCount != pass {
			t.Fatalf("pass %d: retry count %d", pass, items[0].RetryCount)
		}
		if !strings.Contains(items[0].LastError, "500") {
			t.Fatalf("pass %d: last error %q", pass, items[0].LastError)
		}
	}
}

func TestPassRefusals(t *testing.T) {
	uploader := newScriptedUploader()
	h := newHarness(t, false, uploader, syncer.Options{})
	testsupport.Enqueue(t, h.mgr, "rec-1", []byte("x"))

	summary, err := h.orch.SyncNow(context.Background())
	if err != nil || summary.Refused != syncer.RefusedOffline {
		t.Fatalf("expected offline refusal, got %+v err=%v", summary, err)
	}
	if uploader.callCount() != 0 {
		t.Fatal("offline pass must not call the uploader")
	}

	empty := newHarness(t, true, uploader, syncer.Options{})
	summary, err = empty.orch.SyncNow(context.Background())
	if err != nil || summary.Refused != syncer.RefusedEmpty {
		t.Fatalf("expected empty refusal, got %+v err=%v", summary, err)
	}
}

func TestSecondTriggerWhileDrainingIsRefused(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	uploader := newScriptedUploader()
	uploader.before = func(*queue.Item) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}
	h := newHarness(t, true, uploader, syncer.Options{})
	testsupport.Enqueue(t, h.mgr, "rec-1", []byte("x"))

	first := make(chan syncer.PassSummary, 1)
	go func() {
		summary, _ := h.orch.SyncNow(context.Background())
		first <- summary
	}()
	<-entered

	if !h.orch.Status().Syncing {
		t.Fatal("expected status to report syncing")
	}
	summary, err := h.orch.SyncNow(context.Background())
	if err != nil || summary.Refused != syncer.RefusedBusy {
		t.Fatalf("expected busy refusal, got %+v err=%v", summary, err)
	}

	close(release)
	if got := <-first; got.Delivered != 1 {
		t.Fatalf("first pass should deliver, got %+v", got)
	}
	if uploader.callCount() != 1 {
		t.Fatalf("expected exactly one upload, got %d", uploader.callCount())
	}
}

func TestConcurrentTriggersNeverOverlap(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	uploader := newScriptedUploader()
	uploader.before = func(*queue.Item) {
		n := inFlight.Add(1)
		for {
			old := maxInFlight.Load()
			if n <= old || maxInFlight.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
	}
	h := newHarness(t, true, uploader, syncer.Options{})
	for i := 0; i < 5; i++ {
		testsupport.Enqueue(t, h.mgr, "rec-"+string(rune('a'+i)), []byte("x"))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.orch.SyncNow(context.Background())
		}()
	}
	wg.Wait()

	if maxInFlight.Load() != 1 {
		t.Fatalf("expected strictly sequential uploads, saw %d concurrent", maxInFlight.Load())
	}
	seen := make(map[string]int)
	uploader.mu.Lock()
	for _, id := range uploader.calls {
		seen[id]++
	}
	uploader.mu.Unlock()
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("record %s uploaded %d times", id, n)
		}
	}
}

func TestGoingOfflineMidPassLeavesRestPending(t *testing.T) {
	uploader := newScriptedUploader()
	h := newHarness(t, true, uploader, syncer.Options{})
	uploader.before = func(item *queue.Item) {
		if item.RecordID == "rec-1" {
			h.monitor.Set(false)
		}
	}
	testsupport.Enqueue(t, h.mgr, "rec-1", []byte("x"))
	testsupport.Enqueue(t, h.mgr, "rec-2", []byte("y"))
	testsupport.Enqueue(t, h.mgr, "rec-3", []byte("z"))

	summary, err := h.orch.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if !summary.Interrupted || summary.Delivered != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	items := h.list(t)
	if len(items) != 2 {
		t.Fatalf("expected two items left, got %d", len(items))
	}
	for _, item := range items {
		if item.Status != queue.StatusPending || item.RetryCount != 0 {
			t.Fatalf("untouched item changed: %+v", item)
		}
	}
}

func TestMissingPayloadIsRecordedAsFailure(t *testing.T) {
	uploader := newScriptedUploader()
	h := newHarness(t, true, uploader, syncer.Options{})
	item := testsupport.Enqueue(t, h.mgr, "rec-1", []byte("x"))
	if err := os.Remove(filepath.Join(h.store.PayloadDir(), item.ID)); err != nil {
		t.Fatalf("remove payload: %v", err)
	}

	summary, err := h.orch.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if summary.Failed != 1 || uploader.callCount() != 0 {
		t.Fatalf("expected recorded failure without upload, got %+v calls=%d", summary, uploader.callCount())
	}
	items := h.list(t)
	if len(items) != 1 || !strings.Contains(items[0].LastError, "open payload") {
		t.Fatalf("unexpected item state %+v", items)
	}
}

func TestRetryCapStopsAttemptsAndNotifiesOnce(t *testing.T) {
	uploader := newScriptedUploader()
	uploader.setFailure("rec-1", http.StatusRequestEntityTooLarge)
	notifier := &recordingNotifier{}
	h := newHarness(t, true, uploader, syncer.Options{
		Policy:   syncer.RetryPolicy{MaxRetries: 2},
		Notifier: notifier,
	})
	testsupport.Enqueue(t, h.mgr, "rec-1", []byte("x"))

	for i := 0; i < 4; i++ {
		if _, err := h.orch.SyncNow(context.Background()); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	if uploader.callCount() != 2 {
		t.Fatalf("expected attempts to stop at the cap, got %d", uploader.callCount())
	}
	items := h.list(t)
	if len(items) != 1 || items[0].RetryCount != 2 {
		t.Fatalf("exhausted item must stay queued, got %+v", items)
	}
	status := h.orch.Status()
	if status.Exhausted != 1 || status.LastPass == nil || status.LastPass.Exhausted != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
	if notifier.count(notifications.EventItemExhausted) != 1 {
		t.Fatalf("expected a single exhausted notification, got %d", notifier.count(notifications.EventItemExhausted))
	}
	if notifier.count(notifications.EventSyncFailures) != 2 {
		t.Fatalf("expected failure notifications per failing pass, got %d", notifier.count(notifications.EventSyncFailures))
	}
}

func TestBackoffDefersRetry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	uploader := newScriptedUploader()
	uploader.setFailure("rec-1", http.StatusBadGateway)
	h := newHarness(t, true, uploader, syncer.Options{
		Policy: syncer.RetryPolicy{Backoff: []time.Duration{time.Minute}},
		Clock:  clock,
	})
	testsupport.Enqueue(t, h.mgr, "rec-1", []byte("x"))

	if _, err := h.orch.SyncNow(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	summary, _ := h.orch.SyncNow(context.Background())
	if summary.Skipped != 1 || uploader.callCount() != 1 {
		t.Fatalf("expected backoff skip, got %+v calls=%d", summary, uploader.callCount())
	}
	advance(time.Minute)
	uploader.setFailure("rec-1", 0)
	summary, _ = h.orch.SyncNow(context.Background())
	if summary.Delivered != 1 {
		t.Fatalf("expected delivery after backoff, got %+v", summary)
	}
}

func TestQueueDrainedNotification(t *testing.T) {
	notifier := &recordingNotifier{}
	h := newHarness(t, true, newScriptedUploader(), syncer.Options{Notifier: notifier})
	testsupport.Enqueue(t, h.mgr, "rec-1", []byte("x"))
	if _, err := h.orch.SyncNow(context.Background()); err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if notifier.count(notifications.EventQueueDrained) != 1 {
		t.Fatal("expected queue drained notification")
	}
}

func TestDebounceStartsPassAfterEnqueueWhileOnline(t *testing.T) {
	uploader := newScriptedUploader()
	h := newHarness(t, true, uploader, syncer.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	testsupport.Enqueue(t, h.mgr, "rec-1", []byte("x"))
	waitFor(t, "debounced pass to deliver", func() bool { return len(h.list(t)) == 0 })
}

func TestDebounceRetriesFailingItems(t *testing.T) {
	uploader := newScriptedUploader()
	uploader.setFailure("rec-1", http.StatusServiceUnavailable)
	h := newHarness(t, true, uploader, syncer.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	testsupport.Enqueue(t, h.mgr, "rec-1", []byte("x"))
	waitFor(t, "repeated attempts", func() bool { return uploader.callCount() >= 3 })
	uploader.setFailure("rec-1", 0)
	waitFor(t, "eventual delivery", func() bool { return len(h.list(t)) == 0 })
}

func TestTriggerRunsPassFromScheduler(t *testing.T) {
	uploader := newScriptedUploader()
	h := newHarness(t, true, uploader, syncer.Options{Debounce: time.Hour})
	testsupport.Enqueue(t, h.mgr, "rec-1", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	h.orch.Trigger(syncer.ReasonManual)
	waitFor(t, "triggered pass", func() bool { return len(h.list(t)) == 0 })
}

func TestCancelledUploadLeavesItemUnchanged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		cancel()
		<-r.Context().Done()
	}))
	defer server.Close()

	h := newHarness(t, true, upload.New(upload.Options{BaseURL: server.URL}), syncer.Options{})
	testsupport.Enqueue(t, h.mgr, "rec-1", []byte("x"))

	summary, err := h.orch.RunPass(ctx, syncer.ReasonManual)
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if !summary.Interrupted || summary.Failed != 0 {
		t.Fatalf("expected interrupted pass without failures, got %+v", summary)
	}
	items := h.list(t)
	if len(items) != 1 || items[0].RetryCount != 0 || items[0].Status != queue.StatusPending {
		t.Fatalf("cancelled attempt must not count as a failure: %+v", items)
	}
}

func TestRetryPolicy(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	policy := syncer.RetryPolicy{MaxRetries: 3, Backoff: []time.Duration{10 * time.Second, time.Minute}}

	fresh := &queue.Item{Status: queue.StatusPending}
	if !policy.Eligible(fresh, at) {
		t.Fatal("fresh items are always eligible")
	}

	failed := &queue.Item{Status: queue.StatusFailed, RetryCount: 1, LastAttemptAt: &at}
	if policy.Eligible(failed, at.Add(9*time.Second)) {
		t.Fatal("expected first backoff step to apply")
	}
	if !policy.Eligible(failed, at.Add(10*time.Second)) {
		t.Fatal("expected eligibility once backoff elapsed")
	}

	failed.RetryCount = 2
	if got := policy.NextAttempt(failed); !got.Equal(at.Add(time.Minute)) {
		t.Fatalf("NextAttempt = %s", got)
	}
	failed.RetryCount = 3
	if !policy.Exhausted(failed) || policy.Eligible(failed, at.Add(time.Hour)) {
		t.Fatal("expected cap to exhaust the item")
	}

	unlimited := syncer.RetryPolicy{}
	failed.RetryCount = 10_000
	if unlimited.Exhausted(failed) || !unlimited.Eligible(failed, at) {
		t.Fatal("zero policy must retry forever without waiting")
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sync.MaxRetries = 4
	cfg.Sync.Backoff = []string{"30s", "5m"}
	policy, err := syncer.PolicyFromConfig(cfg)
	if err != nil {
		t.Fatalf("PolicyFromConfig: %v", err)
	}
	if policy.MaxRetries != 4 || len(policy.Backoff) != 2 || policy.Backoff[1] != 5*time.Minute {
		t.Fatalf("unexpected policy %+v", policy)
	}
}
