package daemon_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rtsync/internal/config"
	"rtsync/internal/connectivity"
	"rtsync/internal/daemon"
	"rtsync/internal/logging"
	"rtsync/internal/queue"
	"rtsync/internal/services"
	"rtsync/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config, store *queue.Store, monitor connectivity.Detector) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(cfg, store, logging.NewNop(), daemon.Options{Monitor: monitor})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store, connectivity.NewManual(false))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID == 0 || status.QueueDBPath != cfg.QueueDBPath() {
		t.Fatalf("unexpected status %+v", status)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondDaemonRefusedByLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	first := newDaemon(t, cfg, store, connectivity.NewManual(false))
	second := newDaemon(t, cfg, store, connectivity.NewManual(false))

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected lock conflict for second daemon")
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestDaemonStartSweepsAbandonedPayloads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	abandoned := filepath.Join(cfg.PayloadDir(), ".01ABANDONED.tmp-1")
	fresh := filepath.Join(cfg.PayloadDir(), ".01FRESH.tmp-2")
	for _, p := range []string{abandoned, fresh} {
		if err := os.WriteFile(p, []byte("partial"), 0o600); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	old := time.Now().Add(-2 * queue.OrphanGrace)
	if err := os.Chtimes(abandoned, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	d := newDaemon(t, cfg, store, connectivity.NewManual(false))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := os.Stat(abandoned); !os.IsNotExist(err) {
		t.Fatalf("expected abandoned temp file swept, stat err = %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh temp file removed: %v", err)
	}
}

func TestEnqueueValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store, connectivity.NewManual(false))

	cases := []struct {
		name string
		req  daemon.EnqueueRequest
	}{
		{"missing record", daemon.EnqueueRequest{MediaType: "photo", FileName: "a.jpg", Size: 3, Content: bytes.NewReader([]byte("abc"))}},
		{"unknown media type", daemon.EnqueueRequest{RecordID: "r1", MediaType: "audio", FileName: "a.mp3", Size: 3, Content: bytes.NewReader([]byte("abc"))}},
		{"uninferable media type", daemon.EnqueueRequest{RecordID: "r1", FileName: "notes.txt", Size: 3, Content: bytes.NewReader([]byte("abc"))}},
		{"empty file", daemon.EnqueueRequest{RecordID: "r1", MediaType: "pdf", FileName: "a.pdf", Size: 0, Content: bytes.NewReader(nil)}},
		{"photo over limit", daemon.EnqueueRequest{RecordID: "r1", MediaType: "photo", FileName: "a.jpg", Size: 10<<20 + 1, Content: bytes.NewReader([]byte("abc"))}},
		{"missing content", daemon.EnqueueRequest{RecordID: "r1", MediaType: "photo", FileName: "a.jpg", Size: 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Enqueue(context.Background(), tc.req)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	items, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("rejected uploads reached the queue: %d items", len(items))
	}
}

func TestEnqueueRejectsPayloadLongerThanDeclared(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Media.PDFMaxMB = 1
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store, connectivity.NewManual(false))

	content := bytes.NewReader(make([]byte, 2<<20))
	_, err := d.Enqueue(context.Background(), daemon.EnqueueRequest{
		RecordID:  "r1",
		MediaType: "pdf",
		FileName:  "big.pdf",
		Size:      10,
		Content:   content,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for oversized stream, got %v", err)
	}
	items, _ := store.List(context.Background())
	if len(items) != 0 {
		t.Fatalf("expected nothing persisted, got %d items", len(items))
	}
}

func TestEnqueueFileInfersMediaType(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store, connectivity.NewManual(false))

	path := filepath.Join(testsupport.BaseDir(cfg), "inbox", "Receipt.PDF")
	digest := testsupport.WriteFile(t, path, 4096)

	item, err := d.EnqueueFile(context.Background(), "rec-9", "", path)
	if err != nil {
		t.Fatalf("EnqueueFile: %v", err)
	}
	if item.MediaType != "pdf" || item.FileName != "Receipt.PDF" || item.PayloadSize != 4096 {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.Status != string(queue.StatusPending) || item.RetryCount != 0 {
		t.Fatalf("expected fresh pending item, got %+v", item)
	}
	if item.PayloadSHA256 != digest {
		t.Fatalf("payload digest = %q, want %q", item.PayloadSHA256, digest)
	}

	if _, err := d.EnqueueFile(context.Background(), "rec-9", "", filepath.Dir(path)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected directory to be rejected, got %v", err)
	}
}

func TestInferMediaType(t *testing.T) {
	cases := map[string]queue.MediaType{
		"photo.JPG": queue.MediaPhoto,
		"clip.mp4":  queue.MediaVideo,
		"doc.pdf":   queue.MediaPDF,
	}
	for name, want := range cases {
		got, ok := daemon.InferMediaType(name, "")
		if !ok || got != want {
			t.Fatalf("InferMediaType(%q) = %q, %v; want %q", name, got, ok, want)
		}
	}
	if got, ok := daemon.InferMediaType("blob", "video/quicktime"); !ok || got != queue.MediaVideo {
		t.Fatalf("expected content type to drive inference, got %q %v", got, ok)
	}
	if _, ok := daemon.InferMediaType("notes.txt", "text/plain"); ok {
		t.Fatal("expected text to be rejected")
	}
}

func TestDaemonDrainsQueueOnStartup(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = io.Copy(io.Discard, file)
		mu.Lock()
		received = append(received, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithServer(server.URL))
	store := testsupport.MustOpenStore(t, cfg)
	// Items left behind by an earlier run.
	testsupport.Enqueue(t, testsupport.NewManager(t, store), "rec-1", []byte("one"))
	testsupport.Enqueue(t, testsupport.NewManager(t, store), "rec-2", []byte("two"))

	d := newDaemon(t, cfg, store, connectivity.NewManual(true))
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		items, err := store.List(context.Background())
		return err == nil && len(items) == 0
	})
	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 uploads, got %v", received)
	}
	if received[0] != "/api/records/rec-1/upload" {
		t.Fatalf("expected insertion order, got %v", received)
	}
}

func TestDaemonSyncsAfterReconnect(t *testing.T) {
	var hits sync.WaitGroup
	hits.Add(1)
	var once sync.Once
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		once.Do(hits.Done)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithServer(server.URL))
	store := testsupport.MustOpenStore(t, cfg)
	monitor := connectivity.NewManual(false)
	d := newDaemon(t, cfg, store, monitor)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := d.Enqueue(context.Background(), daemon.EnqueueRequest{
		RecordID:  "rec-offline",
		MediaType: "photo",
		FileName:  "site.jpg",
		Size:      5,
		Content:   bytes.NewReader([]byte("jpeg!")),
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if items, _ := store.List(context.Background()); len(items) != 1 {
		t.Fatalf("expected item to stay queued while offline, got %d", len(items))
	}

	monitor.Set(true)
	waitFor(t, 5*time.Second, func() bool {
		items, err := store.List(context.Background())
		return err == nil && len(items) == 0
	})
	hits.Wait()
	if d.Status(context.Background()).Sync.LastPass == nil {
		t.Fatal("expected a recorded pass after reconnect")
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store, connectivity.NewManual(false))

	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent || message != "ntfy topic not configured" {
		t.Fatalf("unexpected result sent=%v message=%q", sent, message)
	}
}

func TestDatabaseHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store, connectivity.NewManual(false))
	testsupport.Enqueue(t, testsupport.NewManager(t, store), "rec-1", []byte("x"))

	health, err := d.DatabaseHealth(context.Background())
	if err != nil {
		t.Fatalf("DatabaseHealth: %v", err)
	}
	if !health.DatabaseReadable || health.TotalItems != 1 || health.SpoolFiles != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
}
