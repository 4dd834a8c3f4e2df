package testsupport

import (
	"bytes"
	"context"
	"testing"

	"rtsync/internal/config"
	"rtsync/internal/logging"
	"rtsync/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewManager wraps store in a queue.Manager with a no-op logger.
func NewManager(t testing.TB, store queue.ItemStore) *queue.Manager {
	t.Helper()
	return queue.NewManager(store, logging.NewNop())
}

// Enqueue adds a pending photo upload with the given payload.
func Enqueue(t testing.TB, mgr *queue.Manager, recordID string, payload []byte) *queue.Item {
	t.Helper()

	item, err := mgr.Enqueue(context.Background(), queue.UploadData{
		RecordID:  recordID,
		MediaType: queue.MediaPhoto,
		FileName:  recordID + ".jpg",
		Content:   bytes.NewReader(payload),
	})
	if err != nil {
		t.Fatalf("manager.Enqueue: %v", err)
	}
	return item
}
