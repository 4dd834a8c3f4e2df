package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"rtsync/internal/queue"
	"rtsync/internal/syncer"
)

type mockQueueReader struct {
	items    []*queue.Item
	stats    map[queue.Status]int
	filtered []queue.Status
	itemErr  error
	statsErr error
}

func (m *mockQueueReader) List(context.Context) ([]*queue.Item, error) {
	return m.items, m.itemErr
}

func (m *mockQueueReader) ListByStatus(_ context.Context, statuses ...queue.Status) ([]*queue.Item, error) {
	m.filtered = statuses
	var out []*queue.Item
	for _, item := range m.items {
		for _, status := range statuses {
			if item.Status == status {
				out = append(out, item)
			}
		}
	}
	return out, m.itemErr
}

func (m *mockQueueReader) Stats(context.Context) (map[queue.Status]int, error) {
	return m.stats, m.statsErr
}

func (m *mockQueueReader) Get(_ context.Context, id string) (*queue.Item, error) {
	for _, item := range m.items {
		if item.ID == id {
			return item, m.itemErr
		}
	}
	return nil, m.itemErr
}

func TestQueueService_List(t *testing.T) {
	now := time.Now().UTC()
	reader := &mockQueueReader{
		items: []*queue.Item{{
			ID:        "01J9ZQ0000000000000000000A",
			RecordID:  "rec-1",
			MediaType: queue.MediaPhoto,
			FileName:  "front.jpg",
			Status:    queue.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}},
	}
	svc := NewQueueService(reader, syncer.RetryPolicy{})
	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unexpected item count: %d", len(got))
	}
	if got[0].RecordID != "rec-1" || got[0].MediaType != "photo" {
		t.Fatalf("unexpected item: %+v", got[0])
	}
	if got[0].Status != string(queue.StatusPending) {
		t.Fatalf("unexpected status: %q", got[0].Status)
	}
	if got[0].CreatedAt == "" || got[0].UpdatedAt == "" {
		t.Fatalf("expected timestamps to be formatted")
	}
}

func TestQueueService_ListFiltersByStatus(t *testing.T) {
	reader := &mockQueueReader{items: []*queue.Item{
		{ID: "a", Status: queue.StatusPending},
		{ID: "b", Status: queue.StatusFailed},
	}}
	svc := NewQueueService(reader, syncer.RetryPolicy{})
	got, err := svc.List(context.Background(), queue.StatusFailed)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected only failed item, got %+v", got)
	}
	if len(reader.filtered) != 1 || reader.filtered[0] != queue.StatusFailed {
		t.Fatalf("expected status filter to reach the store, got %v", reader.filtered)
	}
}

func TestQueueService_ListError(t *testing.T) {
	errSentinel := errors.New("boom")
	svc := NewQueueService(&mockQueueReader{itemErr: errSentinel}, syncer.RetryPolicy{})
	_, err := svc.List(context.Background())
	if !errors.Is(err, errSentinel) {
		t.Fatalf("expected error %v, got %v", errSentinel, err)
	}
}

func TestQueueService_Stats(t *testing.T) {
	svc := NewQueueService(&mockQueueReader{stats: map[queue.Status]int{
		queue.StatusFailed: 1,
	}}, syncer.RetryPolicy{})
	got, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if got["failed"] != 1 {
		t.Fatalf("unexpected failed count: %v", got)
	}
	if count, ok := got["pending"]; !ok || count != 0 {
		t.Fatalf("expected zero pending entry, got %v", got)
	}
}

func TestQueueService_DescribeMissing(t *testing.T) {
	svc := NewQueueService(&mockQueueReader{}, syncer.RetryPolicy{})
	got, err := svc.Describe(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing item, got %+v", got)
	}
}

func TestNilQueueServiceIsEmpty(t *testing.T) {
	var svc *QueueService
	items, err := svc.List(context.Background())
	if err != nil || items != nil {
		t.Fatalf("expected empty result, got %v %v", items, err)
	}
	if NewQueueService(nil, syncer.RetryPolicy{}) != nil {
		t.Fatal("expected nil service for nil reader")
	}
}
