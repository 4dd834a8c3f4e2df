package api

import (
	"context"

	"rtsync/internal/queue"
	"rtsync/internal/syncer"
)

// QueueReader abstracts queue persistence interactions needed for API queries.
type QueueReader interface {
	List(ctx context.Context) ([]*queue.Item, error)
	ListByStatus(ctx context.Context, statuses ...queue.Status) ([]*queue.Item, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	Get(ctx context.Context, id string) (*queue.Item, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	store  QueueReader
	policy syncer.RetryPolicy
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader, policy syncer.RetryPolicy) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store, policy: policy}
}

// List returns queue items, optionally filtered by status.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	var (
		items []*queue.Item
		err   error
	)
	if len(statuses) == 0 {
		items, err = s.store.List(ctx)
	} else {
		items, err = s.store.ListByStatus(ctx, statuses...)
	}
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items, s.policy), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single queue item; nil when absent.
func (s *QueueService) Describe(ctx context.Context, id string) (*QueueItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	item, err := s.store.Get(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	dto := FromQueueItem(item, s.policy)
	return &dto, nil
}
