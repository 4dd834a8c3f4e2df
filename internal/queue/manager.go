package queue

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"rtsync/internal/logging"
)

// Manager is the only writer of queue state. It serializes mutations against
// the store and republishes the snapshot after each confirmed read.
type Manager struct {
	store  ItemStore
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex

	snapMu sync.RWMutex
	snap   Snapshot

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source used for timestamps and ids.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager wraps store. The snapshot starts empty until the first List or
// mutation completes.
func NewManager(store ItemStore, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		logger: logging.NewComponentLogger(logger, "queue"),
		now:    time.Now,
		subs:   make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue persists a new pending item and returns it. It fails only when the
// store write fails.
func (m *Manager) Enqueue(ctx context.Context, data UploadData) (*Item, error) {
	now := m.now().UTC()
	item := &Item{
		ID:          NewID(now),
		RecordID:    strings.TrimSpace(data.RecordID),
		MediaType:   data.MediaType,
		FileName:    normalizeFileName(data.FileName, data.MediaType),
		ContentType: strings.TrimSpace(data.ContentType),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	content := data.Content
	if content == nil {
		content = strings.NewReader("")
	}
	if item.ContentType == "" {
		buffered := bufio.NewReaderSize(content, 512)
		head, _ := buffered.Peek(512)
		item.ContentType = http.DetectContentType(head)
		content = buffered
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.PutWithPayload(ctx, item, content); err != nil {
		logging.ErrorWithContext(m.logger, "enqueue failed", "queue_enqueue_failed",
			logging.String(logging.FieldRecordID, item.RecordID),
			logging.String("media_type", string(item.MediaType)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on paths.data_dir"),
		)
		return nil, err
	}
	logging.WithItem(m.logger, item.ID, item.RecordID).Info("upload queued",
		logging.String("media_type", string(item.MediaType)),
		logging.Int64("bytes", item.PayloadSize),
		logging.String(logging.FieldEventType, "queue_enqueued"),
	)
	m.refreshLocked(ctx)
	return item.Clone(), nil
}

// Remove deletes id. Removing an absent id is a no-op.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existed, err := m.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if existed {
		m.logger.Debug("queue item removed",
			logging.String(logging.FieldItemID, id),
			logging.String(logging.FieldEventType, "queue_removed"),
		)
	}
	m.refreshLocked(ctx)
	return nil
}

// Update merges patch into the stored item. An absent id is silently dropped.
func (m *Manager) Update(ctx context.Context, id string, patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	found, err := m.store.Mutate(ctx, id, func(item *Item) {
		patch.apply(item)
		item.UpdatedAt = now
	})
	if err != nil {
		return err
	}
	if !found {
		m.logger.Debug("update for missing item dropped",
			logging.String(logging.FieldItemID, id),
			logging.String(logging.FieldEventType, "queue_update_dropped"),
		)
		return nil
	}
	m.refreshLocked(ctx)
	return nil
}

// List reads every item from the store in insertion order and refreshes the
// snapshot with the result.
func (m *Manager) List(ctx context.Context) ([]*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	m.publish(newSnapshot(items, m.now().UTC()))
	return items, nil
}

// Get returns the stored item for id or nil when absent.
func (m *Manager) Get(ctx context.Context, id string) (*Item, error) {
	return m.store.Get(ctx, id)
}

// OpenPayload opens the spooled bytes for id.
func (m *Manager) OpenPayload(id string) (io.ReadCloser, error) {
	return m.store.OpenPayload(id)
}

// Snapshot returns the last confirmed view of the queue.
func (m *Manager) Snapshot() Snapshot {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return newSnapshot(m.snap.Items, m.snap.RefreshedAt)
}

// Subscribe returns a channel that receives the latest snapshot after every
// refresh. Slow readers only ever see the newest value. The current snapshot
// is delivered immediately.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.Snapshot()
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) refreshLocked(ctx context.Context) {
	items, err := m.store.List(ctx)
	if err != nil {
		logging.WarnWithContext(m.logger, "queue snapshot refresh failed; keeping previous view", "queue_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status surfaces may show stale counts until the next refresh"),
			logging.String(logging.FieldErrorHint, "check the queue database with 'rtsync queue health'"),
		)
		return
	}
	m.publish(newSnapshot(items, m.now().UTC()))
}

func (m *Manager) publish(snap Snapshot) {
	m.snapMu.Lock()
	m.snap = snap
	m.snapMu.Unlock()

	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

var defaultExtensions = map[MediaType]string{
	MediaPhoto: ".jpg",
	MediaVideo: ".mp4",
	MediaPDF:   ".pdf",
}

func normalizeFileName(name string, mediaType MediaType) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		name = "upload" + defaultExtensions[mediaType]
	}
	return norm.NFC.String(name)
}
