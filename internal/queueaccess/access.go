package queueaccess

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/flock"

	"rtsync/internal/api"
	"rtsync/internal/config"
	"rtsync/internal/connectivity"
	"rtsync/internal/daemon"
	"rtsync/internal/ipc"
	"rtsync/internal/logging"
	"rtsync/internal/queue"
	"rtsync/internal/syncer"
)

// ErrDaemonLocked reports that a daemon holds the queue lock but could not be
// reached over IPC, so direct writes are refused.
var ErrDaemonLocked = errors.New("queue is locked by a running daemon that is not answering IPC")

// Access provides queue operations regardless of IPC or direct store backing.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]api.QueueItem, error)
	Describe(ctx context.Context, id string) (*api.QueueItem, error)
	Enqueue(ctx context.Context, recordID, mediaType, path string) (api.QueueItem, error)
	Health(ctx context.Context) (ipc.DatabaseHealthResponse, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access. Writes take
// the daemon lock for their duration.
func NewStoreAccess(cfg *config.Config, store *queue.Store) (Access, error) {
	policy, err := syncer.PolicyFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}
	return &storeAccess{
		cfg:     cfg,
		store:   store,
		service: api.NewQueueService(store, policy),
	}, nil
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Stats(_ context.Context) (map[string]int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return resp.QueueStats, nil
}

func (a *ipcAccess) List(_ context.Context, statuses []string) ([]api.QueueItem, error) {
	resp, err := a.client.QueueList(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Describe(_ context.Context, id string) (*api.QueueItem, error) {
	resp, err := a.client.QueueDescribe(id)
	if err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	return &resp.Item, nil
}

func (a *ipcAccess) Enqueue(_ context.Context, recordID, mediaType, path string) (api.QueueItem, error) {
	resp, err := a.client.Enqueue(recordID, mediaType, path)
	if err != nil {
		return api.QueueItem{}, err
	}
	return resp.Item, nil
}

func (a *ipcAccess) Health(_ context.Context) (ipc.DatabaseHealthResponse, error) {
	resp, err := a.client.DatabaseHealth()
	if err != nil {
		return ipc.DatabaseHealthResponse{}, err
	}
	return *resp, nil
}

type storeAccess struct {
	cfg     *config.Config
	store   *queue.Store
	service *api.QueueService
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.service.Stats(ctx)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.QueueItem, error) {
	filters := make([]queue.Status, 0, len(statuses))
	for _, s := range statuses {
		parsed, ok := queue.ParseStatus(s)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", s)
		}
		filters = append(filters, parsed)
	}
	return a.service.List(ctx, filters...)
}

func (a *storeAccess) Describe(ctx context.Context, id string) (*api.QueueItem, error) {
	return a.service.Describe(ctx, id)
}

// Enqueue validates and spools the file without a running daemon. The item
// is picked up by the startup pass of the next daemon.
func (a *storeAccess) Enqueue(ctx context.Context, recordID, mediaType, path string) (api.QueueItem, error) {
	lock := flock.New(a.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return api.QueueItem{}, fmt.Errorf("acquire queue lock: %w", err)
	}
	if !locked {
		return api.QueueItem{}, ErrDaemonLocked
	}
	defer func() { _ = lock.Unlock() }()

	// An unstarted daemon shares the validation gate with the IPC and HTTP
	// paths; no monitor or scheduler runs.
	d, err := daemon.New(a.cfg, a.store, logging.NewNop(), daemon.Options{Monitor: connectivity.NewManual(false)})
	if err != nil {
		return api.QueueItem{}, err
	}
	return d.EnqueueFile(ctx, recordID, mediaType, path)
}

func (a *storeAccess) Health(ctx context.Context) (ipc.DatabaseHealthResponse, error) {
	health, err := a.store.CheckHealth(ctx)
	return ipc.FromDatabaseHealth(health), err
}
