package queueaccess

import (
	"fmt"

	"rtsync/internal/config"
	"rtsync/internal/ipc"
	"rtsync/internal/queue"
)

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	// Direct is true when the session bypasses the daemon.
	Direct bool
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries IPC-backed access first, then falls back to direct
// store access.
func OpenWithFallback(
	cfg *config.Config,
	dial func() (*ipc.Client, error),
	openStore func() (*queue.Store, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{
				Access: NewIPCAccess(client),
				close:  client.Close,
			}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open queue store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	access, err := NewStoreAccess(cfg, store)
	if err != nil {
		_ = store.Close()
		return Session{}, err
	}
	return Session{
		Access: access,
		Direct: true,
		close:  store.Close,
	}, nil
}
