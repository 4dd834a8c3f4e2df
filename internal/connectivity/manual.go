package connectivity

import (
	"context"
	"sync"
	"time"
)

// Manual is a Detector whose state only changes through Set.
type Manual struct {
	mu     sync.Mutex
	online bool
	events broadcaster
}

var _ Detector = (*Manual)(nil)

// NewManual returns a Manual detector in the given state.
func NewManual(online bool) *Manual {
	return &Manual{online: online}
}

// Start is a no-op.
func (m *Manual) Start(context.Context) error { return nil }

// Stop is a no-op.
func (m *Manual) Stop() {}

// Online reports the current state.
func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers for transition events.
func (m *Manual) Subscribe() (<-chan Event, func()) {
	return m.events.subscribe()
}

// Set changes the state and emits an event when it differs from the current one.
func (m *Manual) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()
	if changed {
		m.events.emit(Event{Online: online, At: time.Now().UTC(), Reason: "manual"})
	}
}
