package connectivity

import (
	"context"
	"sync"
	"time"
)

// Event announces a connectivity transition.
type Event struct {
	Online bool
	At     time.Time
	// Reason names what triggered the evaluation that observed the change.
	Reason string
	Detail string
}

// Detector is the behaviour shared by Monitor and Manual.
type Detector interface {
	Start(ctx context.Context) error
	Stop()
	Online() bool
	Subscribe() (<-chan Event, func())
}

const subscriberBuffer = 8

type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// emit delivers ev to every subscriber. A full subscriber loses its oldest
// event so the newest transition always arrives.
func (b *broadcaster) emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		sendLatest(ch, ev)
	}
}

func sendLatest(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
