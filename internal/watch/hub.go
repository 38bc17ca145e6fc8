// Package watch broadcasts stash lifecycle events to subscribers, including
// the stashd websocket endpoint.
package watch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"stashkit/internal/stash"
)

const (
	EventSaved    = "saved"
	EventRestored = "restored"
	EventDeleted  = "deleted"
	EventPruned   = "pruned"
)

type Event struct {
	ID     string        `json:"id"`
	Type   string        `json:"type"`
	Name   string        `json:"name"`
	Record *stash.Record `json:"record,omitempty"`
	At     time.Time     `json:"at"`
}

// NewEvent stamps an event with a fresh ID and timestamp.
func NewEvent(eventType, name string, rec *stash.Record) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   eventType,
		Name:   name,
		Record: rec,
		At:     time.Now(),
	}
}

// Hub fans events out to subscribers. Publishing never blocks; a slow
// subscriber drops events rather than stalling the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be called
// to release the subscription.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	if h == nil {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	ch := make(chan Event, 32)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
