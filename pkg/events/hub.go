package events

import (
	"context"
	"sync"

	"github.com/Ramsey-B/briar/pkg/kafka"
)

// Hub fans auction events out to in-process watchers, one subscription per
// watched ask. Local emission feeds it directly; the Kafka consumer feeds it
// events produced by other instances.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan *kafka.AuctionEvent]struct{}
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan *kafka.AuctionEvent]struct{}),
	}
}

// Subscribe registers a watcher for events on an ask. The returned channel
// is buffered; slow watchers drop events rather than block emission.
func (h *Hub) Subscribe(askID string) chan *kafka.AuctionEvent {
	ch := make(chan *kafka.AuctionEvent, 16)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[askID] == nil {
		h.subs[askID] = make(map[chan *kafka.AuctionEvent]struct{})
	}
	h.subs[askID][ch] = struct{}{}

	return ch
}

// Unsubscribe removes a watcher and closes its channel
func (h *Hub) Unsubscribe(askID string, ch chan *kafka.AuctionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	watchers, ok := h.subs[askID]
	if !ok {
		return
	}
	if _, ok := watchers[ch]; !ok {
		return
	}

	delete(watchers, ch)
	if len(watchers) == 0 {
		delete(h.subs, askID)
	}
	close(ch)
}

// Notify delivers an event to every watcher of its ask
func (h *Hub) Notify(event *kafka.AuctionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[event.AskID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Relay returns a consumer handler that feeds events from other instances
// into the hub. Events this instance emitted are skipped; the emitter
// already delivered them.
func Relay(hub *Hub, origin string) kafka.EventHandler {
	return func(ctx context.Context, event *kafka.AuctionEvent) error {
		if event.Origin == origin {
			return nil
		}
		hub.Notify(event)
		return nil
	}
}

// Watchers returns the number of active subscriptions for an ask
func (h *Hub) Watchers(askID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[askID])
}
