// Package broadcast fans committed change events out to open subscriber
// channels. Delivery is best-effort: publishing never blocks, a slow or gone
// subscriber drops events, and one subscriber's failure never affects the
// others or the request that triggered the event.
package broadcast

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is the serialized change notification pushed to subscribers.
type Event struct {
	Table  string    `json:"table"`
	Action string    `json:"action"`
	Data   any       `json:"data"`
	Time   time.Time `json:"time"`
}

type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{subs: map[uint64]chan Event{}}
}

func (h *Hub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	// Snapshot subscribers so Publish doesn't hold the lock while sending.
	h.mu.RLock()
	chs := make([]chan Event, 0, len(h.subs))
	for _, ch := range h.subs {
		chs = append(chs, ch)
	}
	h.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery; a concurrent unsubscribe may close the
		// channel, so recover from the send panic and move on.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := h.seq.Add(1)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
