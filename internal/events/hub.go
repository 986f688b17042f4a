package events

import (
	"sync"
	"time"
)

// Topics published on the hub.
const (
	TopicUsageLogged   = "usage.logged"
	TopicConfigUpdated = "config.updated"
)

// Event is one published notification.
type Event struct {
	Topic   string      `json:"topic"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// Hub fans events out to subscribers. Slow subscribers drop events
// rather than block publishers.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener and returns its channel plus an
// unsubscribe function. Unsubscribe is idempotent.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, 16)
	h.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
	return ch, unsubscribe
}

// Publish delivers the event to all current subscribers.
func (h *Hub) Publish(topic string, payload interface{}) {
	ev := Event{Topic: topic, Time: time.Now(), Payload: payload}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
