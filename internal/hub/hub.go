// Package hub fans session updates out to live subscribers such as
// websocket clients.
package hub

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tinytelemetry/vigil/internal/model"
)

const subscriberBuffer = 256

// EventType tags a hub event.
type EventType string

const (
	EventEntries  EventType = "entries"
	EventSnapshot EventType = "snapshot"
)

// Event is one update pushed to subscribers.
type Event struct {
	Type     EventType              `json:"type"`
	Session  string                 `json:"session"`
	Entries  []model.LogEntry       `json:"entries,omitempty"`
	Snapshot *model.MetricsSnapshot `json:"snapshot,omitempty"`
}

// Hub broadcasts events to every subscriber. A subscriber whose buffer is
// full misses the event instead of stalling the tick loop.
type Hub struct {
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	closed      bool

	dropped atomic.Int64
}

// New creates an empty hub.
func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, subscribers: make(map[int]chan Event)}
}

// Subscribe returns a buffered event channel and a function that detaches
// it. The channel is closed on unsubscribe or Close.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subscribers[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subscribers[id]; ok {
				delete(h.subscribers, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of attached subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns the total number of events dropped for slow consumers.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// OnEntries broadcasts an ingested batch.
func (h *Hub) OnEntries(session string, entries []model.LogEntry, _ int) {
	h.Broadcast(Event{Type: EventEntries, Session: session, Entries: entries})
}

// OnSnapshot broadcasts a metrics snapshot.
func (h *Hub) OnSnapshot(session string, snap model.MetricsSnapshot) {
	h.Broadcast(Event{Type: EventSnapshot, Session: session, Snapshot: &snap})
}

// Broadcast sends ev to every subscriber without blocking.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			n := h.dropped.Add(1)
			h.logger.Debug("dropped event for slow consumer",
				zap.String("type", string(ev.Type)), zap.Int64("total_dropped", n))
		}
	}
}

// Close detaches and closes every subscriber. Later subscriptions get a
// closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}
