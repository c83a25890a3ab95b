// Package stream fans alert events out to live dashboard consumers.
package stream

import (
	"context"
	"sync"
	"time"

	"market-intel/internal/models"
)

// HubConfig holds hub buffer sizes.
type HubConfig struct {
	// BufferSize is the internal event channel buffer.
	BufferSize int
	// SubscriberBufferSize is each subscriber's channel buffer.
	SubscriberBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:           256,
		SubscriberBufferSize: 32,
	}
}

// Hub distributes alert events to multiple subscribers. Publishing never
// blocks: a full buffer drops the event for that consumer rather than
// stalling the pipeline.
type Hub struct {
	config HubConfig

	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	eventCh     chan models.AlertEvent
	done        chan struct{}
	started     bool

	metricsMu      sync.RWMutex
	eventsReceived uint64
	eventsSent     uint64
	eventsDropped  uint64
}

// Subscriber is one live consumer, optionally filtered to an alert category.
type Subscriber struct {
	ID           string
	Category     string
	Channel      chan models.AlertEvent
	DroppedCount int
	CreatedAt    time.Time
}

// NewHub creates a hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a hub with custom buffer sizes.
func NewHubWithConfig(config HubConfig) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultHubConfig().BufferSize
	}
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = DefaultHubConfig().SubscriberBufferSize
	}
	return &Hub{
		config:      config,
		subscribers: make(map[string]*Subscriber),
		eventCh:     make(chan models.AlertEvent, config.BufferSize),
		done:        make(chan struct{}),
	}
}

// Start launches the distribution loop. Starting twice is a no-op.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	go h.broadcastLoop(ctx)
}

func (h *Hub) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case event := <-h.eventCh:
			h.metricsMu.Lock()
			h.eventsReceived++
			h.metricsMu.Unlock()
			h.broadcast(event)
		}
	}
}

// Stop stops the hub and closes every subscriber channel.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}
	close(h.done)
	h.started = false

	for id, sub := range h.subscribers {
		close(sub.Channel)
		delete(h.subscribers, id)
	}
}

// Subscribe registers a consumer and returns its event channel. An empty
// category receives every event.
func (h *Hub) Subscribe(id, category string) <-chan models.AlertEvent {
	sub := &Subscriber{
		ID:        id,
		Category:  category,
		Channel:   make(chan models.AlertEvent, h.config.SubscriberBufferSize),
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	h.subscribers[id] = sub
	h.mu.Unlock()

	return sub.Channel
}

// Unsubscribe removes a consumer and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[id]; ok {
		close(sub.Channel)
		delete(h.subscribers, id)
	}
}

// Publish queues an event for distribution. A full internal buffer drops
// the event.
func (h *Hub) Publish(event models.AlertEvent) {
	select {
	case h.eventCh <- event:
	default:
		h.metricsMu.Lock()
		h.eventsDropped++
		h.metricsMu.Unlock()
	}
}

// broadcast delivers one event to every matching subscriber. Sends are
// non-blocking so one slow consumer cannot stall the rest.
func (h *Hub) broadcast(event models.AlertEvent) {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if sub.Category != "" && sub.Category != string(event.Category) {
			continue
		}
		select {
		case sub.Channel <- event:
			h.metricsMu.Lock()
			h.eventsSent++
			h.metricsMu.Unlock()
		default:
			sub.DroppedCount++
			h.metricsMu.Lock()
			h.eventsDropped++
			h.metricsMu.Unlock()
		}
	}
}

// SubscriberCount returns the number of registered consumers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// IsStarted reports whether the distribution loop is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// Metrics returns cumulative hub counters.
func (h *Hub) Metrics() HubMetrics {
	subscribers := h.SubscriberCount()
	h.metricsMu.RLock()
	defer h.metricsMu.RUnlock()
	return HubMetrics{
		EventsReceived: h.eventsReceived,
		EventsSent:     h.eventsSent,
		EventsDropped:  h.eventsDropped,
		Subscribers:    subscribers,
	}
}

// HubMetrics holds cumulative hub counters.
type HubMetrics struct {
	EventsReceived uint64 `json:"events_received"`
	EventsSent     uint64 `json:"events_sent"`
	EventsDropped  uint64 `json:"events_dropped"`
	Subscribers    int    `json:"subscribers"`
}
