// Package events provides the in-process publish/subscribe bus used for
// cross-component notifications (feed updates, analysis completions, signal
// generation). Delivery is synchronous and in subscription order; handlers
// that need to do real work should enqueue a job instead of blocking the
// publisher.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a kind of event on the bus
type EventType string

const (
	// QuoteReceived fires when the feed delivers a fresh quote.
	QuoteReceived EventType = "QUOTE_RECEIVED"
	// NewsReceived fires when the feed delivers a news item.
	NewsReceived EventType = "NEWS_RECEIVED"
	// SignalGenerated fires when a trading signal has been stored.
	SignalGenerated EventType = "SIGNAL_GENERATED"
	// AnalysisCompleted fires when a pooled analysis task finished.
	AnalysisCompleted EventType = "ANALYSIS_COMPLETED"
	// FeedConnected fires when the market/news feed (re)connects.
	FeedConnected EventType = "FEED_CONNECTED"
	// FeedDisconnected fires when the feed connection drops.
	FeedDisconnected EventType = "FEED_DISCONNECTED"
	// ErrorOccurred fires for component-level errors worth broadcasting.
	ErrorOccurred EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Handler is a subscriber callback. It runs on the publisher's goroutine.
type Handler func(event *Event)

// Bus routes published events to subscribers by event type
type Bus struct {
	subscribers map[EventType][]Handler
	mu          sync.RWMutex
	log         zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Handler),
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish delivers an event to every subscriber of its type. A panicking
// handler is logged and skipped so one bad subscriber cannot take down the
// publisher.
func (b *Bus) Publish(eventType EventType, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.subscribers[eventType]))
	copy(handlers, b.subscribers[eventType])
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.deliver(event, handler)
	}
}

// PublishData publishes a typed event payload (see event_data.go).
func (b *Bus) PublishData(data EventData) {
	b.Publish(data.EventType(), data.ToMap())
}

func (b *Bus) deliver(event *Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event_type", string(event.Type)).
				Interface("panic", r).
				Msg("Event handler panicked")
		}
	}()

	handler(event)
}

// SubscriberCount returns the number of handlers registered for a type.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subscribers[eventType])
}
