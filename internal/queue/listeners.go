package queue

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/beacon/internal/events"
)

// RegisterListeners registers event listeners that enqueue jobs
func RegisterListeners(bus *events.Bus, manager *Manager, log zerolog.Logger) {
	log = log.With().Str("component", "event_listeners").Logger()

	// QuoteReceived -> signal_scan (LOW priority). One pending scan per symbol
	// is enough; the deterministic ID makes duplicate enqueues fail quietly.
	bus.Subscribe(events.QuoteReceived, func(event *events.Event) {
		symbol, _ := event.Data["symbol"].(string)
		if symbol == "" {
			return
		}
		payload, err := msgpack.Marshal(event.Data)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("Failed to encode scan payload")
			return
		}
		job := &Job{
			ID:          fmt.Sprintf("%s-%s", JobTypeSignalScan, symbol),
			Type:        JobTypeSignalScan,
			Priority:    PriorityLow,
			Payload:     payload,
			CreatedAt:   event.Timestamp,
			AvailableAt: event.Timestamp,
			Retries:     0,
			MaxRetries:  3,
		}
		if err := manager.Enqueue(job); err != nil {
			log.Debug().
				Err(err).
				Str("event_type", string(events.QuoteReceived)).
				Str("job_id", job.ID).
				Msg("Scan already pending for symbol")
		}
	})

	// FeedDisconnected -> feed_resync (HIGH priority)
	bus.Subscribe(events.FeedDisconnected, func(event *events.Event) {
		payload, err := msgpack.Marshal(event.Data)
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode resync payload")
			return
		}
		job := &Job{
			ID:          fmt.Sprintf("%s-%d", JobTypeFeedResync, event.Timestamp.UnixNano()),
			Type:        JobTypeFeedResync,
			Priority:    PriorityHigh,
			Payload:     payload,
			CreatedAt:   event.Timestamp,
			AvailableAt: event.Timestamp,
			Retries:     0,
			MaxRetries:  3,
		}
		if err := manager.Enqueue(job); err != nil {
			log.Error().
				Err(err).
				Str("event_type", string(events.FeedDisconnected)).
				Str("job_id", job.ID).
				Msg("Failed to enqueue job from event")
		}
	})
}
