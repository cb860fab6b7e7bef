package events

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []*Event
	bus.Subscribe(QuoteReceived, func(event *Event) {
		received = append(received, event)
	})

	bus.Publish(QuoteReceived, map[string]interface{}{"symbol": "AAPL", "price": 191.5})

	require.Len(t, received, 1)
	assert.Equal(t, QuoteReceived, received[0].Type)
	assert.Equal(t, "AAPL", received[0].Data["symbol"])
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestBus_OnlyMatchingTypeDelivered(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var quotes, news int
	bus.Subscribe(QuoteReceived, func(*Event) { quotes++ })
	bus.Subscribe(NewsReceived, func(*Event) { news++ })

	bus.Publish(QuoteReceived, nil)
	bus.Publish(QuoteReceived, nil)
	bus.Publish(NewsReceived, nil)

	assert.Equal(t, 2, quotes)
	assert.Equal(t, 1, news)
}

func TestBus_MultipleSubscribersInOrder(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var order []string
	bus.Subscribe(SignalGenerated, func(*Event) { order = append(order, "first") })
	bus.Subscribe(SignalGenerated, func(*Event) { order = append(order, "second") })

	bus.Publish(SignalGenerated, nil)

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, 2, bus.SubscriberCount(SignalGenerated))
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var delivered bool
	bus.Subscribe(NewsReceived, func(*Event) { panic("bad subscriber") })
	bus.Subscribe(NewsReceived, func(*Event) { delivered = true })

	assert.NotPanics(t, func() {
		bus.Publish(NewsReceived, nil)
	})
	assert.True(t, delivered)
}

func TestBus_PublishData(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received *Event
	bus.Subscribe(SignalGenerated, func(event *Event) { received = event })

	bus.PublishData(&SignalGeneratedData{
		Symbol:    "MSFT",
		Direction: "buy",
		Strength:  0.8,
	})

	require.NotNil(t, received)
	assert.Equal(t, "MSFT", received.Data["symbol"])
	assert.Equal(t, "buy", received.Data["direction"])
	assert.InDelta(t, 0.8, received.Data["strength"].(float64), 1e-9)
}

func TestEventData_ToMapUsesJSONTags(t *testing.T) {
	data := &NewsReceivedData{
		Title:    "Fed holds rates",
		Language: "en",
		Topics:   []string{"macro"},
	}

	m := data.ToMap()
	assert.Equal(t, "Fed holds rates", m["title"])
	assert.Equal(t, "en", m["language"])
}
