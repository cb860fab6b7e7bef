package feed

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/beacon/internal/cache"
	"github.com/aristath/beacon/internal/events"
)

func testClient(t *testing.T) (*Client, *cache.Repository, *events.Bus) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	candles := cache.NewRepository(db)
	require.NoError(t, candles.InitSchema())

	log := zerolog.Nop()
	bus := events.NewBus(log)
	return NewClient("wss://example.invalid/ws", candles, bus, log), candles, bus
}

func TestHandleMessage_QuoteUpdatesCacheAndPublishes(t *testing.T) {
	c, candles, bus := testClient(t)

	received := make(chan *events.Event, 1)
	bus.Subscribe(events.QuoteReceived, func(event *events.Event) {
		received <- event
	})

	err := c.handleMessage([]byte(`["quotes", {"c": "AAPL", "ltp": 190.25, "vol": 1200}]`))
	require.NoError(t, err)

	closes, err := candles.GetCandles("AAPL")
	require.NoError(t, err)
	require.Len(t, closes, 1)
	assert.Equal(t, 190.25, closes[0])

	select {
	case ev := <-received:
		assert.Equal(t, "AAPL", ev.Data["symbol"])
		assert.Equal(t, 190.25, ev.Data["price"])
	case <-time.After(time.Second):
		t.Fatal("expected a quote event")
	}
}

func TestHandleMessage_RepeatedQuotesBuildSeries(t *testing.T) {
	c, candles, _ := testClient(t)

	for _, frame := range []string{
		`["quotes", {"c": "NVDA", "ltp": 120.0}]`,
		`["quotes", {"c": "NVDA", "ltp": 121.5}]`,
		`["quotes", {"c": "NVDA", "ltp": 119.8}]`,
	} {
		require.NoError(t, c.handleMessage([]byte(frame)))
	}

	closes, err := candles.GetCandles("NVDA")
	require.NoError(t, err)
	assert.Equal(t, []float64{120.0, 121.5, 119.8}, closes)
}

func TestHandleMessage_NewsIsClassifiedBeforePublish(t *testing.T) {
	c, _, bus := testClient(t)

	received := make(chan *events.Event, 1)
	bus.Subscribe(events.NewsReceived, func(event *events.Event) {
		received <- event
	})

	err := c.handleMessage([]byte(`["news", {"title": "[Breaking] $NVDA rallies after earnings beat the estimates - Reuters"}]`))
	require.NoError(t, err)

	select {
	case ev := <-received:
		assert.Equal(t, "en", ev.Data["language"])
		tickers, ok := ev.Data["tickers"].([]interface{})
		require.True(t, ok)
		assert.Contains(t, tickers, "NVDA")
	case <-time.After(time.Second):
		t.Fatal("expected a news event")
	}
}

func TestHandleMessage_MalformedFrames(t *testing.T) {
	c, _, _ := testClient(t)

	tests := []struct {
		name  string
		frame string
	}{
		{"not an array", `{"c": "AAPL"}`},
		{"too short", `["quotes"]`},
		{"quote without symbol", `["quotes", {"ltp": 10}]`},
		{"news without title", `["news", {"source": "x"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, c.handleMessage([]byte(tt.frame)))
		})
	}
}

func TestHandleMessage_UnknownChannelIgnored(t *testing.T) {
	c, _, _ := testClient(t)
	assert.NoError(t, c.handleMessage([]byte(`["heartbeat", {}]`)))
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Second, calculateBackoff(1))
	assert.Equal(t, 10*time.Second, calculateBackoff(2))
	assert.Equal(t, 5*time.Minute, calculateBackoff(20))
}
