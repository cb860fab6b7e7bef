package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/beacon/internal/cache"
	"github.com/aristath/beacon/internal/events"
	"github.com/aristath/beacon/internal/news"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	baseReconnectDelay = 5 * time.Second
	maxReconnectDelay  = 5 * time.Minute

	// Candle series length kept per symbol.
	maxCandles = 500
)

// Client maintains the websocket connection to the market-data feed.
type Client struct {
	url        string
	httpClient *http.Client
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex

	candles *cache.Repository
	bus     *events.Bus
	log     zerolog.Logger

	connected    bool
	reconnecting bool
	stopChan     chan struct{}
	stopped      bool
}

// createHTTP1Client creates an HTTP client that forces HTTP/1.1.
// Cloudflare negotiates HTTP/2 via TLS ALPN, but the websocket upgrade
// handshake requires HTTP/1.1.
func createHTTP1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig: &tls.Config{
				NextProtos: []string{"http/1.1"},
			},
			ForceAttemptHTTP2: false,
		},
	}
}

func NewClient(url string, candles *cache.Repository, bus *events.Bus, log zerolog.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: createHTTP1Client(),
		candles:    candles,
		bus:        bus,
		log:        log.With().Str("component", "feed").Logger(),
		stopChan:   make(chan struct{}),
	}
}

// Start establishes the connection and launches the read loop. A failed
// initial connection is not fatal: the reconnect loop keeps trying in the
// background.
func (c *Client) Start() error {
	c.log.Info().Str("url", c.url).Msg("Starting feed client")

	if err := c.Connect(); err != nil {
		c.log.Warn().Err(err).Msg("Initial feed connection failed, will retry in background")
		go c.reconnectLoop()
		return err
	}

	c.mu.RLock()
	ctx := c.connCtx
	c.mu.RUnlock()
	go c.readMessages(ctx)
	return nil
}

// Stop shuts the connection down and disables reconnection.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	close(c.stopChan)
	return c.Disconnect()
}

// Connect dials the feed and subscribes to the quotes and news channels.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		HTTPClient: c.httpClient,
	})
	if err != nil {
		return fmt.Errorf("failed to dial feed: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	c.conn = conn
	c.connCtx = connCtx
	c.cancelFunc = connCancel
	c.connected = true

	if err := c.subscribe(connCtx); err != nil {
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		c.conn = nil
		c.connCtx = nil
		c.cancelFunc = nil
		c.connected = false
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	if c.bus != nil {
		c.bus.Publish(events.FeedConnected, map[string]interface{}{"url": c.url})
	}
	c.log.Info().Msg("Connected to feed")
	return nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	if c.cancelFunc != nil {
		c.cancelFunc()
		c.cancelFunc = nil
	}

	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.conn = nil
	c.connCtx = nil
	c.connected = false

	if err != nil {
		return fmt.Errorf("error closing feed connection: %w", err)
	}
	return nil
}

// IsConnected returns current connection status.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) subscribe(ctx context.Context) error {
	data, err := json.Marshal([]string{"quotes", "news"})
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send subscription: %w", err)
	}
	return nil
}

func (c *Client) readMessages(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		stopped := c.stopped
		c.mu.Unlock()

		if !stopped {
			if c.bus != nil {
				c.bus.Publish(events.FeedDisconnected, map[string]interface{}{"url": c.url})
			}
			go c.reconnectLoop()
		}
	}()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				c.log.Info().Int("status", int(closeStatus)).Msg("Feed closed normally")
			} else if ctx.Err() != nil {
				c.log.Debug().Msg("Read cancelled by context")
			} else {
				c.log.Error().Err(err).Msg("Unexpected feed read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		if err := c.handleMessage(message); err != nil {
			c.log.Error().Err(err).Str("message", string(message)).Msg("Failed to handle feed message")
		}
	}
}

// handleMessage parses one ["channel", data] frame and routes it.
func (c *Client) handleMessage(message []byte) error {
	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		return fmt.Errorf("failed to parse frame: %w", err)
	}
	if len(frame) < 2 {
		return fmt.Errorf("frame too short: expected 2 elements, got %d", len(frame))
	}

	var channel string
	if err := json.Unmarshal(frame[0], &channel); err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}

	switch channel {
	case "quotes":
		var quote WSQuote
		if err := json.Unmarshal(frame[1], &quote); err != nil {
			return fmt.Errorf("failed to parse quote: %w", err)
		}
		return c.handleQuote(quote)
	case "news":
		var item WSNews
		if err := json.Unmarshal(frame[1], &item); err != nil {
			return fmt.Errorf("failed to parse news item: %w", err)
		}
		return c.handleNews(item)
	default:
		c.log.Debug().Str("channel", channel).Msg("Ignoring unknown channel")
		return nil
	}
}

func (c *Client) handleQuote(quote WSQuote) error {
	if quote.Symbol == "" {
		return fmt.Errorf("quote without symbol")
	}

	if c.candles != nil {
		if err := c.candles.AppendClose(quote.Symbol, quote.Price, maxCandles); err != nil {
			return fmt.Errorf("failed to cache quote for %s: %w", quote.Symbol, err)
		}
	}

	if c.bus != nil {
		c.bus.PublishData(&events.QuoteReceivedData{
			Symbol: quote.Symbol,
			Price:  quote.Price,
			Volume: quote.Volume,
		})
	}
	return nil
}

func (c *Client) handleNews(item WSNews) error {
	if item.Title == "" {
		return fmt.Errorf("news item without title")
	}

	classified := news.Classify(item.Title)
	if c.bus != nil {
		c.bus.PublishData(&events.NewsReceivedData{
			Title:    classified.Title,
			Language: classified.Language,
			Topics:   classified.Topics,
			Tickers:  classified.Tickers,
		})
	}
	return nil
}

// reconnectLoop retries the connection with exponential backoff until it
// succeeds or the client is stopped.
func (c *Client) reconnectLoop() {
	c.mu.Lock()
	if c.reconnecting || c.stopped {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		attempt++
		delay := calculateBackoff(attempt)
		c.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("Reconnecting to feed")

		select {
		case <-time.After(delay):
		case <-c.stopChan:
			return
		}

		if err := c.Connect(); err != nil {
			c.log.Error().Err(err).Int("attempt", attempt).Msg("Reconnection failed")
			continue
		}

		c.log.Info().Int("attempt", attempt).Msg("Reconnected to feed")
		c.mu.RLock()
		ctx := c.connCtx
		c.mu.RUnlock()
		go c.readMessages(ctx)
		return
	}
}

func calculateBackoff(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	return time.Duration(delay)
}
