// Package feed is the websocket market-data client. It consumes quote and
// news frames, keeps the candle cache current and republishes everything on
// the event bus.
package feed

// Wire protocol: every frame is a two-element JSON array, ["channel", data].

// WSQuote is the payload of a "quotes" frame.
type WSQuote struct {
	Symbol string  `json:"c"`
	Price  float64 `json:"ltp"`
	Volume float64 `json:"vol,omitempty"`
}

// WSNews is the payload of a "news" frame.
type WSNews struct {
	Title  string `json:"title"`
	Source string `json:"source,omitempty"`
	URL    string `json:"url,omitempty"`
}
