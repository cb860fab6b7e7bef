package cache

import (
	"encoding/json"
	"fmt"
)

// Typed helpers for the candles table: close-price series keyed by symbol.
// The analysis pipeline reads these; the feed client writes them.

// StoreCandles caches a close-price series for a symbol.
func (r *Repository) StoreCandles(symbol string, closes []float64) error {
	return r.Store("candles", symbol, closes, TTLCandles)
}

// GetCandles returns the cached close-price series for a symbol, fresh or
// stale. Returns nil, nil when the symbol has never been cached.
func (r *Repository) GetCandles(symbol string) ([]float64, error) {
	raw, err := r.Get("candles", symbol)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var closes []float64
	if err := json.Unmarshal(raw, &closes); err != nil {
		return nil, fmt.Errorf("failed to decode candles for %s: %w", symbol, err)
	}
	return closes, nil
}

// CachedSymbols returns every symbol with a cached candle series.
func (r *Repository) CachedSymbols() ([]string, error) {
	return r.Keys("candles")
}

// AppendClose appends one close to a symbol's cached series, trimming it to
// maxLen. Used by the feed client on every quote.
func (r *Repository) AppendClose(symbol string, price float64, maxLen int) error {
	closes, err := r.GetCandles(symbol)
	if err != nil {
		return err
	}

	closes = append(closes, price)
	if maxLen > 0 && len(closes) > maxLen {
		closes = closes[len(closes)-maxLen:]
	}

	return r.StoreCandles(symbol, closes)
}
