// Package signals turns indicator snapshots into stored, queryable trading
// signals.
package signals

import "time"

// Direction is the side a signal recommends.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Signal is one generated trading signal.
type Signal struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`
	// Strength is a 0..1 confidence from the rule set.
	Strength  float64   `json:"strength"`
	Reason    string    `json:"reason"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}
