package events

import "encoding/json"

// EventData is the interface all typed event payloads implement. ToMap
// produces the map form carried on the wire-agnostic Event.
type EventData interface {
	EventType() EventType
	ToMap() map[string]interface{}
}

// QuoteReceivedData contains data for QuoteReceived events
type QuoteReceivedData struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Volume float64 `json:"volume,omitempty"`
}

// EventType returns the event type for QuoteReceivedData
func (d *QuoteReceivedData) EventType() EventType { return QuoteReceived }

// ToMap converts the payload to its map form
func (d *QuoteReceivedData) ToMap() map[string]interface{} { return toMap(d) }

// NewsReceivedData contains data for NewsReceived events
type NewsReceivedData struct {
	Title    string   `json:"title"`
	Language string   `json:"language,omitempty"`
	Topics   []string `json:"topics,omitempty"`
	Tickers  []string `json:"tickers,omitempty"`
}

// EventType returns the event type for NewsReceivedData
func (d *NewsReceivedData) EventType() EventType { return NewsReceived }

// ToMap converts the payload to its map form
func (d *NewsReceivedData) ToMap() map[string]interface{} { return toMap(d) }

// SignalGeneratedData contains data for SignalGenerated events
type SignalGeneratedData struct {
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"` // "buy" or "sell"
	Strength  float64 `json:"strength"`
	Source    string  `json:"source,omitempty"`
}

// EventType returns the event type for SignalGeneratedData
func (d *SignalGeneratedData) EventType() EventType { return SignalGenerated }

// ToMap converts the payload to its map form
func (d *SignalGeneratedData) ToMap() map[string]interface{} { return toMap(d) }

// AnalysisCompletedData contains data for AnalysisCompleted events
type AnalysisCompletedData struct {
	Symbol   string  `json:"symbol"`
	TaskType string  `json:"task_type"`
	Duration float64 `json:"duration_seconds,omitempty"`
}

// EventType returns the event type for AnalysisCompletedData
func (d *AnalysisCompletedData) EventType() EventType { return AnalysisCompleted }

// ToMap converts the payload to its map form
func (d *AnalysisCompletedData) ToMap() map[string]interface{} { return toMap(d) }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Component string `json:"component"`
	Error     string `json:"error"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }

// ToMap converts the payload to its map form
func (d *ErrorEventData) ToMap() map[string]interface{} { return toMap(d) }

// toMap converts a typed payload to map form via its JSON representation,
// so the map keys always match the JSON tags.
func toMap(data interface{}) map[string]interface{} {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
