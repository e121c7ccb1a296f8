package domain

import (
	"encoding/json"
	"time"
)

// Event channels published on the SignalBus and relayed to WebSocket clients.
const (
	ChannelMarketCreated = "market.created"
	ChannelMarketUpdated = "market.updated"
	ChannelBetPlaced     = "bet.placed"
	ChannelBetSettled    = "bet.settled"

	// StreamEvents is the durable stream every event is also appended to.
	StreamEvents = "events"
)

// Event is the envelope published for every market or bet change.
type Event struct {
	Type      string          `json:"type"`
	MarketID  string          `json:"marketId,omitempty"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent marshals data into an envelope for channel.
func NewEvent(channel, marketID string, data any, now time.Time) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: channel, MarketID: marketID, Data: raw, Timestamp: now.UTC()}, nil
}
