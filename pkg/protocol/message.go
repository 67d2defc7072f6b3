// Package protocol defines the WebSocket message types exchanged between the
// sensor bridge, the game server and display clients.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Sensor → Server messages
	TypeFrame MessageType = "frame" // Skeletal frame

	// Client → Server messages
	TypeControl MessageType = "control" // Session control

	// Server → Client messages
	TypeStatus        MessageType = "status"
	TypeLight         MessageType = "light"
	TypeMovement      MessageType = "movement"
	TypePenalty       MessageType = "penalty"
	TypeReturnToStart MessageType = "return_to_start"
	TypeRecovered     MessageType = "recovered"
	TypeProgress      MessageType = "progress"
	TypeCountdown     MessageType = "countdown"
	TypeAdvice        MessageType = "advice"
	TypeSession       MessageType = "session"
	TypeSummary       MessageType = "summary"
	TypeHold          MessageType = "hold"

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"`   // Unix milliseconds
	Tick      uint64          `json:"tick,omitempty"` // Engine tick for game events
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// Control actions.
const (
	ActionStart = "start"
	ActionStop  = "stop"
	ActionReset = "reset"
	ActionHold  = "hold"
)

// ControlData asks the server to change the session state
type ControlData struct {
	Action string `json:"action"`
	// On applies to ActionHold.
	On bool `json:"on,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
