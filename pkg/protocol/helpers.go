package protocol

import (
	"github.com/teslashibe/go-redlight/pkg/game"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewFrameMessage creates a frame message from a tracker frame
func NewFrameMessage(f *skeleton.Frame, frameID uint64) (*Message, error) {
	return NewMessage(TypeFrame, NewFrameData(f, frameID))
}

// NewControlMessage creates a session control message
func NewControlMessage(action string, on bool) (*Message, error) {
	return NewMessage(TypeControl, ControlData{Action: action, On: on})
}

// NewStatusMessage creates a status message from an engine snapshot
func NewStatusMessage(snap game.Snapshot) (*Message, error) {
	msg, err := NewMessage(TypeStatus, snap)
	if err != nil {
		return nil, err
	}
	msg.Tick = snap.Tick
	return msg, nil
}

// NewEventMessage relays an engine event. The event type doubles as the
// message type.
func NewEventMessage(ev game.Event) (*Message, error) {
	msg, err := NewMessage(MessageType(ev.Type), ev.Data)
	if err != nil {
		return nil, err
	}
	msg.Tick = ev.Tick
	return msg, nil
}

// NewPingMessage creates a ping message
func NewPingMessage(id string, ts int64) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: ts,
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFrame extracts and converts a tracker frame from a message
func (m *Message) GetFrame() (*skeleton.Frame, error) {
	data, err := m.GetFrameData()
	if err != nil {
		return nil, err
	}
	return data.ToFrame()
}

// GetControlData extracts control data from a message
func (m *Message) GetControlData() (*ControlData, error) {
	var data ControlData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
