package game

import (
	"time"

	"github.com/teslashibe/go-redlight/pkg/gamemode"
	"github.com/teslashibe/go-redlight/pkg/light"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

// EventType names an engine notification.
type EventType string

const (
	EventLight         EventType = "light"
	EventMovement      EventType = "movement"
	EventPenalty       EventType = "penalty"
	EventReturnToStart EventType = "return_to_start"
	EventRecovered     EventType = "recovered"
	EventProgress      EventType = "progress"
	EventCountdown     EventType = "countdown"
	EventAdvice        EventType = "advice"
	EventSession       EventType = "session"
	EventSummary       EventType = "summary"
	EventHold          EventType = "hold"
)

// Event is delivered synchronously to subscribers in registration order.
// Data holds one of the *Data types below, or a Summary.
type Event struct {
	Type EventType `json:"type"`
	Tick uint64    `json:"tick"`
	Data any       `json:"data,omitempty"`
}

// LightData accompanies EventLight.
type LightData struct {
	From  light.State `json:"from"`
	State light.State `json:"state"`
	Armed bool        `json:"armed"`
}

// MovementData accompanies EventMovement and drives the walk animation.
type MovementData struct {
	Joint    skeleton.JointType `json:"joint"`
	Height   float64            `json:"height"`
	Duration time.Duration      `json:"duration"`
	Modifier float64            `json:"modifier"`
}

// PenaltyData accompanies EventPenalty, EventReturnToStart and
// EventRecovered.
type PenaltyData struct {
	Points int `json:"points"`
	Failed int `json:"failed"`
	Score  int `json:"score"`
}

// ProgressData accompanies EventProgress.
type ProgressData struct {
	Progress gamemode.Progress `json:"progress"`
	Score    gamemode.Score    `json:"score"`
	Moved    bool              `json:"moved"`
}

// CountdownData accompanies EventCountdown. Remaining reaches zero when the
// light starts.
type CountdownData struct {
	Remaining int `json:"remaining"`
}

// AdviceData accompanies EventAdvice.
type AdviceData struct {
	Advice  skeleton.Advice `json:"code"`
	Message string          `json:"message"`
}

// SessionData accompanies EventSession.
type SessionData struct {
	ID     string       `json:"id"`
	State  SessionState `json:"state"`
	Reason string       `json:"reason,omitempty"`
}

// HoldData accompanies EventHold.
type HoldData struct {
	On bool `json:"on"`
}
