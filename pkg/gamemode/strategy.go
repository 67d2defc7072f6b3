// Package gamemode turns light state and classified motion into progress.
//
// Race tracks the player's distance to the sensor and wins when it drops
// below a target. Stationary converts each classified step into forward
// speed that decays when the player stops. The mode is chosen once per
// session.
package gamemode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-redlight/pkg/classify"
	"github.com/teslashibe/go-redlight/pkg/light"
)

// ErrInvalidConfig is returned by New for unusable settings.
var ErrInvalidConfig = errors.New("gamemode: invalid config")

// Mode is the game variant.
type Mode int

const (
	Race Mode = iota
	Stationary
)

func (m Mode) String() string {
	switch m {
	case Race:
		return "race"
	case Stationary:
		return "stationary"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses "race" or "stationary".
func (m *Mode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "race":
		*m = Race
	case "stationary":
		*m = Stationary
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, text)
	}
	return nil
}

// RaceConfig tunes the race strategy. Distances are metres.
type RaceConfig struct {
	// WinningDistance ends the session once the best distance drops below it.
	WinningDistance float64 `yaml:"winning_distance" json:"winning_distance"`
	// PenaltyLeeway is how far past the last green best a player may drift
	// during red before it counts.
	PenaltyLeeway float64 `yaml:"penalty_leeway" json:"penalty_leeway"`
	// ReturnLeeway is the band around the start distance that counts as
	// back at the start.
	ReturnLeeway float64 `yaml:"return_leeway" json:"return_leeway"`
	// DisplaySmoothing is the per-second rate the shown distance closes on
	// the best distance.
	DisplaySmoothing float64 `yaml:"display_smoothing" json:"display_smoothing"`
	// PenalizeDuringOff flags advances made while the light is off.
	PenalizeDuringOff bool `yaml:"penalize_during_off" json:"penalize_during_off"`
}

// StationaryConfig tunes the stationary strategy.
type StationaryConfig struct {
	// BaseSpeed is the forward speed in m/s at a modifier of 1.
	BaseSpeed float64 `yaml:"base_speed" json:"base_speed"`
	// PointsPerMovement is awarded each tick of active motion, scaled by
	// the speed modifier.
	PointsPerMovement float64 `yaml:"points_per_movement" json:"points_per_movement"`
	// SmoothingTime is how long speed takes to decay to zero.
	SmoothingTime time.Duration `yaml:"smoothing_time" json:"smoothing_time"`
}

// Config selects and tunes a strategy.
type Config struct {
	Mode Mode `yaml:"mode" json:"mode"`
	// AllowNegativeScore lets penalties push points below zero.
	AllowNegativeScore bool `yaml:"allow_negative_score" json:"allow_negative_score"`
	// PointsPerMeter converts points to distance in summaries.
	PointsPerMeter float64 `yaml:"points_per_meter" json:"points_per_meter"`

	Race       RaceConfig       `yaml:"race" json:"race"`
	Stationary StationaryConfig `yaml:"stationary" json:"stationary"`
}

// DefaultConfig returns stationary mode with negative scores allowed.
func DefaultConfig() Config {
	return Config{
		Mode:               Stationary,
		AllowNegativeScore: true,
		PointsPerMeter:     100,
		Race: RaceConfig{
			WinningDistance:  0.1,
			PenaltyLeeway:    0.05,
			ReturnLeeway:     0.15,
			DisplaySmoothing: 5,
		},
		Stationary: StationaryConfig{
			BaseSpeed:         1,
			PointsPerMovement: 10,
			SmoothingTime:     500 * time.Millisecond,
		},
	}
}

// Validate rejects unknown modes and negative settings.
func (c Config) Validate() error {
	if c.Mode != Race && c.Mode != Stationary {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, int(c.Mode))
	}
	if c.PointsPerMeter <= 0 {
		return fmt.Errorf("%w: points per meter must be positive", ErrInvalidConfig)
	}
	r := c.Race
	if r.WinningDistance < 0 || r.PenaltyLeeway < 0 || r.ReturnLeeway < 0 || r.DisplaySmoothing < 0 {
		return fmt.Errorf("%w: negative race setting", ErrInvalidConfig)
	}
	s := c.Stationary
	if s.BaseSpeed < 0 || s.PointsPerMovement < 0 || s.SmoothingTime < 0 {
		return fmt.Errorf("%w: negative stationary setting", ErrInvalidConfig)
	}
	return nil
}

// Input is everything a strategy sees on one tick. Light and Armed are the
// values captured at the start of the tick.
type Input struct {
	Tick  uint64
	Light light.State
	Armed bool
	// Distance is the selected body's distance to the sensor, if any.
	Distance    float64
	HasDistance bool
	// Guarded is set while a penalty is in flight.
	Guarded bool
	// Motion is set when any lift was detected this tick, debounced or not.
	Motion bool
	// Results are the lifts accepted by the classifier this tick.
	Results []classify.Result
	// Modifier is the classifier's speed modifier on this tick.
	Modifier float64
}

// Outcome is what a tick produced.
type Outcome struct {
	// Moved is set when progress advanced.
	Moved bool
	// Violation is set when the tick's motion breaks the light.
	Violation bool
	// Won is set on the tick the win condition is first met.
	Won bool
	// Returned is set while the player is back at the start.
	Returned bool
}

// Score is the mode's score state.
type Score struct {
	Points int `json:"points"`
	Failed int `json:"failed"`
	// Elapsed is time spent under a green light.
	Elapsed time.Duration `json:"elapsed"`
	// Distance is metres travelled.
	Distance float64 `json:"distance"`
	// Lost is points removed by penalties.
	Lost int `json:"lost"`
}

// Progress is the displayable state.
type Progress struct {
	Mode Mode `json:"mode"`
	// Value is the smoothed distance to sensor (race) or displacement
	// (stationary).
	Value float64 `json:"value"`
	Best  float64 `json:"best"`
	Start float64 `json:"start"`
	Speed float64 `json:"speed"`
}

// Strategy is implemented by each game mode.
type Strategy interface {
	Mode() Mode
	// Update runs on the fixed tick.
	Update(in Input) Outcome
	// Frame runs on the variable-rate frame tick and only moves display state.
	Frame(dt time.Duration)
	ApplyPenalty(points int)
	// Restart returns the player to the start line after a recovery.
	Restart()
	Score() Score
	Progress() Progress
	Reset()
}

// New builds the strategy for cfg.Mode. tick is the fixed tick length.
func New(cfg Config, tick time.Duration) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case Race:
		return NewRace(cfg, tick), nil
	default:
		return NewStationary(cfg, tick), nil
	}
}

// ledger keeps points and the penalty policy shared by both modes.
type ledger struct {
	points        float64
	lost          int
	failed        int
	allowNegative bool
}

func (l *ledger) earn(p float64) {
	l.points += p
}

func (l *ledger) penalize(p int) {
	l.failed++
	l.lost += p
	l.points -= float64(p)
	if !l.allowNegative && l.points < 0 {
		l.points = 0
	}
}

func (l *ledger) total() int {
	return int(l.points)
}

func (l *ledger) reset() {
	l.points, l.lost, l.failed = 0, 0, 0
}
