package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-redlight/pkg/classify"
	"github.com/teslashibe/go-redlight/pkg/difficulty"
	"github.com/teslashibe/go-redlight/pkg/gamemode"
	"github.com/teslashibe/go-redlight/pkg/interval"
	"github.com/teslashibe/go-redlight/pkg/light"
	"github.com/teslashibe/go-redlight/pkg/motion"
	"github.com/teslashibe/go-redlight/pkg/penalty"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

// ErrInvalidConfig is wrapped by every ConfigError.
var ErrInvalidConfig = errors.New("game: invalid config")

// ConfigError reports the configuration field that failed validation.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("game: invalid %s: %v", e.Field, e.Err)
}

// Unwrap exposes both ErrInvalidConfig and the component's own error.
func (e *ConfigError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.Err}
}

func invalid(field string, err error) error {
	return &ConfigError{Field: field, Err: err}
}

// DefaultSessionDurations are the selectable stationary session lengths.
var DefaultSessionDurations = []time.Duration{
	60 * time.Second,
	120 * time.Second,
	180 * time.Second,
	240 * time.Second,
	300 * time.Second,
}

// Config holds everything needed to build an Engine.
type Config struct {
	// SessionID identifies the session. A random one is generated when empty.
	SessionID string `yaml:"session_id,omitempty" json:"session_id,omitempty"`

	// TickRate is the fixed simulation step.
	TickRate time.Duration `yaml:"tick_rate" json:"tick_rate"`
	// FrameRate is the display refresh used by the Runner.
	FrameRate time.Duration `yaml:"frame_rate" json:"frame_rate"`
	// StaleFrame is how long the Runner reuses the last sensor frame
	// before treating the sensor as absent.
	StaleFrame time.Duration `yaml:"stale_frame" json:"stale_frame"`

	Difficulty difficulty.Level `yaml:"difficulty" json:"difficulty"`
	Profiles   difficulty.Table `yaml:"profiles,omitempty" json:"profiles,omitempty"`

	Interval interval.Method `yaml:"interval" json:"interval"`
	// Seed fixes the dwell sequence. Zero derives it from SessionID.
	Seed uint64 `yaml:"seed" json:"seed"`

	Light     light.Config       `yaml:"light" json:"light"`
	Motion    motion.Config      `yaml:"motion" json:"motion"`
	Classify  classify.Config    `yaml:"classify" json:"classify"`
	Penalty   penalty.Config     `yaml:"penalty" json:"penalty"`
	GameMode  gamemode.Config    `yaml:"game_mode" json:"game_mode"`
	Placement skeleton.Placement `yaml:"placement" json:"placement"`

	// Countdown runs with the light OFF before the cycle starts and before a
	// race resumes after a return to the start line.
	Countdown time.Duration `yaml:"countdown" json:"countdown"`

	SessionDurations     []time.Duration `yaml:"session_durations" json:"session_durations"`
	SessionDurationIndex int             `yaml:"session_duration_index" json:"session_duration_index"`
}

// DefaultConfig returns a stationary, medium difficulty session.
func DefaultConfig() Config {
	return Config{
		TickRate:             20 * time.Millisecond,
		FrameRate:            time.Second / 60,
		StaleFrame:           500 * time.Millisecond,
		Difficulty:           difficulty.Medium,
		Profiles:             difficulty.DefaultTable(),
		Interval:             interval.Normal,
		Light:                light.DefaultConfig(),
		Motion:               motion.DefaultConfig(),
		Classify:             classify.DefaultConfig(),
		Penalty:              penalty.DefaultConfig(),
		GameMode:             gamemode.DefaultConfig(),
		Placement:            skeleton.DefaultPlacement(),
		Countdown:            3 * time.Second,
		SessionDurations:     append([]time.Duration(nil), DefaultSessionDurations...),
		SessionDurationIndex: 0,
	}
}

// RaceConfig returns the default config switched to race mode.
func RaceConfig() Config {
	cfg := DefaultConfig()
	cfg.GameMode.Mode = gamemode.Race
	return cfg
}

// SessionDuration returns the selected stationary session length, or zero
// when the session is untimed.
func (c Config) SessionDuration() time.Duration {
	if len(c.SessionDurations) == 0 {
		return 0
	}
	return c.SessionDurations[c.SessionDurationIndex]
}

// Profile returns the difficulty profile for the configured level and
// joint class.
func (c Config) Profile() (difficulty.Profile, error) {
	return c.Profiles.Lookup(c.Difficulty, c.Motion.Class)
}

// Validate checks every component configuration. Errors are *ConfigError.
func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return invalid("tick_rate", fmt.Errorf("must be positive, got %v", c.TickRate))
	}
	if c.FrameRate < 0 {
		return invalid("frame_rate", fmt.Errorf("negative: %v", c.FrameRate))
	}
	if err := c.Profiles.Validate(); err != nil {
		return invalid("profiles", err)
	}
	profile, err := c.Profile()
	if err != nil {
		return invalid("difficulty", err)
	}
	lc := c.Light
	lc.DetectionDelay = profile.DetectionDelay
	if err := lc.Validate(); err != nil {
		return invalid("light", err)
	}
	if err := c.Motion.Validate(); err != nil {
		return invalid("motion", err)
	}
	if err := c.Classify.Validate(); err != nil {
		return invalid("classify", err)
	}
	if err := c.Penalty.Validate(); err != nil {
		return invalid("penalty", err)
	}
	if err := c.GameMode.Validate(); err != nil {
		return invalid("game_mode", err)
	}
	if c.Countdown < 0 {
		return invalid("countdown", fmt.Errorf("negative: %v", c.Countdown))
	}
	for _, d := range c.SessionDurations {
		if d <= 0 {
			return invalid("session_durations", fmt.Errorf("non-positive duration %v", d))
		}
	}
	if len(c.SessionDurations) > 0 && (c.SessionDurationIndex < 0 || c.SessionDurationIndex >= len(c.SessionDurations)) {
		return invalid("session_duration_index", fmt.Errorf("%d out of range [0, %d)", c.SessionDurationIndex, len(c.SessionDurations)))
	}
	return nil
}
