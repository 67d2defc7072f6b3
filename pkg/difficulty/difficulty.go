// Package difficulty holds the static threshold tables indexed by difficulty
// level and tracked joint class.
package difficulty

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

var (
	// ErrEmptyTable is returned when a table has no levels.
	ErrEmptyTable = errors.New("difficulty: empty table")
	// ErrInvalidProfile is returned for inverted or negative thresholds.
	ErrInvalidProfile = errors.New("difficulty: invalid profile")
	// ErrUnknownLevel is returned when a level is missing from the table.
	ErrUnknownLevel = errors.New("difficulty: unknown level")
)

// Level is the movement-tracking difficulty.
type Level int

const (
	Easy Level = iota
	Medium
	Hard
)

func (l Level) String() string {
	switch l {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses "easy", "medium" or "hard".
func (l *Level) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "easy":
		*l = Easy
	case "medium", "normal":
		*l = Medium
	case "hard":
		*l = Hard
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLevel, text)
	}
	return nil
}

// Profile is one row of the table.
type Profile struct {
	// MinLiftHeight is the smallest lift, in metres, that counts as a step.
	MinLiftHeight float64 `yaml:"min_lift_height" json:"min_lift_height"`
	// MaxLiftHeight caps the lift used for scaling.
	MaxLiftHeight float64 `yaml:"max_lift_height" json:"max_lift_height"`
	// DetectionDelay is how long after entering red before motion counts.
	DetectionDelay time.Duration `yaml:"detection_delay" json:"detection_delay"`
	// Debounce is the per-joint dead time after an accepted movement.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// Validate checks a single profile.
func (p Profile) Validate() error {
	if p.MinLiftHeight < 0 || p.MaxLiftHeight <= 0 {
		return fmt.Errorf("%w: lift heights must be positive (%v, %v)", ErrInvalidProfile, p.MinLiftHeight, p.MaxLiftHeight)
	}
	if p.MinLiftHeight > p.MaxLiftHeight {
		return fmt.Errorf("%w: min lift %v > max lift %v", ErrInvalidProfile, p.MinLiftHeight, p.MaxLiftHeight)
	}
	if p.DetectionDelay < 0 || p.Debounce < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalidProfile)
	}
	return nil
}

// Classes holds the per-joint-class profiles of one level.
type Classes struct {
	Ankle Profile `yaml:"ankle" json:"ankle"`
	Knee  Profile `yaml:"knee" json:"knee"`
}

// For returns the profile for class c.
func (c Classes) For(class skeleton.JointClass) Profile {
	if class == skeleton.Knee {
		return c.Knee
	}
	return c.Ankle
}

// Table maps a level to its profiles.
type Table map[Level]Classes

// DefaultTable returns the stock thresholds.
func DefaultTable() Table {
	return Table{
		Easy: {
			Ankle: Profile{MinLiftHeight: 0.05, MaxLiftHeight: 0.30, DetectionDelay: 400 * time.Millisecond, Debounce: 500 * time.Millisecond},
			Knee:  Profile{MinLiftHeight: 0.04, MaxLiftHeight: 0.25, DetectionDelay: 400 * time.Millisecond, Debounce: 500 * time.Millisecond},
		},
		Medium: {
			Ankle: Profile{MinLiftHeight: 0.10, MaxLiftHeight: 0.40, DetectionDelay: 300 * time.Millisecond, Debounce: 400 * time.Millisecond},
			Knee:  Profile{MinLiftHeight: 0.08, MaxLiftHeight: 0.30, DetectionDelay: 300 * time.Millisecond, Debounce: 400 * time.Millisecond},
		},
		Hard: {
			Ankle: Profile{MinLiftHeight: 0.15, MaxLiftHeight: 0.50, DetectionDelay: 250 * time.Millisecond, Debounce: 300 * time.Millisecond},
			Knee:  Profile{MinLiftHeight: 0.12, MaxLiftHeight: 0.40, DetectionDelay: 250 * time.Millisecond, Debounce: 300 * time.Millisecond},
		},
	}
}

// Validate rejects empty tables and bad rows.
func (t Table) Validate() error {
	if len(t) == 0 {
		return ErrEmptyTable
	}
	for level, classes := range t {
		if err := classes.Ankle.Validate(); err != nil {
			return fmt.Errorf("%s/ankle: %w", level, err)
		}
		if err := classes.Knee.Validate(); err != nil {
			return fmt.Errorf("%s/knee: %w", level, err)
		}
	}
	return nil
}

// Lookup returns the profile for a level and joint class.
func (t Table) Lookup(level Level, class skeleton.JointClass) (Profile, error) {
	classes, ok := t[level]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownLevel, level)
	}
	return classes.For(class), nil
}
