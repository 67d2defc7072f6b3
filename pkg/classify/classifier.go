// Package classify maps lift events to movement durations and a continuous
// speed modifier.
//
// Every accepted lift is normalised against the active difficulty's lift
// range. The Duration model turns that fraction directly into a movement
// time and speed. The Cadence model instead tracks the mean time between
// recent lifts and layers an eased boost on top for each new one.
package classify

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-redlight/internal/log"
	"github.com/teslashibe/go-redlight/pkg/difficulty"
	"github.com/teslashibe/go-redlight/pkg/motion"
	"github.com/teslashibe/go-redlight/pkg/omath"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
	"github.com/teslashibe/go-redlight/pkg/timer"
)

// ErrInvalidConfig is returned by New for inconsistent ranges.
var ErrInvalidConfig = errors.New("classify: invalid config")

// Model selects how lifts become speed.
type Model int

const (
	DurationModel Model = iota
	CadenceModel
)

func (m Model) String() string {
	if m == CadenceModel {
		return "cadence"
	}
	return "duration"
}

// MarshalText implements encoding.TextMarshaler.
func (m Model) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses "duration" or "cadence".
func (m *Model) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "duration":
		*m = DurationModel
	case "cadence":
		*m = CadenceModel
	default:
		return fmt.Errorf("classify: unknown model %q", text)
	}
	return nil
}

// RampConfig shapes the per-lift speed boost of the cadence model.
type RampConfig struct {
	Increment float64       `yaml:"increment" json:"increment"`
	EaseIn    time.Duration `yaml:"ease_in" json:"ease_in"`
	Hold      time.Duration `yaml:"hold" json:"hold"`
	EaseOut   time.Duration `yaml:"ease_out" json:"ease_out"`
}

// Config holds the classifier's ranges.
type Config struct {
	Model Model `yaml:"model" json:"model"`

	MinMovementTime time.Duration `yaml:"min_movement_time" json:"min_movement_time"`
	MaxMovementTime time.Duration `yaml:"max_movement_time" json:"max_movement_time"`

	MinSpeed float64 `yaml:"min_speed" json:"min_speed"`
	MaxSpeed float64 `yaml:"max_speed" json:"max_speed"`

	// CadenceWindow is how many recent lift times are averaged.
	CadenceWindow int `yaml:"cadence_window" json:"cadence_window"`
	// SlowCadence maps to MinSpeed, FastCadence to MaxSpeed.
	SlowCadence time.Duration `yaml:"slow_cadence" json:"slow_cadence"`
	FastCadence time.Duration `yaml:"fast_cadence" json:"fast_cadence"`

	Ramp RampConfig `yaml:"ramp" json:"ramp"`
}

// DefaultConfig returns the duration model with half-to-one-second moves.
func DefaultConfig() Config {
	return Config{
		Model:           DurationModel,
		MinMovementTime: 500 * time.Millisecond,
		MaxMovementTime: 1000 * time.Millisecond,
		MinSpeed:        0.5,
		MaxSpeed:        1.5,
		CadenceWindow:   4,
		SlowCadence:     2 * time.Second,
		FastCadence:     500 * time.Millisecond,
		Ramp: RampConfig{
			Increment: 0.25,
			EaseIn:    200 * time.Millisecond,
			Hold:      400 * time.Millisecond,
			EaseOut:   600 * time.Millisecond,
		},
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.MinMovementTime < 0 || c.MinMovementTime > c.MaxMovementTime {
		return fmt.Errorf("%w: movement time [%v, %v]", ErrInvalidConfig, c.MinMovementTime, c.MaxMovementTime)
	}
	if c.MinSpeed < 0 || c.MinSpeed > c.MaxSpeed {
		return fmt.Errorf("%w: speed [%v, %v]", ErrInvalidConfig, c.MinSpeed, c.MaxSpeed)
	}
	if c.Model == CadenceModel {
		if c.CadenceWindow < 2 {
			return fmt.Errorf("%w: cadence window %d < 2", ErrInvalidConfig, c.CadenceWindow)
		}
		if c.FastCadence <= 0 || c.FastCadence >= c.SlowCadence {
			return fmt.Errorf("%w: cadence range fast %v slow %v", ErrInvalidConfig, c.FastCadence, c.SlowCadence)
		}
		if c.Ramp.Increment < 0 || c.Ramp.EaseIn < 0 || c.Ramp.Hold < 0 || c.Ramp.EaseOut < 0 {
			return fmt.Errorf("%w: negative ramp setting", ErrInvalidConfig)
		}
	}
	return nil
}

// Result is an accepted, classified movement.
type Result struct {
	Joint    skeleton.JointType
	Height   float64
	Fraction float64
	Duration time.Duration
	Modifier float64
	Tick     uint64
}

// Classifier applies debounce and maps lifts to movement. It is driven from
// the engine's tick goroutine only.
type Classifier struct {
	cfg      Config
	profile  difficulty.Profile
	sched    *timer.Scheduler
	debounce map[skeleton.JointType]*timer.Task
	times    *motion.Window[uint64]
	base     float64
	ramps    []*Ramp
	dropped  int
	logger   *slog.Logger
}

// New creates a classifier.
func New(cfg Config, profile difficulty.Profile, sched *timer.Scheduler) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	window := cfg.CadenceWindow
	if window < 2 {
		window = 2
	}
	return &Classifier{
		cfg:      cfg,
		profile:  profile,
		sched:    sched,
		debounce: make(map[skeleton.JointType]*timer.Task),
		times:    motion.NewWindow[uint64](window),
		base:     cfg.MinSpeed,
		logger:   log.With("component", "classify", "model", cfg.Model.String()),
	}, nil
}

// Accepting reports whether jt is outside its debounce window.
func (c *Classifier) Accepting(jt skeleton.JointType) bool {
	return !c.debounce[jt].Active()
}

// Classify converts ev. It returns false when the joint is debouncing.
func (c *Classifier) Classify(ev motion.Event) (Result, bool) {
	if !c.Accepting(ev.Joint) {
		c.dropped++
		return Result{}, false
	}

	height := omath.Clamp(ev.Height, c.profile.MinLiftHeight, c.profile.MaxLiftHeight)
	fraction := omath.InverseLerp(c.profile.MinLiftHeight, c.profile.MaxLiftHeight, height)
	duration := time.Duration(omath.Lerp(float64(c.cfg.MinMovementTime), float64(c.cfg.MaxMovementTime), fraction))

	switch c.cfg.Model {
	case CadenceModel:
		c.times.Push(ev.Tick)
		c.base = c.cadenceSpeed()
		c.startRamp()
	default:
		c.base = omath.Lerp(c.cfg.MinSpeed, c.cfg.MaxSpeed, fraction)
	}

	c.debounce[ev.Joint] = c.sched.After(c.profile.Debounce, func() {})

	res := Result{
		Joint:    ev.Joint,
		Height:   height,
		Fraction: fraction,
		Duration: duration,
		Modifier: c.SpeedModifier(),
		Tick:     ev.Tick,
	}
	c.logger.Debug("movement classified", "joint", ev.Joint.String(), "height", height, "duration", duration, "modifier", res.Modifier)
	return res, true
}

// cadenceSpeed maps the mean time between recent lifts onto the speed range.
// With fewer than two lifts the slowest speed is used.
func (c *Classifier) cadenceSpeed() float64 {
	if c.times.Len() < 2 {
		return c.cfg.MinSpeed
	}
	ticks := c.times.Slice()
	intervals := make([]float64, 0, len(ticks)-1)
	for i := 1; i < len(ticks); i++ {
		intervals = append(intervals, float64(ticks[i]-ticks[i-1])*float64(c.sched.Tick()))
	}
	mean := omath.Mean(intervals)
	fraction := omath.InverseLerp(float64(c.cfg.SlowCadence), float64(c.cfg.FastCadence), mean)
	return omath.Lerp(c.cfg.MinSpeed, c.cfg.MaxSpeed, fraction)
}

func (c *Classifier) startRamp() {
	hold := 0
	if c.cfg.Ramp.Hold > 0 {
		hold = c.sched.Ticks(c.cfg.Ramp.Hold)
	}
	r := NewRamp(
		c.cfg.Ramp.Increment,
		c.sched.Ticks(c.cfg.Ramp.EaseIn),
		hold,
		c.sched.Ticks(c.cfg.Ramp.EaseOut),
	)
	c.ramps = append(c.ramps, r)
	c.sched.Every(func() bool {
		running := r.Step()
		if !running {
			c.dropRamp(r)
		}
		return running
	})
}

func (c *Classifier) dropRamp(r *Ramp) {
	for i, other := range c.ramps {
		if other == r {
			c.ramps = append(c.ramps[:i], c.ramps[i+1:]...)
			return
		}
	}
}

// SpeedModifier returns the base speed plus any active boosts, clamped to
// the configured speed range.
func (c *Classifier) SpeedModifier() float64 {
	v := c.base
	for _, r := range c.ramps {
		v += r.Applied()
	}
	return omath.Clamp(v, c.cfg.MinSpeed, c.cfg.MaxSpeed)
}

// Dropped returns how many events were discarded by debounce.
func (c *Classifier) Dropped() int {
	return c.dropped
}

// Reset clears debounce flags, cadence history and ramps. Scheduler tasks
// are owned by the caller and must be cleared there.
func (c *Classifier) Reset() {
	for jt, task := range c.debounce {
		task.Cancel()
		delete(c.debounce, jt)
	}
	c.times.Clear()
	c.ramps = nil
	c.base = c.cfg.MinSpeed
	c.dropped = 0
}
