// Package light cycles the red/green light through randomized dwell times.
//
// Once started the light alternates GREEN and RED forever. Entering RED first
// shows YELLOW with detection disarmed; after the detection delay the light
// turns RED and motion starts to count. Stop returns the light to OFF and
// cancels every pending transition.
package light

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-redlight/internal/log"
	"github.com/teslashibe/go-redlight/pkg/interval"
	"github.com/teslashibe/go-redlight/pkg/timer"
)

// ErrInvalidConfig is returned by New for malformed dwell settings.
var ErrInvalidConfig = errors.New("light: invalid config")

// State is the light colour.
type State int

const (
	Off State = iota
	Green
	Red
	Yellow
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case Green:
		return "green"
	case Red:
		return "red"
	case Yellow:
		return "yellow"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config holds dwell ranges and the detection delay.
type Config struct {
	// GreenToRed is how long GREEN is held before turning RED.
	GreenToRed interval.Bounds `yaml:"green_to_red" json:"green_to_red"`
	// RedToGreen is how long RED (including YELLOW) is held.
	RedToGreen interval.Bounds `yaml:"red_to_green" json:"red_to_green"`
	// DetectionDelay is the YELLOW period before motion counts.
	DetectionDelay time.Duration `yaml:"detection_delay" json:"detection_delay"`
	// DisableRed keeps the light GREEN. Debug only.
	DisableRed bool `yaml:"disable_red" json:"disable_red"`
}

// DefaultConfig returns the stock dwell ranges.
func DefaultConfig() Config {
	return Config{
		GreenToRed:     interval.Bounds{Min: 2 * time.Second, Max: 7 * time.Second},
		RedToGreen:     interval.Bounds{Min: 1 * time.Second, Max: 3 * time.Second},
		DetectionDelay: 300 * time.Millisecond,
	}
}

// Validate rejects inverted ranges and negative delays.
func (c Config) Validate() error {
	if err := c.GreenToRed.Validate(); err != nil {
		return fmt.Errorf("%w: green to red: %v", ErrInvalidConfig, err)
	}
	if err := c.RedToGreen.Validate(); err != nil {
		return fmt.Errorf("%w: red to green: %v", ErrInvalidConfig, err)
	}
	if c.DetectionDelay < 0 {
		return fmt.Errorf("%w: negative detection delay %v", ErrInvalidConfig, c.DetectionDelay)
	}
	return nil
}

// Change describes a state transition.
type Change struct {
	From  State
	To    State
	Armed bool
}

// Machine is the light state machine. It is driven from the engine's tick
// goroutine only.
type Machine struct {
	cfg   Config
	sched *timer.Scheduler
	gen   *interval.Generator

	state   State
	armed   bool
	running bool
	dwell   *timer.Task
	arming  *timer.Task
	cycles  int

	listeners []func(Change)
	logger    *slog.Logger
}

// New creates a machine in the OFF state.
func New(cfg Config, sched *timer.Scheduler, gen *interval.Generator) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Machine{
		cfg:    cfg,
		sched:  sched,
		gen:    gen,
		logger: log.With("component", "light"),
	}, nil
}

// OnChange registers fn to run on every transition, in registration order.
func (m *Machine) OnChange(fn func(Change)) {
	m.listeners = append(m.listeners, fn)
}

// State returns the current colour.
func (m *Machine) State() State { return m.state }

// Armed reports whether motion currently counts as a violation.
func (m *Machine) Armed() bool { return m.armed }

// Running reports whether the dwell loop is active.
func (m *Machine) Running() bool { return m.running }

// Cycles returns how many RED phases have started.
func (m *Machine) Cycles() int { return m.cycles }

// DwellRemaining returns the ticks until the next scheduled colour change.
func (m *Machine) DwellRemaining() int { return m.dwell.Remaining() }

// Start begins the loop at GREEN. Starting a running loop is a no-op.
func (m *Machine) Start() bool {
	if m.running {
		return false
	}
	m.running = true
	m.enterGreen()
	return true
}

// Pause cancels pending transitions but keeps the current colour. Start
// resumes the loop at GREEN.
func (m *Machine) Pause() {
	m.cancel()
	m.running = false
}

// Stop cancels pending transitions, disarms detection and turns the light off.
func (m *Machine) Stop() {
	m.cancel()
	m.running = false
	m.armed = false
	m.set(Off)
}

// Reset stops the loop and zeroes counters.
func (m *Machine) Reset() {
	m.Stop()
	m.cycles = 0
}

func (m *Machine) cancel() {
	m.dwell.Cancel()
	m.arming.Cancel()
	m.dwell, m.arming = nil, nil
}

func (m *Machine) enterGreen() {
	m.arming.Cancel()
	m.armed = false
	m.set(Green)

	d := m.gen.Duration(m.cfg.GreenToRed)
	m.dwell = m.sched.After(d, m.enterRed)
	m.logger.Debug("green", "dwell", d)
}

func (m *Machine) enterRed() {
	if m.cfg.DisableRed {
		m.enterGreen()
		return
	}
	m.cycles++
	m.armed = false
	m.set(Yellow)

	m.arming = m.sched.After(m.cfg.DetectionDelay, m.arm)
	d := m.gen.Duration(m.cfg.RedToGreen)
	m.dwell = m.sched.After(d, m.enterGreen)
	m.logger.Debug("red", "dwell", d, "detection_delay", m.cfg.DetectionDelay)
}

func (m *Machine) arm() {
	if m.state != Yellow {
		return
	}
	m.armed = true
	m.set(Red)
}

func (m *Machine) set(s State) {
	if s == m.state {
		return
	}
	c := Change{From: m.state, To: s, Armed: m.armed}
	m.state = s
	for _, fn := range m.listeners {
		fn(c)
	}
}
