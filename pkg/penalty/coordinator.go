// Package penalty applies red-light penalties and runs the recovery that
// follows them.
//
// At most one penalty is in flight. The guard is set when a violation is
// accepted and only cleared once recovery has fully completed, so repeated
// motion during the cooldown or the walk back to the start is ignored.
package penalty

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-redlight/internal/log"
	"github.com/teslashibe/go-redlight/pkg/light"
	"github.com/teslashibe/go-redlight/pkg/timer"
)

// ErrInvalidConfig is returned by New for negative settings.
var ErrInvalidConfig = errors.New("penalty: invalid config")

// Phase is the coordinator's state.
type Phase int

const (
	Armed Phase = iota
	Triggered
	Cooldown
	Recovering
)

func (p Phase) String() string {
	switch p {
	case Armed:
		return "armed"
	case Triggered:
		return "triggered"
	case Cooldown:
		return "cooldown"
	case Recovering:
		return "recovering"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Recovery selects what happens when the cooldown expires.
type Recovery int

const (
	// Resume restarts the light immediately.
	Resume Recovery = iota
	// ReturnToStart waits for the player to walk back before restarting.
	ReturnToStart
)

func (r Recovery) String() string {
	if r == ReturnToStart {
		return "return_to_start"
	}
	return "resume"
}

// MarshalText implements encoding.TextMarshaler.
func (r Recovery) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses "resume" or "return_to_start".
func (r *Recovery) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "resume":
		*r = Resume
	case "return_to_start", "return":
		*r = ReturnToStart
	default:
		return fmt.Errorf("penalty: unknown recovery %q", text)
	}
	return nil
}

// Light is the part of the light machine the coordinator drives.
type Light interface {
	Pause()
	Start() bool
}

// Scorer receives penalties.
type Scorer interface {
	ApplyPenalty(points int)
}

// Config holds penalty settings.
type Config struct {
	// Points deducted per failed red light.
	Points int `yaml:"points" json:"points"`
	// Cooldown is the pause after a penalty before recovery starts.
	Cooldown time.Duration `yaml:"cooldown" json:"cooldown"`
	Recovery Recovery      `yaml:"recovery" json:"recovery"`
	// PenalizeDuringOff also accepts violations while the light is off.
	PenalizeDuringOff bool `yaml:"penalize_during_off" json:"penalize_during_off"`
}

// DefaultConfig returns a 1000 point, one second penalty.
func DefaultConfig() Config {
	return Config{Points: 1000, Cooldown: time.Second, Recovery: Resume}
}

// Validate rejects negative points and cooldowns.
func (c Config) Validate() error {
	if c.Points < 0 {
		return fmt.Errorf("%w: negative points %d", ErrInvalidConfig, c.Points)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("%w: negative cooldown %v", ErrInvalidConfig, c.Cooldown)
	}
	return nil
}

// Kind identifies a coordinator notification.
type Kind int

const (
	KindTriggered Kind = iota
	KindReturnRequired
	KindRecovered
)

func (k Kind) String() string {
	switch k {
	case KindTriggered:
		return "triggered"
	case KindReturnRequired:
		return "return_required"
	case KindRecovered:
		return "recovered"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is published on every phase change that matters to listeners.
type Event struct {
	Kind   Kind
	Points int
	Failed int
	Tick   uint64
}

// Coordinator owns the penalty guard. It is driven from the engine's tick
// goroutine only.
type Coordinator struct {
	cfg   Config
	sched *timer.Scheduler
	light Light
	score Scorer

	phase    Phase
	guard    bool
	hold     bool
	waiting  bool
	failed   int
	cooldown *timer.Task

	listeners []func(Event)
	logger    *slog.Logger
}

// New creates a coordinator in the Armed phase.
func New(cfg Config, sched *timer.Scheduler, l Light, score Scorer) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		cfg:    cfg,
		sched:  sched,
		light:  l,
		score:  score,
		logger: log.With("component", "penalty", "recovery", cfg.Recovery.String()),
	}, nil
}

// OnEvent registers fn for coordinator notifications.
func (c *Coordinator) OnEvent(fn func(Event)) {
	c.listeners = append(c.listeners, fn)
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase { return c.phase }

// Guarded reports whether a penalty is in flight.
func (c *Coordinator) Guarded() bool { return c.guard }

// Failed returns the number of penalties applied this session.
func (c *Coordinator) Failed() int { return c.failed }

// Config returns the coordinator settings.
func (c *Coordinator) Config() Config { return c.cfg }

// Check applies a penalty when a violation happens under an armed RED light
// and no penalty is already in flight. It reports whether one was applied.
func (c *Coordinator) Check(state light.State, armed, violation bool) bool {
	if !violation || c.guard {
		return false
	}
	switch {
	case state == light.Red && armed:
	case state == light.Off && c.cfg.PenalizeDuringOff:
	default:
		return false
	}
	c.trigger()
	return true
}

func (c *Coordinator) trigger() {
	c.guard = true
	c.phase = Triggered
	c.light.Pause()
	c.score.ApplyPenalty(c.cfg.Points)
	c.failed++

	c.logger.Info("red light failed", "failed", c.failed, "points", c.cfg.Points)
	c.emit(KindTriggered)

	c.phase = Cooldown
	c.cooldown = c.sched.After(c.cfg.Cooldown, c.expire)
}

func (c *Coordinator) expire() {
	c.phase = Recovering
	if c.cfg.Recovery == ReturnToStart {
		c.emit(KindReturnRequired)
		return
	}
	if c.hold {
		c.waiting = true
		return
	}
	c.resume()
}

// Recovered completes a return-to-start recovery. It is a no-op unless the
// cooldown has expired.
func (c *Coordinator) Recovered() bool {
	if c.phase != Recovering || c.cfg.Recovery != ReturnToStart {
		return false
	}
	c.resume()
	return true
}

// Hold keeps the guard set after the cooldown while a scripted sequence
// plays. Releasing the hold resumes a recovery that was waiting on it.
func (c *Coordinator) Hold(on bool) {
	c.hold = on
	if !on && c.waiting {
		c.resume()
	}
}

func (c *Coordinator) resume() {
	c.waiting = false
	c.light.Start()
	c.guard = false
	c.phase = Armed
	c.logger.Debug("recovered")
	c.emit(KindRecovered)
}

func (c *Coordinator) emit(k Kind) {
	ev := Event{Kind: k, Points: c.cfg.Points, Failed: c.failed, Tick: c.sched.Now()}
	for _, fn := range c.listeners {
		fn(ev)
	}
}

// Reset cancels any cooldown and clears the guard and counters.
func (c *Coordinator) Reset() {
	c.cooldown.Cancel()
	c.cooldown = nil
	c.phase = Armed
	c.guard = false
	c.hold = false
	c.waiting = false
	c.failed = 0
}
