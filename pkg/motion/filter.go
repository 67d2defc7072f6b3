// Package motion turns raw joint positions into discrete lift events.
//
// Each tracked joint keeps a sliding window of recent samples. A lift is the
// distance between the window's lowest and highest signal. It is classified
// once, at its peak: a sample that equals the window maximum becomes a
// candidate, and the candidate is emitted on the next sample that does not
// exceed it.
package motion

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-redlight/internal/log"
	"github.com/teslashibe/go-redlight/pkg/debug"
	"github.com/teslashibe/go-redlight/pkg/difficulty"
	"github.com/teslashibe/go-redlight/pkg/omath"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

// ErrInvalidConfig is returned by NewFilter for unusable window settings.
var ErrInvalidConfig = errors.New("motion: invalid config")

// Config controls window sizes and wobble rejection.
type Config struct {
	Class skeleton.JointClass `yaml:"joint_class" json:"joint_class"`
	// QueueSize is the sliding window capacity N.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
	// WobbleTail is the K most recent samples checked for sway (K < N).
	WobbleTail int `yaml:"wobble_tail" json:"wobble_tail"`
	// WobbleFactor is the diagonal/displacement ratio that suppresses a lift.
	WobbleFactor float64 `yaml:"wobble_factor" json:"wobble_factor"`
}

// DefaultConfig returns ankle tracking with a 15-sample window.
func DefaultConfig() Config {
	return Config{
		Class:        skeleton.Ankle,
		QueueSize:    15,
		WobbleTail:   8,
		WobbleFactor: DefaultWobbleFactor,
	}
}

// Validate checks window settings.
func (c Config) Validate() error {
	if c.QueueSize < 2 {
		return fmt.Errorf("%w: queue size %d < 2", ErrInvalidConfig, c.QueueSize)
	}
	if c.WobbleTail < 2 || c.WobbleTail >= c.QueueSize {
		return fmt.Errorf("%w: wobble tail %d must be in [2, %d)", ErrInvalidConfig, c.WobbleTail, c.QueueSize)
	}
	if c.WobbleFactor < 1 {
		return fmt.Errorf("%w: wobble factor %v < 1", ErrInvalidConfig, c.WobbleFactor)
	}
	return nil
}

// Event is a classified lift.
type Event struct {
	Joint skeleton.JointType
	// Height is clamped to the active profile's lift range.
	Height float64
	// Tick is when the peak was sampled.
	Tick uint64
}

type sample struct {
	pos    mgl64.Vec3
	signal float64
	tick   uint64
}

type track struct {
	joint     skeleton.JointType
	window    *Window[sample]
	candidate *Event
	peak      float64
}

// Filter owns the per-joint windows. It is not safe for concurrent use.
type Filter struct {
	cfg     Config
	profile difficulty.Profile
	tracks  []*track
	body    uint64
	hasBody bool
	wobbles int
	logger  *slog.Logger
}

// NewFilter creates a filter for cfg.Class using profile's lift thresholds.
func NewFilter(cfg Config, profile difficulty.Profile) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	f := &Filter{
		cfg:     cfg,
		profile: profile,
		logger:  log.With("component", "motion", "class", cfg.Class.String()),
	}
	for _, jt := range cfg.Class.Joints() {
		f.tracks = append(f.tracks, &track{joint: jt, window: NewWindow[sample](cfg.QueueSize)})
	}
	return f, nil
}

// Config returns the filter settings.
func (f *Filter) Config() Config {
	return f.cfg
}

// Process pushes the selected body's joints for this tick and returns any
// lifts confirmed at their peak. A nil body produces nothing.
func (f *Filter) Process(frame *skeleton.Frame, body *skeleton.Body, tick uint64) []Event {
	if body == nil {
		return nil
	}
	if f.hasBody && body.TrackingID != f.body {
		f.logger.Debug("selected body changed, clearing windows", "from", f.body, "to", body.TrackingID)
		f.Clear()
	}
	f.body, f.hasBody = body.TrackingID, true

	var events []Event
	for _, tr := range f.tracks {
		j, ok := body.Joint(tr.joint)
		if !ok {
			continue
		}
		if ev, ok := f.push(tr, sample{pos: j.Position, signal: f.signal(frame, j.Position), tick: tick}); ok {
			events = append(events, ev)
		}
	}
	return events
}

func (f *Filter) push(tr *track, s sample) (Event, bool) {
	tr.window.Push(s)

	var (
		out       Event
		confirmed bool
	)
	if tr.candidate != nil {
		switch {
		case s.signal < tr.peak:
			out, confirmed = *tr.candidate, true
			tr.candidate = nil
		case s.signal == tr.peak:
			// plateau, keep waiting for the descent
			return out, false
		default:
			tr.candidate = nil
		}
	}

	if !tr.window.Full() {
		return out, confirmed
	}

	signals := make([]float64, 0, tr.window.Len())
	for v := range tr.window.All() {
		signals = append(signals, v.signal)
	}
	lo, hi := omath.Extent(signals)
	if s.signal < hi {
		return out, confirmed
	}

	lift := hi - lo
	if lift < f.profile.MinLiftHeight {
		return out, confirmed
	}

	if f.cfg.Class == skeleton.Ankle {
		tail := tr.window.Tail(f.cfg.WobbleTail)
		points := make([]mgl64.Vec3, len(tail))
		for i, t := range tail {
			points[i] = t.pos
		}
		if Wobbling(points, f.cfg.WobbleFactor) {
			f.wobbles++
			debug.MotionLog("wobble rejected", "joint", tr.joint.String(), "lift", lift, "tick", s.tick)
			return out, confirmed
		}
	}

	tr.candidate = &Event{
		Joint:  tr.joint,
		Height: omath.Clamp(lift, f.profile.MinLiftHeight, f.profile.MaxLiftHeight),
		Tick:   s.tick,
	}
	tr.peak = s.signal
	debug.MotionLog("lift candidate", "joint", tr.joint.String(), "lift", lift, "tick", s.tick)
	return out, confirmed
}

// signal maps a position to the scalar tracked for the joint class. Ankles
// rise off the floor; knees move toward the sensor.
func (f *Filter) signal(frame *skeleton.Frame, p mgl64.Vec3) float64 {
	if f.cfg.Class == skeleton.Knee {
		return -p.Z()
	}
	if frame.HasFloor() {
		return frame.FloorDistance(p)
	}
	return p.Y()
}

// Clear empties every window and drops pending candidates.
func (f *Filter) Clear() {
	for _, tr := range f.tracks {
		tr.window.Clear()
		tr.candidate = nil
		tr.peak = 0
	}
	f.hasBody = false
}

// Len returns the number of samples held for jt.
func (f *Filter) Len(jt skeleton.JointType) int {
	for _, tr := range f.tracks {
		if tr.joint == jt {
			return tr.window.Len()
		}
	}
	return 0
}

// Empty reports whether every window is empty.
func (f *Filter) Empty() bool {
	for _, tr := range f.tracks {
		if tr.window.Len() > 0 {
			return false
		}
	}
	return true
}

// Wobbles returns how many lifts were suppressed as sway.
func (f *Filter) Wobbles() int {
	return f.wobbles
}
