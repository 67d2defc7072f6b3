package gamemode

import (
	"math"
	"time"

	"github.com/teslashibe/go-redlight/pkg/light"
)

// StationaryStrategy converts stepping in place into forward travel.
type StationaryStrategy struct {
	cfg  Config
	tick time.Duration

	pending time.Duration
	speed   float64
	decay   float64
	moved   float64

	ledger
}

// NewStationary creates a stationary strategy.
func NewStationary(cfg Config, tick time.Duration) *StationaryStrategy {
	return &StationaryStrategy{cfg: cfg, tick: tick, ledger: ledger{allowNegative: cfg.AllowNegativeScore}}
}

// Mode returns Stationary.
func (s *StationaryStrategy) Mode() Mode { return Stationary }

// Active reports whether a movement is still pending.
func (s *StationaryStrategy) Active() bool { return s.pending > 0 }

// Update folds newly classified movements into the pending movement time
// and, while one is pending under GREEN, moves at the current speed modifier.
func (s *StationaryStrategy) Update(in Input) Outcome {
	var out Outcome
	for _, res := range in.Results {
		if res.Duration > s.pending {
			s.pending = res.Duration
		}
	}

	active := s.pending > 0
	if active {
		s.pending -= s.tick
		if s.pending < 0 {
			s.pending = 0
		}
	}

	switch {
	case active && in.Light == light.Green:
		// tracks the live modifier so cadence boosts apply
		s.speed = in.Modifier
		s.decay = 0
		s.earn(s.cfg.Stationary.PointsPerMovement * in.Modifier)
	case s.speed > 0:
		if s.decay == 0 {
			s.decay = s.speed * s.tick.Seconds() / math.Max(s.cfg.Stationary.SmoothingTime.Seconds(), s.tick.Seconds())
		}
		s.speed = math.Max(0, s.speed-s.decay)
	}

	if in.Light == light.Green && s.speed > 0 {
		s.moved += s.cfg.Stationary.BaseSpeed * s.speed * s.tick.Seconds()
		out.Moved = true
	}

	out.Violation = in.Motion
	return out
}

// Frame is a no-op; stationary progress is integrated on the fixed tick.
func (s *StationaryStrategy) Frame(time.Duration) {}

// ApplyPenalty deducts points for a failed red light.
func (s *StationaryStrategy) ApplyPenalty(points int) {
	s.penalize(points)
}

// Restart drops any pending movement.
func (s *StationaryStrategy) Restart() {
	s.pending, s.speed, s.decay = 0, 0, 0
}

// Speed returns the current speed modifier applied to BaseSpeed.
func (s *StationaryStrategy) Speed() float64 { return s.speed }

// Score returns points and the displacement travelled so far.
func (s *StationaryStrategy) Score() Score {
	return Score{
		Points:   s.total(),
		Failed:   s.failed,
		Distance: s.moved,
		Lost:     s.lost,
	}
}

// Progress reports displacement and the current speed.
func (s *StationaryStrategy) Progress() Progress {
	return Progress{Mode: Stationary, Value: s.moved, Best: s.moved, Speed: s.speed}
}

// Reset clears all progress and score.
func (s *StationaryStrategy) Reset() {
	*s = StationaryStrategy{cfg: s.cfg, tick: s.tick, ledger: ledger{allowNegative: s.cfg.AllowNegativeScore}}
}
