package gamemode

import (
	"math"
	"time"

	"github.com/teslashibe/go-redlight/pkg/light"
	"github.com/teslashibe/go-redlight/pkg/omath"
)

// RaceStrategy tracks the player walking toward the sensor.
type RaceStrategy struct {
	cfg  Config
	tick time.Duration

	started     bool
	start       float64
	best        float64
	bestAtGreen float64
	display     float64
	won         bool
	elapsed     time.Duration

	ledger
}

// NewRace creates a race strategy.
func NewRace(cfg Config, tick time.Duration) *RaceStrategy {
	return &RaceStrategy{cfg: cfg, tick: tick, ledger: ledger{allowNegative: cfg.AllowNegativeScore}}
}

// Mode returns Race.
func (r *RaceStrategy) Mode() Mode { return Race }

// Update scores forward progress, flags red-light undercuts and reports
// whether the player stands back at the start. No progress is made while a
// penalty is in flight.
func (r *RaceStrategy) Update(in Input) Outcome {
	var out Outcome
	if in.Light == light.Green {
		r.elapsed += r.tick
	}
	if !in.HasDistance {
		return out
	}
	d := in.Distance

	if !r.started {
		r.started = true
		r.start, r.best, r.bestAtGreen, r.display = d, d, d, d
	}

	if d < r.best && in.Light != light.Off && !in.Guarded {
		r.earn((r.best - d) * r.cfg.PointsPerMeter)
		r.best = d
		out.Moved = true
		if !r.won && r.best < r.cfg.Race.WinningDistance {
			r.won = true
			out.Won = true
		}
	}

	if in.Light == light.Green {
		r.bestAtGreen = r.best
	}

	undercut := d < r.bestAtGreen-r.cfg.Race.PenaltyLeeway
	switch in.Light {
	case light.Red:
		out.Violation = in.Armed && undercut
	case light.Off:
		out.Violation = r.cfg.Race.PenalizeDuringOff && undercut
	}

	out.Returned = math.Abs(d-r.start) <= r.cfg.Race.ReturnLeeway
	return out
}

// Frame eases the displayed distance toward the best distance.
func (r *RaceStrategy) Frame(dt time.Duration) {
	if !r.started {
		return
	}
	k := omath.Clamp(r.cfg.Race.DisplaySmoothing*dt.Seconds(), 0, 1)
	r.display = omath.LerpUnclamped(r.display, r.best, k)
}

// ApplyPenalty deducts points for a failed red light.
func (r *RaceStrategy) ApplyPenalty(points int) {
	r.penalize(points)
}

// Restart puts the player back at the start line.
func (r *RaceStrategy) Restart() {
	if !r.started {
		return
	}
	r.best = r.start
	r.bestAtGreen = r.start
}

// Won reports whether the win condition has been met.
func (r *RaceStrategy) Won() bool { return r.won }

// Score returns points, green time and the distance covered.
func (r *RaceStrategy) Score() Score {
	return Score{
		Points:   r.total(),
		Failed:   r.failed,
		Elapsed:  r.elapsed,
		Distance: math.Max(0, r.start-r.best),
		Lost:     r.lost,
	}
}

// Progress reports the smoothed, best and start distances.
func (r *RaceStrategy) Progress() Progress {
	return Progress{Mode: Race, Value: r.display, Best: r.best, Start: r.start}
}

// Reset forgets the start line and clears the score.
func (r *RaceStrategy) Reset() {
	*r = RaceStrategy{cfg: r.cfg, tick: r.tick, ledger: ledger{allowNegative: r.cfg.AllowNegativeScore}}
}
