package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/teslashibe/go-redlight/pkg/difficulty"
	"github.com/teslashibe/go-redlight/pkg/gamemode"
)

// Summary is the end-of-session report.
type Summary struct {
	SessionID  string           `json:"session_id"`
	Mode       gamemode.Mode    `json:"mode"`
	Difficulty difficulty.Level `json:"difficulty"`
	Reason     string           `json:"reason"`

	Failed int `json:"failed"`
	Points int `json:"points"`
	// Elapsed is green-light time in a race and play time when stationary.
	Elapsed  time.Duration `json:"elapsed"`
	Distance float64       `json:"distance"`
	// AverageSpeed is Distance over Elapsed, in m/s.
	AverageSpeed float64 `json:"average_speed"`
	// DistanceLost converts penalty points back to metres.
	DistanceLost float64 `json:"distance_lost"`
}

func (e *Engine) buildSummary(reason string) Summary {
	score := e.strategy.Score()
	sum := Summary{
		SessionID:  e.id,
		Mode:       e.strategy.Mode(),
		Difficulty: e.cfg.Difficulty,
		Reason:     reason,
		Failed:     score.Failed,
		Points:     score.Points,
		Distance:   score.Distance,
	}
	if sum.Mode == gamemode.Race {
		sum.Elapsed = score.Elapsed
	} else {
		sum.Elapsed = time.Duration(e.activeTick) * e.cfg.TickRate
	}
	if s := sum.Elapsed.Seconds(); s > 0 {
		sum.AverageSpeed = sum.Distance / s
	}
	ppm := e.cfg.GameMode.PointsPerMeter
	sum.DistanceLost = float64(e.penalty.Config().Points) / ppm * float64(score.Failed)
	return sum
}

// Fields returns the summary as display-ordered label/value pairs.
func (s Summary) Fields() *orderedmap.OrderedMap[string, any] {
	m := orderedmap.NewOrderedMap[string, any]()
	m.Set("session", s.SessionID)
	m.Set("mode", s.Mode.String())
	m.Set("difficulty", s.Difficulty.String())
	m.Set("reason", s.Reason)
	m.Set("failed", s.Failed)
	m.Set("points", s.Points)
	m.Set("elapsed", s.Elapsed.Round(10*time.Millisecond).String())
	m.Set("distance", fmt.Sprintf("%.2fm", s.Distance))
	m.Set("average_speed", fmt.Sprintf("%.2fm/s", s.AverageSpeed))
	m.Set("distance_lost", fmt.Sprintf("%.2fm", s.DistanceLost))
	return m
}

func (s Summary) String() string {
	var b strings.Builder
	fields := s.Fields()
	for el := fields.Front(); el != nil; el = el.Next() {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", el.Key, el.Value)
	}
	return b.String()
}
