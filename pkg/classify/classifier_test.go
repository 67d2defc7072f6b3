package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-redlight/pkg/difficulty"
	"github.com/teslashibe/go-redlight/pkg/motion"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
	"github.com/teslashibe/go-redlight/pkg/timer"
)

func TestRamp_ReturnsToBaseline(t *testing.T) {
	tests := []struct {
		name                  string
		increment             float64
		easeIn, hold, easeOut int
	}{
		{"even", 0.5, 4, 2, 4},
		{"awkward", 0.1, 3, 0, 7},
		{"single tick", 0.3, 1, 1, 1},
		{"long", 0.7, 13, 5, 29},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRamp(tt.increment, tt.easeIn, tt.hold, tt.easeOut)
			for i := 0; i < tt.easeIn; i++ {
				r.Step()
			}
			peak := r.Applied()
			if peak != tt.increment {
				t.Errorf("after ease-in applied = %v, want exactly %v", peak, tt.increment)
			}
			for r.Step() {
			}
			if r.Applied() != 0 {
				t.Errorf("after ease-out applied = %v, want exactly 0", r.Applied())
			}
			if !r.Done() {
				t.Error("ramp should be done")
			}
			if r.Step() {
				t.Error("Step after Done should report false")
			}
		})
	}
}

func TestRamp_Monotonic(t *testing.T) {
	r := NewRamp(1, 5, 3, 5)
	prev := 0.0
	for i := 1; i <= r.Len(); i++ {
		r.Step()
		switch {
		case i <= 5:
			assert.GreaterOrEqual(t, r.Applied(), prev, "tick %d should not fall during ease-in", i)
		case i > 8:
			assert.LessOrEqual(t, r.Applied(), prev, "tick %d should not rise during ease-out", i)
		default:
			assert.Equal(t, 1.0, r.Applied(), "tick %d should hold", i)
		}
		prev = r.Applied()
	}
}

func newClassifier(t *testing.T, cfg Config) (*Classifier, *timer.Scheduler) {
	t.Helper()
	profile, err := difficulty.DefaultTable().Lookup(difficulty.Medium, skeleton.Ankle)
	require.NoError(t, err)
	sched := timer.NewScheduler(20 * time.Millisecond)
	c, err := New(cfg, profile, sched)
	require.NoError(t, err)
	return c, sched
}

func TestClassify_MidpointDuration(t *testing.T) {
	c, _ := newClassifier(t, DefaultConfig())

	res, ok := c.Classify(motion.Event{Joint: skeleton.AnkleLeft, Height: 0.25, Tick: 50})
	require.True(t, ok)
	assert.InDelta(t, 0.5, res.Fraction, 1e-9)
	assert.InDelta(t, float64(750*time.Millisecond), float64(res.Duration), float64(time.Millisecond))
	assert.InDelta(t, 1.0, res.Modifier, 1e-9)
	assert.Equal(t, uint64(50), res.Tick)
}

func TestClassify_ClampsHeight(t *testing.T) {
	c, _ := newClassifier(t, DefaultConfig())
	res, ok := c.Classify(motion.Event{Joint: skeleton.AnkleRight, Height: 2.0})
	require.True(t, ok)
	assert.Equal(t, 0.4, res.Height)
	assert.Equal(t, 1.0, res.Fraction)
	assert.Equal(t, time.Second, res.Duration)
}

func TestClassify_Debounce(t *testing.T) {
	c, sched := newClassifier(t, DefaultConfig())
	ev := motion.Event{Joint: skeleton.AnkleLeft, Height: 0.2}

	_, ok := c.Classify(ev)
	require.True(t, ok)
	assert.False(t, c.Accepting(skeleton.AnkleLeft))
	assert.True(t, c.Accepting(skeleton.AnkleRight), "debounce is per joint")

	_, ok = c.Classify(ev)
	assert.False(t, ok, "second lift inside debounce must be dropped")
	assert.Equal(t, 1, c.Dropped())

	_, ok = c.Classify(motion.Event{Joint: skeleton.AnkleRight, Height: 0.2})
	assert.True(t, ok)

	// medium debounce is 400ms = 20 ticks
	for i := 0; i < 20; i++ {
		sched.Advance()
	}
	assert.True(t, c.Accepting(skeleton.AnkleLeft))
	_, ok = c.Classify(ev)
	assert.True(t, ok)
}

func TestClassify_CadenceSpeedsUp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = CadenceModel
	cfg.Ramp.Increment = 0

	lift := func(gap int) float64 {
		c, sched := newClassifier(t, cfg)
		tick := uint64(0)
		var res Result
		for i := 0; i < 4; i++ {
			for j := 0; j < gap; j++ {
				sched.Advance()
				tick++
			}
			joint := skeleton.AnkleLeft
			if i%2 == 1 {
				joint = skeleton.AnkleRight
			}
			var ok bool
			res, ok = c.Classify(motion.Event{Joint: joint, Height: 0.2, Tick: tick})
			require.True(t, ok)
		}
		return res.Modifier
	}

	slow := lift(100) // 2s between lifts
	fast := lift(25)  // 500ms between lifts
	assert.InDelta(t, cfg.MinSpeed, slow, 1e-9)
	assert.InDelta(t, cfg.MaxSpeed, fast, 1e-9)
}

func TestClassify_CadenceRampSettles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = CadenceModel
	c, sched := newClassifier(t, cfg)

	_, ok := c.Classify(motion.Event{Joint: skeleton.AnkleLeft, Height: 0.2, Tick: 0})
	require.True(t, ok)
	base := cfg.MinSpeed

	// 200ms ease-in at 20ms ticks
	for i := 0; i < 10; i++ {
		sched.Advance()
	}
	assert.InDelta(t, base+cfg.Ramp.Increment, c.SpeedModifier(), 1e-12)

	for i := 0; i < 100; i++ {
		sched.Advance()
	}
	assert.Equal(t, base, c.SpeedModifier())
}

func TestClassify_RampHoldRoundsUp(t *testing.T) {
	tests := []struct {
		name string
		hold time.Duration
		// ticks the boost stays at its peak after the ease-in tick
		peak int
	}{
		{"no hold", 0, 0},
		{"partial tick", 30 * time.Millisecond, 2},
		{"whole ticks", 40 * time.Millisecond, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Model = CadenceModel
			cfg.Ramp.EaseIn = 20 * time.Millisecond
			cfg.Ramp.Hold = tt.hold
			cfg.Ramp.EaseOut = 20 * time.Millisecond
			c, sched := newClassifier(t, cfg)

			_, ok := c.Classify(motion.Event{Joint: skeleton.AnkleLeft, Height: 0.2, Tick: 0})
			require.True(t, ok)

			for i := 0; i <= tt.peak; i++ {
				sched.Advance()
				assert.InDelta(t, cfg.MinSpeed+cfg.Ramp.Increment, c.SpeedModifier(), 1e-12, "tick %d", i)
			}
			sched.Advance()
			assert.Equal(t, cfg.MinSpeed, c.SpeedModifier())
		})
	}
}

func TestClassify_Reset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = CadenceModel
	c, _ := newClassifier(t, cfg)
	c.Classify(motion.Event{Joint: skeleton.AnkleLeft, Height: 0.2})
	c.Reset()
	assert.True(t, c.Accepting(skeleton.AnkleLeft))
	assert.Equal(t, cfg.MinSpeed, c.SpeedModifier())
}

func TestConfig_Validate(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.MinMovementTime, c.MaxMovementTime = time.Second, time.Millisecond },
		func(c *Config) { c.MinSpeed, c.MaxSpeed = 2, 1 },
		func(c *Config) { c.Model, c.CadenceWindow = CadenceModel, 1 },
		func(c *Config) { c.Model, c.FastCadence = CadenceModel, 3*time.Second },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
