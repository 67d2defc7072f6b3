package light

import (
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-redlight/pkg/interval"
	"github.com/teslashibe/go-redlight/pkg/timer"
)

const tick = 20 * time.Millisecond

func newMachine(t *testing.T, cfg Config) (*Machine, *timer.Scheduler) {
	t.Helper()
	sched := timer.NewScheduler(tick)
	m, err := New(cfg, sched, interval.New(interval.Uniform, 3))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m, sched
}

// advanceUntil steps the scheduler until cond holds, returning the ticks taken.
func advanceUntil(t *testing.T, sched *timer.Scheduler, limit int, cond func() bool) int {
	t.Helper()
	for i := 1; i <= limit; i++ {
		sched.Advance()
		if cond() {
			return i
		}
	}
	t.Fatalf("condition not met within %d ticks", limit)
	return 0
}

func TestStart_Idempotent(t *testing.T) {
	m, _ := newMachine(t, DefaultConfig())
	var changes []Change
	m.OnChange(func(c Change) { changes = append(changes, c) })

	if !m.Start() {
		t.Fatal("first Start() should start the loop")
	}
	if m.Start() {
		t.Error("second Start() should be a no-op")
	}
	if m.State() != Green {
		t.Errorf("State() = %v, want green", m.State())
	}
	if len(changes) != 1 || changes[0].From != Off || changes[0].To != Green {
		t.Errorf("changes = %+v, want one off->green", changes)
	}
}

func TestCycle_DwellWithinBoundsAndArming(t *testing.T) {
	cfg := DefaultConfig()
	m, sched := newMachine(t, cfg)
	m.Start()

	for cycle := 0; cycle < 20; cycle++ {
		green := advanceUntil(t, sched, 1000, func() bool { return m.State() == Yellow })
		minTicks, maxTicks := sched.Ticks(cfg.GreenToRed.Min), sched.Ticks(cfg.GreenToRed.Max)
		if green < minTicks || green > maxTicks {
			t.Errorf("cycle %d: green lasted %d ticks, want [%d, %d]", cycle, green, minTicks, maxTicks)
		}
		if m.Armed() {
			t.Fatal("detection armed during yellow")
		}

		delay := advanceUntil(t, sched, 1000, func() bool { return m.State() != Yellow })
		if m.State() != Red || !m.Armed() {
			t.Fatalf("after yellow: state=%v armed=%v, want armed red", m.State(), m.Armed())
		}
		if want := sched.Ticks(cfg.DetectionDelay); delay != want {
			t.Errorf("detection delay = %d ticks, want %d", delay, want)
		}

		red := delay + advanceUntil(t, sched, 1000, func() bool { return m.State() == Green })
		minTicks, maxTicks = sched.Ticks(cfg.RedToGreen.Min), sched.Ticks(cfg.RedToGreen.Max)
		if red < minTicks || red > maxTicks {
			t.Errorf("cycle %d: red lasted %d ticks, want [%d, %d]", cycle, red, minTicks, maxTicks)
		}
		if m.Armed() {
			t.Error("detection still armed after returning to green")
		}
	}
	if m.Cycles() != 20 {
		t.Errorf("Cycles() = %d, want 20", m.Cycles())
	}
}

func TestStop_CancelsPendingTransitions(t *testing.T) {
	m, sched := newMachine(t, DefaultConfig())
	m.Start()
	advanceUntil(t, sched, 1000, func() bool { return m.State() == Yellow })

	m.Stop()
	if m.State() != Off || m.Armed() || m.Running() {
		t.Fatalf("after Stop: state=%v armed=%v running=%v", m.State(), m.Armed(), m.Running())
	}
	for i := 0; i < 1000; i++ {
		sched.Advance()
	}
	if m.State() != Off {
		t.Errorf("light left OFF after Stop: %v", m.State())
	}
}

func TestPause_KeepsStateUntilStart(t *testing.T) {
	m, sched := newMachine(t, DefaultConfig())
	m.Start()
	advanceUntil(t, sched, 1000, func() bool { return m.State() == Red })

	m.Pause()
	for i := 0; i < 1000; i++ {
		sched.Advance()
	}
	if m.State() != Red {
		t.Fatalf("paused light changed to %v", m.State())
	}
	if !m.Start() || m.State() != Green {
		t.Errorf("Start after Pause: state=%v, want green", m.State())
	}
}

func TestDisableRed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisableRed = true
	m, sched := newMachine(t, cfg)
	m.Start()
	for i := 0; i < 2000; i++ {
		sched.Advance()
		if m.State() != Green {
			t.Fatalf("tick %d: state = %v with red disabled", i, m.State())
		}
	}
}

func TestNew_RejectsMalformedBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"green inverted", func(c *Config) { c.GreenToRed.Min, c.GreenToRed.Max = 8*time.Second, 2*time.Second }},
		{"red inverted", func(c *Config) { c.RedToGreen.Min, c.RedToGreen.Max = 4*time.Second, time.Second }},
		{"negative delay", func(c *Config) { c.DetectionDelay = -time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, timer.NewScheduler(tick), interval.New(interval.Uniform, 1))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
