package motion

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-redlight/pkg/difficulty"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

func TestWindow_KeepsLastN(t *testing.T) {
	const n = 5
	for k := 0; k < 12; k++ {
		w := NewWindow[int](n)
		for i := 0; i < n+k; i++ {
			w.Push(i)
			if w.Len() > n {
				t.Fatalf("Len() = %d > cap %d", w.Len(), n)
			}
		}
		got := w.Slice()
		if len(got) != n {
			t.Fatalf("k=%d: len = %d, want %d", k, len(got), n)
		}
		for i, v := range got {
			if want := k + i; v != want {
				t.Errorf("k=%d: item %d = %d, want %d", k, i, v, want)
			}
		}
	}
}

func TestWindow_EvictAndTail(t *testing.T) {
	w := NewWindow[int](3)
	for i := 1; i <= 3; i++ {
		if _, ok := w.Push(i); ok {
			t.Fatalf("unexpected eviction on push %d", i)
		}
	}
	old, ok := w.Push(4)
	if !ok || old != 1 {
		t.Errorf("Push(4) evicted (%d, %v), want (1, true)", old, ok)
	}
	tail := w.Tail(2)
	if len(tail) != 2 || tail[0] != 3 || tail[1] != 4 {
		t.Errorf("Tail(2) = %v, want [3 4]", tail)
	}
	if v, _ := w.Latest(); v != 4 {
		t.Errorf("Latest() = %d, want 4", v)
	}
	w.Clear()
	if w.Len() != 0 || w.Full() {
		t.Error("Clear() should empty the window")
	}
}

func TestWobbling_StraightLineNeverSuppressed(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		start := mgl64.Vec3{rng.Float64(), rng.Float64(), rng.Float64()}
		dir := mgl64.Vec3{rng.Float64() - 0.5, rng.Float64() - 0.5, rng.Float64() - 0.5}
		points := make([]mgl64.Vec3, 8)
		for j := range points {
			points[j] = start.Add(dir.Mul(float64(j)))
		}
		for _, factor := range []float64{1, DefaultWobbleFactor} {
			if Wobbling(points, factor) {
				d, n := Spread(points)
				t.Fatalf("straight line flagged at factor %v: diagonal=%v displacement=%v", factor, d, n)
			}
		}
	}
}

func TestWobbling_SwaySuppressed(t *testing.T) {
	points := []mgl64.Vec3{
		{0.5, 0.02, 2}, {-0.5, 0.04, 2}, {0.5, 0.06, 2}, {-0.5, 0.08, 2},
		{0.5, 0.10, 2}, {-0.5, 0.12, 2}, {-0.5, 0.14, 2}, {0.5, 0.16, 2},
	}
	d, n := Spread(points)
	if d <= DefaultWobbleFactor*n {
		t.Fatalf("fixture not wobbly enough: diagonal=%v displacement=%v", d, n)
	}
	if !Wobbling(points, DefaultWobbleFactor) {
		t.Error("expected sway to be suppressed")
	}
}

func mediumAnkle(t *testing.T) difficulty.Profile {
	t.Helper()
	p, err := difficulty.DefaultTable().Lookup(difficulty.Medium, skeleton.Ankle)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func ankleBody(left, right mgl64.Vec3) *skeleton.Body {
	return &skeleton.Body{
		TrackingID: 7,
		Tracked:    true,
		Joints: map[skeleton.JointType]skeleton.Joint{
			skeleton.SpineBase:  {Position: mgl64.Vec3{0, 0.8, 2}, State: skeleton.Tracked},
			skeleton.AnkleLeft:  {Position: left, State: skeleton.Tracked},
			skeleton.AnkleRight: {Position: right, State: skeleton.Tracked},
		},
	}
}

// liftHeight rises linearly to peak at tick peakTick and falls back.
func liftHeight(tick, peakTick int, peak float64) float64 {
	const rise = 10
	d := tick - peakTick
	if d < -rise || d > rise {
		return 0
	}
	if d < 0 {
		d = -d
	}
	return peak * float64(rise-d) / rise
}

func TestFilter_ClassifiesAtPeak(t *testing.T) {
	f, err := NewFilter(DefaultConfig(), mediumAnkle(t))
	if err != nil {
		t.Fatal(err)
	}

	var events []Event
	frame := &skeleton.Frame{}
	for tick := 1; tick <= 80; tick++ {
		y := liftHeight(tick, 50, 0.25)
		body := ankleBody(mgl64.Vec3{-0.1, y, 2}, mgl64.Vec3{0.1, 0, 2})
		events = append(events, f.Process(frame, body, uint64(tick))...)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(events), events)
	}
	ev := events[0]
	if ev.Joint != skeleton.AnkleLeft {
		t.Errorf("Joint = %v, want ankle_left", ev.Joint)
	}
	if ev.Tick != 50 {
		t.Errorf("Tick = %d, want 50", ev.Tick)
	}
	if math.Abs(ev.Height-0.25) > 1e-9 {
		t.Errorf("Height = %v, want 0.25", ev.Height)
	}
}

func TestFilter_ClampsHeight(t *testing.T) {
	f, _ := NewFilter(DefaultConfig(), mediumAnkle(t))
	var events []Event
	for tick := 1; tick <= 80; tick++ {
		y := liftHeight(tick, 50, 0.9)
		events = append(events, f.Process(nil, ankleBody(mgl64.Vec3{0, 0, 2}, mgl64.Vec3{0, y, 2}), uint64(tick))...)
	}
	if len(events) != 1 || events[0].Height != 0.4 {
		t.Fatalf("events = %+v, want one clamped to 0.4", events)
	}
}

func TestFilter_IgnoresSmallLifts(t *testing.T) {
	f, _ := NewFilter(DefaultConfig(), mediumAnkle(t))
	for tick := 1; tick <= 80; tick++ {
		y := liftHeight(tick, 50, 0.05)
		if evs := f.Process(nil, ankleBody(mgl64.Vec3{0, y, 2}, mgl64.Vec3{}), uint64(tick)); len(evs) != 0 {
			t.Fatalf("tick %d: unexpected events %+v", tick, evs)
		}
	}
}

func TestFilter_SuppressesSway(t *testing.T) {
	f, _ := NewFilter(DefaultConfig(), mediumAnkle(t))

	xs := []float64{0.5, -0.5, 0.5, -0.5, 0.5, -0.5, -0.5, 0.5}
	var events []Event
	tick := 0
	step := func(x, y float64) {
		tick++
		events = append(events, f.Process(nil, ankleBody(mgl64.Vec3{x, y, 2}, mgl64.Vec3{}), uint64(tick))...)
	}
	for i := 0; i < 20; i++ {
		step(0, 0)
	}
	for i, x := range xs {
		step(x, 0.02*float64(i+1))
	}
	for i := 0; i < 20; i++ {
		step(0.5, 0)
	}

	if len(events) != 0 {
		t.Errorf("sway produced events: %+v", events)
	}
	if f.Wobbles() == 0 {
		t.Error("expected at least one wobble rejection")
	}
}

func TestFilter_UntrackedAndBodyChange(t *testing.T) {
	f, _ := NewFilter(DefaultConfig(), mediumAnkle(t))
	body := ankleBody(mgl64.Vec3{}, mgl64.Vec3{})
	body.Joints[skeleton.AnkleRight] = skeleton.Joint{State: skeleton.NotTracked}

	for tick := 1; tick <= 5; tick++ {
		f.Process(nil, body, uint64(tick))
	}
	if got := f.Len(skeleton.AnkleLeft); got != 5 {
		t.Errorf("left window len = %d, want 5", got)
	}
	if got := f.Len(skeleton.AnkleRight); got != 0 {
		t.Errorf("untracked right window len = %d, want 0", got)
	}

	other := ankleBody(mgl64.Vec3{}, mgl64.Vec3{})
	other.TrackingID = 99
	f.Process(nil, other, 6)
	if got := f.Len(skeleton.AnkleLeft); got != 1 {
		t.Errorf("after body change left len = %d, want 1", got)
	}

	if evs := f.Process(nil, nil, 7); evs != nil {
		t.Errorf("nil body produced %+v", evs)
	}
	f.Clear()
	if !f.Empty() {
		t.Error("Clear() left samples behind")
	}
}

func TestFilter_KneeUsesDepth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Class = skeleton.Knee
	p, _ := difficulty.DefaultTable().Lookup(difficulty.Medium, skeleton.Knee)
	f, err := NewFilter(cfg, p)
	if err != nil {
		t.Fatal(err)
	}

	var events []Event
	for tick := 1; tick <= 80; tick++ {
		forward := liftHeight(tick, 40, 0.2)
		body := &skeleton.Body{TrackingID: 1, Tracked: true, Joints: map[skeleton.JointType]skeleton.Joint{
			skeleton.KneeLeft:  {Position: mgl64.Vec3{0, 0.5, 2 - forward}, State: skeleton.Tracked},
			skeleton.KneeRight: {Position: mgl64.Vec3{0, 0.5, 2}, State: skeleton.Tracked},
		}}
		events = append(events, f.Process(nil, body, uint64(tick))...)
	}
	if len(events) != 1 || events[0].Joint != skeleton.KneeLeft {
		t.Fatalf("events = %+v, want one knee_left lift", events)
	}
	if math.Abs(events[0].Height-0.2) > 1e-9 {
		t.Errorf("Height = %v, want 0.2", events[0].Height)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tiny queue", func(c *Config) { c.QueueSize = 1 }},
		{"tail too long", func(c *Config) { c.WobbleTail = c.QueueSize }},
		{"factor below one", func(c *Config) { c.WobbleFactor = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := NewFilter(cfg, difficulty.DefaultTable()[difficulty.Easy].Ankle); err == nil {
				t.Error("expected error")
			}
		})
	}
}
