package replay

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-redlight/pkg/game"
	"github.com/teslashibe/go-redlight/pkg/protocol"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

func testConfig() game.Config {
	cfg := game.DefaultConfig()
	cfg.SessionID = "replay-test"
	cfg.Countdown = 0
	cfg.SessionDurations = nil
	cfg.TickRate = 2 * time.Millisecond
	cfg.FrameRate = 0
	return cfg
}

func playerFrame(lift float64) *skeleton.Frame {
	return &skeleton.Frame{
		Bodies: []skeleton.Body{{
			TrackingID: 1,
			Tracked:    true,
			Joints: map[skeleton.JointType]skeleton.Joint{
				skeleton.SpineBase:  {Position: mgl64.Vec3{0, 0.9, 0.7}, State: skeleton.Tracked},
				skeleton.AnkleLeft:  {Position: mgl64.Vec3{-0.1, lift, 0.7}, State: skeleton.Tracked},
				skeleton.AnkleRight: {Position: mgl64.Vec3{0.1, 0, 0.7}, State: skeleton.Tracked},
			},
		}},
	}
}

type collector struct {
	mu     sync.Mutex
	events []game.Event
}

func (c *collector) add(ev game.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

// recordSession runs a live session with a player stepping in place and
// returns the recording and the events the live engine emitted.
func recordSession(t *testing.T) ([]byte, []game.Event) {
	t.Helper()
	e, err := game.New(testConfig())
	require.NoError(t, err)
	runner := game.NewRunner(e)

	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, runner.Config())
	require.NoError(t, err)
	rec.Attach(runner)

	live := &collector{}
	runner.Subscribe(live.add)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- runner.Run(ctx) }()

	runner.Push(playerFrame(0))
	_, err = runner.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, runner.Hold(ctx, true))
	require.NoError(t, runner.Hold(ctx, false))

	for i := 0; i < 40; i++ {
		lift := 0.0
		if i%4 < 2 {
			lift = 0.2
		}
		runner.Push(playerFrame(lift))
		time.Sleep(3 * time.Millisecond)
	}
	_, err = runner.Stop(ctx)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	cancel()
	require.NoError(t, <-errc)
	require.NoError(t, rec.Close())
	assert.ErrorIs(t, rec.Close(), ErrClosed)

	live.mu.Lock()
	defer live.mu.Unlock()
	return buf.Bytes(), live.events
}

func TestRecordAndPlay_Deterministic(t *testing.T) {
	data, liveEvents := recordSession(t)

	rec, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, rec.Version)
	assert.Equal(t, "replay-test", rec.Header.Config.SessionID)
	assert.Greater(t, rec.Ticks(), 10)

	var actions []string
	for _, e := range rec.Entries {
		if e.Action != "" {
			actions = append(actions, e.Action)
		}
	}
	assert.Equal(t, []string{protocol.ActionStart, protocol.ActionHold, actionRelease, protocol.ActionStop}, actions)

	replayed := &collector{}
	e, err := Play(context.Background(), rec, Options{Observer: replayed.add})
	require.NoError(t, err)

	assert.Equal(t, liveEvents, replayed.events)
	sum, ok := e.Summary()
	require.True(t, ok)
	assert.Equal(t, game.ReasonStopped, sum.Reason)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", nil},
		{"wrong version", "2\n{}\n", ErrVersion},
		{"missing header", "1\n", nil},
		{"bad header", "1\nnot json\n", nil},
		{"bad entry", "1\n{}\n{\"tick\":\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestPlay_Errors(t *testing.T) {
	rec := &Recording{
		Version: CurrentVersion,
		Header:  Header{Config: testConfig()},
		Entries: []Entry{{Tick: 0, Action: "jump"}},
	}
	_, err := Play(context.Background(), rec, Options{})
	assert.ErrorContains(t, err, "unknown action")

	rec.Header.Config.TickRate = 0
	_, err = Play(context.Background(), rec, Options{})
	assert.ErrorIs(t, err, game.ErrInvalidConfig)
}

func TestPlay_RealtimeCancel(t *testing.T) {
	rec := &Recording{
		Version: CurrentVersion,
		Header:  Header{Config: testConfig()},
	}
	rec.Header.Config.TickRate = time.Hour
	for i := uint64(0); i < 3; i++ {
		rec.Entries = append(rec.Entries, Entry{Tick: i})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Play(ctx, rec, Options{Realtime: true})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
