package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/teslashibe/go-redlight/internal/log"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

// ErrStopped is returned by Runner commands once Run has returned.
var ErrStopped = errors.New("game: runner stopped")

// Runner drives an Engine in real time on a single goroutine. Frames and
// commands from other goroutines are handed over through a mailbox and a
// command channel; readers get snapshots published after every tick.
type Runner struct {
	engine *Engine
	cmds   chan func(*Engine)
	done   chan struct{}

	mu      sync.RWMutex
	frame   *skeleton.Frame
	frameAt time.Time
	snap    Snapshot
	summary *Summary
	running bool

	tap func(tick uint64, f *skeleton.Frame)

	logger *slog.Logger
}

// NewRunner wraps e. The runner owns e from now on.
func NewRunner(e *Engine) *Runner {
	return &Runner{
		engine: e,
		cmds:   make(chan func(*Engine)),
		done:   make(chan struct{}),
		snap:   e.Snapshot(),
		logger: log.With("component", "runner", "session", e.SessionID()),
	}
}

// SessionID returns the engine's session id.
func (r *Runner) SessionID() string { return r.engine.SessionID() }

// Subscribe registers fn for engine events. It must be called before Run.
func (r *Runner) Subscribe(fn func(Event)) {
	r.engine.Subscribe(fn)
}

// Config returns the engine's configuration with the session id filled in.
func (r *Runner) Config() Config {
	cfg := r.engine.Config()
	cfg.SessionID = r.engine.SessionID()
	return cfg
}

// Tap registers fn to see the frame handed to every tick, on the engine
// goroutine, before the tick runs. It must be called before Run.
func (r *Runner) Tap(fn func(tick uint64, f *skeleton.Frame)) {
	r.tap = fn
}

// Push stores f as the latest sensor frame. Older unconsumed frames are
// dropped.
func (r *Runner) Push(f *skeleton.Frame) {
	r.mu.Lock()
	r.frame = f
	r.frameAt = time.Now()
	r.mu.Unlock()
}

// Do runs fn on the engine goroutine and waits for it to complete.
func (r *Runner) Do(ctx context.Context, fn func(*Engine)) error {
	finished := make(chan struct{})
	cmd := func(e *Engine) {
		defer close(finished)
		fn(e)
	}
	select {
	case r.cmds <- cmd:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start starts the session.
func (r *Runner) Start(ctx context.Context) (started bool, err error) {
	err = r.Do(ctx, func(e *Engine) { started = e.Start() })
	return started, err
}

// Stop ends the session early.
func (r *Runner) Stop(ctx context.Context) (stopped bool, err error) {
	err = r.Do(ctx, func(e *Engine) { stopped = e.Stop() })
	return stopped, err
}

// Reset returns the engine to idle.
func (r *Runner) Reset(ctx context.Context) error {
	return r.Do(ctx, func(e *Engine) { e.Reset() })
}

// Hold sets or releases the penalty hold.
func (r *Runner) Hold(ctx context.Context, on bool) error {
	return r.Do(ctx, func(e *Engine) { e.Hold(on) })
}

// Snapshot returns the state published after the last tick.
func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Summary returns the finished session's summary.
func (r *Runner) Summary() (Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.summary == nil {
		return Summary{}, false
	}
	return *r.summary, true
}

// Running reports whether Run is active.
func (r *Runner) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Run ticks the engine until ctx is cancelled. A panic inside the engine is
// reported to Sentry and returned as an error.
func (r *Runner) Run(ctx context.Context) (err error) {
	cfg := r.engine.Config()
	tickTicker := time.NewTicker(cfg.TickRate)
	defer tickTicker.Stop()

	var frameC <-chan time.Time
	if cfg.FrameRate > 0 {
		frameTicker := time.NewTicker(cfg.FrameRate)
		defer frameTicker.Stop()
		frameC = frameTicker.C
	}

	r.setRunning(true)
	defer func() {
		r.setRunning(false)
		close(r.done)
	}()
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("engine panic", "panic", v)
			hub := sentry.CurrentHub().Clone()
			hub.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("session", r.engine.SessionID())
				scope.SetTag("state", r.engine.State().String())
			})
			hub.Recover(v)
			hub.Flush(5 * time.Second)
			err = fmt.Errorf("game: engine panic: %v", v)
		}
	}()

	r.logger.Info("runner started", "tick", cfg.TickRate, "frame", cfg.FrameRate)
	lastFrame := time.Now()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped")
			return nil

		case cmd := <-r.cmds:
			cmd(r.engine)
			r.publish()

		case <-tickTicker.C:
			f := r.latest(cfg.StaleFrame)
			if r.tap != nil {
				r.tap(r.engine.Scheduler().Now(), f)
			}
			r.engine.Tick(f)
			r.publish()

		case now := <-frameC:
			r.engine.Frame(now.Sub(lastFrame))
			lastFrame = now
		}
	}
}

// latest returns the newest frame, or nil once it is older than stale.
func (r *Runner) latest(stale time.Duration) *skeleton.Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.frame == nil {
		return nil
	}
	if stale > 0 && time.Since(r.frameAt) > stale {
		return nil
	}
	return r.frame
}

func (r *Runner) publish() {
	snap := r.engine.Snapshot()
	sum, ok := r.engine.Summary()
	r.mu.Lock()
	r.snap = snap
	if ok {
		r.summary = &sum
	} else {
		r.summary = nil
	}
	r.mu.Unlock()
}

func (r *Runner) setRunning(on bool) {
	r.mu.Lock()
	r.running = on
	r.mu.Unlock()
}
