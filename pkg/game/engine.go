// Package game wires the light, motion pipeline, game mode and penalty
// coordinator into a single tick-driven engine.
//
// Engine is not safe for concurrent use. Runner owns an engine on one
// goroutine and exposes a thread-safe surface to the rest of the process.
package game

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-redlight/internal/log"
	"github.com/teslashibe/go-redlight/pkg/classify"
	"github.com/teslashibe/go-redlight/pkg/debug"
	"github.com/teslashibe/go-redlight/pkg/difficulty"
	"github.com/teslashibe/go-redlight/pkg/gamemode"
	"github.com/teslashibe/go-redlight/pkg/interval"
	"github.com/teslashibe/go-redlight/pkg/light"
	"github.com/teslashibe/go-redlight/pkg/motion"
	"github.com/teslashibe/go-redlight/pkg/penalty"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
	"github.com/teslashibe/go-redlight/pkg/timer"
)

// SessionState is the engine's lifecycle phase.
type SessionState int

const (
	Idle SessionState = iota
	Countdown
	Active
	Finished
)

func (s SessionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Countdown:
		return "countdown"
	case Active:
		return "active"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("session(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *SessionState) UnmarshalText(text []byte) error {
	for v := Idle; v <= Finished; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("game: unknown session state %q", text)
}

// Reasons a session finishes.
const (
	ReasonWon     = "won"
	ReasonTimeUp  = "time_up"
	ReasonStopped = "stopped"
)

// Snapshot is a point-in-time view of the engine.
type Snapshot struct {
	SessionID  string            `json:"session_id"`
	State      SessionState      `json:"state"`
	Tick       uint64            `json:"tick"`
	Mode       gamemode.Mode     `json:"mode"`
	Difficulty difficulty.Level  `json:"difficulty"`
	Light      light.State       `json:"light"`
	Armed      bool              `json:"armed"`
	Cycles     int               `json:"cycles"`
	Penalty    string            `json:"penalty"`
	Guarded    bool              `json:"guarded"`
	Advice     string            `json:"advice"`
	Modifier   float64           `json:"modifier"`
	Remaining  time.Duration     `json:"remaining"`
	Progress   gamemode.Progress `json:"progress"`
	Score      gamemode.Score    `json:"score"`
}

// Engine runs one game session.
type Engine struct {
	cfg Config
	id  string

	sched      *timer.Scheduler
	gen        *interval.Generator
	light      *light.Machine
	filter     *motion.Filter
	classifier *classify.Classifier
	strategy   gamemode.Strategy
	penalty    *penalty.Coordinator

	state      SessionState
	countdown  *timer.Task
	session    *timer.Task
	restarting bool
	advice     skeleton.Advice
	activeTick uint64
	summary    *Summary

	lastProgress gamemode.Progress
	lastScore    gamemode.Score

	observers []func(Event)
	logger    *slog.Logger
}

// New validates cfg and builds an idle engine with the light OFF.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	profile, _ := cfg.Profile()

	id := cfg.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = interval.SeedFrom(id)
	}

	e := &Engine{
		cfg:    cfg,
		id:     id,
		sched:  timer.NewScheduler(cfg.TickRate),
		gen:    interval.New(cfg.Interval, seed),
		advice: -1,
		logger: log.With("component", "game", "session", id,
			"mode", cfg.GameMode.Mode.String(), "difficulty", cfg.Difficulty.String()),
	}

	lc := cfg.Light
	lc.DetectionDelay = profile.DetectionDelay
	var err error
	if e.light, err = light.New(lc, e.sched, e.gen); err != nil {
		return nil, invalid("light", err)
	}
	if e.filter, err = motion.NewFilter(cfg.Motion, profile); err != nil {
		return nil, invalid("motion", err)
	}
	if e.classifier, err = classify.New(cfg.Classify, profile, e.sched); err != nil {
		return nil, invalid("classify", err)
	}
	if e.strategy, err = gamemode.New(cfg.GameMode, cfg.TickRate); err != nil {
		return nil, invalid("game_mode", err)
	}

	pc := cfg.Penalty
	pc.Recovery = penalty.Resume
	pc.PenalizeDuringOff = false
	if cfg.GameMode.Mode == gamemode.Race {
		pc.Recovery = penalty.ReturnToStart
		pc.PenalizeDuringOff = cfg.GameMode.Race.PenalizeDuringOff
	}
	if e.penalty, err = penalty.New(pc, e.sched, e.light, e.strategy); err != nil {
		return nil, invalid("penalty", err)
	}

	e.light.OnChange(e.onLight)
	e.penalty.OnEvent(e.onPenalty)
	return e, nil
}

// SessionID returns the session identifier.
func (e *Engine) SessionID() string { return e.id }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// State returns the lifecycle phase.
func (e *Engine) State() SessionState { return e.state }

// Light returns the light machine.
func (e *Engine) Light() *light.Machine { return e.light }

// Strategy returns the active game mode.
func (e *Engine) Strategy() gamemode.Strategy { return e.strategy }

// Penalty returns the penalty coordinator.
func (e *Engine) Penalty() *penalty.Coordinator { return e.penalty }

// Scheduler returns the tick scheduler.
func (e *Engine) Scheduler() *timer.Scheduler { return e.sched }

// Subscribe registers fn for every engine event. Subscribers run on the
// engine's goroutine and must not block.
func (e *Engine) Subscribe(fn func(Event)) {
	e.observers = append(e.observers, fn)
}

// Start runs the countdown and then starts the light. It only acts on an
// idle engine.
func (e *Engine) Start() bool {
	if e.state != Idle {
		return false
	}
	e.setState(Countdown, "")
	e.logger.Info("session starting", "countdown", e.cfg.Countdown)
	e.runCountdown(func() {
		e.setState(Active, "")
		if e.penalty.Guarded() {
			// a countdown penalty resumes the light once recovered
			e.logger.Info("light held until penalty recovery")
		} else {
			e.light.Start()
		}
		if d := e.cfg.SessionDuration(); d > 0 && e.cfg.GameMode.Mode == gamemode.Stationary {
			e.session = e.sched.After(d, func() { e.finish(ReasonTimeUp) })
		}
	})
	return true
}

// Stop ends a running session early and publishes its summary.
func (e *Engine) Stop() bool {
	if e.state != Countdown && e.state != Active {
		return false
	}
	e.finish(ReasonStopped)
	return true
}

// Hold keeps a stationary penalty from resuming until released.
func (e *Engine) Hold(on bool) {
	e.penalty.Hold(on)
	e.emit(EventHold, HoldData{On: on})
}

// Reset cancels every pending timer and returns all components to their
// initial state. The session id and seed are kept.
func (e *Engine) Reset() {
	e.sched.Clear()
	e.light.Reset()
	e.filter.Clear()
	e.classifier.Reset()
	e.strategy.Reset()
	e.penalty.Reset()

	e.countdown, e.session = nil, nil
	e.restarting = false
	e.advice = -1
	e.activeTick = 0
	e.summary = nil
	e.lastProgress, e.lastScore = gamemode.Progress{}, gamemode.Score{}
	e.setState(Idle, "")
	e.logger.Info("session reset")
}

// Tick advances the simulation by one fixed step. frame may be nil when
// the sensor produced nothing.
func (e *Engine) Tick(frame *skeleton.Frame) {
	now := e.sched.Now()
	state, armed := e.light.State(), e.light.Armed()

	body := frame.SelectCenter()
	e.advise(frame, body)

	if e.state == Countdown || e.state == Active {
		e.play(frame, body, now, state, armed)
	}

	if e.state == Active {
		e.activeTick++
	}
	e.sched.Advance()
	e.publishProgress(false)
}

// play runs motion, scoring and penalty checks for one tick using the
// light state captured before any timer fired.
func (e *Engine) play(frame *skeleton.Frame, body *skeleton.Body, now uint64, state light.State, armed bool) {
	events := e.filter.Process(frame, body, now)

	var results []classify.Result
	for _, ev := range events {
		debug.MotionLog("lift", "joint", ev.Joint.String(), "height", ev.Height, "tick", ev.Tick)
		res, ok := e.classifier.Classify(ev)
		if !ok {
			continue
		}
		results = append(results, res)
		e.emit(EventMovement, MovementData{
			Joint:    res.Joint,
			Height:   res.Height,
			Duration: res.Duration,
			Modifier: res.Modifier,
		})
	}

	in := gamemode.Input{
		Tick:     now,
		Light:    state,
		Armed:    armed,
		Guarded:  e.penalty.Guarded(),
		Motion:   len(events) > 0,
		Results:  results,
		Modifier: e.classifier.SpeedModifier(),
	}
	in.Distance, in.HasDistance = body.Distance()

	out := e.strategy.Update(in)
	if out.Moved {
		e.publishProgress(true)
	}
	e.penalty.Check(state, armed, out.Violation)

	if out.Won {
		e.finish(ReasonWon)
		return
	}
	if out.Returned && !e.restarting &&
		e.penalty.Phase() == penalty.Recovering && e.penalty.Config().Recovery == penalty.ReturnToStart {
		e.restart()
	}
}

// restart puts a race player back on the start line and resumes the light
// after a countdown.
func (e *Engine) restart() {
	e.restarting = true
	e.strategy.Restart()
	e.light.Stop()
	e.logger.Info("player returned to start")
	e.runCountdown(func() {
		e.restarting = false
		e.penalty.Recovered()
	})
}

func (e *Engine) runCountdown(done func()) {
	secs := int(math.Ceil(e.cfg.Countdown.Seconds()))
	e.countdownStep(secs, done)
}

func (e *Engine) countdownStep(remaining int, done func()) {
	e.emit(EventCountdown, CountdownData{Remaining: remaining})
	if remaining <= 0 {
		e.countdown = nil
		done()
		return
	}
	e.countdown = e.sched.After(time.Second, func() {
		e.countdownStep(remaining-1, done)
	})
}

func (e *Engine) finish(reason string) {
	e.countdown.Cancel()
	e.session.Cancel()
	e.countdown, e.session = nil, nil
	e.light.Stop()

	sum := e.buildSummary(reason)
	e.summary = &sum
	e.setState(Finished, reason)
	e.logger.Info("session finished", "reason", reason, "points", sum.Points, "failed", sum.Failed)
	e.emit(EventSummary, sum)
}

func (e *Engine) advise(frame *skeleton.Frame, body *skeleton.Body) {
	a := e.cfg.Placement.Advise(frame, body)
	if e.cfg.GameMode.Mode == gamemode.Race && a != skeleton.AdviceNoSensor && a != skeleton.AdviceNoUser {
		// race players walk the whole play area
		a = skeleton.AdviceOK
	}
	if a == e.advice {
		return
	}
	e.advice = a
	e.emit(EventAdvice, AdviceData{Advice: a, Message: a.String()})
}

func (e *Engine) publishProgress(moved bool) {
	p, s := e.strategy.Progress(), e.strategy.Score()
	if !moved && p == e.lastProgress && s == e.lastScore {
		return
	}
	e.lastProgress, e.lastScore = p, s
	e.emit(EventProgress, ProgressData{Progress: p, Score: s, Moved: moved})
}

// Frame advances display smoothing by dt.
func (e *Engine) Frame(dt time.Duration) {
	e.strategy.Frame(dt)
}

// Snapshot returns the current engine view.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:  e.id,
		State:      e.state,
		Tick:       e.sched.Now(),
		Mode:       e.strategy.Mode(),
		Difficulty: e.cfg.Difficulty,
		Light:      e.light.State(),
		Armed:      e.light.Armed(),
		Cycles:     e.light.Cycles(),
		Penalty:    e.penalty.Phase().String(),
		Guarded:    e.penalty.Guarded(),
		Modifier:   e.classifier.SpeedModifier(),
		Progress:   e.strategy.Progress(),
		Score:      e.strategy.Score(),
	}
	if e.advice >= 0 {
		snap.Advice = e.advice.String()
	}
	if e.session.Active() {
		snap.Remaining = time.Duration(e.session.Remaining()) * e.cfg.TickRate
	}
	return snap
}

// Summary returns the end-of-session summary once the session finished.
func (e *Engine) Summary() (Summary, bool) {
	if e.summary == nil {
		return Summary{}, false
	}
	return *e.summary, true
}

func (e *Engine) setState(s SessionState, reason string) {
	if s == e.state && reason == "" {
		return
	}
	e.state = s
	e.emit(EventSession, SessionData{ID: e.id, State: s, Reason: reason})
}

func (e *Engine) onLight(c light.Change) {
	e.logger.Debug("light", "from", c.From.String(), "to", c.To.String())
	e.emit(EventLight, LightData{From: c.From, State: c.To, Armed: e.light.Armed()})
}

func (e *Engine) onPenalty(ev penalty.Event) {
	data := PenaltyData{Points: ev.Points, Failed: ev.Failed, Score: e.strategy.Score().Points}
	switch ev.Kind {
	case penalty.KindTriggered:
		e.emit(EventPenalty, data)
	case penalty.KindReturnRequired:
		e.emit(EventReturnToStart, data)
	case penalty.KindRecovered:
		e.emit(EventRecovered, data)
	}
}

func (e *Engine) emit(t EventType, data any) {
	ev := Event{Type: t, Tick: e.sched.Now(), Data: data}
	for _, fn := range e.observers {
		fn(ev)
	}
}
