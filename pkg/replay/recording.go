// Package replay records the frames and commands a session saw and plays
// them back through a fresh engine. Playback is deterministic: the same
// recording always produces the same events and summary.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/teslashibe/go-redlight/internal/log"
	"github.com/teslashibe/go-redlight/pkg/game"
	"github.com/teslashibe/go-redlight/pkg/protocol"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

// CurrentVersion is written as the first line of every recording.
const CurrentVersion = "1"

// actionRelease records a hold being released.
const actionRelease = "release"

// queueSize bounds the entries waiting for the writer goroutine.
const queueSize = 1024

var (
	// ErrVersion is returned for recordings written by another format version.
	ErrVersion = errors.New("replay: unsupported recording version")
	// ErrClosed is returned when writing to a closed recorder.
	ErrClosed = errors.New("replay: recorder closed")
)

// Header is the second line of a recording.
type Header struct {
	Config     game.Config `json:"config"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// Entry is one line after the header. An entry with an action is a session
// command issued before the tick; one without is a tick and its frame.
type Entry struct {
	Tick   uint64              `json:"tick"`
	Action string              `json:"action,omitempty"`
	Frame  *protocol.FrameData `json:"frame,omitempty"`
}

// Recording is a decoded recording.
type Recording struct {
	Version string
	Header  Header
	Entries []Entry
}

// Ticks returns the number of tick entries.
func (r *Recording) Ticks() int {
	n := 0
	for _, e := range r.Entries {
		if e.Action == "" {
			n++
		}
	}
	return n
}

// Recorder writes a recording as JSON lines from a background goroutine.
type Recorder struct {
	closer io.Closer
	queue  chan Entry
	done   chan struct{}
	err    error

	dropped int
	closed  bool

	logger *slog.Logger
}

// NewRecorder writes the version and header to w and starts the writer.
func NewRecorder(w io.Writer, cfg game.Config) (*Recorder, error) {
	head, err := json.Marshal(Header{Config: cfg, RecordedAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("replay: encode header: %w", err)
	}
	bw := bufio.NewWriter(w)
	bw.WriteString(CurrentVersion + "\n")
	bw.Write(head)
	if err := bw.WriteByte('\n'); err != nil {
		return nil, fmt.Errorf("replay: write header: %w", err)
	}

	r := &Recorder{
		queue:  make(chan Entry, queueSize),
		done:   make(chan struct{}),
		logger: log.With("component", "replay", "session", cfg.SessionID),
	}
	go r.write(bw)
	return r, nil
}

// Create records to a new file at path, replacing any existing one.
func Create(path string, cfg game.Config) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	r, err := NewRecorder(f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Attach records everything runner does from now on. Call before runner.Run.
func (r *Recorder) Attach(runner *game.Runner) {
	runner.Tap(r.Frame)
	runner.Subscribe(r.observe)
}

// Frame records one tick. It never blocks; entries are dropped when the
// writer falls behind.
func (r *Recorder) Frame(tick uint64, f *skeleton.Frame) {
	e := Entry{Tick: tick}
	if f != nil {
		fd := protocol.NewFrameData(f, tick)
		e.Frame = &fd
	}
	r.enqueue(e)
}

// Action records a session command issued at tick.
func (r *Recorder) Action(tick uint64, action string) {
	r.enqueue(Entry{Tick: tick, Action: action})
}

// observe derives commands from session transitions.
func (r *Recorder) observe(ev game.Event) {
	if hold, ok := ev.Data.(game.HoldData); ok {
		action := protocol.ActionHold
		if !hold.On {
			action = actionRelease
		}
		r.Action(ev.Tick, action)
		return
	}
	data, ok := ev.Data.(game.SessionData)
	if !ok {
		return
	}
	switch {
	case data.State == game.Countdown:
		r.Action(ev.Tick, protocol.ActionStart)
	case data.State == game.Finished && data.Reason == game.ReasonStopped:
		r.Action(ev.Tick, protocol.ActionStop)
	case data.State == game.Idle:
		r.Action(ev.Tick, protocol.ActionReset)
	}
}

func (r *Recorder) enqueue(e Entry) {
	if r.closed {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.dropped++
		if r.dropped == 1 {
			r.logger.Warn("recording is falling behind, dropping entries")
		}
	}
}

func (r *Recorder) write(bw *bufio.Writer) {
	defer close(r.done)
	enc := json.NewEncoder(bw)
	for e := range r.queue {
		if r.err != nil {
			continue
		}
		if err := enc.Encode(e); err != nil {
			r.err = fmt.Errorf("replay: write entry: %w", err)
		}
	}
	if err := bw.Flush(); err != nil && r.err == nil {
		r.err = fmt.Errorf("replay: flush: %w", err)
	}
}

// Close flushes pending entries. It must not race with Frame or Action;
// call it after the runner has stopped.
func (r *Recorder) Close() error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	close(r.queue)
	<-r.done
	if r.dropped > 0 {
		r.logger.Warn("recording incomplete", "dropped", r.dropped)
	}
	if r.closer != nil {
		if err := r.closer.Close(); err != nil && r.err == nil {
			r.err = err
		}
	}
	return r.err
}

// Decode reads a recording.
func Decode(rd io.Reader) (*Recording, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	rec := &Recording{}
	if !sc.Scan() {
		return nil, fmt.Errorf("replay: empty recording: %w", io.ErrUnexpectedEOF)
	}
	rec.Version = strings.TrimSpace(sc.Text())
	if rec.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %q", ErrVersion, rec.Version)
	}

	if !sc.Scan() {
		return nil, fmt.Errorf("replay: missing header: %w", io.ErrUnexpectedEOF)
	}
	if err := json.Unmarshal(sc.Bytes(), &rec.Header); err != nil {
		return nil, fmt.Errorf("replay: decode header: %w", err)
	}

	line := 2
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("replay: line %d: %w", line, err)
		}
		rec.Entries = append(rec.Entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	return rec, nil
}

// Open reads the recording at path.
func Open(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Options controls playback.
type Options struct {
	// Realtime paces ticks at the recorded tick rate instead of running
	// as fast as possible.
	Realtime bool
	// Observer receives every engine event.
	Observer func(game.Event)
}

// Play runs rec through a new engine built from the recorded config and
// returns it once every entry has been applied.
func Play(ctx context.Context, rec *Recording, opts Options) (*game.Engine, error) {
	e, err := game.New(rec.Header.Config)
	if err != nil {
		return nil, err
	}
	if opts.Observer != nil {
		e.Subscribe(opts.Observer)
	}

	var pace <-chan time.Time
	if opts.Realtime {
		t := time.NewTicker(rec.Header.Config.TickRate)
		defer t.Stop()
		pace = t.C
	}

	for _, entry := range rec.Entries {
		switch entry.Action {
		case protocol.ActionStart:
			e.Start()
			continue
		case protocol.ActionStop:
			e.Stop()
			continue
		case protocol.ActionReset:
			e.Reset()
			continue
		case protocol.ActionHold, actionRelease:
			e.Hold(entry.Action == protocol.ActionHold)
			continue
		case "":
		default:
			return e, fmt.Errorf("replay: unknown action %q at tick %d", entry.Action, entry.Tick)
		}

		var f *skeleton.Frame
		if entry.Frame != nil {
			if f, err = entry.Frame.ToFrame(); err != nil {
				return e, fmt.Errorf("replay: tick %d: %w", entry.Tick, err)
			}
		}

		if pace != nil {
			select {
			case <-ctx.Done():
				return e, ctx.Err()
			case <-pace:
			}
		} else if err := ctx.Err(); err != nil {
			return e, err
		}
		e.Tick(f)
	}
	return e, nil
}
