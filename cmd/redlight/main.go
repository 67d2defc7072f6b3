// redlight runs a red light / green light game server. Skeletal frames
// arrive from tracker bridges; display clients follow the game over
// WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"

	"github.com/teslashibe/go-redlight/internal/config"
	"github.com/teslashibe/go-redlight/internal/log"
	"github.com/teslashibe/go-redlight/pkg/debug"
	"github.com/teslashibe/go-redlight/pkg/feed"
	"github.com/teslashibe/go-redlight/pkg/game"
	"github.com/teslashibe/go-redlight/pkg/replay"
	"github.com/teslashibe/go-redlight/pkg/report"
	"github.com/teslashibe/go-redlight/pkg/sensorhub"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
	"github.com/teslashibe/go-redlight/pkg/web"
)

type options struct {
	configPath string
	replayPath string
	realtime   bool
	statsview  string
	accessLog  bool
}

func main() {
	cfg, opts, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, "redlight:", err)
		os.Exit(2)
	}

	log.Init(cfg.LogLevel)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Warn("sentry init failed", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	if opts.statsview != "" {
		// set configurations before calling statsview.New()
		viewer.SetConfiguration(viewer.WithAddr(opts.statsview))
		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
		log.Info("statsview enabled", "addr", "http://"+opts.statsview+"/debug/statsview")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.replayPath != "" {
		err = runReplay(ctx, opts)
	} else {
		err = run(ctx, cfg, opts)
	}
	if err != nil {
		log.Error("redlight failed", "error", err)
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}

// parseFlags loads the config file and environment, then applies flags.
func parseFlags() (config.Config, options, error) {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file")
	mode := flag.String("mode", "", "Game mode: stationary or race")
	level := flag.String("difficulty", "", "Difficulty: easy, medium or hard")
	port := flag.String("port", "", "HTTP port (overrides REDLIGHT_PORT)")
	feedURL := flag.String("feed", "", "Tracker bridge WebSocket URL to connect to")
	record := flag.String("record", "", "Write a replay of the session to this file")
	flag.StringVar(&opts.replayPath, "replay", "", "Play back a recording and print its summary")
	flag.BoolVar(&opts.realtime, "realtime", false, "Pace -replay at the recorded tick rate")
	summaryURL := flag.String("summary-url", "", "POST finished session summaries here")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	debugMotion := flag.Bool("debug-motion", false, "Log per-frame motion signals")
	disableRed := flag.Bool("disable-red", false, "Keep the light green (debug)")
	flag.StringVar(&opts.statsview, "statsview", "", "Serve runtime stats on this address, e.g. localhost:18066")
	flag.BoolVar(&opts.accessLog, "access-log", false, "Log every HTTP request")
	flag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, opts, err
	}

	if *mode != "" {
		if err := cfg.SetMode(*mode); err != nil {
			return cfg, opts, err
		}
	}
	if *level != "" {
		if err := cfg.SetDifficulty(*level); err != nil {
			return cfg, opts, err
		}
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *feedURL != "" {
		cfg.FeedURL = *feedURL
	}
	if *record != "" {
		cfg.Record = *record
	}
	if *summaryURL != "" {
		cfg.SummaryURL = *summaryURL
	}
	if *disableRed {
		cfg.Game.Light.DisableRed = true
	}

	debug.Enabled = *debugFlag
	debug.Motion = *debugMotion
	if debug.Enabled || debug.Motion {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return cfg, opts, err
	}
	return cfg, opts, nil
}

// run serves a live game until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engine, err := game.New(cfg.Game)
	if err != nil {
		return err
	}
	runner := game.NewRunner(engine)
	logger := log.With("session", runner.SessionID())

	if cfg.Record != "" {
		rec, err := replay.Create(cfg.Record, runner.Config())
		if err != nil {
			return err
		}
		rec.Attach(runner)
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Warn("recording incomplete", "error", err)
			}
		}()
		logger.Info("recording session", "path", cfg.Record)
	}

	sensors := sensorhub.NewHub()
	sensors.OnFrame(func(_ string, f *skeleton.Frame) { runner.Push(f) })

	server := web.NewServer(web.Options{
		Addr:      cfg.Addr(),
		StaticDir: cfg.StaticDir,
		AccessLog: opts.accessLog,
	}, runner, sensors)

	if cfg.SummaryURL != "" {
		pub := report.NewPublisher(cfg.SummaryURL)
		server.OnSummary = func(sum game.Summary) {
			pctx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if err := pub.Publish(pctx, sum); err != nil {
				logger.Error("publish summary", "error", err)
			}
		}
	}

	errc := make(chan error, 3)
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		errc <- runner.Run(ctx)
	}()
	// the recorder is closed by a deferred call; the runner must be gone by then
	defer func() {
		cancel()
		<-runnerDone
	}()
	go func() { errc <- server.Run(ctx) }()

	if cfg.FeedURL != "" {
		client := feed.NewClient(cfg.FeedURL)
		client.OnFrame = runner.Push
		go func() { errc <- client.Run(ctx) }()
	}

	logger.Info("redlight started",
		"addr", cfg.Addr(),
		"mode", cfg.Game.GameMode.Mode.String(),
		"difficulty", cfg.Game.Difficulty.String())

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errc:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// runReplay plays a recording and logs its summary.
func runReplay(ctx context.Context, opts options) error {
	rec, err := replay.Open(opts.replayPath)
	if err != nil {
		return err
	}
	log.Info("replaying", "path", opts.replayPath,
		"session", rec.Header.Config.SessionID, "ticks", rec.Ticks(), "recorded", rec.Header.RecordedAt)

	engine, err := replay.Play(ctx, rec, replay.Options{
		Realtime: opts.realtime,
		Observer: func(ev game.Event) {
			debug.Log("event", "type", ev.Type, "tick", ev.Tick, "data", ev.Data)
		},
	})
	if err != nil {
		return err
	}

	sum, ok := engine.Summary()
	if !ok {
		log.Info("replay finished without a session summary", "state", engine.State().String())
		return nil
	}
	fmt.Println(sum.String())
	return nil
}
