// Package web serves the game's HTTP API and the live event stream for
// display clients.
package web

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-redlight/internal/log"
	"github.com/teslashibe/go-redlight/pkg/game"
	"github.com/teslashibe/go-redlight/pkg/hub"
	"github.com/teslashibe/go-redlight/pkg/protocol"
	"github.com/teslashibe/go-redlight/pkg/sensorhub"
)

// commandTimeout bounds how long a request waits for the engine goroutine.
const commandTimeout = 2 * time.Second

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// StaticDir is served at / when set.
	StaticDir string
	// AccessLog enables per-request logging.
	AccessLog bool
}

// Server is the game's web front end
type Server struct {
	app     *fiber.App
	addr    string
	runner  *game.Runner
	sensors *sensorhub.Hub

	// events fans engine events out to display clients
	events *hub.Hub

	// OnSummary is called with the summary of every finished session.
	OnSummary func(game.Summary)

	logger *slog.Logger
}

// NewServer creates the server and subscribes it to runner's events. It must
// be called before runner.Run.
func NewServer(opts Options, runner *game.Runner, sensors *sensorhub.Hub) *Server {
	s := &Server{
		addr:    opts.Addr,
		runner:  runner,
		sensors: sensors,
		events:  hub.New("events"),
		logger:  log.With("component", "web"),
	}
	s.events.OnConnect(s.greet)
	s.events.OnMessage(s.handleClientMessage)
	runner.Subscribe(s.relay)

	app := fiber.New(fiber.Config{
		AppName:               "Red Light",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New())

	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/summary", s.handleSummary)
	api.Get("/config", s.handleConfig)
	api.Post("/session/start", s.handleStart)
	api.Post("/session/stop", s.handleStop)
	api.Post("/session/reset", s.handleReset)
	api.Post("/session/hold", s.handleHold)
	api.Post("/frames", s.handleFrame)

	if sensors != nil {
		sensors.RegisterRoutes(app)
		sensors.RegisterAPIRoutes(api)
	}

	// WebSocket upgrade middleware
	app.Use("/ws/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Events returns the event broadcast hub.
func (s *Server) Events() *hub.Hub {
	return s.events
}

// Run starts the event hub and serves HTTP until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is like Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.events.Run(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("shutdown", "error", err)
		}
	}()

	s.logger.Info("web server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// relay forwards an engine event to display clients. It runs on the engine
// goroutine and must not block.
func (s *Server) relay(ev game.Event) {
	msg, err := protocol.NewEventMessage(ev)
	if err != nil {
		s.logger.Error("encode event", "type", ev.Type, "error", err)
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		s.logger.Error("encode event", "type", ev.Type, "error", err)
		return
	}
	s.events.Broadcast(data)

	if ev.Type == game.EventSummary && s.OnSummary != nil {
		if sum, ok := ev.Data.(game.Summary); ok {
			go s.OnSummary(sum)
		}
	}
}

// greet sends the current status to a newly connected display.
func (s *Server) greet() ([]byte, bool) {
	msg, err := protocol.NewStatusMessage(s.runner.Snapshot())
	if err != nil {
		return nil, false
	}
	data, err := msg.Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}
