package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-redlight/pkg/game"
	"github.com/teslashibe/go-redlight/pkg/hub"
	"github.com/teslashibe/go-redlight/pkg/protocol"
)

// handleStatus returns the engine snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.runner.Snapshot())
}

// handleSummary returns the last finished session's summary
func (s *Server) handleSummary(c *fiber.Ctx) error {
	sum, ok := s.runner.Summary()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no finished session")
	}
	return c.JSON(fiber.Map{
		"summary": sum,
		"text":    sum.String(),
	})
}

// handleConfig returns the session configuration
func (s *Server) handleConfig(c *fiber.Ctx) error {
	var cfg game.Config
	err := s.do(c, func(e *game.Engine) { cfg = e.Config() })
	if err != nil {
		return err
	}
	return c.JSON(cfg)
}

// handleStart starts a session from idle
func (s *Server) handleStart(c *fiber.Ctx) error {
	var started bool
	if err := s.do(c, func(e *game.Engine) { started = e.Start() }); err != nil {
		return err
	}
	if !started {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"started": false,
			"state":   s.runner.Snapshot().State,
		})
	}
	return c.JSON(fiber.Map{"started": true})
}

// handleStop ends a running session
func (s *Server) handleStop(c *fiber.Ctx) error {
	var stopped bool
	if err := s.do(c, func(e *game.Engine) { stopped = e.Stop() }); err != nil {
		return err
	}
	if !stopped {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"stopped": false,
			"state":   s.runner.Snapshot().State,
		})
	}
	return c.JSON(fiber.Map{"stopped": true})
}

// handleReset returns the engine to idle
func (s *Server) handleReset(c *fiber.Ctx) error {
	if err := s.do(c, func(e *game.Engine) { e.Reset() }); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"reset": true})
}

// HoldRequest is the request body for the penalty hold
type HoldRequest struct {
	On bool `json:"on"`
}

// handleHold sets or releases the penalty hold
func (s *Server) handleHold(c *fiber.Ctx) error {
	var req HoldRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.do(c, func(e *game.Engine) { e.Hold(req.On) }); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"hold": req.On})
}

// handleFrame accepts one skeletal frame
func (s *Server) handleFrame(c *fiber.Ctx) error {
	var fd protocol.FrameData
	if err := c.BodyParser(&fd); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	f, err := fd.ToFrame()
	if err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	s.runner.Push(f)
	return c.SendStatus(fiber.StatusAccepted)
}

// do runs fn on the engine goroutine, mapping runner errors to HTTP errors.
func (s *Server) do(c *fiber.Ctx, fn func(*game.Engine)) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), commandTimeout)
	defer cancel()
	err := s.runner.Do(ctx, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, game.ErrStopped):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "engine busy")
	default:
		return err
	}
}

// handleEventsWS streams engine events to a display client
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	client, err := hub.NewClient(s.events, conn)
	if err != nil {
		conn.Close()
		return
	}
	client.Run()
}

// handleClientMessage handles control and ping messages from displays.
func (s *Server) handleClientMessage(c *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.logger.Warn("bad client message", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeControl:
		ctrl, err := msg.GetControlData()
		if err != nil {
			s.logger.Warn("bad control message", "error", err)
			return
		}
		s.control(ctrl)

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return
		}
		pong, err := protocol.NewPongMessage(ping.ID, ping.Timestamp, time.Now().UnixMilli())
		if err != nil {
			return
		}
		if out, err := pong.Bytes(); err == nil {
			c.Send(out)
		}
	}
}

func (s *Server) control(ctrl *protocol.ControlData) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch ctrl.Action {
	case protocol.ActionStart:
		_, err = s.runner.Start(ctx)
	case protocol.ActionStop:
		_, err = s.runner.Stop(ctx)
	case protocol.ActionReset:
		err = s.runner.Reset(ctx)
	case protocol.ActionHold:
		err = s.runner.Hold(ctx, ctrl.On)
	default:
		s.logger.Warn("unknown control action", "action", ctrl.Action)
		return
	}
	if err != nil {
		s.logger.Warn("control failed", "action", ctrl.Action, "error", err)
	}
}
