// Package sensorhub accepts WebSocket connections from body-tracker bridges
// and hands their skeletal frames to the game.
package sensorhub

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-redlight/internal/log"
	"github.com/teslashibe/go-redlight/pkg/debug"
	"github.com/teslashibe/go-redlight/pkg/protocol"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

// SensorConnection represents a connected tracker bridge
type SensorConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time
	Frames    uint64

	mu sync.Mutex
}

// Send sends a message to the sensor
func (s *SensorConnection) Send(msg *protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages WebSocket connections from sensors
type Hub struct {
	mu      sync.RWMutex
	sensors map[string]*SensorConnection

	onFrame func(sensorID string, frame *skeleton.Frame)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	framesRejected   atomic.Uint64

	logger *slog.Logger
}

// NewHub creates a new sensor hub
func NewHub() *Hub {
	return &Hub{
		sensors: make(map[string]*SensorConnection),
		logger:  log.With("component", "sensorhub"),
	}
}

// OnFrame sets the callback for incoming frames
func (h *Hub) OnFrame(callback func(sensorID string, frame *skeleton.Frame)) {
	h.mu.Lock()
	h.onFrame = callback
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/sensor", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/sensor", websocket.New(h.handleSensor))
	app.Get("/ws/sensor/:id", websocket.New(h.handleSensor))
}

// handleSensor handles a sensor WebSocket connection
func (h *Hub) handleSensor(c *websocket.Conn) {
	sensorID := c.Params("id")
	if sensorID == "" {
		sensorID = uuid.NewString()
	}

	sensor := &SensorConnection{
		ID:        sensorID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	h.mu.Lock()
	h.sensors[sensorID] = sensor
	count := len(h.sensors)
	h.mu.Unlock()
	h.logger.Info("sensor connected", "sensor", sensorID, "sensors", count)

	defer func() {
		h.mu.Lock()
		delete(h.sensors, sensorID)
		count := len(h.sensors)
		h.mu.Unlock()
		h.logger.Info("sensor disconnected", "sensor", sensorID, "sensors", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("sensor read error", "sensor", sensorID, "error", err)
			return
		}

		sensor.mu.Lock()
		sensor.LastSeen = time.Now()
		sensor.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(sensor, data)
	}
}

// handleMessage processes an incoming message from a sensor
func (h *Hub) handleMessage(sensor *SensorConnection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Warn("parse error", "sensor", sensor.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeFrame:
		frame, err := msg.GetFrame()
		if err != nil {
			h.framesRejected.Add(1)
			debug.Log("frame rejected", "sensor", sensor.ID, "error", err)
			return
		}
		h.framesReceived.Add(1)
		sensor.mu.Lock()
		sensor.Frames++
		sensor.mu.Unlock()

		h.mu.RLock()
		cb := h.onFrame
		h.mu.RUnlock()
		if cb != nil {
			cb(sensor.ID, frame)
		}

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			h.logger.Warn("bad ping", "sensor", sensor.ID, "error", err)
			return
		}
		if ping.Timestamp == 0 {
			ping.Timestamp = msg.Timestamp
		}
		if err := h.SendPong(sensor.ID, ping.ID, ping.Timestamp); err != nil {
			h.logger.Warn("pong failed", "sensor", sensor.ID, "error", err)
		}
	}
}

// SendPong sends a pong response to a sensor
func (h *Hub) SendPong(sensorID, pingID string, pingTS int64) error {
	msg, err := protocol.NewPongMessage(pingID, pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendToSensor(sensorID, msg)
}

// sendToSensor sends a message to a specific sensor
func (h *Hub) sendToSensor(sensorID string, msg *protocol.Message) error {
	h.mu.RLock()
	sensor, ok := h.sensors[sensorID]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "sensor not connected")
	}

	h.messagesSent.Add(1)
	return sensor.Send(msg)
}

// GetSensor returns a sensor connection by ID
func (h *Hub) GetSensor(sensorID string) *SensorConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sensors[sensorID]
}

// SensorCount returns the number of connected sensors
func (h *Hub) SensorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sensors)
}

// Stats contains hub statistics
type Stats struct {
	SensorCount      int    `json:"sensor_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	FramesRejected   uint64 `json:"frames_rejected"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		SensorCount:      h.SensorCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		FramesRejected:   h.framesRejected.Load(),
	}
}

// SensorInfo contains info about a connected sensor
type SensorInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Frames    uint64    `json:"frames"`
}

// GetSensorInfos returns info about all connected sensors
func (h *Hub) GetSensorInfos() []SensorInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]SensorInfo, 0, len(h.sensors))
	for _, s := range h.sensors {
		s.mu.Lock()
		infos = append(infos, SensorInfo{
			ID:        s.ID,
			Connected: s.Connected,
			LastSeen:  s.LastSeen,
			Frames:    s.Frames,
		})
		s.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for sensor management
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	sensors := api.Group("/sensors")

	sensors.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sensors": h.GetSensorInfos(),
			"count":   h.SensorCount(),
		})
	})

	sensors.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}
