// Package feed connects out to a body-tracker bridge and streams its
// skeletal frames into the game.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-redlight/internal/log"
	"github.com/teslashibe/go-redlight/pkg/debug"
	"github.com/teslashibe/go-redlight/pkg/protocol"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

const (
	reconnectBaseDelay = 500 * time.Millisecond
	reconnectMaxDelay  = 10 * time.Second

	handshakeTimeout = 10 * time.Second
	readTimeout      = 30 * time.Second
	writeWait        = 5 * time.Second
)

// ErrNoURL is returned by Run when the client has no bridge URL.
var ErrNoURL = errors.New("feed: no bridge url")

// Client reads frames from a tracker bridge, reconnecting with exponential
// backoff until its context is cancelled.
type Client struct {
	url    string
	dialer websocket.Dialer

	// OnFrame receives every decoded frame. Set before Run.
	OnFrame func(f *skeleton.Frame)
	// OnConnect is called after each successful dial.
	OnConnect func()

	// connMu guards connected and serializes writes
	connMu    sync.Mutex
	connected bool

	frames   atomic.Uint64
	rejected atomic.Uint64
	dials    atomic.Uint64

	logger *slog.Logger
}

// NewClient creates a client for the bridge at url (ws:// or wss://).
func NewClient(url string) *Client {
	return &Client{
		url: url,
		dialer: websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		logger: log.With("component", "feed", "url", url),
	}
}

// Run connects and reads until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if c.url == "" {
		return ErrNoURL
	}

	delay := reconnectBaseDelay
	for {
		dials := c.dials.Load()
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if c.dials.Load() > dials {
			delay = reconnectBaseDelay
		}
		c.logger.Warn("bridge connection lost", "error", err, "retry", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

// session runs one connection. It returns nil when the bridge closed the
// connection normally.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.dials.Add(1)
	c.setConnected(true)
	defer c.setConnected(false)

	// unblock ReadMessage on cancel
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	c.logger.Info("connected to bridge")
	if c.OnConnect != nil {
		c.OnConnect()
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		c.connMu.Lock()
		defer c.connMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		c.handle(conn, data)
	}
}

func (c *Client) handle(conn *websocket.Conn, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		c.rejected.Add(1)
		c.logger.Warn("parse error", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeFrame:
		f, err := msg.GetFrame()
		if err != nil {
			c.rejected.Add(1)
			debug.Log("frame rejected", "error", err)
			return
		}
		c.frames.Add(1)
		if c.OnFrame != nil {
			c.OnFrame(f)
		}

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return
		}
		pong, err := protocol.NewPongMessage(ping.ID, ping.Timestamp, time.Now().UnixMilli())
		if err != nil {
			return
		}
		out, err := pong.Bytes()
		if err != nil {
			return
		}
		c.connMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteMessage(websocket.TextMessage, out)
		c.connMu.Unlock()
		if err != nil {
			c.logger.Warn("pong failed", "error", err)
		}
	}
}

func (c *Client) setConnected(on bool) {
	c.connMu.Lock()
	c.connected = on
	c.connMu.Unlock()
}

// IsConnected returns true while a bridge connection is open.
func (c *Client) IsConnected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connected
}

// Stats contains client counters
type Stats struct {
	Connected bool   `json:"connected"`
	Dials     uint64 `json:"dials"`
	Frames    uint64 `json:"frames"`
	Rejected  uint64 `json:"rejected"`
}

// GetStats returns client counters
func (c *Client) GetStats() Stats {
	return Stats{
		Connected: c.IsConnected(),
		Dials:     c.dials.Load(),
		Frames:    c.frames.Load(),
		Rejected:  c.rejected.Load(),
	}
}
