package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-redlight/pkg/game"
	"github.com/teslashibe/go-redlight/pkg/protocol"
	"github.com/teslashibe/go-redlight/pkg/sensorhub"
	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

func testConfig() game.Config {
	cfg := game.DefaultConfig()
	cfg.SessionID = "web-test"
	cfg.Seed = 1
	cfg.Countdown = 0
	cfg.SessionDurations = nil
	cfg.TickRate = 2 * time.Millisecond
	cfg.FrameRate = 4 * time.Millisecond
	return cfg
}

// newServer builds a server around a running engine. The runner stops when
// the test ends.
func newServer(t *testing.T) (*Server, *game.Runner, context.CancelFunc) {
	t.Helper()
	e, err := game.New(testConfig())
	require.NoError(t, err)
	r := game.NewRunner(e)
	s := NewServer(Options{Addr: "127.0.0.1:0"}, r, sensorhub.NewHub())

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(cancel)
	require.Eventually(t, r.Running, time.Second, time.Millisecond)
	return s, r, cancel
}

func request(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestSessionLifecycle(t *testing.T) {
	s, r, _ := newServer(t)
	app := s.App()

	code, body := request(t, app, "GET", "/api/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"state":"idle"`)

	code, _ = request(t, app, "GET", "/api/summary", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = request(t, app, "POST", "/api/session/start", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"started":true}`, body)

	code, _ = request(t, app, "POST", "/api/session/start", "")
	assert.Equal(t, http.StatusConflict, code, "already started")

	require.Eventually(t, func() bool {
		return r.Snapshot().State == game.Active
	}, time.Second, 5*time.Millisecond)

	code, _ = request(t, app, "POST", "/api/session/stop", "")
	assert.Equal(t, http.StatusOK, code)

	code, body = request(t, app, "GET", "/api/summary", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"reason":"stopped"`)
	assert.Contains(t, body, "session=web-test")

	code, _ = request(t, app, "POST", "/api/session/stop", "")
	assert.Equal(t, http.StatusConflict, code, "nothing to stop")

	code, _ = request(t, app, "POST", "/api/session/reset", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, game.Idle, r.Snapshot().State)
}

func TestConfigEndpoint(t *testing.T) {
	s, _, _ := newServer(t)

	code, body := request(t, s.App(), "GET", "/api/config", "")
	require.Equal(t, http.StatusOK, code)

	var cfg game.Config
	require.NoError(t, json.Unmarshal([]byte(body), &cfg))
	assert.Equal(t, testConfig().Difficulty, cfg.Difficulty)
	assert.Equal(t, "web-test", cfg.SessionID)
}

func TestHold(t *testing.T) {
	s, _, _ := newServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"hold on", `{"on":true}`, http.StatusOK},
		{"hold off", `{"on":false}`, http.StatusOK},
		{"bad body", `{"on":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := request(t, s.App(), "POST", "/api/session/hold", tt.body)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestFrames(t *testing.T) {
	s, r, _ := newServer(t)
	noSensor := skeleton.AdviceNoSensor.String()
	require.Eventually(t, func() bool {
		return r.Snapshot().Advice == noSensor
	}, time.Second, 5*time.Millisecond)

	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "valid frame",
			body: `{"ts_us":1000,"bodies":[{"id":1,"tracked":true,"joints":{"spine_base":{"p":[0,0.9,0.8]}}}]}`,
			want: http.StatusAccepted,
		},
		{
			name: "tracked body without joints",
			body: `{"bodies":[{"id":1,"tracked":true,"joints":{}}]}`,
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "malformed",
			body: `{"bodies":`,
			want: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := request(t, s.App(), "POST", "/api/frames", tt.body)
			assert.Equal(t, tt.want, code)
		})
	}

	// A centred body in range clears the advice.
	require.Eventually(t, func() bool {
		return r.Snapshot().Advice == skeleton.AdviceOK.String()
	}, time.Second, 5*time.Millisecond)
}

func TestRunnerStopped(t *testing.T) {
	s, r, cancel := newServer(t)
	cancel()
	require.Eventually(t, func() bool { return !r.Running() }, time.Second, time.Millisecond)

	code, _ := request(t, s.App(), "POST", "/api/session/start", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestSensorRoutes(t *testing.T) {
	s, _, _ := newServer(t)

	code, body := request(t, s.App(), "GET", "/api/sensors/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"count":0`)

	code, _ = request(t, s.App(), "GET", "/ws/events", "")
	assert.Equal(t, fiber.StatusUpgradeRequired, code)
}

func TestEventStream(t *testing.T) {
	s, _, _ := newServer(t)
	summaries := make(chan game.Summary, 1)
	s.OnSummary = func(sum game.Summary) { summaries <- sum }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(ctx, ln)
	require.Eventually(t, s.Events().IsRunning, time.Second, time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/events", nil)
	require.NoError(t, err)
	defer ws.Close()

	read := func() *protocol.Message {
		t.Helper()
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		msg, err := protocol.ParseMessage(data)
		require.NoError(t, err)
		return msg
	}
	// waitFor reads until a message of type typ arrives.
	waitFor := func(typ protocol.MessageType) *protocol.Message {
		t.Helper()
		for {
			if msg := read(); msg.Type == typ {
				return msg
			}
		}
	}

	greeting := read()
	assert.Equal(t, protocol.TypeStatus, greeting.Type)

	send := func(msg *protocol.Message, err error) {
		t.Helper()
		require.NoError(t, err)
		data, err := msg.Bytes()
		require.NoError(t, err)
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
	}

	send(protocol.NewPingMessage("p", time.Now().UnixMilli()))
	pong, err := waitFor(protocol.TypePong).GetPongData()
	require.NoError(t, err)
	assert.Equal(t, "p", pong.ID)

	send(protocol.NewControlMessage(protocol.ActionStart, false))
	var session game.SessionData
	require.NoError(t, waitFor(protocol.TypeSession).ParseData(&session))
	assert.Equal(t, "web-test", session.ID)

	send(protocol.NewControlMessage(protocol.ActionStop, false))
	waitFor(protocol.TypeSummary)

	select {
	case sum := <-summaries:
		assert.Equal(t, game.ReasonStopped, sum.Reason)
	case <-time.After(time.Second):
		t.Fatal("OnSummary not called")
	}
}
