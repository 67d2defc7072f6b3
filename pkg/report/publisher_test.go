package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-redlight/pkg/game"
)

func testSummary() game.Summary {
	return game.Summary{
		SessionID: "s1",
		Reason:    game.ReasonWon,
		Points:    250,
		Distance:  2.5,
		Elapsed:   10 * time.Second,
	}
}

func TestPublish(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := NewPublisher(srv.URL)
	require.NoError(t, p.Publish(context.Background(), testSummary()))

	assert.Equal(t, "s1", got["session_id"])
	assert.Equal(t, "won", got["reason"])
	assert.Contains(t, got["text"], "points=250")
	assert.NotEmpty(t, got["reported_at"])
}

func TestPublish_Retries(t *testing.T) {
	tests := []struct {
		name      string
		codes     []int
		wantCalls int32
		wantErr   bool
	}{
		{"server error then ok", []int{500, 200}, 2, false},
		{"client error is final", []int{400, 200}, 1, true},
		{"gives up", []int{503, 503, 503, 200}, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.codes[n-1])
			}))
			defer srv.Close()

			p := NewPublisher(srv.URL)
			p.backoff = time.Millisecond
			err := p.Publish(context.Background(), testSummary())
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				var se *StatusError
				assert.ErrorAs(t, err, &se)
			}
		})
	}
}

func TestPublish_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPublisher(srv.URL)
	p.backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Publish(ctx, testSummary()), context.DeadlineExceeded)
}
