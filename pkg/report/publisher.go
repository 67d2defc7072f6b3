// Package report posts finished session summaries to a results endpoint.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/teslashibe/go-redlight/internal/httpc"
	"github.com/teslashibe/go-redlight/internal/log"
	"github.com/teslashibe/go-redlight/pkg/game"
)

const (
	defaultAttempts = 3
	defaultBackoff  = time.Second
)

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("report: endpoint returned %d: %s", e.Code, e.Body)
}

// Payload is the JSON body sent for each session.
type Payload struct {
	game.Summary
	Text     string    `json:"text"`
	Reported time.Time `json:"reported_at"`
}

// Publisher sends summaries to a URL.
type Publisher struct {
	url      string
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

// NewPublisher creates a publisher for url.
func NewPublisher(url string) *Publisher {
	return &Publisher{
		url:      url,
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		logger:   log.With("component", "report"),
	}
}

// Publish posts sum, retrying transport errors and 5xx responses.
func (p *Publisher) Publish(ctx context.Context, sum game.Summary) error {
	body, err := json.Marshal(Payload{Summary: sum, Text: sum.String(), Reported: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		lastErr = p.post(ctx, body)
		if lastErr == nil {
			p.logger.Info("summary published", "session", sum.SessionID, "attempt", attempt)
			return nil
		}
		if se, ok := lastErr.(*StatusError); ok && se.Code < 500 {
			return lastErr
		}
		p.logger.Warn("publish failed", "session", sum.SessionID, "attempt", attempt, "error", lastErr)
		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(attempt)):
		}
	}
	return lastErr
}

func (p *Publisher) post(ctx context.Context, body []byte) error {
	resp, err := httpc.Post(ctx, p.url, "application/json", body)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: string(msg)}
}
