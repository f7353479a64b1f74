// Package gazeclient consumes a running tracker over its HTTP API: the
// /ws/gaze websocket feed and the control endpoints.
package gazeclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-gaze/internal/httpc"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/emit"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 90 * time.Second
	minBackoff       = 500 * time.Millisecond
	maxBackoff       = 10 * time.Second
)

// Client talks to one tracker.
type Client struct {
	base   string // http://host:port
	logger *slog.Logger
	dialer websocket.Dialer
}

// New returns a client for the tracker at addr ("host:port" or a full
// http URL).
func New(addr string, logger *slog.Logger) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		logger: log.Or(logger).With("component", "gazeclient"),
		dialer: websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// wsURL converts the base URL to the websocket URL for path.
func (c *Client) wsURL(path string) (string, error) {
	u, err := url.Parse(c.base + path)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}

// Stream reads gaze records from /ws/gaze and passes each to fn until ctx
// is done or fn returns an error. Dropped connections are retried with
// exponential backoff.
func (c *Client) Stream(ctx context.Context, fn func(emit.Record) error) error {
	u, err := c.wsURL("/ws/gaze")
	if err != nil {
		return err
	}

	backoff := minBackoff
	for {
		err := c.streamOnce(ctx, u, fn, func() { backoff = minBackoff })
		var stop stopError
		if errors.As(err, &stop) {
			return stop.err
		}
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("gaze stream lost, reconnecting", "url", u, "error", err, "in", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// stopError carries an error from the caller's callback out of the retry
// loop.
type stopError struct{ err error }

func (e stopError) Error() string { return e.err.Error() }

func (c *Client) streamOnce(ctx context.Context, u string, fn func(emit.Record) error, connected func()) error {
	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()
	connected()
	c.logger.Info("gaze stream connected", "url", u)

	// Unblock ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		var r emit.Record
		if err := json.Unmarshal(data, &r); err != nil {
			c.logger.Debug("skipping malformed record", "error", err)
			continue
		}
		if err := fn(r); err != nil {
			return stopError{err}
		}
	}
}

// Status fetches GET /api/status into out.
func (c *Client) Status(ctx context.Context, out any) error {
	return httpc.GetJSON(ctx, c.base+"/api/status", out)
}

// Monitors fetches GET /api/monitors into out.
func (c *Client) Monitors(ctx context.Context, out any) error {
	return httpc.GetJSON(ctx, c.base+"/api/monitors", out)
}

// Command posts a body-less control command: "pause", "resume",
// "calibration/begin", "calibration/finish" or "calibration/cancel".
func (c *Client) Command(ctx context.Context, name string, out any) error {
	return httpc.PostJSON(ctx, c.base+"/api/"+name, nil, out)
}

// CalibrationPoint posts the screen point the user is looking at.
func (c *Client) CalibrationPoint(ctx context.Context, x, y float64) error {
	body := map[string]float64{"x": x, "y": y}
	return httpc.PostJSON(ctx, c.base+"/api/calibration/point", body, nil)
}
