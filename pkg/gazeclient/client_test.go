package gazeclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/emit"
)

var upgrader = websocket.Upgrader{}

// gazeServer sends perConn records on each connection, then closes it.
func gazeServer(t *testing.T, perConn int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/gaze" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		n := conns.Add(1)
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		for i := 0; i < perConn; i++ {
			conn.WriteJSON(emit.Record{X: float64(n), Y: float64(i), Confidence: 0.9})
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func TestStreamStopsOnCallbackError(t *testing.T) {
	srv, _ := gazeServer(t, 5)
	c := New(srv.URL, log.Discard())

	errDone := errors.New("done")
	var got []emit.Record
	err := c.Stream(context.Background(), func(r emit.Record) error {
		got = append(got, r)
		if len(got) == 3 {
			return errDone
		}
		return nil
	})
	if !errors.Is(err, errDone) {
		t.Fatalf("Stream = %v, want callback error", err)
	}
	for i, r := range got {
		if r.Y != float64(i) || r.Confidence != 0.9 {
			t.Errorf("record %d = %+v", i, r)
		}
	}
}

func TestStreamReconnects(t *testing.T) {
	srv, conns := gazeServer(t, 1)
	c := New(srv.URL, log.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []emit.Record
	err := c.Stream(ctx, func(r emit.Record) error {
		got = append(got, r)
		if len(got) == 2 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Stream = %v", err)
	}
	if len(got) != 2 || got[0].X != 1 || got[1].X != 2 {
		t.Errorf("records = %+v, want one from each connection", got)
	}
	if conns.Load() < 2 {
		t.Errorf("connections = %d, want at least 2", conns.Load())
	}
}

func TestWSURL(t *testing.T) {
	tests := []struct {
		addr, want string
	}{
		{"127.0.0.1:8765", "ws://127.0.0.1:8765/ws/gaze"},
		{"http://localhost:1/", "ws://localhost:1/ws/gaze"},
		{"https://gaze.local", "wss://gaze.local/ws/gaze"},
	}
	for _, tc := range tests {
		got, err := New(tc.addr, nil).wsURL("/ws/gaze")
		if err != nil || got != tc.want {
			t.Errorf("wsURL(%q) = %q, %v; want %q", tc.addr, got, err, tc.want)
		}
	}
}

func TestCommands(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, log.Discard())
	ctx := context.Background()
	if err := c.Command(ctx, "pause", nil); err != nil {
		t.Fatal(err)
	}
	if err := c.CalibrationPoint(ctx, 10, 20); err != nil {
		t.Fatal(err)
	}
	var status map[string]any
	if err := c.Status(ctx, &status); err != nil {
		t.Fatal(err)
	}

	want := []string{"POST /api/pause", "POST /api/calibration/point", "GET /api/status"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, paths[i], want[i])
		}
	}
}
