package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/calibration"
	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/tracking"
)

type fakeController struct {
	mesh     *display.Mesh
	model    *calibration.Model
	commands []tracking.Command
	err      error
}

func (f *fakeController) Stats() tracking.Stats {
	return tracking.Stats{Frames: 10, Emitted: 7, State: "tracking"}
}

func (f *fakeController) Mesh() *display.Mesh { return f.mesh }

func (f *fakeController) Calibration() *calibration.Model { return f.model }

func (f *fakeController) HandleCommand(_ context.Context, c tracking.Command) (any, error) {
	f.commands = append(f.commands, c)
	if f.err != nil {
		return nil, f.err
	}
	return map[string]string{"done": c.Type}, nil
}

func newTestServer() (*Server, *fakeController) {
	ctrl := &fakeController{mesh: display.NewMesh([]display.Monitor{
		{Width: 1920, Height: 1080, Primary: true, Name: "left"},
		{X: 1920, Width: 1280, Height: 1024, Name: "right"},
	})}
	return NewServer("127.0.0.1:0", ctrl, log.Discard()), ctrl
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer()
	code, body := do(t, s, http.MethodGet, "/api/status", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["frames"] != float64(10) || body["monitors"] != float64(2) {
		t.Errorf("body = %v", body)
	}
}

func TestMonitors(t *testing.T) {
	s, _ := newTestServer()
	code, body := do(t, s, http.MethodGet, "/api/monitors", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["primary"] != "left" {
		t.Errorf("primary = %v", body["primary"])
	}
	virtual := body["virtual"].(map[string]any)
	if virtual["width"] != float64(3200) || virtual["height"] != float64(1080) {
		t.Errorf("virtual = %v", virtual)
	}
}

func TestCalibrationNotFound(t *testing.T) {
	s, _ := newTestServer()
	code, body := do(t, s, http.MethodGet, "/api/calibration", "")
	if code != http.StatusNotFound || body["error"] == nil {
		t.Errorf("got %d %v, want 404 with error", code, body)
	}
}

func TestCalibrationPoint(t *testing.T) {
	s, ctrl := newTestServer()
	code, _ := do(t, s, http.MethodPost, "/api/calibration/point", `{"x":100,"y":200}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	want := tracking.Command{Type: tracking.CmdCalibratePoint, X: 100, Y: 200}
	if len(ctrl.commands) != 1 || ctrl.commands[0] != want {
		t.Errorf("commands = %+v", ctrl.commands)
	}

	code, _ = do(t, s, http.MethodPost, "/api/calibration/point", `not json`)
	if code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", code)
	}
}

func TestCommandRoutes(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/calibration/begin", tracking.CmdCalibrateBegin},
		{"/api/calibration/finish", tracking.CmdCalibrateFinish},
		{"/api/calibration/cancel", tracking.CmdCalibrateCancel},
		{"/api/pause", tracking.CmdPause},
		{"/api/resume", tracking.CmdResume},
	}
	for _, tc := range tests {
		s, ctrl := newTestServer()
		code, body := do(t, s, http.MethodPost, tc.path, "")
		if code != http.StatusOK || body["type"] != tc.want {
			t.Errorf("%s: got %d %v", tc.path, code, body)
		}
		if len(ctrl.commands) != 1 || ctrl.commands[0].Type != tc.want {
			t.Errorf("%s: commands = %+v", tc.path, ctrl.commands)
		}
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{calibration.ErrNotCollecting, http.StatusConflict},
		{tracking.ErrNoGaze, http.StatusConflict},
		{calibration.ErrInsufficientSamples, http.StatusUnprocessableEntity},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		s, ctrl := newTestServer()
		ctrl.err = tc.err
		if code, _ := do(t, s, http.MethodPost, "/api/calibration/finish", ""); code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, code, tc.want)
		}
	}
}

func TestTargets(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/calibration/targets?n=5", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var targets []calibration.Target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		t.Fatal(err)
	}
	if len(targets) != 10 {
		t.Errorf("got %d targets, want 5 per monitor", len(targets))
	}

	if code, _ := do(t, s, http.MethodGet, "/api/calibration/targets?n=2", ""); code != http.StatusBadRequest {
		t.Errorf("n=2 status = %d, want 400", code)
	}
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer()
	if code, _ := do(t, s, http.MethodGet, "/ws/gaze", ""); code != http.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", code)
	}
}

func TestTranscriptOnlyServer(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, log.Discard())
	if code, _ := do(t, s, http.MethodGet, "/api/status", ""); code != http.StatusNotFound {
		t.Errorf("status route mounted without a tracker: %d", code)
	}
	if code, _ := do(t, s, http.MethodGet, "/api/health", ""); code != http.StatusOK {
		t.Errorf("health = %d", code)
	}
}
