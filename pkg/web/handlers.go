package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-gaze/pkg/calibration"
	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/tracking"
)

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	tracking.Stats
	Monitors      int `json:"monitors"`
	GazeClients   int `json:"gaze_clients"`
	StatusClients int `json:"status_clients"`
}

// MonitorsResponse is returned by GET /api/monitors.
type MonitorsResponse struct {
	Monitors []display.Monitor `json:"monitors"`
	Primary  string            `json:"primary"`
	Virtual  display.Geometry  `json:"virtual"`
}

// PointRequest is the body of POST /api/calibration/point.
type PointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{
		Stats:         s.ctrl.Stats(),
		Monitors:      s.ctrl.Mesh().Len(),
		GazeClients:   s.gazeHub.ClientCount(),
		StatusClients: s.statusHub.ClientCount(),
	})
}

func (s *Server) handleMonitors(c *fiber.Ctx) error {
	mesh := s.ctrl.Mesh()
	return c.JSON(MonitorsResponse{
		Monitors: mesh.Monitors(),
		Primary:  mesh.Primary().Name,
		Virtual:  mesh.Geometry(),
	})
}

func (s *Server) handleCalibration(c *fiber.Ctx) error {
	m := s.ctrl.Calibration()
	if m == nil {
		return calibration.ErrNotFound
	}
	return c.JSON(m)
}

// handleTargets returns the guided calibration layout; ?n= sets the
// per-monitor point count.
func (s *Server) handleTargets(c *fiber.Ctx) error {
	n := c.QueryInt("n", 9)
	if n < 4 || n > 25 {
		return fiber.NewError(fiber.StatusBadRequest, "n must be 4-25")
	}
	return c.JSON(calibration.Grid(s.ctrl.Mesh(), n))
}

func (s *Server) handleCalibrationPoint(c *fiber.Ctx) error {
	var req PointRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "body must be {\"x\":..,\"y\":..}")
	}
	return s.run(c, tracking.Command{Type: tracking.CmdCalibratePoint, X: req.X, Y: req.Y})
}

// command returns a handler that applies a body-less command.
func (s *Server) command(kind string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return s.run(c, tracking.Command{Type: kind})
	}
}

func (s *Server) run(c *fiber.Ctx, cmd tracking.Command) error {
	result, err := s.ctrl.HandleCommand(c.UserContext(), cmd)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"type": cmd.Type, "ok": true, "result": result})
}

func (s *Server) handleGazeWS(c *websocket.Conn) {
	hub.NewClient(s.gazeHub, c).Run()
}

func (s *Server) handleStatusWS(c *websocket.Conn) {
	var greeting []hub.Message
	if st, err := hub.Encode(s.ctrl.Stats()); err == nil {
		greeting = append(greeting, st)
	}
	hub.NewClient(s.statusHub, c, greeting...).Run()
}

func (s *Server) handleTranscriptsWS(c *websocket.Conn) {
	hub.NewClient(s.transcriptHub, c).Run()
}
