// Package web serves the tracker's HTTP control API and websocket feeds.
package web

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/calibration"
	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/tracking"
)

// Controller is the tracker surface the API drives.
type Controller interface {
	Stats() tracking.Stats
	Mesh() *display.Mesh
	Calibration() *calibration.Model
	HandleCommand(ctx context.Context, c tracking.Command) (any, error)
}

// Server is the HTTP API. The gaze routes are only mounted when a
// Controller is given; the transcript feed is always available.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger
	ctrl   Controller

	gazeHub       *hub.Hub
	statusHub     *hub.Hub
	transcriptHub *hub.Hub

	// StatusInterval is how often /ws/status receives a stats snapshot.
	StatusInterval time.Duration
}

// NewServer builds the server. ctrl may be nil and set later with
// SetController.
func NewServer(addr string, ctrl Controller, logger *slog.Logger) *Server {
	logger = log.Or(logger)
	s := &Server{
		addr:           addr,
		logger:         logger.With("component", "web"),
		gazeHub:        hub.New("gaze", logger),
		statusHub:      hub.New("status", logger),
		transcriptHub:  hub.New("transcripts", logger),
		StatusInterval: time.Second,
	}

	app := fiber.New(fiber.Config{
		AppName:               "gaze",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(cors.New())

	app.Get("/api/health", s.handleHealth)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/transcripts", websocket.New(s.handleTranscriptsWS))

	s.app = app
	if ctrl != nil {
		s.SetController(ctrl)
	}
	return s
}

// SetController mounts the gaze routes for ctrl. Call it once, before Run,
// when the server had to exist before the tracker did.
func (s *Server) SetController(ctrl Controller) {
	s.ctrl = ctrl

	api := s.app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/monitors", s.handleMonitors)
	api.Get("/calibration", s.handleCalibration)
	api.Get("/calibration/targets", s.handleTargets)
	api.Post("/calibration/begin", s.command(tracking.CmdCalibrateBegin))
	api.Post("/calibration/point", s.handleCalibrationPoint)
	api.Post("/calibration/finish", s.command(tracking.CmdCalibrateFinish))
	api.Post("/calibration/cancel", s.command(tracking.CmdCalibrateCancel))
	api.Post("/pause", s.command(tracking.CmdPause))
	api.Post("/resume", s.command(tracking.CmdResume))

	s.app.Get("/ws/gaze", websocket.New(s.handleGazeWS))
	s.app.Get("/ws/status", websocket.New(s.handleStatusWS))
}

// GazeHub receives every emitted gaze record.
func (s *Server) GazeHub() *hub.Hub { return s.gazeHub }

// TranscriptHub receives every accepted transcription.
func (s *Server) TranscriptHub() *hub.Hub { return s.transcriptHub }

// Run starts the hubs and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.gazeHub.Run(ctx)
	go s.statusHub.Run(ctx)
	go s.transcriptHub.Run(ctx)
	if s.ctrl != nil {
		go s.publishStatus(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", s.addr)
		errc <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("http shutdown", "error", err)
		}
		return nil
	}
}

func (s *Server) publishStatus(ctx context.Context) {
	ticker := time.NewTicker(s.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			if err := s.statusHub.BroadcastJSON(s.ctrl.Stats()); err != nil {
				s.logger.Warn("status broadcast", "error", err)
			}
		}
	}
}

// handleError maps domain errors onto HTTP status codes.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, calibration.ErrNotCollecting),
		errors.Is(err, tracking.ErrNoGaze):
		code = fiber.StatusConflict
	case errors.Is(err, calibration.ErrLowConfidence),
		errors.Is(err, calibration.ErrInsufficientSamples),
		errors.Is(err, calibration.ErrSingular):
		code = fiber.StatusUnprocessableEntity
	case errors.Is(err, calibration.ErrNotFound):
		code = fiber.StatusNotFound
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
