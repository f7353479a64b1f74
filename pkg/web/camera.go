package web

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-gaze/pkg/camera"
)

// CameraResponse is returned by the /api/camera routes.
type CameraResponse struct {
	Config  camera.Config `json:"config"`
	Presets []string      `json:"presets"`
}

// MountCamera exposes the capture settings held by m:
//
//	GET  /api/camera               current config and preset names
//	PUT  /api/camera               replace the config (reopens the device)
//	POST /api/camera/preset/:name  switch preset, keeping device and backends
func (s *Server) MountCamera(m *camera.Manager) {
	g := s.app.Group("/api/camera")
	g.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(cameraResponse(m))
	})
	g.Put("/", func(c *fiber.Ctx) error {
		cfg := m.Config()
		if err := c.BodyParser(&cfg); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "body must be a camera config")
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			return fiber.NewError(fiber.StatusUnprocessableEntity, strings.Join(errs, "; "))
		}
		if err := m.SetConfig(cfg); err != nil {
			return err
		}
		s.logger.Info("camera reconfigured", "device", cfg.Device, "width", cfg.Width, "height", cfg.Height)
		return c.JSON(cameraResponse(m))
	})
	g.Post("/preset/:name", func(c *fiber.Ctx) error {
		name := c.Params("name")
		if err := m.ApplyPreset(name); errors.Is(err, camera.ErrUnknownPreset) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		} else if err != nil {
			return err
		}
		s.logger.Info("camera preset applied", "preset", name)
		return c.JSON(cameraResponse(m))
	})
}

func cameraResponse(m *camera.Manager) CameraResponse {
	return CameraResponse{Config: m.Config(), Presets: camera.PresetNames()}
}
