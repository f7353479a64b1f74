package display

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-vgo/robotgo"

	"github.com/teslashibe/go-gaze/internal/log"
)

// ErrNoMonitors is returned by detectors that found nothing.
var ErrNoMonitors = errors.New("display: no monitors detected")

// Detector enumerates the monitors attached to the machine.
type Detector interface {
	DetectMonitors() ([]Monitor, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func() ([]Monitor, error)

// DetectMonitors calls f.
func (f DetectorFunc) DetectMonitors() ([]Monitor, error) { return f() }

// StaticDetector always returns the same monitors.
type StaticDetector []Monitor

// DetectMonitors returns the configured monitors.
func (s StaticDetector) DetectMonitors() ([]Monitor, error) {
	if len(s) == 0 {
		return nil, ErrNoMonitors
	}
	out := make([]Monitor, len(s))
	copy(out, s)
	return out, nil
}

// RobotgoDetector enumerates displays through robotgo. Display 0 is the
// main display and is flagged primary.
type RobotgoDetector struct{}

// DetectMonitors queries every display robotgo reports.
func (RobotgoDetector) DetectMonitors() ([]Monitor, error) {
	n := robotgo.DisplaysNum()
	if n <= 0 {
		w, h := robotgo.GetScreenSize()
		if w <= 0 || h <= 0 {
			return nil, ErrNoMonitors
		}
		return []Monitor{{Width: w, Height: h, Primary: true, Name: "Display_0", ScaleFactor: 1}}, nil
	}

	monitors := make([]Monitor, 0, n)
	for i := 0; i < n; i++ {
		x, y, w, h := robotgo.GetDisplayBounds(i)
		monitors = append(monitors, Monitor{
			X:           x,
			Y:           y,
			Width:       w,
			Height:      h,
			Primary:     i == 0,
			Name:        displayName(i),
			ScaleFactor: robotgo.ScaleF(i),
		})
	}
	return monitors, nil
}

func displayName(i int) string {
	return fmt.Sprintf("Display_%d", i)
}

// Detect runs d and builds a mesh. Failures and empty or invalid results are
// logged and replaced by DefaultMonitor; detection is never fatal.
func Detect(d Detector, logger *slog.Logger) *Mesh {
	logger = log.Or(logger)

	monitors, err := d.DetectMonitors()
	if err != nil {
		logger.Warn("monitor detection failed, using default monitor",
			"error", err, "fallback", DefaultMonitor.String())
		return NewMesh(nil)
	}

	valid := 0
	for _, m := range monitors {
		if err := m.Validate(); err != nil {
			logger.Warn("ignoring monitor", "error", err)
			continue
		}
		valid++
	}
	if valid == 0 {
		logger.Warn("no usable monitors detected, using default monitor",
			"reported", len(monitors), "fallback", DefaultMonitor.String())
	}

	mesh := NewMesh(monitors)
	logger.Info("monitor mesh ready",
		"monitors", mesh.Len(),
		"virtual_width", mesh.Width(),
		"virtual_height", mesh.Height(),
		"primary", mesh.Primary().Name)
	return mesh
}
