package tracking

import (
	"fmt"
	"time"
)

// History bounds for the smoother.
const (
	MinHistory = 5
	MaxHistory = 10
)

// Config holds all tunable parameters for the gaze pipeline.
type Config struct {
	// Timing
	FrameInterval time.Duration // Fixed capture rate
	StatsInterval time.Duration // How often to log pipeline stats

	// Monitors
	RedetectInterval time.Duration // How often to re-read the monitor layout (0 disables)

	// Smoothing
	SmoothingWindow int // History length, clamped to [MinHistory, MaxHistory]

	// Device
	MaxCaptureFailures int // Consecutive read errors before switching to demo data

	// Demo data (development only)
	Demo               bool    // Emit synthetic points when no face is tracked
	DemoBlend          bool    // Blend synthetic points into low-confidence estimates
	DemoBlendThreshold float64 // Confidence below which blending starts

	// Drag guard
	TitlebarHeight     float64       // Strip at the top of the window that pauses output (px)
	StabilityThreshold float64       // Max movement that still counts as holding still (px)
	ResumeDwell        time.Duration // How long to hold still before resuming

	// Calibration
	CalibrationDwell  time.Duration // Time spent on each guided calibration target
	CalibrationSettle time.Duration // Ignore samples right after a target appears

	// Logging
	MissLogThreshold int // Log once after this many consecutive frames without a face
}

// DefaultConfig returns the recommended configuration: 30 fps, eight-point
// history.
func DefaultConfig() Config {
	return Config{
		FrameInterval: 33 * time.Millisecond, // ~30 fps
		StatsInterval: 10 * time.Second,

		RedetectInterval: 5 * time.Second,

		SmoothingWindow: 8,

		MaxCaptureFailures: 5,

		DemoBlendThreshold: 0.5,

		TitlebarHeight:     30,
		StabilityThreshold: 10,
		ResumeDwell:        500 * time.Millisecond,

		CalibrationDwell:  2 * time.Second,
		CalibrationSettle: 500 * time.Millisecond,

		MissLogThreshold: 30, // ~1s at 30 fps
	}
}

// SmoothConfig trades latency for a steadier point.
func SmoothConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameInterval = 50 * time.Millisecond // 20 fps
	cfg.SmoothingWindow = MaxHistory
	cfg.StabilityThreshold = 15
	return cfg
}

// ResponsiveConfig follows the eye as closely as the camera allows.
func ResponsiveConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameInterval = 16 * time.Millisecond // ~60 fps
	cfg.SmoothingWindow = MinHistory
	cfg.ResumeDwell = 300 * time.Millisecond
	return cfg
}

// Preset returns the named configuration.
func Preset(name string) (Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "smooth":
		return SmoothConfig(), nil
	case "responsive":
		return ResponsiveConfig(), nil
	default:
		return Config{}, fmt.Errorf("unknown preset %q (want default, smooth or responsive)", name)
	}
}

// Validate returns a list of problems with the configuration.
func (c Config) Validate() []string {
	var errs []string
	if c.FrameInterval <= 0 {
		errs = append(errs, "frame interval must be positive")
	}
	if c.StatsInterval <= 0 {
		errs = append(errs, "stats interval must be positive")
	}
	if c.RedetectInterval < 0 {
		errs = append(errs, "redetect interval must not be negative")
	}
	if c.SmoothingWindow < MinHistory || c.SmoothingWindow > MaxHistory {
		errs = append(errs, fmt.Sprintf("smoothing window must be %d-%d", MinHistory, MaxHistory))
	}
	if c.MaxCaptureFailures < 1 {
		errs = append(errs, "max capture failures must be at least 1")
	}
	if c.DemoBlendThreshold < 0 || c.DemoBlendThreshold > 1 {
		errs = append(errs, "demo blend threshold must be 0-1")
	}
	if c.TitlebarHeight < 0 || c.StabilityThreshold < 0 {
		errs = append(errs, "drag guard distances must not be negative")
	}
	if c.ResumeDwell <= 0 {
		errs = append(errs, "resume dwell must be positive")
	}
	return errs
}
