// Package app wires the gaze tracker and the transcription pipeline into
// runnable applications for cmd/gazectl.
package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/tracking"
)

// Limits for the guided calibration layout.
const (
	MinCalibrationPoints = 4
	MaxCalibrationPoints = 25
)

// Config holds all configuration for the tracking application.
// Flag parsing is done in cmd/gazectl; this struct is data only.
type Config struct {
	// Debug enables verbose debug logging; DebugTracking adds per-frame traces.
	Debug         bool
	DebugTracking bool

	// Mode. Headless (the default when neither is set) prints NDJSON only;
	// GUI also moves the pointer to follow the gaze. Setting both is an error.
	Headless bool
	GUI      bool

	// Camera. NoCamera skips the device entirely; only demo data is produced.
	Camera       int
	CameraPreset string
	NoCamera     bool

	// Screen override. Both zero means auto-detect the monitor layout.
	ScreenWidth  int
	ScreenHeight int

	// Pipeline tuning. Zero values keep the preset's setting.
	Preset    string // "default", "smooth" or "responsive"
	Smoothing int
	FPS       float64
	Strategy  string // gaze strategy, see gaze.NewStrategy

	// Demo data (development only).
	Demo      bool
	DemoBlend bool

	// Follow moves the pointer to each gaze point; MinStep skips jitter.
	Follow  bool
	MinStep float64

	// Calibration.
	Calibrate         bool // run guided calibration after startup
	CalibrationPoints int  // targets per monitor
	CalibrationDB     string

	// Landmarks. LandmarkWorker is a command line; YuNetModel enables the
	// face-box gate in front of it.
	LandmarkWorker string
	YuNetModel     string

	// Serve is the HTTP API listen address; empty disables the API.
	Serve string

	// Commands reads host commands from stdin.
	Commands bool

	// Transcribe runs the transcription pipeline alongside tracking.
	Transcribe    bool
	Transcription TranscribeConfig
}

// DefaultConfig returns sensible defaults for tracking.
func DefaultConfig() Config {
	return Config{
		CameraPreset:      camera.PresetDefault,
		Preset:            "default",
		Strategy:          gaze.StrategyGeometric,
		MinStep:           2,
		CalibrationPoints: 9,
		CalibrationDB:     config.DefaultCalibrationDB,
		Commands:          true,
		Transcription:     DefaultTranscribeConfig(),
	}
}

// LoadEnvConfig fills values the caller left at their defaults from the
// environment. Call this after flag parsing.
func (c *Config) LoadEnvConfig() {
	if c.Camera == 0 {
		c.Camera = config.CameraIndex(0)
	}
	if c.CalibrationDB == "" || c.CalibrationDB == config.DefaultCalibrationDB {
		c.CalibrationDB = config.CalibrationDB()
	}
	if c.LandmarkWorker == "" {
		c.LandmarkWorker = config.LandmarkWorker()
	}
	c.Transcription.LoadEnvConfig()
}

// Validate rejects contradictory or out-of-range settings.
func (c *Config) Validate() error {
	if c.Headless && c.GUI {
		return &ConfigError{Field: "Mode", Message: "--headless and --gui are mutually exclusive"}
	}
	if c.Camera < 0 {
		return &ConfigError{Field: "Camera", Message: fmt.Sprintf("camera index must not be negative, got %d", c.Camera)}
	}
	if _, ok := camera.Preset(c.CameraPreset); !ok {
		return &ConfigError{Field: "CameraPreset", Message: fmt.Sprintf("unknown camera preset %q", c.CameraPreset)}
	}
	if (c.ScreenWidth == 0) != (c.ScreenHeight == 0) {
		return &ConfigError{Field: "Screen", Message: "--screen-width and --screen-height must be given together"}
	}
	if c.ScreenWidth < 0 || c.ScreenHeight < 0 {
		return &ConfigError{Field: "Screen", Message: "screen size must be positive"}
	}
	if c.Smoothing != 0 && (c.Smoothing < tracking.MinHistory || c.Smoothing > tracking.MaxHistory) {
		return &ConfigError{Field: "Smoothing", Message: fmt.Sprintf("smoothing must be %d-%d, got %d", tracking.MinHistory, tracking.MaxHistory, c.Smoothing)}
	}
	if c.FPS < 0 || c.FPS > 120 {
		return &ConfigError{Field: "FPS", Message: fmt.Sprintf("fps must be 0-120, got %g", c.FPS)}
	}
	if c.CalibrationPoints < MinCalibrationPoints || c.CalibrationPoints > MaxCalibrationPoints {
		return &ConfigError{Field: "CalibrationPoints", Message: fmt.Sprintf("calibration points must be %d-%d, got %d", MinCalibrationPoints, MaxCalibrationPoints, c.CalibrationPoints)}
	}
	if _, err := tracking.Preset(c.Preset); err != nil {
		return &ConfigError{Field: "Preset", Message: err.Error()}
	}
	if c.Transcribe {
		if err := c.Transcription.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FollowEnabled reports whether gaze points move the pointer.
func (c *Config) FollowEnabled() bool {
	return c.Follow || c.GUI
}

// TrackingConfig builds the pipeline configuration from the preset and
// overrides.
func (c *Config) TrackingConfig() (tracking.Config, error) {
	cfg, err := tracking.Preset(c.Preset)
	if err != nil {
		return tracking.Config{}, err
	}
	if c.Smoothing != 0 {
		cfg.SmoothingWindow = c.Smoothing
	}
	if c.FPS > 0 {
		cfg.FrameInterval = time.Duration(float64(time.Second) / c.FPS)
	}
	cfg.Demo = c.Demo
	cfg.DemoBlend = c.DemoBlend
	return cfg, nil
}

// CameraConfig builds the capture configuration from the preset and the
// device index.
func (c *Config) CameraConfig() camera.Config {
	cfg, ok := camera.Preset(c.CameraPreset)
	if !ok {
		cfg = camera.DefaultConfig()
	}
	cfg.Device = c.Camera
	return cfg
}

// WorkerCommand splits LandmarkWorker into a program and its arguments.
func (c *Config) WorkerCommand() (string, []string, bool) {
	fields := strings.Fields(c.LandmarkWorker)
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
