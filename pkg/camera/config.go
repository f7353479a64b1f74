// Package camera captures webcam frames through OpenCV.
package camera

import (
	"runtime"
	"time"
)

// Backend names accepted in Config.Backends.
const (
	BackendAny          = "any"
	BackendV4L2         = "v4l2"
	BackendDShow        = "dshow"
	BackendMSMF         = "msmf"
	BackendAVFoundation = "avfoundation"
)

// Config holds the capture parameters.
type Config struct {
	// === Device ===
	Device   int      `json:"device"`   // Camera index
	Backends []string `json:"backends"` // Capture APIs tried in order

	// === Resolution ===
	Width     int `json:"width"`     // Requested frame width in pixels
	Height    int `json:"height"`    // Requested frame height in pixels
	Framerate int `json:"framerate"` // Requested FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100 for frames sent to the landmark model

	// === Recovery ===
	// OpenAttempts is how many full passes over Backends Open makes.
	OpenAttempts int `json:"open_attempts"`

	// RetryDelay is the pause between passes.
	RetryDelay time.Duration `json:"retry_delay"`
}

// DefaultBackends returns the capture APIs worth trying on this OS.
func DefaultBackends() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{BackendDShow, BackendMSMF, BackendAny}
	case "darwin":
		return []string{BackendAVFoundation, BackendAny}
	case "linux":
		return []string{BackendV4L2, BackendAny}
	default:
		return []string{BackendAny}
	}
}

// DefaultConfig returns 640x480 at 30 fps. Landmark models run on a
// downscaled image anyway, so higher resolutions only cost latency.
func DefaultConfig() Config {
	return Config{
		Device:       0,
		Backends:     DefaultBackends(),
		Width:        640,
		Height:       480,
		Framerate:    30,
		Quality:      85,
		OpenAttempts: 3,
		RetryDelay:   time.Second,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must not be negative")
	}
	if len(c.Backends) == 0 {
		errors = append(errors, "at least one backend is required")
	}
	for _, b := range c.Backends {
		if _, ok := backendAPI(b); !ok {
			errors = append(errors, "unknown backend "+b)
		}
	}
	if c.Width < 160 || c.Width > 3840 {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > 2160 {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.OpenAttempts < 1 {
		errors = append(errors, "open_attempts must be at least 1")
	}
	return errors
}
