package camera

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-gaze/internal/log"
)

// Errors returned by Capture.
var (
	ErrOpenFailed = errors.New("camera: could not open device")
	ErrReadFailed = errors.New("camera: frame read failed")
	ErrClosed     = errors.New("camera: closed")
)

func backendAPI(name string) (gocv.VideoCaptureAPI, bool) {
	switch strings.ToLower(name) {
	case BackendAny:
		return gocv.VideoCaptureAny, true
	case BackendV4L2:
		return gocv.VideoCaptureV4L2, true
	case BackendDShow:
		return gocv.VideoCaptureDshow, true
	case BackendMSMF:
		return gocv.VideoCaptureMSMF, true
	case BackendAVFoundation:
		return gocv.VideoCaptureAVFoundation, true
	}
	return 0, false
}

// Capture reads frames from one webcam and encodes them as JPEG.
type Capture struct {
	logger *slog.Logger

	mu      sync.Mutex
	cfg     Config
	dev     *gocv.VideoCapture
	frame   gocv.Mat
	backend string
}

// Open opens the camera, trying every backend in order and repeating the
// pass up to cfg.OpenAttempts times. A device only counts as open once it
// delivers a frame.
func Open(cfg Config, logger *slog.Logger) (*Capture, error) {
	c := &Capture{logger: log.Or(logger).With("component", "camera"), frame: gocv.NewMat()}
	if err := c.open(cfg); err != nil {
		c.frame.Close()
		return nil, err
	}
	return c, nil
}

func (c *Capture) open(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera: invalid config: %v", errs)
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.OpenAttempts; attempt++ {
		for _, name := range cfg.Backends {
			api, _ := backendAPI(name)
			dev, err := gocv.OpenVideoCaptureWithAPI(cfg.Device, api)
			if err != nil || !dev.IsOpened() {
				if dev != nil {
					dev.Close()
				}
				lastErr = err
				c.logger.Debug("open failed", "device", cfg.Device, "backend", name, "attempt", attempt, "error", err)
				continue
			}

			dev.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
			dev.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
			dev.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

			if ok := dev.Read(&c.frame); !ok || c.frame.Empty() {
				dev.Close()
				lastErr = ErrReadFailed
				c.logger.Debug("device opened but gave no frame", "device", cfg.Device, "backend", name)
				continue
			}

			c.dev, c.cfg, c.backend = dev, cfg, name
			c.logger.Info("camera opened",
				"device", cfg.Device,
				"backend", name,
				"width", c.frame.Cols(),
				"height", c.frame.Rows(),
				"attempt", attempt)
			return nil
		}
		if attempt < cfg.OpenAttempts {
			time.Sleep(cfg.RetryDelay)
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w: device %d after %d attempts: %v", ErrOpenFailed, cfg.Device, cfg.OpenAttempts, lastErr)
	}
	return fmt.Errorf("%w: device %d after %d attempts", ErrOpenFailed, cfg.Device, cfg.OpenAttempts)
}

// Backend returns the capture API in use.
func (c *Capture) Backend() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

// CaptureJPEG reads one frame and returns it JPEG-encoded.
func (c *Capture) CaptureJPEG() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil {
		return nil, ErrClosed
	}
	if ok := c.dev.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, ErrReadFailed
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, c.frame, []int{int(gocv.IMWriteJpegQuality), c.cfg.Quality})
	if err != nil {
		return nil, fmt.Errorf("camera: encode: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close; copy out.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Reconfigure closes the device and reopens it with cfg. Suitable as a
// Manager.OnConfigChange callback.
func (c *Capture) Reconfigure(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev != nil {
		c.dev.Close()
		c.dev = nil
	}
	return c.open(cfg)
}

// Close releases the device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.dev != nil {
		err = c.dev.Close()
		c.dev = nil
	}
	c.frame.Close()
	return err
}
