package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/calibration"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/debug"
	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/emit"
	"github.com/teslashibe/go-gaze/pkg/facemesh"
	"github.com/teslashibe/go-gaze/pkg/features"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/tracking"
	"github.com/teslashibe/go-gaze/pkg/transcribe"
	"github.com/teslashibe/go-gaze/pkg/web"
)

// App is the gaze tracking application.
// It owns every component and their lifecycle.
type App struct {
	config Config
	logger *slog.Logger

	// Stdout receives the NDJSON gaze stream, Stdin the host commands and
	// Stderr the startup banner and progress bars.
	Stdout io.Writer
	Stdin  io.Reader
	Stderr io.Writer

	// Perception
	capture       *camera.Capture
	cameraManager *camera.Manager
	detector      facemesh.Detector

	// Gaze
	mesh      *display.Mesh
	estimator gaze.Estimator
	regressor *gaze.Regressor
	fitter    *calibration.Fitter
	store     *calibration.Store
	tracker   *tracking.Tracker

	// Outputs
	webServer   *web.Server
	transcriber *Transcriber
}

// New creates a tracking application with the given configuration.
func New(cfg Config, logger *slog.Logger) (*App, error) {
	cfg.LoadEnvConfig()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug.Enabled = cfg.Debug
	debug.Tracking = cfg.DebugTracking

	return &App{
		config: cfg,
		logger: log.Or(logger),
		Stdout: os.Stdout,
		Stdin:  os.Stdin,
		Stderr: os.Stderr,
	}, nil
}

// Init initializes all components. Missing optional pieces (camera,
// landmark worker, calibration store, speech model) are reported and
// skipped. Call this after New and before Run.
func (a *App) Init(ctx context.Context) error {
	a.say("👁️  go-gaze - Webcam Gaze Tracker")
	a.say("=================================")
	if debug.Enabled {
		a.say("🐛 Debug mode enabled")
	}

	a.initDisplay()

	a.sayf("📷 Opening camera %d... ", a.config.Camera)
	if err := a.initCamera(); err != nil {
		a.sayf("⚠️  %v\n", err)
	} else if a.capture != nil {
		a.sayf("✅ (%s)\n", a.capture.Backend())
	}

	a.sayf("🧠 Starting landmark detection... ")
	if err := a.initDetector(); err != nil {
		a.sayf("⚠️  %v\n", err)
	} else {
		a.say("✅")
	}

	a.sayf("🎯 Loading calibration... ")
	if err := a.initCalibration(); err != nil {
		return fmt.Errorf("calibration init: %w", err)
	}

	if err := a.initTracking(ctx); err != nil {
		return fmt.Errorf("tracking init: %w", err)
	}

	if a.config.Transcribe {
		a.sayf("🎤 Loading %s transcription... ", a.config.Transcription.Engine)
		if err := a.initTranscription(ctx); err != nil {
			a.sayf("⚠️  Disabled: %v\n", err)
		} else {
			a.say("✅")
		}
	}
	return nil
}

// Run starts the tracker and the enabled outputs.
// Blocks until ctx is cancelled or the host sends an exit command.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.say("\n👀 Tracking! Gaze points stream to stdout as NDJSON.")
	a.say("   (Ctrl+C to exit)")

	var wg sync.WaitGroup
	errc := make(chan error, 2)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				errc <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	start("tracker", a.tracker.Run)
	if a.webServer != nil {
		start("http api", a.webServer.Run)
	}

	// Transcription failures leave tracking running.
	if a.transcriber != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.transcriber.Run(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("transcription stopped", "error", err)
			}
		}()
	}

	// Not waited for: a blocked stdin read must not hold up shutdown.
	// Replies go to stderr; stdout carries only gaze records.
	if a.config.Commands && a.Stdin != nil {
		go func() {
			err := a.tracker.ServeCommands(ctx, a.Stdin, a.Stderr)
			switch {
			case errors.Is(err, tracking.ErrExit):
				cancel()
			case err != nil && ctx.Err() == nil:
				a.logger.Warn("command channel closed", "error", err)
			}
		}()
	}

	if a.config.Calibrate {
		go a.calibrate(ctx)
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
		cancel()
	}
	wg.Wait()
	return err
}

// Shutdown releases every device and file.
func (a *App) Shutdown() {
	a.say("\n👋 Goodbye!")

	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			a.logger.Warn("landmark detector close", "error", err)
		}
	}
	if a.capture != nil {
		a.capture.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.transcriber != nil {
		if err := a.transcriber.Close(); err != nil {
			a.logger.Warn("transcription close", "error", err)
		}
	}
}

// Tracker returns the pipeline; nil before Init.
func (a *App) Tracker() *tracking.Tracker { return a.tracker }

func (a *App) say(msg string) {
	fmt.Fprintln(a.Stderr, msg)
}

func (a *App) sayf(format string, args ...any) {
	fmt.Fprintf(a.Stderr, format, args...)
}

// initDisplay builds the monitor mesh from the override or the window system.
func (a *App) initDisplay() {
	if a.config.ScreenWidth > 0 {
		a.mesh = display.WithVirtualSize(a.config.ScreenWidth, a.config.ScreenHeight)
		a.sayf("🖥️  Screen override: %dx%d\n", a.mesh.Width(), a.mesh.Height())
		return
	}
	a.mesh = display.Detect(display.RobotgoDetector{}, a.logger)
	a.sayf("🖥️  Monitors: %d (virtual desktop %dx%d)\n", a.mesh.Len(), a.mesh.Width(), a.mesh.Height())
}

// initCamera opens the capture device. A device that will not open leaves
// the tracker on demo data.
func (a *App) initCamera() error {
	if a.config.NoCamera {
		a.config.Demo = true
		return errors.New("disabled (--no-camera), demo data only")
	}
	cfg := a.config.CameraConfig()
	a.cameraManager = camera.NewManager(cfg)

	capture, err := camera.Open(cfg, a.logger)
	if err != nil {
		a.config.Demo = true
		return fmt.Errorf("%w (falling back to demo data)", err)
	}
	a.capture = capture
	a.cameraManager.OnConfigChange = capture.Reconfigure
	return nil
}

// initDetector starts the landmark worker and, when a YuNet model is
// given, puts the face-box gate in front of it.
func (a *App) initDetector() error {
	if a.capture == nil {
		return errors.New("skipped, no camera")
	}
	name, args, ok := a.config.WorkerCommand()
	if !ok {
		return errors.New("no landmark worker configured (--landmark-worker or GAZE_LANDMARK_WORKER)")
	}
	worker, err := facemesh.StartWorker(name, args...)
	if err != nil {
		return err
	}
	a.detector = worker

	if a.config.YuNetModel == "" {
		return nil
	}
	yc := facemesh.DefaultYuNetConfig()
	yc.ModelPath = a.config.YuNetModel
	finder, err := facemesh.NewYuNet(yc)
	if err != nil {
		a.logger.Warn("face gate disabled", "error", err)
		return nil
	}
	a.detector = facemesh.NewGate(finder, worker, yc.ScoreThreshold)
	return nil
}

// initCalibration creates the fitter and opens the model store.
func (a *App) initCalibration() error {
	a.fitter = calibration.NewFitter(calibration.DefaultConfig(), a.mesh.Geometry())
	if a.config.CalibrationDB == "" {
		a.say("⚠️  No calibration database, models will not persist")
		return nil
	}
	store, err := calibration.OpenStore(a.config.CalibrationDB)
	if err != nil {
		a.sayf("⚠️  %v (models will not persist)\n", err)
		return nil
	}
	a.store = store
	a.sayf("✅ (%s)\n", a.config.CalibrationDB)
	return nil
}

// initTracking assembles the pipeline and, when serving, the HTTP API.
func (a *App) initTracking(ctx context.Context) error {
	cfg, err := a.config.TrackingConfig()
	if err != nil {
		return err
	}

	a.estimator, a.regressor, err = gaze.NewStrategy(a.config.Strategy, a.mesh)
	if err != nil {
		return err
	}

	if a.config.Serve != "" {
		a.webServer = web.NewServer(a.config.Serve, nil, a.logger)
	}

	deps := tracking.Deps{
		Extractor: features.NewExtractor(facemesh.DefaultIndices()),
		Estimator: a.estimator,
		Regressor: a.regressor,
		Fitter:    a.fitter,
		Store:     a.store,
		Mesh:      a.mesh,
		Sink:      a.sink(),
		Logger:    a.logger,
	}
	// Keep interface fields nil rather than typed nils.
	if a.capture != nil {
		deps.Frames = a.capture
	}
	if a.detector != nil {
		deps.Detector = a.detector
	}
	if a.config.ScreenWidth == 0 {
		deps.Monitors = display.RobotgoDetector{}
	}
	if a.config.FollowEnabled() {
		deps.Window = display.ActiveWindow{}
	}

	a.tracker, err = tracking.New(cfg, deps)
	if err != nil {
		return err
	}
	if a.capture != nil {
		a.cameraManager.OnConfigChange = func(c camera.Config) error {
			if err := a.capture.Reconfigure(c); err != nil {
				return err
			}
			a.tracker.ResetDevice()
			return nil
		}
	}
	if err := a.tracker.LoadCalibration(ctx); err != nil {
		a.logger.Warn("stored calibration not loaded", "error", err)
	}

	if a.webServer != nil {
		a.webServer.SetController(a.tracker)
		if a.cameraManager != nil {
			a.webServer.MountCamera(a.cameraManager)
		}
		a.sayf("🌐 HTTP API on http://%s\n", a.config.Serve)
	}
	return nil
}

// sink fans gaze records out to stdout, the pointer and websocket clients.
func (a *App) sink() emit.Sink {
	sinks := emit.Multi{emit.NewJSONLines(a.Stdout)}
	if a.config.FollowEnabled() {
		sinks = append(sinks, emit.NewFollower(emit.RobotgoMover{}, a.config.MinStep))
		a.say("🖱️  Pointer follow enabled")
	}
	if a.webServer != nil {
		sinks = append(sinks, emit.HubSink{Hub: a.webServer.GazeHub()})
	}
	return sinks
}

func (a *App) initTranscription(ctx context.Context) error {
	tc := a.config.Transcription
	tc.File = ""
	t, err := NewTranscriber(ctx, tc, a.transcriptHub(), a.logger)
	if err != nil {
		if errors.Is(err, transcribe.ErrModelMissing) {
			a.logger.Warn("transcription disabled, speech model unavailable", "engine", tc.Engine, "error", err)
		}
		return err
	}
	a.transcriber = t
	return nil
}

func (a *App) transcriptHub() *hub.Hub {
	if a.webServer == nil {
		return nil
	}
	return a.webServer.TranscriptHub()
}

// calibrate runs the guided calibration with a progress bar on stderr.
func (a *App) calibrate(ctx context.Context) {
	targets := calibration.Grid(a.tracker.Mesh(), a.config.CalibrationPoints)
	bar := progressbar.NewOptions(len(targets),
		progressbar.OptionSetDescription("Calibrating"),
		progressbar.OptionSetWriter(a.Stderr),
		progressbar.OptionShowCount(),
	)

	m, err := a.tracker.RunCalibration(ctx, targets, func(i, n int, t calibration.Target) {
		bar.Describe(fmt.Sprintf("Look at (%.0f, %.0f) on %s", t.X, t.Y, t.Monitor))
		_ = bar.Set(i)
	})
	_ = bar.Finish()
	fmt.Fprintln(a.Stderr)

	switch {
	case err != nil && ctx.Err() != nil:
	case err != nil:
		a.sayf("⚠️  Calibration failed: %v\n", err)
	default:
		a.sayf("✅ Calibrated (%s, mean error %.1f px)\n", m.Method, m.Accuracy)
	}
}
