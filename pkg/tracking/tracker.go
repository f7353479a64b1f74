package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/calibration"
	"github.com/teslashibe/go-gaze/pkg/debug"
	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/emit"
	"github.com/teslashibe/go-gaze/pkg/facemesh"
	"github.com/teslashibe/go-gaze/pkg/features"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// FrameSource captures one JPEG frame per call.
type FrameSource interface {
	CaptureJPEG() ([]byte, error)
}

// meshAware estimators are told when the monitor layout changes.
type meshAware interface {
	SetMesh(m *display.Mesh)
}

// Deps are the tracker's collaborators. Frames, Detector and Estimator may
// be nil, in which case only demo data can be produced.
type Deps struct {
	Frames    FrameSource
	Detector  facemesh.Detector
	Extractor *features.Extractor
	Estimator gaze.Estimator
	Regressor *gaze.Regressor // trained from calibration sessions when set
	Fitter    *calibration.Fitter
	Store     *calibration.Store // persists fitted models when set
	Mesh      *display.Mesh
	Monitors  display.Detector // re-detected every Config.RedetectInterval when set
	Window    display.WindowBounds
	Sink      emit.Sink
	Logger    *slog.Logger
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Frames        uint64  `json:"frames"`
	Faces         uint64  `json:"faces"`
	Emitted       uint64  `json:"emitted"`
	Suppressed    uint64  `json:"suppressed"`
	Skipped       uint64  `json:"skipped"`
	CaptureErrors uint64  `json:"capture_errors"`
	EmitErrors    uint64  `json:"emit_errors"`
	FPS           float64 `json:"fps"`
	State         string  `json:"state"`
	Calibration   string  `json:"calibration"`
	Calibrated    bool    `json:"calibrated"`
	Demo          bool    `json:"demo"`
	Strategy      string  `json:"strategy"`
}

// Tracker runs the per-frame pipeline: capture, landmarks, features,
// estimate, smooth, calibrate, clamp, drag guard, emit.
type Tracker struct {
	config Config
	deps   Deps
	logger *slog.Logger

	// Owned by the frame goroutine; at most one frame is in flight.
	smoother *Smoother
	demo     *gaze.Demo
	misses   int
	failures int

	busy     atomic.Bool
	inflight sync.WaitGroup

	frames, faces, emitted, suppressed, skipped atomic.Uint64
	captureErrors, emitErrors                   atomic.Uint64

	mu sync.Mutex
	// mesh is replaced only by the frame goroutine, under mu. That
	// goroutine reads it without locking.
	mesh         *display.Mesh
	guard        *DragGuard
	deviceDown   bool
	deviceReset  bool
	detectorDown bool
	pendingMesh  *display.Mesh
	lastRaw      gaze.Point
	lastFeatures features.Vector
	hasLast      bool
	regSamples   []gaze.Sample
	startedAt    time.Time
}

// New creates a tracker. Mesh, Fitter and Sink are required.
func New(config Config, deps Deps) (*Tracker, error) {
	if errs := config.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("tracking: invalid config: %v", errs)
	}
	if deps.Mesh == nil || deps.Fitter == nil || deps.Sink == nil {
		return nil, errors.New("tracking: mesh, fitter and sink are required")
	}
	if deps.Extractor == nil {
		deps.Extractor = features.NewExtractor(facemesh.DefaultIndices())
	}
	now := time.Now()
	return &Tracker{
		config:    config,
		deps:      deps,
		logger:    log.Or(deps.Logger).With("component", "tracker"),
		smoother:  NewSmoother(config.SmoothingWindow),
		mesh:      deps.Mesh,
		demo:      gaze.NewDemo(deps.Mesh, now),
		guard:     NewDragGuard(config.TitlebarHeight, config.StabilityThreshold, config.ResumeDwell),
		startedAt: now,
	}, nil
}

// Run drives the pipeline at Config.FrameInterval until ctx is cancelled.
// A tick that arrives while the previous frame is still being processed is
// skipped, never queued.
func (t *Tracker) Run(ctx context.Context) error {
	frameTicker := time.NewTicker(t.config.FrameInterval)
	statsTicker := time.NewTicker(t.config.StatsInterval)
	defer frameTicker.Stop()
	defer statsTicker.Stop()

	var redetect <-chan time.Time
	if t.deps.Monitors != nil && t.config.RedetectInterval > 0 {
		tk := time.NewTicker(t.config.RedetectInterval)
		defer tk.Stop()
		redetect = tk.C
	}

	t.logger.Info("gaze tracker started",
		"interval", t.config.FrameInterval,
		"smoothing", t.smoother.Capacity(),
		"strategy", t.strategy(),
		"demo", t.config.Demo,
		"monitors", t.Mesh().Len())

	for {
		select {
		case <-ctx.Done():
			t.inflight.Wait()
			t.logStats()
			return ctx.Err()

		case now := <-frameTicker.C:
			if !t.busy.CompareAndSwap(false, true) {
				t.skipped.Add(1)
				continue
			}
			t.inflight.Add(1)
			go func() {
				defer t.inflight.Done()
				defer t.busy.Store(false)
				t.Step(ctx, now)
			}()

		case <-statsTicker.C:
			t.logStats()

		case <-redetect:
			mesh := display.Detect(t.deps.Monitors, t.logger)
			if mesh.Geometry() != t.currentGeometry() {
				t.mu.Lock()
				t.pendingMesh = mesh
				t.mu.Unlock()
			}
		}
	}
}

func (t *Tracker) currentGeometry() display.Geometry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingMesh != nil {
		return t.pendingMesh.Geometry()
	}
	return t.mesh.Geometry()
}

// Step processes one frame synchronously. Run calls it once per tick; tests
// call it directly.
func (t *Tracker) Step(ctx context.Context, now time.Time) {
	t.applyPendingMesh()
	t.frames.Add(1)

	raw, v, ok := t.observe(ctx, now)
	if !ok {
		if t.demoActive() {
			t.publish(t.demo.At(now), false, now)
		}
		return
	}

	t.mu.Lock()
	t.lastRaw, t.lastFeatures, t.hasLast = raw, v, true
	t.mu.Unlock()

	if t.config.DemoBlend {
		raw = gaze.Blend(raw, t.demo.At(now), t.config.DemoBlendThreshold)
	}

	p := t.smoother.Smooth(raw)
	// Regressor output is already in calibrated screen space; the fitted
	// model only corrects geometric estimates.
	calibrated := p.Source == gaze.StrategyRegressor
	if !calibrated {
		p, calibrated = t.deps.Fitter.Apply(p)
	}
	p = p.At(t.mesh.Clamp(p.X, p.Y))

	debug.Trackf("raw=(%.0f,%.0f) out=(%.0f,%.0f) conf=%.2f cal=%v", raw.X, raw.Y, p.X, p.Y, p.Confidence, calibrated)
	t.publish(p, calibrated, now)
}

// observe runs capture through estimation. ok is false when the frame
// yields no estimate.
func (t *Tracker) observe(ctx context.Context, now time.Time) (gaze.Point, features.Vector, bool) {
	t.mu.Lock()
	if t.deviceReset {
		t.failures, t.deviceReset = 0, false
	}
	down := t.deviceDown || t.detectorDown
	t.mu.Unlock()
	if down || t.deps.Frames == nil || t.deps.Detector == nil || t.deps.Estimator == nil {
		return gaze.Point{}, features.Vector{}, false
	}

	frame, err := t.deps.Frames.CaptureJPEG()
	if err != nil {
		t.captureErrors.Add(1)
		t.failures++
		if t.failures >= t.config.MaxCaptureFailures {
			t.mu.Lock()
			t.deviceDown = true
			t.mu.Unlock()
			t.logger.Error("camera keeps failing, switching to demo data",
				"consecutive_failures", t.failures, "error", err)
		} else {
			t.logger.Warn("frame capture failed", "consecutive_failures", t.failures,
				"max", t.config.MaxCaptureFailures, "error", err)
		}
		return gaze.Point{}, features.Vector{}, false
	}
	t.failures = 0

	ls, err := t.deps.Detector.Detect(ctx, frame)
	if err != nil {
		switch {
		case errors.Is(err, facemesh.ErrNoFace):
			t.miss("no face")
		case errors.Is(err, facemesh.ErrWorkerExited):
			t.mu.Lock()
			t.detectorDown = true
			t.mu.Unlock()
			t.logger.Error("landmark detection disabled", "error", err)
		case errors.Is(err, context.Canceled):
		default:
			t.logger.Warn("landmark detection failed", "error", err)
		}
		return gaze.Point{}, features.Vector{}, false
	}

	v, err := t.deps.Extractor.Extract(ls)
	if err != nil {
		t.miss(err.Error())
		return gaze.Point{}, features.Vector{}, false
	}

	p, ok := t.deps.Estimator.Estimate(v, now)
	if !ok {
		t.miss("no estimate")
		return gaze.Point{}, features.Vector{}, false
	}

	if t.misses >= t.config.MissLogThreshold {
		t.logger.Info("face reacquired", "missed_frames", t.misses)
	}
	t.misses = 0
	t.faces.Add(1)
	return p, v, true
}

func (t *Tracker) miss(reason string) {
	t.misses++
	if t.misses == t.config.MissLogThreshold {
		t.logger.Info("face lost", "consecutive_misses", t.misses, "reason", reason)
	}
}

func (t *Tracker) demoActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.config.Demo || t.deviceDown
}

// publish runs the drag guard and hands p to the sink.
func (t *Tracker) publish(p gaze.Point, calibrated bool, now time.Time) {
	var bounds display.Rect
	if t.deps.Window != nil {
		bounds, _ = t.deps.Window.Bounds()
	}

	t.mu.Lock()
	prev := t.guard.State()
	state := t.guard.Update(p, bounds, now)
	t.mu.Unlock()

	if state != prev {
		t.logger.Info("drag guard", "state", state.String(), "x", p.X, "y", p.Y)
	}
	if state == Paused {
		t.suppressed.Add(1)
		return
	}

	if err := t.deps.Sink.Emit(emit.NewRecord(p, calibrated)); err != nil {
		if t.emitErrors.Add(1) == 1 {
			t.logger.Error("emit failed", "error", err)
		}
		return
	}
	t.emitted.Add(1)
}

// SetMesh schedules a monitor layout change. It takes effect at the start
// of the next frame. A calibration fit for a different desktop size is
// discarded.
func (t *Tracker) SetMesh(m *display.Mesh) {
	t.mu.Lock()
	t.pendingMesh = m
	t.mu.Unlock()
}

func (t *Tracker) applyPendingMesh() {
	t.mu.Lock()
	m := t.pendingMesh
	t.pendingMesh = nil
	var old display.Geometry
	if m != nil {
		old = t.mesh.Geometry()
		t.mesh = m
	}
	t.mu.Unlock()
	if m == nil {
		return
	}

	t.demo = gaze.NewDemo(m, time.Now())
	t.smoother.Reset()
	if ma, ok := t.deps.Estimator.(meshAware); ok {
		ma.SetMesh(m)
	}
	if t.deps.Fitter.SetGeometry(m.Geometry()) {
		t.logger.Warn("virtual desktop changed, calibration discarded",
			"old_width", old.Width, "old_height", old.Height,
			"new_width", m.Geometry().Width, "new_height", m.Geometry().Height)
	} else {
		t.logger.Info("monitor layout updated", "monitors", m.Len())
	}
}

// ResetDevice clears a camera failure so the next frame tries the device
// again. Call it after the device has been reopened.
func (t *Tracker) ResetDevice() {
	t.mu.Lock()
	wasDown := t.deviceDown
	t.deviceDown, t.deviceReset = false, true
	t.mu.Unlock()
	if wasDown {
		t.logger.Info("camera reopened, leaving demo data")
	}
}

// Mesh returns the monitor mesh in use.
func (t *Tracker) Mesh() *display.Mesh {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingMesh != nil {
		return t.pendingMesh
	}
	return t.mesh
}

// Pause suppresses output until Resume.
func (t *Tracker) Pause() {
	t.mu.Lock()
	t.guard.Pause()
	t.mu.Unlock()
	t.logger.Info("output paused")
}

// Resume re-enables output.
func (t *Tracker) Resume() {
	t.mu.Lock()
	t.guard.Resume()
	t.mu.Unlock()
	t.logger.Info("output resumed")
}

// Stats returns a snapshot of the pipeline counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	state := t.guard.State()
	demo := t.config.Demo || t.deviceDown
	elapsed := time.Since(t.startedAt).Seconds()
	t.mu.Unlock()

	s := Stats{
		Frames:        t.frames.Load(),
		Faces:         t.faces.Load(),
		Emitted:       t.emitted.Load(),
		Suppressed:    t.suppressed.Load(),
		Skipped:       t.skipped.Load(),
		CaptureErrors: t.captureErrors.Load(),
		EmitErrors:    t.emitErrors.Load(),
		State:         state.String(),
		Calibration:   t.deps.Fitter.State().String(),
		Calibrated:    t.deps.Fitter.Model() != nil || (t.deps.Regressor != nil && t.deps.Regressor.Trained()),
		Demo:          demo,
		Strategy:      t.strategy(),
	}
	if elapsed > 0 {
		s.FPS = float64(s.Frames) / elapsed
	}
	return s
}

func (t *Tracker) strategy() string {
	if t.deps.Estimator == nil {
		return "none"
	}
	return t.deps.Estimator.Name()
}

func (t *Tracker) logStats() {
	s := t.Stats()
	t.logger.Info("tracker stats",
		"frames", s.Frames,
		"faces", s.Faces,
		"emitted", s.Emitted,
		"suppressed", s.Suppressed,
		"skipped", s.Skipped,
		"fps", fmt.Sprintf("%.1f", s.FPS),
		"state", s.State,
		"calibrated", s.Calibrated)
}
