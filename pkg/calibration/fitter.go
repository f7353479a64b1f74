package calibration

import (
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// State is the fitter state.
type State int

const (
	Idle State = iota
	Collecting
	Fitted
)

func (s State) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Fitted:
		return "fitted"
	default:
		return "idle"
	}
}

// Config controls sample acceptance and model selection.
type Config struct {
	MinConfidence float64    `json:"min_confidence"`
	MinSamples    int        `json:"min_samples"`
	Fit           FitOptions `json:"fit"`
}

// DefaultConfig returns the standard thresholds: confidence floor 0.5 and
// four samples minimum.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.5,
		MinSamples:    4,
		Fit:           DefaultFitOptions(),
	}
}

// Fitter runs the Idle → Collecting → Fitted state machine. The active
// model survives failed fits and new sessions until a new fit succeeds.
// Safe for concurrent use; the tracker and the HTTP API share one Fitter.
type Fitter struct {
	cfg Config

	mu       sync.Mutex
	geometry display.Geometry
	state    State
	samples  []Sample
	model    *Model
	lastFit  []Sample
}

// NewFitter returns an idle fitter for geometry g.
func NewFitter(cfg Config, g display.Geometry) *Fitter {
	return &Fitter{cfg: cfg, geometry: g}
}

// State returns the current state.
func (f *Fitter) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Begin starts a new collection session, discarding pending samples.
func (f *Fitter) Begin() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Collecting
	f.samples = f.samples[:0]
}

// Cancel abandons the session. The fitter returns to Fitted if a model is
// active, Idle otherwise.
func (f *Fitter) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = f.samples[:0]
	f.state = f.restState()
}

func (f *Fitter) restState() State {
	if f.model != nil {
		return Fitted
	}
	return Idle
}

// AddSample records that the user looked at screen while the tracker
// reported raw. Samples below the confidence floor are rejected.
func (f *Fitter) AddSample(screenX, screenY float64, raw gaze.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != Collecting {
		return ErrNotCollecting
	}
	if raw.Confidence < f.cfg.MinConfidence {
		return fmt.Errorf("%w: %.2f < %.2f", ErrLowConfidence, raw.Confidence, f.cfg.MinConfidence)
	}
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	f.samples = append(f.samples, Sample{
		ScreenX:    screenX,
		ScreenY:    screenY,
		GazeX:      raw.X,
		GazeY:      raw.Y,
		Confidence: raw.Confidence,
		Timestamp:  ts,
	})
	return nil
}

// Pending returns the number of samples collected in this session.
func (f *Fitter) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}

// Fit fits a model from the session samples. With too few samples the fit
// is refused, the session stays open and any previous model stays active.
func (f *Fitter) Fit() (*Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != Collecting {
		return nil, ErrNotCollecting
	}
	if len(f.samples) < f.cfg.MinSamples {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, len(f.samples), f.cfg.MinSamples)
	}

	m, err := Fit(f.samples, f.geometry, f.cfg.Fit)
	if err != nil {
		return nil, err
	}
	f.model = m
	f.lastFit = append([]Sample(nil), f.samples...)
	f.samples = f.samples[:0]
	f.state = Fitted
	return m, nil
}

// Model returns the active model, or nil.
func (f *Fitter) Model() *Model {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

// Samples returns a copy of the samples behind the active model.
func (f *Fitter) Samples() []Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sample(nil), f.lastFit...)
}

// Load installs a previously saved model. Models fit against a different
// geometry are rejected.
func (f *Fitter) Load(m *Model) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !m.Valid(f.geometry) {
		return fmt.Errorf("%w: model %dx%d, desktop %dx%d", ErrGeometryChanged,
			m.Geometry.Width, m.Geometry.Height, f.geometry.Width, f.geometry.Height)
	}
	f.model = m
	f.lastFit = nil
	if f.state != Collecting {
		f.state = Fitted
	}
	return nil
}

// SetGeometry records a new virtual desktop. An active model fit against a
// different size is discarded; the return value reports whether that
// happened.
func (f *Fitter) SetGeometry(g display.Geometry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geometry = g
	if f.model == nil || f.model.Valid(g) {
		return false
	}
	f.model = nil
	f.lastFit = nil
	if f.state == Fitted {
		f.state = Idle
	}
	return true
}

// Reset drops the active model and any pending samples.
func (f *Fitter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = nil
	f.lastFit = nil
	f.samples = f.samples[:0]
	f.state = Idle
}

// Apply corrects p with the active model. ok is false when no model is
// active and p is returned unchanged.
func (f *Fitter) Apply(p gaze.Point) (gaze.Point, bool) {
	m := f.Model()
	if m == nil {
		return p, false
	}
	return m.Apply(p), true
}
