package gaze

import (
	"math"
	"time"

	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/features"
)

// GeometricConfig holds the heuristic mapping parameters.
type GeometricConfig struct {
	// Sensitivity scales pupil travel about the screen centre.
	Sensitivity float64 `json:"sensitivity"`

	// YBoost multiplies vertical sensitivity; the eye moves less vertically.
	YBoost float64 `json:"y_boost"`

	// HeadPoseGain scales head pan/tilt subtracted from the estimate.
	// Zero disables head-pose correction.
	HeadPoseGain float64 `json:"head_pose_gain"`

	// Multi-monitor sensitivity bounds.
	MinMultiMonitorBoost float64 `json:"min_multi_monitor_boost"`
	MaxMultiMonitorBoost float64 `json:"max_multi_monitor_boost"`

	// Confidence reported with and without iris rings.
	IrisConfidence    float64 `json:"iris_confidence"`
	ContourConfidence float64 `json:"contour_confidence"`

	// MinIrisPoints per eye for IrisConfidence.
	MinIrisPoints int `json:"min_iris_points"`
}

// DefaultGeometricConfig returns the standard parameters.
func DefaultGeometricConfig() GeometricConfig {
	return GeometricConfig{
		Sensitivity:          1.5,
		YBoost:               1.6,
		HeadPoseGain:         0,
		MinMultiMonitorBoost: 1.0,
		MaxMultiMonitorBoost: 2.5,
		IrisConfidence:       0.9,
		ContourConfidence:    0.7,
		MinIrisPoints:        4,
	}
}

// Geometric maps the averaged pupil position straight to the screen.
// The camera image is mirrored, so X is inverted.
type Geometric struct {
	cfg  GeometricConfig
	mesh *display.Mesh
	sx   float64
	sy   float64
}

// NewGeometric builds a geometric estimator for mesh.
func NewGeometric(cfg GeometricConfig, mesh *display.Mesh) *Geometric {
	s := cfg.Sensitivity * MultiMonitorBoost(mesh, cfg.MinMultiMonitorBoost, cfg.MaxMultiMonitorBoost)
	return &Geometric{cfg: cfg, mesh: mesh, sx: s, sy: s * cfg.YBoost}
}

// MultiMonitorBoost returns the sensitivity multiplier for mesh:
// (largest area / primary area)^0.3 clamped to [lo, hi] when more than one
// monitor is present, 1 otherwise.
func MultiMonitorBoost(mesh *display.Mesh, lo, hi float64) float64 {
	if mesh.Len() < 2 {
		return 1
	}
	return clamp(math.Pow(mesh.AreaRatio(), 0.3), lo, hi)
}

// Sensitivity returns the effective horizontal and vertical sensitivity.
func (g *Geometric) Sensitivity() (sx, sy float64) { return g.sx, g.sy }

// Name implements Estimator.
func (g *Geometric) Name() string { return StrategyGeometric }

// Estimate implements Estimator.
func (g *Geometric) Estimate(v features.Vector, at time.Time) (Point, bool) {
	px, py := v.Pupil()
	if !finite(px, py, v.Values[features.HeadPan], v.Values[features.HeadTilt]) {
		return Point{}, false
	}

	nx := 1 - px
	ny := py
	if g.cfg.HeadPoseGain != 0 {
		nx -= g.cfg.HeadPoseGain * v.Values[features.HeadPan]
		ny -= g.cfg.HeadPoseGain * v.Values[features.HeadTilt]
	}
	nx = 0.5 + (nx-0.5)*g.sx
	ny = 0.5 + (ny-0.5)*g.sy

	x, y := toDesktop(g.mesh, nx, ny)
	conf := g.cfg.ContourConfidence
	if v.IrisPoints >= g.cfg.MinIrisPoints {
		conf = g.cfg.IrisConfidence
	}
	return Point{X: x, Y: y, Confidence: conf, Timestamp: at, Source: StrategyGeometric}, true
}

// SetMesh re-targets the estimator at a new monitor layout.
func (g *Geometric) SetMesh(mesh *display.Mesh) {
	*g = *NewGeometric(g.cfg, mesh)
}
