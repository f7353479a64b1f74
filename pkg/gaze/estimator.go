package gaze

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/features"
)

// Estimator turns a feature vector into a gaze point. ok is false when no
// estimate can be made; implementations never substitute a guess.
type Estimator interface {
	Estimate(v features.Vector, at time.Time) (p Point, ok bool)
	Name() string
}

// Strategy names accepted by NewStrategy.
const (
	StrategyGeometric = "geometric"
	StrategyRegressor = "regressor"
)

// NewStrategy builds the named estimator for mesh. The regressor strategy
// falls back to the geometric estimate until it is trained; the returned
// Regressor is nil for the geometric strategy.
func NewStrategy(name string, mesh *display.Mesh) (Estimator, *Regressor, error) {
	geo := NewGeometric(DefaultGeometricConfig(), mesh)
	switch name {
	case "", StrategyGeometric:
		return geo, nil, nil
	case StrategyRegressor:
		reg := NewRegressor(DefaultRegressorConfig(), mesh)
		return Chain{reg, geo}, reg, nil
	default:
		return nil, nil, fmt.Errorf("gaze: unknown strategy %q (want %s or %s)", name, StrategyGeometric, StrategyRegressor)
	}
}

// toDesktop maps a normalized point onto the mesh and pins it inside the
// virtual desktop.
func toDesktop(mesh *display.Mesh, nx, ny float64) (float64, float64) {
	x, y := mesh.Denormalize(clamp01(nx), clamp01(ny))
	return mesh.Clamp(x, y)
}

// Chain tries each estimator in order and returns the first estimate.
type Chain []Estimator

// Estimate returns the first successful estimate.
func (c Chain) Estimate(v features.Vector, at time.Time) (Point, bool) {
	for _, e := range c {
		if p, ok := e.Estimate(v, at); ok {
			return p, true
		}
	}
	return Point{}, false
}

// Name returns the first estimator's name.
func (c Chain) Name() string {
	if len(c) == 0 {
		return "empty"
	}
	return c[0].Name()
}

// SetMesh forwards a layout change to every member that accepts one.
func (c Chain) SetMesh(mesh *display.Mesh) {
	for _, e := range c {
		if ma, ok := e.(interface{ SetMesh(*display.Mesh) }); ok {
			ma.SetMesh(mesh)
		}
	}
}
