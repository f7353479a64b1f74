package gaze

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/features"
)

// Regressor errors.
var (
	ErrNotTrained     = errors.New("gaze: regressor not trained")
	ErrTooFewSamples  = errors.New("gaze: too few training samples")
	ErrIllConditioned = errors.New("gaze: training system is ill-conditioned")
)

// Sample pairs a feature vector with the normalized screen point the user
// was looking at.
type Sample struct {
	Features features.Vector
	X, Y     float64
}

// RegressorConfig configures the learned estimator.
type RegressorConfig struct {
	// Lambda is the ridge penalty on standardized weights.
	Lambda float64 `json:"lambda"`

	// Confidence reported with every estimate.
	Confidence float64 `json:"confidence"`

	// MinSamples required by Fit.
	MinSamples int `json:"min_samples"`
}

// DefaultRegressorConfig returns the standard parameters.
func DefaultRegressorConfig() RegressorConfig {
	return RegressorConfig{
		Lambda:     1e-6,
		Confidence: 0.8,
		MinSamples: 4,
	}
}

// Regressor is a ridge-regularized model over the feature vector plus
// quadratic pupil terms, one output per axis. It is trained from
// calibration samples and reports nothing until trained.
type Regressor struct {
	cfg  RegressorConfig
	mesh *display.Mesh

	mu        sync.RWMutex
	trained   bool
	suspended bool
	mean    []float64
	scale   []float64
	wx, wy  *mat.VecDense
}

// NewRegressor returns an untrained regressor for mesh.
func NewRegressor(cfg RegressorConfig, mesh *display.Mesh) *Regressor {
	return &Regressor{cfg: cfg, mesh: mesh}
}

// Name implements Estimator.
func (r *Regressor) Name() string { return StrategyRegressor }

// Trained reports whether Fit has succeeded.
func (r *Regressor) Trained() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trained
}

// Reset discards the trained weights.
func (r *Regressor) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trained = false
	r.wx, r.wy = nil, nil
}

// Suspend makes Estimate report nothing until Unsuspend, so a chained
// estimator takes over. Trained weights are kept.
func (r *Regressor) Suspend() {
	r.mu.Lock()
	r.suspended = true
	r.mu.Unlock()
}

// Unsuspend undoes Suspend.
func (r *Regressor) Unsuspend() {
	r.mu.Lock()
	r.suspended = false
	r.mu.Unlock()
}

// terms returns the raw regression inputs for v: every feature except the
// constant slot, then squared and cross pupil terms.
func terms(v features.Vector) []float64 {
	out := make([]float64, 0, features.Size+2)
	out = append(out, v.Values[:features.Bias]...)
	nx, ny := v.PupilNorm()
	return append(out, nx*nx, ny*ny, nx*ny)
}

// Fit trains the model. On error the previous weights stay in place.
func (r *Regressor) Fit(samples []Sample) error {
	if len(samples) < r.cfg.MinSamples {
		return fmt.Errorf("%w: have %d, need %d", ErrTooFewSamples, len(samples), r.cfg.MinSamples)
	}

	n := len(samples)
	k := len(terms(samples[0].Features))
	cols := k + 1

	raw := make([][]float64, n)
	for i, s := range samples {
		raw[i] = terms(s.Features)
		if !finite(raw[i]...) || !finite(s.X, s.Y) {
			return fmt.Errorf("gaze: sample %d has non-finite values", i)
		}
	}

	mean := make([]float64, k)
	scale := make([]float64, k)
	for j := 0; j < k; j++ {
		for i := 0; i < n; i++ {
			mean[j] += raw[i][j]
		}
		mean[j] /= float64(n)
		for i := 0; i < n; i++ {
			d := raw[i][j] - mean[j]
			scale[j] += d * d
		}
		scale[j] = math.Sqrt(scale[j] / float64(n))
		if scale[j] < 1e-12 {
			scale[j] = 0
		}
	}

	x := mat.NewDense(n, cols, nil)
	tx := mat.NewVecDense(n, nil)
	ty := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x.SetRow(i, standardize(raw[i], mean, scale))
		tx.SetVec(i, samples[i].X)
		ty.SetVec(i, samples[i].Y)
	}

	var a mat.SymDense
	a.SymOuterK(1, x.T())
	// Intercept (last column) is not penalized.
	for j := 0; j < k; j++ {
		a.SetSym(j, j, a.At(j, j)+r.cfg.Lambda*float64(n))
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&a); !ok {
		return ErrIllConditioned
	}

	solve := func(t *mat.VecDense) (*mat.VecDense, error) {
		var b, w mat.VecDense
		b.MulVec(x.T(), t)
		if err := chol.SolveVecTo(&w, &b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIllConditioned, err)
		}
		return &w, nil
	}
	wx, err := solve(tx)
	if err != nil {
		return err
	}
	wy, err := solve(ty)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.mean, r.scale, r.wx, r.wy = mean, scale, wx, wy
	r.trained = true
	r.mu.Unlock()
	return nil
}

// standardize centres and scales raw, appending the intercept column.
// Constant columns become zero.
func standardize(raw, mean, scale []float64) []float64 {
	row := make([]float64, len(raw)+1)
	for j, v := range raw {
		if scale[j] > 0 {
			row[j] = (v - mean[j]) / scale[j]
		}
	}
	row[len(raw)] = 1
	return row
}

// Predict returns the unclamped normalized screen point for v.
func (r *Regressor) Predict(v features.Vector) (nx, ny float64, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.trained {
		return 0, 0, ErrNotTrained
	}
	row := mat.NewVecDense(len(r.mean)+1, standardize(terms(v), r.mean, r.scale))
	return mat.Dot(row, r.wx), mat.Dot(row, r.wy), nil
}

// Estimate implements Estimator.
func (r *Regressor) Estimate(v features.Vector, at time.Time) (Point, bool) {
	if !finite(v.Values[:]...) {
		return Point{}, false
	}
	r.mu.RLock()
	mesh, suspended := r.mesh, r.suspended
	r.mu.RUnlock()
	if suspended {
		return Point{}, false
	}
	nx, ny, err := r.Predict(v)
	if err != nil || !finite(nx, ny) {
		return Point{}, false
	}
	x, y := toDesktop(mesh, nx, ny)
	return Point{X: x, Y: y, Confidence: r.cfg.Confidence, Timestamp: at, Source: StrategyRegressor}, true
}

// SetMesh re-targets the regressor at a new monitor layout. Weights are
// kept since they map to normalized coordinates.
func (r *Regressor) SetMesh(mesh *display.Mesh) {
	r.mu.Lock()
	r.mesh = mesh
	r.mu.Unlock()
}
