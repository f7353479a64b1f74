// Package calibration corrects systematic gaze bias by fitting a
// per-axis map from raw gaze to screen coordinates.
package calibration

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// Method is the fitted map family.
type Method string

const (
	Affine     Method = "affine"
	Polynomial Method = "polynomial"
)

// maxCondition rejects fits whose design matrix is numerically singular.
const maxCondition = 1e10

// Sample is one reference/observation pair in virtual-desktop pixels.
type Sample struct {
	ScreenX    float64   `json:"screen_x"`
	ScreenY    float64   `json:"screen_y"`
	GazeX      float64   `json:"gaze_x"`
	GazeY      float64   `json:"gaze_y"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Poly holds polynomial coefficients, constant term first.
type Poly []float64

// Eval evaluates the polynomial at v.
func (p Poly) Eval(v float64) float64 {
	out := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		out = out*v + p[i]
	}
	return out
}

// Degree returns the polynomial degree.
func (p Poly) Degree() int { return len(p) - 1 }

// Model maps normalized raw gaze to normalized screen coordinates, one
// polynomial per axis, for the geometry it was fit against.
type Model struct {
	ID       string           `json:"id"`
	Method   Method           `json:"method"`
	X        Poly             `json:"x"`
	Y        Poly             `json:"y"`
	Accuracy float64          `json:"accuracy_px"`
	Geometry display.Geometry `json:"geometry"`
	Samples  int              `json:"samples"`
	FittedAt time.Time        `json:"fitted_at"`
}

// Valid reports whether m still applies to geometry g.
func (m *Model) Valid(g display.Geometry) bool {
	return m != nil && m.Geometry.SameSize(g)
}

func (m *Model) normalize(x, y float64) (float64, float64) {
	g := m.Geometry
	return (x - float64(g.Left)) / float64(g.Width), (y - float64(g.Top)) / float64(g.Height)
}

func (m *Model) denormalize(nx, ny float64) (float64, float64) {
	g := m.Geometry
	return float64(g.Left) + nx*float64(g.Width), float64(g.Top) + ny*float64(g.Height)
}

// Map corrects a raw gaze position in pixels.
func (m *Model) Map(x, y float64) (float64, float64) {
	nx, ny := m.normalize(x, y)
	return m.denormalize(m.X.Eval(nx), m.Y.Eval(ny))
}

// Apply returns p with its position corrected. Confidence, timestamp and
// the demo marker are kept.
func (m *Model) Apply(p gaze.Point) gaze.Point {
	return p.At(m.Map(p.X, p.Y))
}

// Residuals returns the pixel distance between predicted and actual screen
// points for each sample.
func (m *Model) Residuals(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		px, py := m.Map(s.GazeX, s.GazeY)
		out[i] = math.Hypot(px-s.ScreenX, py-s.ScreenY)
	}
	return out
}

// FitOptions controls model selection.
type FitOptions struct {
	// PolynomialMinSamples is the sample count at which degree 2 is tried.
	PolynomialMinSamples int

	// PolynomialMinDistinct is the number of distinct gaze values each
	// axis needs for degree 2.
	PolynomialMinDistinct int
}

// DefaultFitOptions returns the standard model-selection thresholds.
func DefaultFitOptions() FitOptions {
	return FitOptions{PolynomialMinSamples: 9, PolynomialMinDistinct: 3}
}

// Fit fits a model to samples against geometry g. Degree 2 is chosen
// automatically when there are enough distinct samples and the system is
// well conditioned; otherwise degree 1. Sample-count checks are the
// caller's job.
func Fit(samples []Sample, g display.Geometry, opts FitOptions) (*Model, error) {
	if g.Width <= 0 || g.Height <= 0 {
		return nil, fmt.Errorf("calibration: invalid geometry %dx%d", g.Width, g.Height)
	}
	if len(samples) < 2 {
		return nil, fmt.Errorf("%w: %d samples", ErrSingular, len(samples))
	}

	m := &Model{Geometry: g}
	gx := make([]float64, len(samples))
	gy := make([]float64, len(samples))
	sx := make([]float64, len(samples))
	sy := make([]float64, len(samples))
	for i, s := range samples {
		gx[i], gy[i] = m.normalize(s.GazeX, s.GazeY)
		sx[i], sy[i] = m.normalize(s.ScreenX, s.ScreenY)
	}

	degree := 1
	if len(samples) >= opts.PolynomialMinSamples &&
		distinct(gx) >= opts.PolynomialMinDistinct &&
		distinct(gy) >= opts.PolynomialMinDistinct {
		degree = 2
	}

	for ; degree >= 1; degree-- {
		px, errX := polyfit(gx, sx, degree)
		py, errY := polyfit(gy, sy, degree)
		if errX == nil && errY == nil {
			m.X, m.Y = px, py
			break
		}
		if degree == 1 {
			if errX != nil {
				return nil, fmt.Errorf("x axis: %w", errX)
			}
			return nil, fmt.Errorf("y axis: %w", errY)
		}
	}

	m.Method = Affine
	if m.X.Degree() == 2 {
		m.Method = Polynomial
	}
	m.ID = uuid.NewString()
	m.Samples = len(samples)
	m.FittedAt = time.Now()
	m.Accuracy = mean(m.Residuals(samples))
	return m, nil
}

// polyfit solves the least-squares polynomial of the given degree.
func polyfit(xs, ys []float64, degree int) (Poly, error) {
	n := len(xs)
	if n <= degree {
		return nil, fmt.Errorf("%w: %d samples for degree %d", ErrSingular, n, degree)
	}
	a := mat.NewDense(n, degree+1, nil)
	for i, x := range xs {
		v := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, v)
			v *= x
		}
	}
	if c := mat.Cond(a, 2); math.IsInf(c, 0) || c > maxCondition {
		return nil, fmt.Errorf("%w: condition number %.3g", ErrSingular, c)
	}

	var qr mat.QR
	qr.Factorize(a)
	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, mat.NewVecDense(n, ys)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	out := make(Poly, degree+1)
	for j := range out {
		out[j] = coef.AtVec(j)
	}
	return out, nil
}

func distinct(vs []float64) int {
	seen := make(map[float64]struct{}, len(vs))
	for _, v := range vs {
		seen[math.Round(v*1e6)/1e6] = struct{}{}
	}
	return len(seen)
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
