package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-gaze/pkg/facemesh"
)

// Reasons a frame cannot be turned into a Vector.
var (
	ErrNoFace          = errors.New("features: no landmarks")
	ErrTooFewLandmarks = errors.New("features: too few landmarks")
	ErrNoEyePoints     = errors.New("features: not enough eye points")
	ErrDegenerateEye   = errors.New("features: degenerate eye width")
)

// Minimum points per eye for each pupil source.
const (
	MinIrisPoints    = 3
	MinContourPoints = 6
)

// Extractor computes feature vectors. It holds no per-frame state and is
// safe for concurrent use.
type Extractor struct {
	idx facemesh.Indices
}

// NewExtractor returns an Extractor for the given landmark table.
func NewExtractor(idx facemesh.Indices) *Extractor {
	return &Extractor{idx: idx}
}

// Indices returns the landmark table in use.
func (e *Extractor) Indices() facemesh.Indices { return e.idx }

// Extract builds a Vector from ls. On failure the returned error wraps one
// of the package sentinel errors.
func (e *Extractor) Extract(ls facemesh.LandmarkSet) (Vector, error) {
	if ls == nil {
		return Vector{}, ErrNoFace
	}
	if len(ls) < e.idx.MinLandmarks {
		return Vector{}, fmt.Errorf("%w: have %d, need %d", ErrTooFewLandmarks, len(ls), e.idx.MinLandmarks)
	}
	for _, i := range e.idx.Required() {
		if !ls.Has(i) {
			return Vector{}, fmt.Errorf("%w: index %d missing", ErrTooFewLandmarks, i)
		}
	}

	leftPupil, leftIris, err := pupil(ls, e.idx.LeftIris, e.idx.LeftEye)
	if err != nil {
		return Vector{}, fmt.Errorf("left eye: %w", err)
	}
	rightPupil, rightIris, err := pupil(ls, e.idx.RightIris, e.idx.RightEye)
	if err != nil {
		return Vector{}, fmt.Errorf("right eye: %w", err)
	}

	leftInner := ls[e.idx.LeftInnerCorner]
	rightInner := ls[e.idx.RightInnerCorner]
	leftWidth := dist(leftInner, ls[e.idx.LeftOuterCorner])
	rightWidth := dist(rightInner, ls[e.idx.RightOuterCorner])
	if leftWidth <= 0 || rightWidth <= 0 {
		return Vector{}, fmt.Errorf("%w: left %.4f right %.4f", ErrDegenerateEye, leftWidth, rightWidth)
	}

	leftEar, rightEar := ls[e.idx.LeftEar], ls[e.idx.RightEar]
	nose, bridge := ls[e.idx.NoseTip], ls[e.idx.NoseBridge]

	var v Vector
	v.Values[LeftPupilNormX] = (leftPupil.X - leftInner.X) / leftWidth
	v.Values[LeftPupilNormY] = (leftPupil.Y - leftInner.Y) / leftWidth
	v.Values[RightPupilNormX] = (rightPupil.X - rightInner.X) / rightWidth
	v.Values[RightPupilNormY] = (rightPupil.Y - rightInner.Y) / rightWidth
	v.Values[LeftPupilX] = leftPupil.X
	v.Values[LeftPupilY] = leftPupil.Y
	v.Values[RightPupilX] = rightPupil.X
	v.Values[RightPupilY] = rightPupil.Y
	v.Values[HeadTilt] = math.Atan2(rightEar.Y-leftEar.Y, rightEar.X-leftEar.X)
	v.Values[HeadPan] = (nose.X - 0.5) * 2
	v.Values[HeadDepth] = dist(nose, bridge)
	v.Values[LeftEyeWidth] = leftWidth
	v.Values[RightEyeWidth] = rightWidth
	v.Values[Bias] = biasValue

	if leftIris > 0 && rightIris > 0 {
		v.IrisPoints = min(leftIris, rightIris)
	}
	return v, nil
}

// pupil returns the pupil centre and the number of iris points used (0 when
// the eye contour was used instead).
func pupil(ls facemesh.LandmarkSet, iris, contour []int) (facemesh.Point, int, error) {
	if pts := ls.Pick(iris); len(pts) >= MinIrisPoints {
		p, _ := facemesh.Mean(pts)
		return p, len(pts), nil
	}
	pts := ls.Pick(contour)
	if len(pts) < MinContourPoints {
		return facemesh.Point{}, 0, fmt.Errorf("%w: %d contour points", ErrNoEyePoints, len(pts))
	}
	p, _ := facemesh.Mean(pts)
	return p, 0, nil
}

func dist(a, b facemesh.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
