// Package facemeshtest builds synthetic landmark sets for tests.
package facemeshtest

import (
	"math"

	"github.com/teslashibe/go-gaze/pkg/facemesh"
)

// Eye layout of the synthetic face, in normalized frame coordinates.
const (
	EyeY           = 0.40
	LeftEyeX       = 0.44
	RightEyeX      = 0.56
	EyeHalfWidth   = 0.03
	IrisRadius     = 0.008
	irisSeparation = RightEyeX - LeftEyeX
)

// Face returns a 478-point landmark set whose iris centres average to
// (px, py). Eye corners, nose and ears sit at fixed positions.
func Face(idx facemesh.Indices, px, py float64) facemesh.LandmarkSet {
	n := max(478, idx.MinLandmarks)
	ls := make(facemesh.LandmarkSet, n)
	for i := range ls {
		ls[i] = facemesh.Point{X: 0.5, Y: 0.5}
	}

	ring(ls, idx.LeftIris, px-irisSeparation/2, py, IrisRadius)
	ring(ls, idx.RightIris, px+irisSeparation/2, py, IrisRadius)
	ring(ls, idx.LeftEye, LeftEyeX, EyeY, EyeHalfWidth)
	ring(ls, idx.RightEye, RightEyeX, EyeY, EyeHalfWidth)

	ls[idx.LeftInnerCorner] = facemesh.Point{X: LeftEyeX + EyeHalfWidth, Y: EyeY}
	ls[idx.LeftOuterCorner] = facemesh.Point{X: LeftEyeX - EyeHalfWidth, Y: EyeY}
	ls[idx.RightInnerCorner] = facemesh.Point{X: RightEyeX - EyeHalfWidth, Y: EyeY}
	ls[idx.RightOuterCorner] = facemesh.Point{X: RightEyeX + EyeHalfWidth, Y: EyeY}

	ls[idx.NoseTip] = facemesh.Point{X: 0.5, Y: 0.52, Z: -0.05}
	ls[idx.NoseBridge] = facemesh.Point{X: 0.5, Y: 0.42}
	ls[idx.LeftEar] = facemesh.Point{X: 0.30, Y: 0.45}
	ls[idx.RightEar] = facemesh.Point{X: 0.70, Y: 0.45}
	return ls
}

// WithoutIris returns a copy of ls cut short so iris ring indices are
// missing but the face points remain.
func WithoutIris(ls facemesh.LandmarkSet) facemesh.LandmarkSet {
	out := make(facemesh.LandmarkSet, 468)
	copy(out, ls)
	return out
}

// ring places the last index at the centre and the rest evenly on a circle,
// so the mean of all points is the centre.
func ring(ls facemesh.LandmarkSet, indices []int, cx, cy, r float64) {
	if len(indices) == 0 {
		return
	}
	around := indices
	if len(indices)%2 == 1 {
		ls[indices[len(indices)-1]] = facemesh.Point{X: cx, Y: cy}
		around = indices[:len(indices)-1]
	}
	for k, i := range around {
		a := 2 * math.Pi * float64(k) / float64(len(around))
		ls[i] = facemesh.Point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
}
