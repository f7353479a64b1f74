// Package facemesh defines the landmark contract between go-gaze and the
// external face-mesh model, plus a subprocess client for running the model.
package facemesh

// Point is one normalized landmark. X and Y are in [0,1] relative to the
// frame; Z is the model's relative depth and may be zero.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// LandmarkSet is the ordered landmark list for one face in one frame.
// A nil set means no face was detected.
type LandmarkSet []Point

// Has reports whether index i is present.
func (ls LandmarkSet) Has(i int) bool {
	return i >= 0 && i < len(ls)
}

// Pick returns the points at the given indices, skipping any that are out
// of range.
func (ls LandmarkSet) Pick(indices []int) []Point {
	out := make([]Point, 0, len(indices))
	for _, i := range indices {
		if ls.Has(i) {
			out = append(out, ls[i])
		}
	}
	return out
}

// Mean returns the arithmetic mean of pts. ok is false for an empty slice.
func Mean(pts []Point) (p Point, ok bool) {
	if len(pts) == 0 {
		return Point{}, false
	}
	for _, q := range pts {
		p.X += q.X
		p.Y += q.Y
		p.Z += q.Z
	}
	n := float64(len(pts))
	return Point{X: p.X / n, Y: p.Y / n, Z: p.Z / n}, true
}
