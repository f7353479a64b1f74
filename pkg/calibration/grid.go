package calibration

import (
	"math"

	"github.com/teslashibe/go-gaze/pkg/display"
)

// Target is one point the user is asked to look at.
type Target struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Monitor string  `json:"monitor"`
}

// Grid margins as a fraction of monitor size.
const (
	gridMargin   = 0.1
	cornerMargin = 0.15
)

// Grid lays out n targets on every monitor of mesh, primary first.
// Five points use the centre and four inset corners; other counts use the
// first n cells of the smallest square grid that holds them. n is raised
// to at least 4.
func Grid(mesh *display.Mesh, n int) []Target {
	n = max(n, 4)
	layout := gridLayout(n)

	monitors := mesh.Monitors()
	primary := mesh.Primary()
	ordered := []display.Monitor{primary}
	for _, m := range monitors {
		if m != primary {
			ordered = append(ordered, m)
		}
	}

	out := make([]Target, 0, n*len(ordered))
	for _, m := range ordered {
		for _, p := range layout {
			out = append(out, Target{
				X:       float64(m.X) + p[0]*float64(m.Width),
				Y:       float64(m.Y) + p[1]*float64(m.Height),
				Monitor: m.Name,
			})
		}
	}
	return out
}

// gridLayout returns n normalized positions inside a monitor.
func gridLayout(n int) [][2]float64 {
	if n == 5 {
		lo, hi := cornerMargin, 1-cornerMargin
		return [][2]float64{{0.5, 0.5}, {lo, lo}, {hi, lo}, {lo, hi}, {hi, hi}}
	}
	k := int(math.Ceil(math.Sqrt(float64(n))))
	step := (1 - 2*gridMargin) / float64(k-1)
	out := make([][2]float64, 0, n)
	for row := 0; row < k && len(out) < n; row++ {
		for col := 0; col < k && len(out) < n; col++ {
			out = append(out, [2]float64{gridMargin + float64(col)*step, gridMargin + float64(row)*step})
		}
	}
	return out
}
