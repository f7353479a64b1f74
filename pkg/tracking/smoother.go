package tracking

import (
	"math"

	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// Smoother averages the most recent points with exponentially increasing
// weights toward the newest. It favours responsiveness over jitter
// suppression. Not safe for concurrent use; a Smoother belongs to one
// tracker.
type Smoother struct {
	capacity int
	history  []gaze.Point
}

// NewSmoother returns a smoother keeping n points, clamped to
// [MinHistory, MaxHistory].
func NewSmoother(n int) *Smoother {
	n = max(MinHistory, min(n, MaxHistory))
	return &Smoother{capacity: n, history: make([]gaze.Point, 0, n)}
}

// Capacity returns the history size.
func (s *Smoother) Capacity() int { return s.capacity }

// Len returns the number of points currently held.
func (s *Smoother) Len() int { return len(s.history) }

// Reset clears the history.
func (s *Smoother) Reset() { s.history = s.history[:0] }

// Weights returns the normalized weights for a history of length k, oldest
// first: w_i = exp(-1 + i/(k-1)) / sum.
func Weights(k int) []float64 {
	if k <= 0 {
		return nil
	}
	if k == 1 {
		return []float64{1}
	}
	w := make([]float64, k)
	sum := 0.0
	for i := range w {
		w[i] = math.Exp(-1 + float64(i)/float64(k-1))
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// Smooth adds p to the history and returns the weighted average. With fewer
// than two points p is returned unchanged. Confidence, timestamp and the
// demo marker always come from p.
func (s *Smoother) Smooth(p gaze.Point) gaze.Point {
	if len(s.history) == s.capacity {
		copy(s.history, s.history[1:])
		s.history = s.history[:s.capacity-1]
	}
	s.history = append(s.history, p)

	k := len(s.history)
	if k < 2 {
		return p
	}

	var x, y float64
	for i, w := range Weights(k) {
		x += w * s.history[i].X
		y += w * s.history[i].Y
	}
	return p.At(x, y)
}
