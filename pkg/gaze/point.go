// Package gaze maps feature vectors to screen-space gaze points.
package gaze

import (
	"math"
	"time"
)

// Point is one gaze estimate in virtual-desktop pixels. Points are values;
// nothing mutates a Point after it is created.
type Point struct {
	X          float64
	Y          float64
	Confidence float64
	Timestamp  time.Time

	// Demo marks synthetic points. Real tracking never sets it.
	Demo bool

	// Source names the estimator that produced the point.
	Source string
}

// Distance returns the Euclidean distance between p and q in pixels.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// At returns a copy of p moved to (x, y).
func (p Point) At(x, y float64) Point {
	p.X, p.Y = x, y
	return p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
