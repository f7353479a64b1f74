package gaze

import (
	"math"
	"time"

	"github.com/teslashibe/go-gaze/pkg/display"
)

// DemoConfidence is reported by every synthetic point.
const DemoConfidence = 0.85

// Demo generates a figure-eight sweep across the virtual desktop so hosts
// keep receiving data during development. Every point it produces has
// Demo set.
type Demo struct {
	mesh  *display.Mesh
	start time.Time
	rate  float64
}

// NewDemo starts the pattern at start.
func NewDemo(mesh *display.Mesh, start time.Time) *Demo {
	return &Demo{mesh: mesh, start: start, rate: 0.2}
}

// At returns the synthetic point for time t.
func (d *Demo) At(t time.Time) Point {
	g := d.mesh.Geometry()
	cx := float64(g.Left) + float64(g.Width)/2
	cy := float64(g.Top) + float64(g.Height)/2
	phase := t.Sub(d.start).Seconds() * d.rate

	x := cx + math.Sin(phase)*float64(g.Width)*0.3
	y := cy + math.Sin(2*phase)*float64(g.Height)*0.2
	return Point{X: x, Y: y, Confidence: DemoConfidence, Timestamp: t, Demo: true}
}

// Blend mixes a low-confidence live point toward the demo point. Points at
// or above threshold pass through untouched. The demo weight grows linearly
// as confidence falls: w = 1 - confidence/threshold. Blended points are
// marked Demo and keep the live confidence.
func Blend(live, demo Point, threshold float64) Point {
	if threshold <= 0 || live.Confidence >= threshold {
		return live
	}
	w := clamp01(1 - live.Confidence/threshold)
	out := live
	out.X = live.X*(1-w) + demo.X*w
	out.Y = live.Y*(1-w) + demo.Y*w
	out.Demo = true
	return out
}
