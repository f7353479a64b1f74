package facemesh

import (
	"context"
	"errors"

	"github.com/teslashibe/go-gaze/pkg/debug"
)

// Box is a face bounding box in normalized frame coordinates.
type Box struct {
	X, Y, W, H float64
	Score      float64
}

// Center returns the centre of the box.
func (b Box) Center() (x, y float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Area returns the box area.
func (b Box) Area() float64 {
	return b.W * b.H
}

// BoxFinder locates faces in an encoded frame.
type BoxFinder interface {
	FindFaces(frame []byte) ([]Box, error)
	Close() error
}

// SelectBest picks the box that is both confident and close to the camera:
// score*0.7 + relative area*0.3.
func SelectBest(boxes []Box) (Box, bool) {
	if len(boxes) == 0 {
		return Box{}, false
	}
	maxArea := 0.0
	for _, b := range boxes {
		maxArea = max(maxArea, b.Area())
	}
	best, bestScore := 0, -1.0
	for i, b := range boxes {
		s := b.Score * 0.7
		if maxArea > 0 {
			s += b.Area() / maxArea * 0.3
		}
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return boxes[best], true
}

// Gate runs a cheap face finder before the landmark detector and skips the
// landmark round trip when no face is present. If the finder itself fails
// the frame is passed through.
type Gate struct {
	finder   BoxFinder
	next     Detector
	minScore float64
}

// NewGate wraps next with finder. Boxes scoring below minScore are ignored.
func NewGate(finder BoxFinder, next Detector, minScore float64) *Gate {
	return &Gate{finder: finder, next: next, minScore: minScore}
}

// Detect implements Detector.
func (g *Gate) Detect(ctx context.Context, frame []byte) (LandmarkSet, error) {
	boxes, err := g.finder.FindFaces(frame)
	if err != nil {
		debug.Trackf("face gate: %v, passing frame through", err)
		return g.next.Detect(ctx, frame)
	}

	kept := boxes[:0]
	for _, b := range boxes {
		if b.Score >= g.minScore {
			kept = append(kept, b)
		}
	}
	best, ok := SelectBest(kept)
	if !ok {
		return nil, ErrNoFace
	}
	cx, cy := best.Center()
	debug.Trackf("face gate: %d face(s), best at (%.2f,%.2f) score %.2f", len(kept), cx, cy, best.Score)
	return g.next.Detect(ctx, frame)
}

// Close closes both the finder and the wrapped detector.
func (g *Gate) Close() error {
	return errors.Join(g.finder.Close(), g.next.Close())
}
