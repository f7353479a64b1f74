package tracking

import (
	"time"

	"github.com/teslashibe/go-gaze/pkg/display"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// GuardState is the drag guard state.
type GuardState int

const (
	Tracking GuardState = iota
	Paused
)

func (s GuardState) String() string {
	if s == Paused {
		return "paused"
	}
	return "tracking"
}

// DragGuard suspends output while the user drags a window by its title bar.
//
// Looking at the top strip of the tracked window pauses output. Holding the
// gaze within StabilityThreshold of one spot for longer than ResumeDwell
// resumes it. A manual Pause holds until Resume.
type DragGuard struct {
	titlebar  float64
	threshold float64
	dwell     time.Duration

	state    GuardState
	held     bool
	anchor   gaze.Point
	anchorAt time.Time
}

// NewDragGuard returns a guard in the Tracking state.
func NewDragGuard(titlebar, threshold float64, dwell time.Duration) *DragGuard {
	return &DragGuard{titlebar: titlebar, threshold: threshold, dwell: dwell}
}

// State returns the current state.
func (g *DragGuard) State() GuardState { return g.state }

// Update feeds the latest point and returns the new state. An empty bounds
// rectangle means no window is tracked and never pauses.
func (g *DragGuard) Update(p gaze.Point, bounds display.Rect, now time.Time) GuardState {
	switch g.state {
	case Tracking:
		if g.inTitlebar(p, bounds) {
			g.state = Paused
			g.anchor, g.anchorAt = p, now
		}
	case Paused:
		if g.held {
			break
		}
		if p.Distance(g.anchor) > g.threshold {
			g.anchor, g.anchorAt = p, now
			break
		}
		if now.Sub(g.anchorAt) > g.dwell {
			g.state = Tracking
		}
	}
	return g.state
}

func (g *DragGuard) inTitlebar(p gaze.Point, r display.Rect) bool {
	if r.Empty() {
		return false
	}
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+g.titlebar
}

// Pause holds the guard paused until Resume.
func (g *DragGuard) Pause() {
	g.state = Paused
	g.held = true
}

// Resume returns to Tracking immediately.
func (g *DragGuard) Resume() {
	g.state = Tracking
	g.held = false
}
