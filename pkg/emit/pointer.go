package emit

import (
	"math"
	"sync"

	"github.com/go-vgo/robotgo"
)

// Mover moves an on-screen target to absolute desktop coordinates.
type Mover interface {
	MoveTo(x, y int)
}

// RobotgoMover moves the mouse pointer.
type RobotgoMover struct{}

// MoveTo implements Mover.
func (RobotgoMover) MoveTo(x, y int) { robotgo.Move(x, y) }

// Follower moves a target to each emitted point. Moves smaller than
// MinStep pixels are skipped to avoid pointer jitter. Demo points are
// followed too; they are how a host tests the follower without a camera.
type Follower struct {
	mover   Mover
	minStep float64

	mu    sync.Mutex
	moved bool
	lastX float64
	lastY float64
}

// NewFollower returns a follower driving m.
func NewFollower(m Mover, minStep float64) *Follower {
	return &Follower{mover: m, minStep: minStep}
}

// Emit implements Sink.
func (f *Follower) Emit(r Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.moved && math.Hypot(r.X-f.lastX, r.Y-f.lastY) < f.minStep {
		return nil
	}
	f.mover.MoveTo(int(math.Round(r.X)), int(math.Round(r.Y)))
	f.moved = true
	f.lastX, f.lastY = r.X, r.Y
	return nil
}
