package display

import "github.com/go-vgo/robotgo"

// Rect is a window rectangle in virtual-desktop pixels.
type Rect struct {
	X, Y, Width, Height float64
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// WindowBounds reports the rectangle of the window the drag guard watches.
type WindowBounds interface {
	Bounds() (Rect, bool)
}

// FixedWindow always reports the same rectangle.
type FixedWindow Rect

// Bounds implements WindowBounds.
func (f FixedWindow) Bounds() (Rect, bool) {
	r := Rect(f)
	return r, !r.Empty()
}

// ActiveWindow reports the bounds of the focused window through robotgo.
type ActiveWindow struct{}

// Bounds implements WindowBounds.
func (ActiveWindow) Bounds() (Rect, bool) {
	pid := int(robotgo.GetPid())
	if pid <= 0 {
		return Rect{}, false
	}
	x, y, w, h := robotgo.GetBounds(pid)
	r := Rect{X: float64(x), Y: float64(y), Width: float64(w), Height: float64(h)}
	return r, !r.Empty()
}
