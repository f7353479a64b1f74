package display

import "math"

// Geometry is the virtual desktop rectangle. Calibration models record it so
// they can be invalidated when the monitor layout changes.
type Geometry struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SameSize reports whether g and o have the same virtual dimensions.
func (g Geometry) SameSize(o Geometry) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// Mesh is an ordered set of monitors plus the virtual desktop rectangle
// enclosing all of them. A Mesh is immutable once built.
type Mesh struct {
	monitors []Monitor
	primary  int
	virtual  Geometry
}

// NewMesh builds a mesh from monitors. Invalid monitors are dropped; an
// empty result falls back to DefaultMonitor.
func NewMesh(monitors []Monitor) *Mesh {
	valid := make([]Monitor, 0, len(monitors))
	for _, m := range monitors {
		if m.Validate() == nil {
			valid = append(valid, m)
		}
	}
	if len(valid) == 0 {
		valid = []Monitor{DefaultMonitor}
	}

	mesh := &Mesh{monitors: valid}
	for i, m := range valid {
		if m.Primary {
			mesh.primary = i
			break
		}
	}

	left, top := valid[0].X, valid[0].Y
	right, bottom := valid[0].Right(), valid[0].Bottom()
	for _, m := range valid[1:] {
		left = min(left, m.X)
		top = min(top, m.Y)
		right = max(right, m.Right())
		bottom = max(bottom, m.Bottom())
	}
	mesh.virtual = Geometry{Left: left, Top: top, Width: right - left, Height: bottom - top}
	return mesh
}

// WithVirtualSize returns a single-monitor mesh of the given size at the
// origin. Used when the user overrides the screen dimensions.
func WithVirtualSize(width, height int) *Mesh {
	m := DefaultMonitor
	m.Name = "Override"
	m.Width, m.Height = width, height
	return NewMesh([]Monitor{m})
}

// Monitors returns a copy of the monitors in mesh order.
func (m *Mesh) Monitors() []Monitor {
	out := make([]Monitor, len(m.monitors))
	copy(out, m.monitors)
	return out
}

// Len returns the number of monitors.
func (m *Mesh) Len() int { return len(m.monitors) }

// Primary returns the primary monitor, or the first monitor if none is
// flagged primary.
func (m *Mesh) Primary() Monitor { return m.monitors[m.primary] }

// Geometry returns the virtual desktop rectangle.
func (m *Mesh) Geometry() Geometry { return m.virtual }

// Left returns the virtual desktop left edge.
func (m *Mesh) Left() int { return m.virtual.Left }

// Top returns the virtual desktop top edge.
func (m *Mesh) Top() int { return m.virtual.Top }

// Width returns the virtual desktop width.
func (m *Mesh) Width() int { return m.virtual.Width }

// Height returns the virtual desktop height.
func (m *Mesh) Height() int { return m.virtual.Height }

// Normalize maps an absolute point into [0,1]² relative to the virtual
// desktop. Points outside the desktop map outside [0,1]; callers clamp.
func (m *Mesh) Normalize(x, y float64) (nx, ny float64) {
	if m.virtual.Width > 0 {
		nx = (x - float64(m.virtual.Left)) / float64(m.virtual.Width)
	}
	if m.virtual.Height > 0 {
		ny = (y - float64(m.virtual.Top)) / float64(m.virtual.Height)
	}
	return nx, ny
}

// Denormalize is the inverse of Normalize.
func (m *Mesh) Denormalize(nx, ny float64) (x, y float64) {
	x = float64(m.virtual.Left) + nx*float64(m.virtual.Width)
	y = float64(m.virtual.Top) + ny*float64(m.virtual.Height)
	return x, y
}

// Clamp pins (x, y) inside the virtual desktop.
func (m *Mesh) Clamp(x, y float64) (float64, float64) {
	x = math.Max(float64(m.virtual.Left), math.Min(x, float64(m.virtual.Left+m.virtual.Width)))
	y = math.Max(float64(m.virtual.Top), math.Min(y, float64(m.virtual.Top+m.virtual.Height)))
	return x, y
}

// MonitorAt returns the first monitor, in mesh order, containing (x, y).
func (m *Mesh) MonitorAt(x, y float64) (Monitor, bool) {
	for _, mon := range m.monitors {
		if mon.Contains(x, y) {
			return mon, true
		}
	}
	return Monitor{}, false
}

// AreaRatio returns the largest monitor's area divided by the primary
// monitor's area. Always at least 1 for a non-empty mesh.
func (m *Mesh) AreaRatio() float64 {
	primary := m.Primary().Area()
	if primary <= 0 {
		return 1
	}
	largest := 0
	for _, mon := range m.monitors {
		largest = max(largest, mon.Area())
	}
	return float64(largest) / float64(primary)
}
