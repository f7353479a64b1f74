// Package display models the monitors attached to the machine and the
// virtual desktop they form together.
package display

import "fmt"

// Monitor is one physical display in virtual-desktop pixel coordinates.
type Monitor struct {
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Primary     bool    `json:"primary"`
	Name        string  `json:"name"`
	ScaleFactor float64 `json:"scale_factor,omitempty"`
}

// DefaultMonitor is used when detection fails or finds nothing.
var DefaultMonitor = Monitor{
	Width:       1920,
	Height:      1080,
	Primary:     true,
	Name:        "Default_Monitor",
	ScaleFactor: 1.0,
}

// Right returns the exclusive right edge.
func (m Monitor) Right() int { return m.X + m.Width }

// Bottom returns the exclusive bottom edge.
func (m Monitor) Bottom() int { return m.Y + m.Height }

// CenterX returns the horizontal centre.
func (m Monitor) CenterX() float64 { return float64(m.X) + float64(m.Width)/2 }

// CenterY returns the vertical centre.
func (m Monitor) CenterY() float64 { return float64(m.Y) + float64(m.Height)/2 }

// Area returns width times height.
func (m Monitor) Area() int { return m.Width * m.Height }

// Contains reports whether (x, y) lies inside the monitor.
// Left and top edges are inclusive, right and bottom exclusive.
func (m Monitor) Contains(x, y float64) bool {
	return x >= float64(m.X) && x < float64(m.Right()) &&
		y >= float64(m.Y) && y < float64(m.Bottom())
}

// Validate checks that the monitor has a positive size.
func (m Monitor) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("monitor %q: non-positive size %dx%d", m.Name, m.Width, m.Height)
	}
	return nil
}

func (m Monitor) String() string {
	p := ""
	if m.Primary {
		p = " primary"
	}
	return fmt.Sprintf("%s %dx%d@(%d,%d)%s", m.Name, m.Width, m.Height, m.X, m.Y, p)
}
