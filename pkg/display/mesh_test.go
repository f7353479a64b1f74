package display

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-gaze/internal/log"
)

func dualMesh() *Mesh {
	return NewMesh([]Monitor{
		{X: 0, Y: 0, Width: 1920, Height: 1080, Name: "left"},
		{X: 1920, Y: -200, Width: 2560, Height: 1440, Primary: true, Name: "right"},
	})
}

func TestMonitorDerived(t *testing.T) {
	m := Monitor{X: 100, Y: 50, Width: 200, Height: 100}
	assert.Equal(t, 300, m.Right())
	assert.Equal(t, 150, m.Bottom())
	assert.Equal(t, 200.0, m.CenterX())
	assert.Equal(t, 100.0, m.CenterY())
	assert.True(t, m.Contains(100, 50))
	assert.False(t, m.Contains(300, 50), "right edge is exclusive")
	assert.Error(t, Monitor{Width: 0, Height: 10}.Validate())
}

func TestNewMeshVirtualUnion(t *testing.T) {
	mesh := dualMesh()
	g := mesh.Geometry()
	assert.Equal(t, Geometry{Left: 0, Top: -200, Width: 4480, Height: 1440}, g)

	for _, mon := range mesh.Monitors() {
		assert.LessOrEqual(t, g.Left, mon.X)
		assert.LessOrEqual(t, g.Top, mon.Y)
		assert.GreaterOrEqual(t, g.Left+g.Width, mon.Right())
		assert.GreaterOrEqual(t, g.Top+g.Height, mon.Bottom())
	}
	assert.Equal(t, "right", mesh.Primary().Name)
}

func TestPrimaryFallsBackToFirst(t *testing.T) {
	mesh := NewMesh([]Monitor{
		{Width: 800, Height: 600, Name: "a"},
		{X: 800, Width: 800, Height: 600, Name: "b"},
	})
	assert.Equal(t, "a", mesh.Primary().Name)
}

func TestNewMeshEmptyUsesDefault(t *testing.T) {
	mesh := NewMesh(nil)
	require.Equal(t, 1, mesh.Len())
	assert.Equal(t, "Default_Monitor", mesh.Primary().Name)
	assert.Equal(t, 1920, mesh.Width())
	assert.Equal(t, 1080, mesh.Height())
}

func TestNormalizeRoundTrip(t *testing.T) {
	mesh := dualMesh()
	for _, nx := range []float64{0, 0.1, 0.333, 0.5, 0.77, 1} {
		for _, ny := range []float64{0, 0.25, 0.5, 0.9, 1} {
			x, y := mesh.Denormalize(nx, ny)
			gx, gy := mesh.Normalize(x, y)
			assert.InDelta(t, nx, gx, 1e-9)
			assert.InDelta(t, ny, gy, 1e-9)
		}
	}
}

func TestMonitorAt(t *testing.T) {
	mesh := dualMesh()

	m, ok := mesh.MonitorAt(10, 10)
	require.True(t, ok)
	assert.Equal(t, "left", m.Name)

	m, ok = mesh.MonitorAt(1920, 0)
	require.True(t, ok)
	assert.Equal(t, "right", m.Name)

	_, ok = mesh.MonitorAt(10, -100)
	assert.False(t, ok, "gap above the left monitor")
}

func TestMonitorAtFirstMatchWins(t *testing.T) {
	mesh := NewMesh([]Monitor{
		{Width: 1000, Height: 1000, Name: "first"},
		{Width: 1000, Height: 1000, Name: "mirror"},
	})
	m, ok := mesh.MonitorAt(500, 500)
	require.True(t, ok)
	assert.Equal(t, "first", m.Name)
}

func TestClamp(t *testing.T) {
	mesh := NewMesh([]Monitor{{Width: 1000, Height: 500}})
	x, y := mesh.Clamp(-5, 900)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 500.0, y)
}

func TestAreaRatio(t *testing.T) {
	assert.Equal(t, 1.0, NewMesh(nil).AreaRatio())

	mesh := NewMesh([]Monitor{
		{Width: 1000, Height: 1000, Primary: true},
		{X: 1000, Width: 2000, Height: 2000},
	})
	assert.InDelta(t, 4.0, mesh.AreaRatio(), 1e-12)
}

func TestWithVirtualSize(t *testing.T) {
	mesh := WithVirtualSize(2560, 1440)
	assert.Equal(t, Geometry{Width: 2560, Height: 1440}, mesh.Geometry())
}

func TestDetectFallback(t *testing.T) {
	logger := log.Discard()

	failing := DetectorFunc(func() ([]Monitor, error) { return nil, errors.New("no display server") })
	assert.Equal(t, "Default_Monitor", Detect(failing, logger).Primary().Name)

	empty := StaticDetector(nil)
	assert.Equal(t, "Default_Monitor", Detect(empty, logger).Primary().Name)

	bogus := StaticDetector{{Width: -1, Height: 10}}
	assert.Equal(t, "Default_Monitor", Detect(bogus, logger).Primary().Name)

	good := StaticDetector{{Width: 1280, Height: 720, Name: "laptop"}}
	assert.Equal(t, "laptop", Detect(good, logger).Primary().Name)
}
