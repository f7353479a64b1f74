package calibration

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PlotResiduals writes an image showing each calibration target, the raw
// gaze recorded for it and where the model maps that gaze. The file format
// follows the extension of path (.png, .svg, .pdf).
func PlotResiduals(m *Model, samples []Sample, path string) error {
	if len(samples) == 0 {
		return fmt.Errorf("calibration: no samples to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Calibration %s (%s, mean residual %.1f px)", shortID(m.ID), m.Method, m.Accuracy)
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	// Screen y grows downward.
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Add(plotter.NewGrid())

	targets := make(plotter.XYs, len(samples))
	raw := make(plotter.XYs, len(samples))
	fitted := make(plotter.XYs, len(samples))
	for i, s := range samples {
		targets[i] = plotter.XY{X: s.ScreenX, Y: s.ScreenY}
		raw[i] = plotter.XY{X: s.GazeX, Y: s.GazeY}
		fx, fy := m.Map(s.GazeX, s.GazeY)
		fitted[i] = plotter.XY{X: fx, Y: fy}

		seg, err := plotter.NewLine(plotter.XYs{targets[i], fitted[i]})
		if err != nil {
			return err
		}
		seg.Width = vg.Points(1)
		seg.Color = color.RGBA{R: 200, A: 255}
		p.Add(seg)
	}

	layers := []struct {
		name  string
		pts   plotter.XYs
		shape draw.GlyphDrawer
		color color.Color
	}{
		{"target", targets, draw.CrossGlyph{}, color.Black},
		{"raw gaze", raw, draw.CircleGlyph{}, color.RGBA{B: 220, A: 255}},
		{"calibrated", fitted, draw.RingGlyph{}, color.RGBA{R: 200, A: 255}},
	}
	for _, l := range layers {
		sc, err := plotter.NewScatter(l.pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Shape = l.shape
		sc.GlyphStyle.Color = l.color
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add(l.name, sc)
	}

	g := m.Geometry
	p.X.Min, p.X.Max = float64(g.Left), float64(g.Left+g.Width)
	p.Y.Min, p.Y.Max = float64(g.Top), float64(g.Top+g.Height)

	aspect := float64(g.Height) / float64(g.Width)
	width := 10 * vg.Inch
	return p.Save(width, vg.Length(aspect)*width, path)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
