package frames

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// defaultYLimit bounds the slice plot's y axis unless the data exceeds it.
const defaultYLimit = 2.0

// Column extracts the values v[i*n+j] for i in [0, n).
func Column(v []float64, n, j int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v[i*n+j]
	}
	return out
}

// LinePlot saves a red line of v sampled uniformly over [0, length). The
// encoding follows the path's extension (.svg, .png, .pdf, ...).
func LinePlot(path, title string, v []float64, length float64) error {
	if len(v) == 0 {
		return fmt.Errorf("plot %s: no data", path)
	}
	dx := length / float64(len(v))
	pts := make(plotter.XYs, len(v))
	var peak float64
	for i, y := range v {
		pts[i].X = float64(i) * dx
		pts[i].Y = y
		if a := math.Abs(y); a > peak && !math.IsInf(a, 0) {
			peak = a
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.X.Min, p.X.Max = 0, length
	lim := math.Max(defaultYLimit, 1.1*peak)
	p.Y.Min, p.Y.Max = -lim, lim

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("plot %s: %w", path, err)
	}
	line.Color = color.RGBA{R: 255, A: 255}
	line.Width = vg.Points(1)
	p.Add(plotter.NewGrid(), line)
	p.Legend.Add(title, line)
	p.Legend.Top = true

	if err := p.Save(6.4*vg.Inch, 4.8*vg.Inch, path); err != nil {
		return fmt.Errorf("plot %s: %w", path, err)
	}
	return nil
}
