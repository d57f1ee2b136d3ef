package frames

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mazznoer/colorgrad"
)

// paletteSize is the number of entries in an indexed (GIF) palette.
const paletteSize = 256

// Colormap maps signed values in [-1, 1] to colours.
type Colormap struct {
	grad    colorgrad.Gradient
	palette color.Palette
}

// NewDiverging returns the red, white and blue Catmull-Rom colormap. -1 is
// red, 0 white and +1 blue.
func NewDiverging() (*Colormap, error) {
	grad, err := colorgrad.NewGradient().
		HtmlColors("red", "white", "blue").
		Interpolation(colorgrad.InterpolationCatmullRom).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build colormap: %w", err)
	}
	return &Colormap{grad: grad, palette: color.Palette(grad.Colors(paletteSize))}, nil
}

// At returns the opaque colour for t, clamped to [-1, 1].
func (c *Colormap) At(t float64) color.RGBA {
	r, g, b := c.colorful(t).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func (c *Colormap) colorful(t float64) colorful.Color {
	return c.grad.At(unit(t)).Clamped()
}

// Index returns the palette entry closest to t.
func (c *Colormap) Index(t float64) uint8 {
	return uint8(math.Round(unit(t) * (paletteSize - 1)))
}

// Palette is the sampled colormap used for indexed images.
func (c *Colormap) Palette() color.Palette { return c.palette }

// unit maps [-1, 1] onto [0, 1]. NaN maps to the midpoint.
func unit(t float64) float64 {
	if math.IsNaN(t) {
		return 0.5
	}
	return math.Min(1, math.Max(0, 0.5+t/2))
}

// Normalizer returns the scale that maps the largest |v| onto 1. A zero
// field yields 1 so it renders white.
func Normalizer(v []float64) float64 {
	var m float64
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	if m == 0 || math.IsInf(m, 0) {
		return 1
	}
	return 1 / m
}
