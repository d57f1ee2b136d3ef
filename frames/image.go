package frames

import (
	"fmt"
	"image"
	"math"
)

func checkSquare(v []float64, n int) error {
	if n <= 0 || len(v) != n*n {
		return fmt.Errorf("field has %d values, want %d×%d", len(v), n, n)
	}
	return nil
}

// Color renders an n×n row-major field with the colormap, normalized by its
// largest magnitude. Pixel (x, y) shows v[y*n+x].
func Color(cm *Colormap, v []float64, n int) (*image.RGBA, error) {
	if err := checkSquare(v, n); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	s := Normalizer(v)
	for i, x := range v {
		c := cm.At(x * s)
		p := img.Pix[i*4 : i*4+4 : i*4+4]
		p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
	}
	return img, nil
}

// Paletted renders the field with indices into the colormap palette.
func Paletted(cm *Colormap, v []float64, n int) (*image.Paletted, error) {
	if err := checkSquare(v, n); err != nil {
		return nil, err
	}
	img := image.NewPaletted(image.Rect(0, 0, n, n), cm.Palette())
	s := Normalizer(v)
	for i, x := range v {
		img.Pix[i] = cm.Index(x * s)
	}
	return img, nil
}

// Gray renders the field as 128·(v+1) clamped to [0, 255], without
// normalization.
func Gray(v []float64, n int) (*image.Gray, error) {
	if err := checkSquare(v, n); err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, n, n))
	for i, x := range v {
		img.Pix[i] = grayLevel(x)
	}
	return img, nil
}

func grayLevel(x float64) uint8 {
	g := 128 * (x + 1)
	switch {
	case math.IsNaN(g):
		return 128
	case g <= 0:
		return 0
	case g >= 255:
		return 255
	}
	return uint8(g)
}

// FillRGBA writes the colour rendering into an RGBA byte buffer of length
// 4·n², the layout ebiten's WritePixels expects.
func FillRGBA(dst []byte, cm *Colormap, v []float64) {
	s := Normalizer(v)
	for i, x := range v {
		c := cm.At(x * s)
		dst[i*4] = c.R
		dst[i*4+1] = c.G
		dst[i*4+2] = c.B
		dst[i*4+3] = 255
	}
}
