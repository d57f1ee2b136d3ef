package spectral

import (
	"fmt"
	"math"
)

// Grid describes the periodic square domain [0, L)² sampled on N×N points.
// Storage is row-major: index i*N + j, where i runs along the x axis.
type Grid struct {
	N int
	L float64
}

// DefaultLength is the side of the 2π-periodic box.
const DefaultLength = 2 * math.Pi

// NewGrid returns a validated grid.
func NewGrid(n int, length float64) (Grid, error) {
	g := Grid{N: n, L: length}
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}
	return g, nil
}

// Validate reports whether the grid can be transformed by the radix-2 FFTs.
func (g Grid) Validate() error {
	if g.N < 4 || g.N&(g.N-1) != 0 {
		return fmt.Errorf("grid size %d must be a power of two >= 4", g.N)
	}
	if !(g.L > 0) || math.IsInf(g.L, 0) {
		return fmt.Errorf("domain length %v must be positive and finite", g.L)
	}
	return nil
}

// Size is the number of grid points.
func (g Grid) Size() int { return g.N * g.N }

// Dx is the grid spacing.
func (g Grid) Dx() float64 { return g.L / float64(g.N) }

// Log2N returns the number of radix-2 passes per axis.
func (g Grid) Log2N() int {
	passes := 0
	for n := g.N; n > 1; n >>= 1 {
		passes++
	}
	return passes
}

// Wavenumber maps a spectral index to its angular wavenumber. Indices at or
// above N/2 alias to negative frequencies, Nyquist included.
func (g Grid) Wavenumber(m int) float64 {
	s := 2 * math.Pi / g.L
	if 2*m >= g.N {
		return s * float64(m-g.N)
	}
	return s * float64(m)
}

// FFTFreq returns the wavenumbers for every index in transform order.
func FFTFreq(n int, length float64) []float64 {
	g := Grid{N: n, L: length}
	freq := make([]float64, n)
	for m := range freq {
		freq[m] = g.Wavenumber(m)
	}
	return freq
}

// Wrap folds an index into [0, N) for any sign.
func (g Grid) Wrap(m int) int {
	m %= g.N
	if m < 0 {
		m += g.N
	}
	return m
}
