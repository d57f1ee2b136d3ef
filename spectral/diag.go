package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// RealPart copies the real components of src into dst, allocating when dst is
// too short.
func RealPart(dst []float64, src []complex128) []float64 {
	if cap(dst) < len(src) {
		dst = make([]float64, len(src))
	}
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = real(v)
	}
	return dst
}

// MaxModulus is the largest |z| in the buffer, zero when empty.
func MaxModulus(src []complex128) float64 {
	var m float64
	for _, v := range src {
		if a := cmplx.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// Max is the largest value, zero when empty.
func Max(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Max(v)
}

// MaxAbs is the largest |v|, zero when empty.
func MaxAbs(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Max(math.Abs(floats.Max(v)), math.Abs(floats.Min(v)))
}

// Mean is the arithmetic mean, zero when empty.
func Mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Sum(v) / float64(len(v))
}

// Dist is the discrete L2 distance sqrt(Σ(a-b)²·dx).
func Dist(a, b []float64, dx float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	return floats.Distance(a, b, 2) * math.Sqrt(dx), nil
}

// Enstrophy is ½∫ω² over the domain.
func Enstrophy(w []float64, dx float64) float64 {
	return 0.5 * floats.Dot(w, w) * dx * dx
}

// Energy is ½∫(u²+v²) over the domain.
func Energy(ux, uy []float64, dx float64) float64 {
	return 0.5 * (floats.Dot(ux, ux) + floats.Dot(uy, uy)) * dx * dx
}
