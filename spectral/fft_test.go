package spectral

import (
	"context"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// naiveDFT2 is the textbook O(N⁴) transform used as a reference.
func naiveDFT2(n int, in []complex128) []complex128 {
	out := make([]complex128, n*n)
	for ki := 0; ki < n; ki++ {
		for kj := 0; kj < n; kj++ {
			var s complex128
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					a := -2 * math.Pi * float64(ki*i+kj*j) / float64(n)
					s += in[i*n+j] * cmplx.Exp(complex(0, a))
				}
			}
			out[ki*n+kj] = s
		}
	}
	return out
}

func randomField(n int, seed int64) []complex128 {
	rng := rand.New(rand.NewSource(seed))
	data := make([]complex128, n*n)
	for i := range data {
		data[i] = complex(rng.NormFloat64(), rng.NormFloat64())
	}
	return data
}

func assertComplexClose(t *testing.T, want, got []complex128, tol float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if cmplx.Abs(want[i]-got[i]) > tol {
			t.Fatalf("index %d: want %v, got %v", i, want[i], got[i])
		}
	}
}

func TestFFT2MatchesNaiveDFT(t *testing.T) {
	const n = 8
	in := randomField(n, 1)
	want := naiveDFT2(n, in)

	got := append([]complex128(nil), in...)
	f := newFFT2(n, 3)
	require.NoError(t, f.forward(context.Background(), got))
	assertComplexClose(t, want, got, 1e-9)
}

func TestFFT2RoundTrip(t *testing.T) {
	const n = 32
	in := randomField(n, 2)
	data := append([]complex128(nil), in...)
	f := newFFT2(n, 4)
	require.NoError(t, f.forward(context.Background(), data))
	require.NoError(t, f.inverse(context.Background(), data))
	assertComplexClose(t, in, data, 1e-10)
}

func TestFFT2SingleMode(t *testing.T) {
	const n = 16
	data := make([]complex128, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a := 2 * math.Pi * float64(3*i+(n-2)*j) / n
			data[i*n+j] = cmplx.Exp(complex(0, a))
		}
	}
	f := newFFT2(n, 2)
	require.NoError(t, f.forward(context.Background(), data))
	for idx, v := range data {
		if idx == 3*n+(n-2) {
			assert.InDelta(t, float64(n*n), real(v), 1e-9)
			continue
		}
		assert.InDelta(t, 0, cmplx.Abs(v), 1e-9, "index %d", idx)
	}
}

func TestFFT2HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFFT2(16, 2)
	err := f.forward(ctx, make([]complex128, 256))
	assert.ErrorIs(t, err, context.Canceled)
}
