package spectral

import (
	"context"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestCPU(t *testing.T, n int, p Params) (*CPUBackend, Grid) {
	t.Helper()
	g, err := NewGrid(n, DefaultLength)
	require.NoError(t, err)
	b := NewCPUBackend(g, p)
	t.Cleanup(b.Close)
	return b, g
}

func download(t *testing.T, b Backend, g Grid, f Field) []float64 {
	t.Helper()
	buf := make([]complex128, g.Size())
	require.NoError(t, b.Download(f, buf))
	return RealPart(nil, buf)
}

func maxAbsDiff(a, b []float64) float64 {
	var m float64
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return m
}

func TestCPUBackendVelocityOfSteadyState(t *testing.T) {
	b, g := newTestCPU(t, 32, Params{Dt: 0.01, Workers: 3})
	w0, err := InitialField(g, InitOptions{Kind: InitTaylorGreen})
	require.NoError(t, err)
	require.NoError(t, b.Upload(w0))

	ux := download(t, b, g, VelocityX)
	uy := download(t, b, g, VelocityY)
	psi := download(t, b, g, Stream)
	dx := g.Dx()
	for i := 0; i < g.N; i++ {
		x := float64(i) * dx
		for j := 0; j < g.N; j++ {
			y := float64(j) * dx
			idx := i*g.N + j
			assert.InDelta(t, math.Cos(x)*math.Cos(y)/2, ux[idx], 1e-10)
			assert.InDelta(t, math.Sin(x)*math.Sin(y)/2, uy[idx], 1e-10)
			assert.InDelta(t, math.Cos(x)*math.Sin(y)/2, psi[idx], 1e-10)
		}
	}
}

func TestCPUBackendKeepsSteadyStateNearlyFixed(t *testing.T) {
	b, g := newTestCPU(t, 32, Params{Dt: 0.01})
	w0, err := InitialField(g, InitOptions{Kind: InitTaylorGreen})
	require.NoError(t, err)
	require.NoError(t, b.Upload(w0))

	require.NoError(t, b.Step(context.Background(), 5))
	w := download(t, b, g, Vorticity)
	assert.Less(t, maxAbsDiff(w0, w), 0.03)
	assert.InDelta(t, 0, Mean(w), 1e-3)
}

func TestCPUBackendTransportsVortexPair(t *testing.T) {
	b, g := newTestCPU(t, 32, Params{Dt: 0.05})
	w0, err := InitialField(g, InitOptions{Kind: InitVortexPair})
	require.NoError(t, err)
	require.NoError(t, b.Upload(w0))
	require.NoError(t, b.Step(context.Background(), 10))

	w := download(t, b, g, Vorticity)
	assert.Greater(t, maxAbsDiff(w0, w), 1e-3, "the pair should move")
	// advection is bounded by the interpolation stencil
	assert.LessOrEqual(t, MaxAbs(w), MaxAbs(w0)+1e-12)
}

func TestCPUBackendViscosityDecaysEnstrophy(t *testing.T) {
	const nu, dt, steps = 0.1, 0.01, 5
	inviscid, g := newTestCPU(t, 32, Params{Dt: dt})
	viscous, _ := newTestCPU(t, 32, Params{Dt: dt, Viscosity: nu})
	w0, err := InitialField(g, InitOptions{Kind: InitTaylorGreen})
	require.NoError(t, err)

	ctx := context.Background()
	for _, b := range []*CPUBackend{inviscid, viscous} {
		require.NoError(t, b.Upload(w0))
		require.NoError(t, b.Step(ctx, steps))
	}
	ratio := Enstrophy(download(t, viscous, g, Vorticity), g.Dx()) /
		Enstrophy(download(t, inviscid, g, Vorticity), g.Dx())
	// the Taylor-Green mode has |k|² = 2
	assert.InDelta(t, math.Exp(-2*2*nu*dt*steps), ratio, 2e-3)
}

func TestCPUBackendAddShiftsMean(t *testing.T) {
	b, g := newTestCPU(t, 8, Params{Dt: 0.1})
	require.NoError(t, b.Add(0.25))
	w := download(t, b, g, Vorticity)
	assert.InDelta(t, 0.25, Mean(w), 1e-15)

	what := make([]complex128, g.Size())
	require.NoError(t, b.Download(VorticityHat, what))
	assert.InDelta(t, 0.25*float64(g.Size()), real(what[0]), 1e-12)
}

func TestCPUBackendRejectsBadLengths(t *testing.T) {
	b, _ := newTestCPU(t, 8, Params{Dt: 0.1})
	assert.Error(t, b.Upload(make([]float64, 3)))
	assert.Error(t, b.Download(Vorticity, make([]complex128, 3)))
	assert.Error(t, b.Download(Field(99), make([]complex128, 64)))
}

func TestCPUBackendStepCancelled(t *testing.T) {
	b, _ := newTestCPU(t, 8, Params{Dt: 0.1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Step(ctx, 3), context.Canceled)
}

func TestCPUBackendCloseReleasesWorkers(t *testing.T) {
	defer goleak.VerifyNone(t)
	g := Grid{N: 16, L: DefaultLength}
	b := NewCPUBackend(g, Params{Dt: 0.1, Workers: 4})
	require.NoError(t, b.Step(context.Background(), 2))
	b.Close()
}

func TestCPUBackendVelocityIsDivergenceFree(t *testing.T) {
	b, g := newTestCPU(t, 32, Params{Dt: 0.05, Workers: 2})
	w0, err := InitialField(g, InitOptions{Kind: InitNoise, Seed: 11, Octaves: 4, Radius: 2})
	require.NoError(t, err)
	require.NoError(t, b.Upload(w0))
	require.NoError(t, b.Step(context.Background(), 2))

	ux := make([]complex128, g.Size())
	uy := make([]complex128, g.Size())
	require.NoError(t, b.Download(VelocityX, ux))
	require.NoError(t, b.Download(VelocityY, uy))
	require.Greater(t, MaxModulus(ux), 1e-3)

	f := newFFT2(g.N, 2)
	require.NoError(t, f.forward(context.Background(), ux))
	require.NoError(t, f.forward(context.Background(), uy))

	// spectral divergence: i·k_i·ûx + i·k_j·ûy
	var div, scale float64
	for i := 0; i < g.N; i++ {
		ki := g.Wavenumber(i)
		for j := 0; j < g.N; j++ {
			kj := g.Wavenumber(j)
			idx := i*g.N + j
			d := complex(0, ki)*ux[idx] + complex(0, kj)*uy[idx]
			div = math.Max(div, cmplx.Abs(d))
			scale = math.Max(scale, math.Abs(ki)*cmplx.Abs(ux[idx]))
		}
	}
	assert.Less(t, div, 1e-10*scale)
}

func TestCPUBackendPreservesNonZeroMean(t *testing.T) {
	b, g := newTestCPU(t, 32, Params{Dt: 0.05, Workers: 2})
	w0, err := InitialField(g, InitOptions{Kind: InitVortexPair})
	require.NoError(t, err)
	for i := range w0 {
		w0[i] += 0.7
	}
	require.NoError(t, b.Upload(w0))
	require.InDelta(t, 0.7, Mean(w0), 1e-12)

	require.NoError(t, b.Step(context.Background(), 5))
	w := download(t, b, g, Vorticity)
	assert.InDelta(t, 0.7, Mean(w), 2e-3)
	assert.Greater(t, maxAbsDiff(w, w0), 1e-3, "field should have moved")
}
