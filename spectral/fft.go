package spectral

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2 performs in-place 2D complex transforms by running 1D transforms over
// rows and then columns. Each worker owns its plan and line buffers because
// fourier.CmplxFFT keeps mutable scratch space.
type fft2 struct {
	n     int
	plans []*fourier.CmplxFFT
	in    [][]complex128
	out   [][]complex128
}

func newFFT2(n, workers int) *fft2 {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	f := &fft2{
		n:     n,
		plans: make([]*fourier.CmplxFFT, workers),
		in:    make([][]complex128, workers),
		out:   make([][]complex128, workers),
	}
	for w := range f.plans {
		f.plans[w] = fourier.NewCmplxFFT(n)
		f.in[w] = make([]complex128, n)
		f.out[w] = make([]complex128, n)
	}
	return f
}

// forward computes the unnormalized transform of data in place.
func (f *fft2) forward(ctx context.Context, data []complex128) error {
	if err := f.lines(ctx, data, 1, f.n, false, 1); err != nil {
		return err
	}
	return f.lines(ctx, data, f.n, 1, false, 1)
}

// inverse computes the inverse transform scaled by 1/N², so that
// inverse(forward(x)) == x.
func (f *fft2) inverse(ctx context.Context, data []complex128) error {
	if err := f.lines(ctx, data, 1, f.n, true, 1); err != nil {
		return err
	}
	scale := complex(1/float64(f.n*f.n), 0)
	return f.lines(ctx, data, f.n, 1, true, scale)
}

// lines transforms the N lines starting at line*dist with element stride.
func (f *fft2) lines(ctx context.Context, data []complex128, stride, dist int, inverse bool, scale complex128) error {
	n := f.n
	workers := len(f.plans)
	chunk := (n + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= n {
			break
		}
		end := min(start+chunk, n)
		plan, in, out := f.plans[w], f.in[w], f.out[w]
		g.Go(func() error {
			for line := start; line < end; line++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				base := line * dist
				for k := 0; k < n; k++ {
					in[k] = data[base+k*stride]
				}
				if inverse {
					plan.Sequence(out, in)
				} else {
					plan.Coefficients(out, in)
				}
				for k := 0; k < n; k++ {
					data[base+k*stride] = out[k] * scale
				}
			}
			return nil
		})
	}
	return g.Wait()
}
