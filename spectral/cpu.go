package spectral

import (
	"context"
	"fmt"
)

// CPUBackend runs the spectral scheme in float64 on the host. FFTs are spread
// over goroutines per line; pointwise kernels run on a persistent row pool.
type CPUBackend struct {
	grid   Grid
	params Params
	pool   *rowPool
	fft    *fft2

	w, wnew        []complex128
	what, psihat   []complex128
	ux, uy         []complex128
	version        uint64
	derivedVersion uint64
}

// NewCPUBackend allocates the host buffers and starts the worker pool.
func NewCPUBackend(g Grid, p Params) *CPUBackend {
	workers := p.workerCount()
	size := g.Size()
	return &CPUBackend{
		grid:   g,
		params: p,
		pool:   newRowPool(workers, g.N),
		fft:    newFFT2(g.N, workers),
		w:      make([]complex128, size),
		wnew:   make([]complex128, size),
		what:   make([]complex128, size),
		psihat: make([]complex128, size),
		ux:     make([]complex128, size),
		uy:     make([]complex128, size),
	}
}

func (b *CPUBackend) Name() string { return "cpu" }

func (b *CPUBackend) Upload(w []float64) error {
	if err := checkLen(b.grid, len(w), "vorticity"); err != nil {
		return err
	}
	for i, v := range w {
		b.w[i] = complex(v, 0)
	}
	b.version++
	return nil
}

func (b *CPUBackend) Step(ctx context.Context, n int) error {
	for s := 0; s < n; s++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.derive(ctx, b.params.Viscosity > 0); err != nil {
			return fmt.Errorf("step %d: %w", s, err)
		}
		g, dt := b.grid, b.params.Dt
		b.pool.run(func(row int) {
			advectRow(g, b.w, b.wnew, b.ux, b.uy, row, dt)
		})
		b.w, b.wnew = b.wnew, b.w
		b.version++
	}
	return nil
}

// derive fills what, psihat, ux and uy from the current vorticity. With
// diffuse set it first applies one viscous step to the vorticity itself.
func (b *CPUBackend) derive(ctx context.Context, diffuse bool) error {
	g := b.grid
	copy(b.what, b.w)
	if err := b.fft.forward(ctx, b.what); err != nil {
		return fmt.Errorf("forward transform: %w", err)
	}
	if diffuse {
		nu, dt := b.params.Viscosity, b.params.Dt
		b.pool.run(func(row int) { diffuseRow(g, b.what, row, nu, dt) })
		copy(b.w, b.what)
		if err := b.fft.inverse(ctx, b.w); err != nil {
			return fmt.Errorf("inverse transform of vorticity: %w", err)
		}
		b.pool.run(func(row int) { realRow(g, b.w, row) })
	}
	b.pool.run(func(row int) {
		invMinusLaplacianRow(g, b.what, b.psihat, row)
		diffYRow(g, b.psihat, b.ux, row)
		diffXRow(g, b.psihat, b.uy, row, -1)
	})
	if err := b.fft.inverse(ctx, b.ux); err != nil {
		return fmt.Errorf("inverse transform of ux: %w", err)
	}
	if err := b.fft.inverse(ctx, b.uy); err != nil {
		return fmt.Errorf("inverse transform of uy: %w", err)
	}
	b.derivedVersion = b.version
	return nil
}

func (b *CPUBackend) Download(f Field, dst []complex128) error {
	if err := checkLen(b.grid, len(dst), "destination"); err != nil {
		return err
	}
	if f == Vorticity {
		copy(dst, b.w)
		return nil
	}
	if b.derivedVersion != b.version {
		if err := b.derive(context.Background(), false); err != nil {
			return err
		}
	}
	switch f {
	case VorticityHat:
		copy(dst, b.what)
	case StreamHat:
		copy(dst, b.psihat)
	case Stream:
		copy(dst, b.psihat)
		if err := b.fft.inverse(context.Background(), dst); err != nil {
			return fmt.Errorf("inverse transform of psi: %w", err)
		}
	case VelocityX:
		copy(dst, b.ux)
	case VelocityY:
		copy(dst, b.uy)
	default:
		return fmt.Errorf("unknown field %v", f)
	}
	return nil
}

func (b *CPUBackend) Add(s float64) error {
	g := b.grid
	b.pool.run(func(row int) { addRow(g, b.w, row, s) })
	b.version++
	return nil
}

func (b *CPUBackend) Close() {
	b.pool.close()
}

// realRow drops the round-off imaginary part left by an inverse transform.
func realRow(g Grid, buf []complex128, row int) {
	base := row * g.N
	for j := 0; j < g.N; j++ {
		buf[base+j] = complex(real(buf[base+j]), 0)
	}
}
