package spectral

import "math"

// Row kernels. Each one touches a single grid row so that the CPU backend can
// spread them across its worker pool; the OpenCL kernels compute the same
// expressions per work item.

// addRow adds s to the real part of one row.
func addRow(g Grid, buf []complex128, row int, s float64) {
	base := row * g.N
	for j := 0; j < g.N; j++ {
		buf[base+j] += complex(s, 0)
	}
}

// diffXRow writes sign·i·k_x·in for one row; sign -1 is the mdiff_x kernel.
func diffXRow(g Grid, in, out []complex128, row int, sign float64) {
	base := row * g.N
	f := sign * g.Wavenumber(row)
	for j := 0; j < g.N; j++ {
		v := in[base+j]
		out[base+j] = complex(-imag(v)*f, real(v)*f)
	}
}

// diffYRow writes i·k_y·in for one row.
func diffYRow(g Grid, in, out []complex128, row int) {
	base := row * g.N
	for j := 0; j < g.N; j++ {
		f := g.Wavenumber(j)
		v := in[base+j]
		out[base+j] = complex(-imag(v)*f, real(v)*f)
	}
}

// invMinusLaplacianRow divides by |k|². The zero mode is divided by one,
// which leaves the mean untouched; velocities never see it.
func invMinusLaplacianRow(g Grid, in, out []complex128, row int) {
	base := row * g.N
	ki := g.Wavenumber(row)
	for j := 0; j < g.N; j++ {
		kj := g.Wavenumber(j)
		s := ki*ki + kj*kj
		if row == 0 && j == 0 {
			s = 1
		}
		out[base+j] = in[base+j] / complex(s, 0)
	}
}

// diffuseRow applies the exact viscous decay exp(-ν|k|²dt) to one row.
func diffuseRow(g Grid, buf []complex128, row int, nu, dt float64) {
	base := row * g.N
	ki := g.Wavenumber(row)
	for j := 0; j < g.N; j++ {
		kj := g.Wavenumber(j)
		buf[base+j] *= complex(math.Exp(-nu*(ki*ki+kj*kj)*dt), 0)
	}
}

// advectRow traces each point of the row back along (ux, uy) for dt and
// bilinearly interpolates the real part of win there. Departure points wrap
// periodically in both directions.
func advectRow(g Grid, win, wout, ux, uy []complex128, row int, dt float64) {
	n := g.N
	base := row * n
	scale := dt * float64(n) / g.L
	for j := 0; j < n; j++ {
		idx := base + j
		ci := float64(row) - scale*real(ux[idx])
		cj := float64(j) - scale*real(uy[idx])
		fi := math.Floor(ci)
		fj := math.Floor(cj)
		di := ci - fi
		dj := cj - fj
		i0 := g.Wrap(int(fi))
		j0 := g.Wrap(int(fj))
		i1 := i0 + 1
		if i1 == n {
			i1 = 0
		}
		j1 := j0 + 1
		if j1 == n {
			j1 = 0
		}
		s := (1-di)*(1-dj)*real(win[i0*n+j0]) +
			(1-di)*dj*real(win[i0*n+j1]) +
			di*(1-dj)*real(win[i1*n+j0]) +
			di*dj*real(win[i1*n+j1])
		wout[idx] = complex(s, 0)
	}
}
