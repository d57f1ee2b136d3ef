package spectral

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"github.com/ojrac/opensimplex-go"
	"golang.org/x/sync/errgroup"
)

// Initial names a family of starting vorticity fields.
type Initial string

const (
	// InitTaylorGreen is cos(x)·sin(y), a steady Euler state, plus uniform noise.
	InitTaylorGreen Initial = "taylor-green"
	// InitNoise is periodic fractal noise.
	InitNoise Initial = "noise"
	// InitVortexPair is two Gaussian vortices of opposite sign.
	InitVortexPair Initial = "vortex-pair"
)

// ParseInitial validates an initial condition name.
func ParseInitial(s string) (Initial, error) {
	switch k := Initial(s); k {
	case InitTaylorGreen, InitNoise, InitVortexPair:
		return k, nil
	}
	return "", fmt.Errorf("unknown initial condition %q", s)
}

// InitOptions parameterizes InitialField.
type InitOptions struct {
	Kind     Initial
	Seed     int64
	NoiseAmp float64
	// Octaves and Radius shape the fractal noise; zero values pick 12 and 10.
	Octaves int
	Radius  float64
}

// InitialField builds a real vorticity field. Output is deterministic for a
// given seed.
func InitialField(g Grid, opt InitOptions) ([]float64, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	w := make([]float64, g.Size())
	switch opt.Kind {
	case InitTaylorGreen, "":
		taylorGreen(g, w)
	case InitNoise:
		if err := fractalNoise(g, w, opt); err != nil {
			return nil, err
		}
	case InitVortexPair:
		vortexPair(g, w)
	default:
		return nil, fmt.Errorf("unknown initial condition %q", opt.Kind)
	}
	if opt.NoiseAmp != 0 {
		rng := rand.New(rand.NewSource(opt.Seed))
		for i := range w {
			w[i] += rng.Float64() * opt.NoiseAmp
		}
	}
	return w, nil
}

func taylorGreen(g Grid, w []float64) {
	dx := g.Dx()
	for i := 0; i < g.N; i++ {
		ci := math.Cos(float64(i) * dx)
		for j := 0; j < g.N; j++ {
			w[i*g.N+j] = ci * math.Sin(float64(j)*dx)
		}
	}
}

// vortexPair places counter-rotating Gaussian vortices on the x axis
// midline. Distances use the periodic minimum image.
func vortexPair(g Grid, w []float64) {
	dx := g.Dx()
	radius := g.L / 16
	centers := [2][3]float64{
		{g.L/2 - g.L/8, g.L / 2, 1},
		{g.L/2 + g.L/8, g.L / 2, -1},
	}
	for i := 0; i < g.N; i++ {
		x := float64(i) * dx
		for j := 0; j < g.N; j++ {
			y := float64(j) * dx
			var v float64
			for _, c := range centers {
				rx := periodicDelta(x-c[0], g.L)
				ry := periodicDelta(y-c[1], g.L)
				v += c[2] * math.Exp(-(rx*rx+ry*ry)/(radius*radius))
			}
			w[i*g.N+j] = v
		}
	}
}

func periodicDelta(d, length float64) float64 {
	d = math.Mod(d, length)
	if d > length/2 {
		d -= length
	} else if d < -length/2 {
		d += length
	}
	return d
}

// fractalNoise samples summed simplex octaves on a 4D torus so the field
// tiles seamlessly in both directions.
func fractalNoise(g Grid, w []float64, opt InitOptions) error {
	octaves := opt.Octaves
	if octaves <= 0 {
		octaves = 12
	}
	radius := opt.Radius
	if radius <= 0 {
		radius = 10
	}
	noise := opensimplex.New(opt.Seed)
	s := 2 * math.Pi / float64(g.N)

	var norm float64
	amp := 1.0
	for o := 0; o < octaves; o++ {
		norm += amp
		amp *= 0.5
	}

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < g.N; i++ {
		i := i
		eg.Go(func() error {
			a := float64(i) * s
			ca, sa := math.Cos(a), math.Sin(a)
			for j := 0; j < g.N; j++ {
				b := float64(j) * s
				cb, sb := math.Cos(b), math.Sin(b)
				var v float64
				freq, amp := 1.0, 1.0
				for o := 0; o < octaves; o++ {
					r := radius * freq
					v += amp * noise.Eval4(r*ca, r*sa, r*cb, r*sb)
					freq *= 2
					amp *= 0.5
				}
				w[i*g.N+j] = v / norm
			}
			return nil
		})
	}
	return eg.Wait()
}
