package main

import "math"

type gridOffset struct {
	di, dj int
	weight float64
}

var vortexFootprint = precomputeVortexFootprint(vortexRadius)

// precomputeVortexFootprint lists the offsets inside a disc with Gaussian
// weights that fall to exp(-4) at the rim.
func precomputeVortexFootprint(radius int) []gridOffset {
	footprint := make([]gridOffset, 0, (2*radius+1)*(2*radius+1))
	r2 := radius * radius
	for di := -radius; di <= radius; di++ {
		for dj := -radius; dj <= radius; dj++ {
			d2 := di*di + dj*dj
			if d2 > r2 {
				continue
			}
			w := math.Exp(-4 * float64(d2) / float64(r2))
			footprint = append(footprint, gridOffset{di: di, dj: dj, weight: w})
		}
	}
	return footprint
}

// stampVortex adds a Gaussian blob of the given strength centred on (ci, cj)
// of an n×n periodic field.
func stampVortex(w []float64, n, ci, cj int, strength float64) {
	for _, o := range vortexFootprint {
		i := ((ci+o.di)%n + n) % n
		j := ((cj+o.dj)%n + n) % n
		w[i*n+j] += strength * o.weight
	}
}
