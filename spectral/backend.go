package spectral

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

// ErrUnavailable is returned when a requested compute backend cannot run on
// this build or machine.
var ErrUnavailable = errors.New("backend unavailable")

// Backend advances the vorticity field and exposes its buffers to the host.
type Backend interface {
	// Name identifies the backend and, for devices, the device in use.
	Name() string
	// Upload replaces the vorticity with the given real field.
	Upload(w []float64) error
	// Add shifts the vorticity by a constant.
	Add(s float64) error
	// Step advances n time steps and blocks until the work is complete.
	Step(ctx context.Context, n int) error
	// Download copies a field into dst, which must hold Grid.Size() values.
	Download(f Field, dst []complex128) error
	Close()
}

// Params controls the time integration.
type Params struct {
	Dt        float64
	Viscosity float64
	// Workers bounds CPU parallelism; zero means GOMAXPROCS.
	Workers int
}

// Validate checks the integration parameters.
func (p Params) Validate() error {
	if !(p.Dt > 0) {
		return fmt.Errorf("time step %v must be positive", p.Dt)
	}
	if p.Viscosity < 0 {
		return fmt.Errorf("viscosity %v must not be negative", p.Viscosity)
	}
	if p.Workers < 0 {
		return fmt.Errorf("worker count %d must not be negative", p.Workers)
	}
	return nil
}

func (p Params) workerCount() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Kind selects a backend implementation.
type Kind string

const (
	KindCPU    Kind = "cpu"
	KindOpenCL Kind = "opencl"
	KindAuto   Kind = "auto"
)

// ParseKind validates a backend name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindCPU, KindOpenCL, KindAuto:
		return k, nil
	}
	return "", fmt.Errorf("unknown backend %q (want cpu, opencl or auto)", s)
}

// NewBackend constructs the requested backend. KindAuto prefers OpenCL and
// falls back to the CPU when no device can be initialized.
func NewBackend(kind Kind, g Grid, p Params, log logrus.FieldLogger) (Backend, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	switch kind {
	case KindCPU:
		return NewCPUBackend(g, p), nil
	case KindOpenCL:
		b, err := NewOpenCLBackend(g, p, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	case KindAuto:
		b, err := NewOpenCLBackend(g, p, log)
		if err == nil {
			return b, nil
		}
		log.WithError(err).Warn("OpenCL initialization failed; using CPU backend")
		return NewCPUBackend(g, p), nil
	}
	return nil, fmt.Errorf("unknown backend %q", kind)
}

func checkLen(g Grid, n int, what string) error {
	if n != g.Size() {
		return fmt.Errorf("%s has %d values, want %d", what, n, g.Size())
	}
	return nil
}
