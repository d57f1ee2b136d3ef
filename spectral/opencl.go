//go:build opencl

package spectral

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
	"github.com/sirupsen/logrus"
)

// OpenCLBackend runs the spectral scheme in float32 on an OpenCL device.
type OpenCLBackend struct {
	grid   Grid
	params Params
	log    logrus.FieldLogger

	context *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program
	kernels map[string]*cl.Kernel

	w, wnew      *cl.MemObject
	what, psihat *cl.MemObject
	ux, uy       *cl.MemObject
	scratch, tmp *cl.MemObject

	host           []float32
	deviceName     string
	version        uint64
	derivedVersion uint64
}

// DeviceInfo describes one OpenCL device.
type DeviceInfo struct {
	Platform     string
	Name         string
	Type         string
	ComputeUnits int
	GlobalMem    int64
}

// ListDevices enumerates every device of every platform.
func ListDevices() ([]DeviceInfo, error) {
	platforms, err := getPlatforms()
	if err != nil {
		return nil, err
	}
	var out []DeviceInfo
	for _, p := range platforms {
		devices, err := p.GetDevices(cl.DeviceTypeAll)
		if err != nil && err != cl.ErrDeviceNotFound {
			return nil, fmt.Errorf("querying devices of %s: %w", p.Name(), err)
		}
		for _, d := range devices {
			out = append(out, DeviceInfo{
				Platform:     p.Name(),
				Name:         d.Name(),
				Type:         d.Type().String(),
				ComputeUnits: d.MaxComputeUnits(),
				GlobalMem:    d.GlobalMemSize(),
			})
		}
	}
	return out, nil
}

func getPlatforms() ([]*cl.Platform, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, msg, err)
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("%w: no OpenCL platforms available", ErrUnavailable)
	}
	return platforms, nil
}

// pickDevice prefers the first GPU and falls back to the first CPU device.
func pickDevice(platforms []*cl.Platform) *cl.Device {
	for _, kind := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU} {
		for _, p := range platforms {
			devices, err := p.GetDevices(kind)
			if err != nil && err != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				return devices[0]
			}
		}
	}
	return nil
}

// NewOpenCLBackend compiles the kernels and allocates device buffers.
func NewOpenCLBackend(g Grid, p Params, log logrus.FieldLogger) (*OpenCLBackend, error) {
	platforms, err := getPlatforms()
	if err != nil {
		return nil, err
	}
	device := pickDevice(platforms)
	if device == nil {
		return nil, fmt.Errorf("%w: no suitable OpenCL devices found", ErrUnavailable)
	}

	b := &OpenCLBackend{
		grid:       g,
		params:     p,
		log:        log.WithField("backend", "opencl"),
		kernels:    make(map[string]*cl.Kernel, len(kernelNames)),
		host:       make([]float32, 2*g.Size()),
		deviceName: device.Name(),
		version:    1,
	}
	if b.context, err = cl.CreateContext([]*cl.Device{device}); err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	if b.queue, err = b.context.CreateCommandQueue(device, 0); err != nil {
		b.Close()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	if b.program, err = b.context.CreateProgramWithSource([]string{kernelSource}); err != nil {
		b.Close()
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := b.program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		b.Close()
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}
	for _, name := range kernelNames {
		k, err := b.program.CreateKernel(name)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("creating kernel %s: %w", name, err)
		}
		b.kernels[name] = k
	}
	byteSize := b.byteSize()
	for _, buf := range []**cl.MemObject{&b.w, &b.wnew, &b.what, &b.psihat, &b.ux, &b.uy, &b.scratch, &b.tmp} {
		if *buf, err = b.context.CreateEmptyBuffer(cl.MemReadWrite, byteSize); err != nil {
			b.Close()
			return nil, fmt.Errorf("allocating %d byte buffer: %w", byteSize, err)
		}
	}
	b.log.WithField("device", b.deviceName).Info("OpenCL backend ready")
	return b, nil
}

func (b *OpenCLBackend) byteSize() int {
	return b.grid.Size() * 2 * int(unsafe.Sizeof(float32(0)))
}

func (b *OpenCLBackend) Name() string { return "opencl (" + b.deviceName + ")" }

// DeviceName reports the device the kernels run on.
func (b *OpenCLBackend) DeviceName() string { return b.deviceName }

func (b *OpenCLBackend) Upload(w []float64) error {
	if err := checkLen(b.grid, len(w), "vorticity"); err != nil {
		return err
	}
	for i, v := range w {
		b.host[2*i] = float32(v)
		b.host[2*i+1] = 0
	}
	if _, err := b.queue.EnqueueWriteBufferFloat32(b.w, true, 0, b.host, nil); err != nil {
		return fmt.Errorf("writing vorticity buffer: %w", err)
	}
	b.version++
	return nil
}

func (b *OpenCLBackend) Add(s float64) error {
	if err := b.run1D("add", b.w, float32(s)); err != nil {
		return err
	}
	b.version++
	return b.queue.Finish()
}

// Step enqueues n steps and drains the queue before returning, also when ctx
// stops it early.
func (b *OpenCLBackend) Step(ctx context.Context, n int) error {
	err := b.step(ctx, n)
	if ferr := b.queue.Finish(); ferr != nil && err == nil {
		err = fmt.Errorf("finishing queue: %w", ferr)
	}
	return err
}

func (b *OpenCLBackend) step(ctx context.Context, n int) error {
	N := int32(b.grid.N)
	for s := 0; s < n; s++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.derive(b.params.Viscosity > 0); err != nil {
			return fmt.Errorf("step %d: %w", s, err)
		}
		if err := b.run2D("advection", b.w, b.wnew, b.ux, b.uy, N, float32(b.grid.L), float32(b.params.Dt)); err != nil {
			return fmt.Errorf("step %d: %w", s, err)
		}
		b.w, b.wnew = b.wnew, b.w
		b.version++
	}
	return nil
}

func (b *OpenCLBackend) derive(diffuse bool) error {
	N := int32(b.grid.N)
	scalar := float32(2 * math.Pi / b.grid.L)
	if err := b.copy(b.w, b.what); err != nil {
		return err
	}
	if err := b.fft(b.what, -1); err != nil {
		return err
	}
	if diffuse {
		if err := b.run2D("diffuse", b.what, N, scalar, float32(b.params.Viscosity), float32(b.params.Dt)); err != nil {
			return err
		}
		if err := b.copy(b.what, b.w); err != nil {
			return err
		}
		if err := b.fft(b.w, 1); err != nil {
			return err
		}
		if err := b.run1D("real_part", b.w); err != nil {
			return err
		}
	}
	if err := b.run2D("inv_mlap", b.what, b.psihat, N, scalar); err != nil {
		return err
	}
	if err := b.run2D("diff_y", b.psihat, b.ux, N, scalar); err != nil {
		return err
	}
	if err := b.run2D("diff_x", b.psihat, b.uy, N, scalar, float32(-1)); err != nil {
		return err
	}
	if err := b.fft(b.ux, 1); err != nil {
		return err
	}
	if err := b.fft(b.uy, 1); err != nil {
		return err
	}
	b.derivedVersion = b.version
	return nil
}

// fft transforms buf in place; sign -1 is forward, +1 is the inverse scaled
// by 1/N². Passes ping-pong through scratch; 2·log2(N) passes is even, so
// the result lands back in buf.
func (b *OpenCLBackend) fft(buf *cl.MemObject, sign float32) error {
	n := b.grid.N
	k := b.kernels["fft_radix2"]
	src, dst := buf, b.scratch
	for _, axis := range [2][2]int{{1, n}, {n, 1}} {
		for pass := 0; pass < b.grid.Log2N(); pass++ {
			p := 1 << pass
			if err := k.SetArgs(src, dst, int32(n), int32(p), int32(axis[0]), int32(axis[1]), sign); err != nil {
				return fmt.Errorf("setting fft_radix2 arguments: %w", err)
			}
			if _, err := b.queue.EnqueueNDRangeKernel(k, nil, []int{n / 2, n}, nil, nil); err != nil {
				return fmt.Errorf("enqueueing fft_radix2: %w", err)
			}
			src, dst = dst, src
		}
	}
	if sign > 0 {
		return b.run1D("scale", buf, float32(1/float64(n*n)))
	}
	return nil
}

func (b *OpenCLBackend) copy(src, dst *cl.MemObject) error {
	if _, err := b.queue.EnqueueCopyBuffer(src, dst, 0, 0, b.byteSize(), nil); err != nil {
		return fmt.Errorf("copying buffer: %w", err)
	}
	return nil
}

func (b *OpenCLBackend) run1D(name string, args ...interface{}) error {
	return b.enqueue(name, []int{b.grid.Size()}, args...)
}

func (b *OpenCLBackend) run2D(name string, args ...interface{}) error {
	return b.enqueue(name, []int{b.grid.N, b.grid.N}, args...)
}

func (b *OpenCLBackend) enqueue(name string, global []int, args ...interface{}) error {
	k := b.kernels[name]
	if err := k.SetArgs(args...); err != nil {
		return fmt.Errorf("setting %s arguments: %w", name, err)
	}
	if _, err := b.queue.EnqueueNDRangeKernel(k, nil, global, nil, nil); err != nil {
		return fmt.Errorf("enqueueing %s: %w", name, err)
	}
	return nil
}

func (b *OpenCLBackend) Download(f Field, dst []complex128) error {
	if err := checkLen(b.grid, len(dst), "destination"); err != nil {
		return err
	}
	if f != Vorticity && b.derivedVersion != b.version {
		if err := b.derive(false); err != nil {
			return err
		}
	}
	var src *cl.MemObject
	switch f {
	case Vorticity:
		src = b.w
	case VorticityHat:
		src = b.what
	case StreamHat:
		src = b.psihat
	case Stream:
		if err := b.copy(b.psihat, b.tmp); err != nil {
			return err
		}
		if err := b.fft(b.tmp, 1); err != nil {
			return err
		}
		src = b.tmp
	case VelocityX:
		src = b.ux
	case VelocityY:
		src = b.uy
	default:
		return fmt.Errorf("unknown field %v", f)
	}
	if _, err := b.queue.EnqueueReadBufferFloat32(src, true, 0, b.host, nil); err != nil {
		return fmt.Errorf("reading %v buffer: %w", f, err)
	}
	for i := range dst {
		dst[i] = complex(float64(b.host[2*i]), float64(b.host[2*i+1]))
	}
	return nil
}

func (b *OpenCLBackend) Close() {
	for _, buf := range []**cl.MemObject{&b.w, &b.wnew, &b.what, &b.psihat, &b.ux, &b.uy, &b.scratch, &b.tmp} {
		if *buf != nil {
			(*buf).Release()
			*buf = nil
		}
	}
	for name, k := range b.kernels {
		k.Release()
		delete(b.kernels, name)
	}
	if b.program != nil {
		b.program.Release()
		b.program = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.context != nil {
		b.context.Release()
		b.context = nil
	}
}
