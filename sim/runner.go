// Package sim drives a backend through a headless run, dumping frames and
// slice plots along the way.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/go-chi/valve"
	"github.com/sirupsen/logrus"

	"vortex/frames"
	"vortex/spectral"
)

// Options controls a headless run.
type Options struct {
	Grid       spectral.Grid
	Steps      int
	FrameEvery int
	// Plots writes in/end slice plots and images next to the frames.
	Plots bool
	// Diagnostics logs spectral maxima, drift, energy and enstrophy after
	// every chunk.
	Diagnostics bool
	// ZeroMean removes the mean vorticity after upload.
	ZeroMean bool
	// DumpFields are rendered next to every vorticity frame, one writer each.
	DumpFields []spectral.Field
	// PlotDir defaults to the current directory.
	PlotDir string
	// Progress, if set, is called after every chunk.
	Progress func(done, total int)
}

// Summary reports what a run did.
type Summary struct {
	Steps            int
	Frames           int
	Elapsed          time.Duration
	InitialEnstrophy float64
	FinalEnstrophy   float64
	// Stopped is set when a valve shutdown ended the run early.
	Stopped bool
}

// Runner owns the host side buffers of a run.
type Runner struct {
	backend spectral.Backend
	writer  *frames.Writer
	dumps   map[spectral.Field]*frames.Writer
	opt     Options
	log     logrus.FieldLogger

	buf    []complex128
	hat    []complex128
	real   []float64
	w0     []float64
	ux, uy []float64
	dump   []float64
}

// NewRunner checks the options against the grid and opens one writer per
// dumped field, sharing the vorticity writer's format and directory.
func NewRunner(b spectral.Backend, w *frames.Writer, opt Options, log logrus.FieldLogger) (*Runner, error) {
	if err := opt.Grid.Validate(); err != nil {
		return nil, err
	}
	if opt.Steps < 0 {
		return nil, fmt.Errorf("negative step count %d", opt.Steps)
	}
	if opt.FrameEvery < 1 {
		return nil, fmt.Errorf("frame interval %d must be at least 1", opt.FrameEvery)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opt.PlotDir == "" {
		opt.PlotDir = "."
	}
	r := &Runner{
		backend: b,
		writer:  w,
		dumps:   make(map[spectral.Field]*frames.Writer, len(opt.DumpFields)),
		opt:     opt,
		log:     log.WithField("backend", b.Name()),
		buf:     make([]complex128, opt.Grid.Size()),
	}
	for _, f := range opt.DumpFields {
		if f == spectral.Vorticity {
			continue
		}
		wopt := w.Options()
		wopt.Prefix = f.String() + "_"
		dw, err := frames.NewWriter(wopt)
		if err != nil {
			return nil, fmt.Errorf("%s writer: %w", f, err)
		}
		r.dumps[f] = dw
	}
	return r, nil
}

// Run uploads w0 and steps until the configured count is reached, ctx is
// cancelled or the valve lever in ctx, if any, signals shutdown.
//
// A lever shutdown stops cleanly at the next frame boundary and returns a
// nil error with Summary.Stopped set. A cancelled context stops at the next
// step; the partial Summary, the final plots and the returned context error
// all reflect the last completed step.
func (r *Runner) Run(ctx context.Context, w0 []float64) (Summary, error) {
	var sum Summary
	stop := leverStop(ctx)
	if lever, ok := ctx.Value(valve.ValveCtxKey).(valve.LeverControl); ok {
		if err := lever.Open(); err != nil {
			return sum, err
		}
		defer lever.Close()
	}
	defer r.closeDumps()

	g := r.opt.Grid
	if err := r.backend.Upload(w0); err != nil {
		return sum, fmt.Errorf("upload: %w", err)
	}
	if r.opt.ZeroMean {
		if err := r.backend.Add(-spectral.Mean(w0)); err != nil {
			return sum, fmt.Errorf("remove mean: %w", err)
		}
	}
	w, err := r.vorticity()
	if err != nil {
		return sum, err
	}
	r.w0 = append(r.w0[:0], w...)
	sum.InitialEnstrophy = spectral.Enstrophy(w, g.Dx())
	sum.FinalEnstrophy = sum.InitialEnstrophy
	if err := r.writeFrame(0, w); err != nil {
		return sum, err
	}
	if r.opt.Plots {
		if err := r.plot("in", w); err != nil {
			return sum, err
		}
	}
	r.diagnose(0, w)

	start := time.Now()
	var runErr error
loop:
	for sum.Steps < r.opt.Steps {
		select {
		case <-stop:
			sum.Stopped = true
			r.log.WithField("step", sum.Steps).Warn("shutdown requested, stopping")
			break loop
		default:
		}
		n := min(r.opt.FrameEvery, r.opt.Steps-sum.Steps)
		for k := 0; k < n; k++ {
			if err := r.backend.Step(ctx, 1); err != nil {
				runErr = err
				break
			}
			sum.Steps++
		}
		if runErr != nil {
			break
		}
		if w, err = r.vorticity(); err != nil {
			return sum, err
		}
		sum.FinalEnstrophy = spectral.Enstrophy(w, g.Dx())
		if err := r.writeFrame(sum.Steps, w); err != nil {
			return sum, err
		}
		r.diagnose(sum.Steps, w)
		if r.opt.Progress != nil {
			r.opt.Progress(sum.Steps, r.opt.Steps)
		}
	}
	sum.Elapsed = time.Since(start)
	if runErr != nil {
		// the backend may have moved past the last written frame
		if w, err = r.vorticity(); err != nil {
			return sum, err
		}
		sum.FinalEnstrophy = spectral.Enstrophy(w, g.Dx())
	}
	sum.Frames = r.writer.Frames()
	r.log.WithFields(logrus.Fields{
		"steps":   sum.Steps,
		"frames":  sum.Frames,
		"elapsed": sum.Elapsed.Round(time.Millisecond),
	}).Info("loop finished")

	if r.opt.Plots {
		if err := r.plot("end", w); err != nil {
			return sum, err
		}
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			r.log.WithField("step", sum.Steps).Warn("run interrupted")
		}
		return sum, runErr
	}
	return sum, r.closeDumps()
}

// leverStop returns the shutdown channel of a valve lever carried by ctx,
// or nil, which never fires.
func leverStop(ctx context.Context) <-chan struct{} {
	if lever, ok := ctx.Value(valve.ValveCtxKey).(valve.LeverControl); ok {
		return lever.Stop()
	}
	return nil
}

func (r *Runner) closeDumps() error {
	var errs []error
	for f, dw := range r.dumps {
		if err := dw.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s writer: %w", f, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) vorticity() ([]float64, error) {
	if err := r.backend.Download(spectral.Vorticity, r.buf); err != nil {
		return nil, fmt.Errorf("download %s: %w", spectral.Vorticity, err)
	}
	r.real = spectral.RealPart(r.real, r.buf)
	return r.real, nil
}

func (r *Runner) writeFrame(step int, w []float64) error {
	path, err := r.writer.WriteFrame(step, w)
	if err != nil {
		return fmt.Errorf("frame %d: %w", step, err)
	}
	r.log.WithField("step", step).Debugf("wrote %s", path)
	for f, dw := range r.dumps {
		if err := r.backend.Download(f, r.scratch()); err != nil {
			return fmt.Errorf("download %s: %w", f, err)
		}
		if _, err := dw.WriteFrame(step, r.render(f)); err != nil {
			return fmt.Errorf("%s frame %d: %w", f, step, err)
		}
	}
	return nil
}

func (r *Runner) scratch() []complex128 {
	if r.hat == nil {
		r.hat = make([]complex128, len(r.buf))
	}
	return r.hat
}

// render turns a downloaded field into image values: the real part for
// physical fields, log(1+|z|) for spectral ones.
func (r *Runner) render(f spectral.Field) []float64 {
	r.dump = spectral.RealPart(r.dump, r.hat)
	if f.Spectral() {
		for i, z := range r.hat {
			r.dump[i] = math.Log1p(math.Hypot(real(z), imag(z)))
		}
	}
	return r.dump
}

// plot writes <name>.svg with the j=0 slice and <name>.png with the full
// field, gray for the initial state and coloured afterwards.
func (r *Runner) plot(name string, w []float64) error {
	n := r.opt.Grid.N
	base := filepath.Join(r.opt.PlotDir, name)
	if err := frames.LinePlot(base+".svg", "w(x, 0) "+name, frames.Column(w, n, 0), r.opt.Grid.L); err != nil {
		return err
	}
	if name == "in" {
		img, err := frames.Gray(w, n)
		if err != nil {
			return err
		}
		return frames.SaveImage(base+".png", img)
	}
	img, err := frames.Color(r.writer.Colormap(), w, n)
	if err != nil {
		return err
	}
	return frames.SaveImage(base+".png", img)
}

// diagnose logs the largest spectral magnitudes, the drift from the initial
// field and the integral invariants.
func (r *Runner) diagnose(step int, w []float64) {
	if !r.opt.Diagnostics {
		return
	}
	dx := r.opt.Grid.Dx()
	fields := logrus.Fields{
		"step":      step,
		"max_w":     spectral.Max(w),
		"max_abs_w": spectral.MaxAbs(w),
		"mean_w":    spectral.Mean(w),
		"enstrophy": spectral.Enstrophy(w, dx),
	}
	if drift, err := spectral.Dist(w, r.w0, dx); err == nil {
		fields["drift"] = drift
	}
	hat := r.scratch()
	for _, f := range []spectral.Field{spectral.VorticityHat, spectral.StreamHat} {
		if err := r.backend.Download(f, hat); err != nil {
			r.log.WithError(err).Warnf("download %s", f)
			return
		}
		fields["max_"+f.String()] = spectral.MaxModulus(hat)
	}
	if err := r.backend.Download(spectral.VelocityX, hat); err != nil {
		r.log.WithError(err).Warnf("download %s", spectral.VelocityX)
		return
	}
	r.ux = spectral.RealPart(r.ux, hat)
	if err := r.backend.Download(spectral.VelocityY, hat); err != nil {
		r.log.WithError(err).Warnf("download %s", spectral.VelocityY)
		return
	}
	r.uy = spectral.RealPart(r.uy, hat)
	fields["energy"] = spectral.Energy(r.ux, r.uy, dx)
	r.log.WithFields(fields).Info("diagnostics")
}
