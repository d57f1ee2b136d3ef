package sim

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/valve"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"vortex/frames"
	"vortex/spectral"
)

type fixture struct {
	grid    spectral.Grid
	backend *spectral.CPUBackend
	writer  *frames.Writer
	dir     string
	w0      []float64
}

func newFixture(t *testing.T, format frames.Format) *fixture {
	t.Helper()
	g := spectral.Grid{N: 16, L: spectral.DefaultLength}
	dir := t.TempDir()
	w, err := frames.NewWriter(frames.WriterOptions{Dir: dir, Format: format, N: g.N, Length: g.L})
	require.NoError(t, err)
	w0, err := spectral.InitialField(g, spectral.InitOptions{Kind: spectral.InitVortexPair})
	require.NoError(t, err)
	b := spectral.NewCPUBackend(g, spectral.Params{Dt: 0.05, Workers: 2})
	t.Cleanup(b.Close)
	return &fixture{grid: g, backend: b, writer: w, dir: dir, w0: w0}
}

func TestRunWritesFramesAndPlots(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := newFixture(t, frames.FormatF16)
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	var progress []int
	r, err := NewRunner(f.backend, f.writer, Options{
		Grid:        f.grid,
		Steps:       5,
		FrameEvery:  2,
		Plots:       true,
		Diagnostics: true,
		PlotDir:     f.dir,
		Progress:    func(done, _ int) { progress = append(progress, done) },
	}, log)
	require.NoError(t, err)

	sum, err := r.Run(context.Background(), f.w0)
	require.NoError(t, err)
	f.backend.Close()

	assert.Equal(t, 5, sum.Steps)
	assert.Equal(t, 4, sum.Frames)
	assert.Equal(t, []int{2, 4, 5}, progress)
	assert.Greater(t, sum.InitialEnstrophy, 0.0)
	assert.LessOrEqual(t, sum.FinalEnstrophy, sum.InitialEnstrophy*1.05)

	for _, name := range []string{"frame_000000.f16", "frame_000002.f16", "frame_000004.f16", "frame_000005.f16", "in.svg", "in.png", "end.svg", "end.png"} {
		assert.FileExists(t, filepath.Join(f.dir, name))
	}

	var diag int
	for _, e := range hook.AllEntries() {
		if e.Message == "diagnostics" {
			diag++
			assert.Contains(t, e.Data, "max_what")
			assert.Contains(t, e.Data, "max_psihat")
			assert.Contains(t, e.Data, "drift")
			assert.Contains(t, e.Data, "energy")
		}
	}
	assert.Equal(t, 4, diag)
}

func TestRunZeroMean(t *testing.T) {
	f := newFixture(t, frames.FormatPNG)
	for i := range f.w0 {
		f.w0[i] += 0.5
	}
	log, _ := test.NewNullLogger()
	r, err := NewRunner(f.backend, f.writer, Options{Grid: f.grid, Steps: 1, FrameEvery: 1, ZeroMean: true}, log)
	require.NoError(t, err)
	_, err = r.Run(context.Background(), f.w0)
	require.NoError(t, err)

	buf := make([]complex128, f.grid.Size())
	require.NoError(t, f.backend.Download(spectral.Vorticity, buf))
	assert.InDelta(t, 0, spectral.Mean(spectral.RealPart(nil, buf)), 1e-3)
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t, frames.FormatPNG)
	log, hook := test.NewNullLogger()
	r, err := NewRunner(f.backend, f.writer, Options{Grid: f.grid, Steps: 10, FrameEvery: 2, Plots: true, PlotDir: f.dir}, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := r.Run(ctx, f.w0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Steps)
	assert.Equal(t, 1, sum.Frames)
	assert.FileExists(t, filepath.Join(f.dir, "end.svg"))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestNewRunnerValidates(t *testing.T) {
	f := newFixture(t, frames.FormatPNG)
	_, err := NewRunner(f.backend, f.writer, Options{Grid: f.grid, FrameEvery: 0}, nil)
	assert.Error(t, err)
	_, err = NewRunner(f.backend, f.writer, Options{Grid: f.grid, Steps: -1, FrameEvery: 1}, nil)
	assert.Error(t, err)
	_, err = NewRunner(f.backend, f.writer, Options{Grid: spectral.Grid{N: 3, L: 1}, FrameEvery: 1}, nil)
	assert.Error(t, err)
}

func TestRunRejectsWrongSize(t *testing.T) {
	f := newFixture(t, frames.FormatPNG)
	r, err := NewRunner(f.backend, f.writer, Options{Grid: f.grid, FrameEvery: 1}, nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background(), make([]float64, 3))
	assert.Error(t, err)
}

// cancelAfter lets limit steps through, then fails like a cancelled context
// in the middle of whatever chunk is running.
type cancelAfter struct {
	*spectral.CPUBackend
	limit, done int
}

func (c *cancelAfter) Step(ctx context.Context, n int) error {
	for k := 0; k < n; k++ {
		if c.done == c.limit {
			return context.Canceled
		}
		if err := c.CPUBackend.Step(ctx, 1); err != nil {
			return err
		}
		c.done++
	}
	return nil
}

func TestRunCancelledMidChunkReportsLastStep(t *testing.T) {
	f := newFixture(t, frames.FormatPNG)
	b := &cancelAfter{CPUBackend: f.backend, limit: 3}
	log, _ := test.NewNullLogger()
	r, err := NewRunner(b, f.writer, Options{Grid: f.grid, Steps: 10, FrameEvery: 5, Plots: true, PlotDir: f.dir}, log)
	require.NoError(t, err)

	sum, err := r.Run(context.Background(), f.w0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, sum.Steps)
	assert.Equal(t, 1, sum.Frames)

	buf := make([]complex128, f.grid.Size())
	require.NoError(t, b.Download(spectral.Vorticity, buf))
	actual := spectral.Enstrophy(spectral.RealPart(nil, buf), f.grid.Dx())
	assert.InDelta(t, actual, sum.FinalEnstrophy, 1e-12)
	assert.NotEqual(t, sum.InitialEnstrophy, sum.FinalEnstrophy)
	assert.FileExists(t, filepath.Join(f.dir, "end.svg"))
}

func TestRunStopsAtFrameBoundaryOnValveShutdown(t *testing.T) {
	f := newFixture(t, frames.FormatPNG)
	v := valve.New()
	shutdown := make(chan error, 1)
	log, _ := test.NewNullLogger()
	r, err := NewRunner(f.backend, f.writer, Options{
		Grid:       f.grid,
		Steps:      10,
		FrameEvery: 2,
		Progress: func(done, _ int) {
			if done == 4 {
				go func() { shutdown <- v.Shutdown(5 * time.Second) }()
				<-v.Stop()
			}
		},
	}, log)
	require.NoError(t, err)

	sum, err := r.Run(v.Context(), f.w0)
	require.NoError(t, err)
	assert.True(t, sum.Stopped)
	assert.Equal(t, 4, sum.Steps)
	assert.Equal(t, 3, sum.Frames)
	// the grace period ends as soon as the run closes its valve
	assert.NoError(t, <-shutdown)
}

func TestRunRefusesToStartDuringShutdown(t *testing.T) {
	f := newFixture(t, frames.FormatPNG)
	v := valve.New()
	require.NoError(t, v.Shutdown(0))
	r, err := NewRunner(f.backend, f.writer, Options{Grid: f.grid, Steps: 1, FrameEvery: 1}, nil)
	require.NoError(t, err)
	_, err = r.Run(v.Context(), f.w0)
	assert.ErrorIs(t, err, valve.ErrShuttingdown)
}

func TestRunDumpsExtraFields(t *testing.T) {
	f := newFixture(t, frames.FormatF16)
	r, err := NewRunner(f.backend, f.writer, Options{
		Grid:       f.grid,
		Steps:      2,
		FrameEvery: 2,
		DumpFields: []spectral.Field{spectral.Vorticity, spectral.Stream, spectral.StreamHat},
	}, nil)
	require.NoError(t, err)
	_, err = r.Run(context.Background(), f.w0)
	require.NoError(t, err)

	for _, name := range []string{"psi_000000.f16", "psi_000002.f16", "psihat_000002.f16"} {
		assert.FileExists(t, filepath.Join(f.dir, name))
	}
	assert.NoFileExists(t, filepath.Join(f.dir, "w_000000.f16"))

	snap := readSnapshot(t, filepath.Join(f.dir, "psihat_000002.f16"))
	for _, v := range snap.Values {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func readSnapshot(t *testing.T, path string) *frames.Snapshot {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	s, err := frames.DecodeF16(fh)
	require.NoError(t, err)
	return s
}
