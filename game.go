package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"vortex/config"
	"vortex/frames"
	"vortex/spectral"
)

// Game is the live viewer: it steps the backend once per tick and paints the
// vorticity with the diverging colormap.
type Game struct {
	cfg     config.Config
	backend spectral.Backend
	log     logrus.FieldLogger
	cmap    *frames.Colormap
	n       int

	buf    []complex128
	field  []float64
	pixels []byte

	steps           int
	stepsPerFrame   int
	paused          bool
	seed            int64
	lastSimDuration time.Duration
	stale           bool
}

// newGame uploads the configured initial field and prepares the host buffers.
func newGame(cfg config.Config, b spectral.Backend, log logrus.FieldLogger) (*Game, error) {
	cm, err := frames.NewDiverging()
	if err != nil {
		return nil, err
	}
	n := cfg.N
	g := &Game{
		cfg:           cfg,
		backend:       b,
		log:           log,
		cmap:          cm,
		n:             n,
		buf:           make([]complex128, n*n),
		field:         make([]float64, n*n),
		pixels:        make([]byte, n*n*4),
		stepsPerFrame: cfg.StepsPerFrame,
		seed:          cfg.Seed,
	}
	if err := g.reseed(g.seed); err != nil {
		return nil, err
	}
	return g, nil
}

// Update handles input and advances the simulation.
func (g *Game) Update() error {
	if err := g.handleControls(); err != nil {
		return err
	}
	if g.paused {
		return nil
	}
	simStart := time.Now()
	if err := g.backend.Step(context.Background(), g.stepsPerFrame); err != nil {
		return fmt.Errorf("step %d: %w", g.steps, err)
	}
	g.steps += g.stepsPerFrame
	g.stale = true
	g.lastSimDuration = time.Since(simStart)
	return nil
}

// reseed replaces the vorticity with a fresh initial field.
func (g *Game) reseed(seed int64) error {
	opt := g.cfg.InitOptions()
	opt.Seed = seed
	w, err := spectral.InitialField(g.cfg.Grid(), opt)
	if err != nil {
		return err
	}
	if err := g.backend.Upload(w); err != nil {
		return err
	}
	if g.cfg.ZeroMean {
		if err := g.backend.Add(-spectral.Mean(w)); err != nil {
			return err
		}
	}
	g.seed = seed
	g.steps = 0
	g.stale = true
	g.log.WithFields(logrus.Fields{"seed": seed, "init": opt.Kind}).Info("initial field uploaded")
	return nil
}

// refresh pulls the vorticity back to the host when it changed.
func (g *Game) refresh() error {
	if !g.stale {
		return nil
	}
	if err := g.backend.Download(spectral.Vorticity, g.buf); err != nil {
		return err
	}
	g.field = spectral.RealPart(g.field, g.buf)
	frames.FillRGBA(g.pixels, g.cmap, g.field)
	g.stale = false
	return nil
}

// injectVortex adds a blob of vorticity at screen position (x, y), which is
// grid point (i=y, j=x).
func (g *Game) injectVortex(x, y int, strength float64) error {
	if err := g.refresh(); err != nil {
		return err
	}
	stampVortex(g.field, g.n, y, x, strength)
	if err := g.backend.Upload(g.field); err != nil {
		return err
	}
	g.stale = true
	return nil
}

func (g *Game) screenshot() error {
	if err := g.refresh(); err != nil {
		return err
	}
	img, err := frames.Color(g.cmap, g.field, g.n)
	if err != nil {
		return err
	}
	path := filepath.Join(g.cfg.OutDir, fmt.Sprintf("screenshot_%06d.png", g.steps))
	if err := frames.SaveImage(path, img); err != nil {
		return err
	}
	g.log.WithField("path", path).Info("screenshot saved")
	return nil
}

// simStepsPerSecond returns the nominal simulation steps executed each second.
func (g *Game) simStepsPerSecond() float64 {
	if g.paused {
		return 0
	}
	return defaultTPS * float64(g.stepsPerFrame)
}
