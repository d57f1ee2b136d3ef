package main

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// Draw paints the vorticity and the status overlay.
func (g *Game) Draw(screen *ebiten.Image) {
	if err := g.refresh(); err != nil {
		g.log.WithError(err).Error("download failed")
		return
	}
	screen.WritePixels(g.pixels)

	state := "running"
	if g.paused {
		state = "paused"
	}
	simMS := g.lastSimDuration.Seconds() * 1000
	msg := fmt.Sprintf("FPS: %.1f  %s\nStep %d (%d/frame, +/-)\nSim: %.2f ms, %.0f steps/s\nSeed %d  [R]eseed [S]creenshot\nLMB/RMB: +/- vortex",
		ebiten.ActualFPS(), state, g.steps, g.stepsPerFrame, simMS, g.simStepsPerSecond(), g.seed)
	ebitenutil.DebugPrint(screen, msg)
}

// Layout reports the logical screen size, one pixel per grid point.
func (g *Game) Layout(_, _ int) (int, int) { return g.n, g.n }
