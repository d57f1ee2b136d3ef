package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// handleControls processes viewer hotkeys and mouse injection.
func (g *Game) handleControls() error {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		g.adjustStepsPerFrame(-stepsPerFrameStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		g.adjustStepsPerFrame(stepsPerFrameStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		if err := g.reseed(g.seed + 1); err != nil {
			return err
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyS) {
		if err := g.screenshot(); err != nil {
			g.log.WithError(err).Warn("screenshot failed")
		}
	}

	x, y := ebiten.CursorPosition()
	if x < 0 || x >= g.n || y < 0 || y >= g.n {
		return nil
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return g.injectVortex(x, y, vortexStrength)
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		return g.injectVortex(x, y, -vortexStrength)
	}
	return nil
}

// adjustStepsPerFrame clamps the simulation batch size delta within bounds.
func (g *Game) adjustStepsPerFrame(delta int) {
	g.stepsPerFrame += delta
	if g.stepsPerFrame < minStepsPerFrame {
		g.stepsPerFrame = minStepsPerFrame
	} else if g.stepsPerFrame > maxStepsPerFrame {
		g.stepsPerFrame = maxStepsPerFrame
	}
}
