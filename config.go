package main

import "time"

// Viewer and command constants.
const (
	defaultTPS        = 60.0
	stepsPerFrameStep = 1
	minStepsPerFrame  = 1
	maxStepsPerFrame  = 200
	vortexRadius      = 6
	vortexStrength    = 2.0
	shutdownGrace     = 10 * time.Second
	spinnerInterval   = 100 * time.Millisecond
	spinnerCharSet    = 43
)
