package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"vortex/config"
)

// Flag names that are not config settings.
const (
	configFlag     = "config"
	cpuProfileFlag = "cpuprofile"
)

// flagDefaults only feeds help text; the values that count are applied
// by applyFlags on top of the loaded config.
var flagDefaults = config.Default()

// addGridFlags registers the settings shared by run and view.
func addGridFlags(fs *pflag.FlagSet) {
	d := &flagDefaults
	fs.Int("n", d.N, "grid points per side (power of two)")
	fs.Float64("length", d.Length, "domain side length")
	fs.Float64("dt", d.Dt, "time step")
	fs.Float64("viscosity", d.Viscosity, "kinematic viscosity (0 disables diffusion)")
	fs.String("backend", d.Backend, "compute backend: cpu, opencl or auto")
	fs.Int("workers", d.Workers, "CPU worker goroutines (0 = GOMAXPROCS)")
	fs.String("init", d.Init, "initial condition: taylor-green, noise or vortex-pair")
	fs.Int64("seed", d.Seed, "random seed for the initial condition")
	fs.Float64("noise-amp", d.NoiseAmp, "amplitude of uniform noise added to the initial field")
	fs.Int("octaves", d.Octaves, "fractal noise octaves (0 = 12)")
	fs.Float64("radius", d.Radius, "fractal noise torus radius (0 = 10)")
	fs.Bool("zero-mean", d.ZeroMean, "remove the mean vorticity after upload")
	fs.String("out-dir", d.OutDir, "directory for frames, plots and screenshots")
}

// addRunFlags registers the headless run settings.
func addRunFlags(fs *pflag.FlagSet) {
	d := &flagDefaults
	fs.Int("steps", d.Steps, "number of time steps")
	fs.Int("frame-every", d.FrameEvery, "steps between dumped frames")
	fs.String("format", d.Format, "frame format: png, bmp, gif or f16")
	fs.Bool("plots", d.Plots, "write in/end slice plots")
	fs.Bool("diagnostics", d.Diagnostics, "log spectral maxima, drift, energy and enstrophy for every frame")
	fs.String("dump-fields", d.DumpFields, "comma separated extra fields to render per frame: what, psihat, psi, ux, uy or all")
}

// addViewFlags registers the live viewer settings.
func addViewFlags(fs *pflag.FlagSet) {
	d := &flagDefaults
	fs.Int("scale", d.Scale, "window pixels per grid point")
	fs.Int("steps-per-frame", d.StepsPerFrame, "time steps per rendered frame")
}

// loadConfig layers the flags the user actually set over the file and
// environment settings, then validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString(configFlag)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyFlags(cmd.Flags(), configFlag, cpuProfileFlag); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
