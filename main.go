// Command vortex simulates 2D incompressible vorticity transport on a
// periodic grid with a pseudo-spectral scheme, on the CPU or an OpenCL
// device.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/briandowns/spinner"
	"github.com/go-chi/valve"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vortex/config"
	"vortex/frames"
	"vortex/sim"
	"vortex/spectral"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vortex",
		Short:        "Pseudo-spectral 2D vorticity transport",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.String(configFlag, "", "YAML config file (default $"+config.PathEnv+")")
	pf.String("log-level", flagDefaults.LogLevel, "log level: debug, info, warn or error")
	pf.String(cpuProfileFlag, "", "write a CPU profile to this file")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run headless and dump frames",
		RunE:  runHeadless,
	}
	addGridFlags(run.Flags())
	addRunFlags(run.Flags())

	view := &cobra.Command{
		Use:   "view",
		Short: "Open a live window on the simulation",
		RunE:  runViewer,
	}
	addGridFlags(view.Flags())
	addViewFlags(view.Flags())

	devices := &cobra.Command{
		Use:   "devices",
		Short: "List OpenCL platforms and devices",
		Args:  cobra.NoArgs,
		RunE:  listDevices,
	}

	root.AddCommand(run, view, devices)
	return root
}

func newLogger(level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)
	return log, nil
}

// setup loads the config, builds the logger and starts profiling.
func setup(cmd *cobra.Command) (config.Config, *logrus.Logger, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, nil, err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return cfg, nil, nil, err
	}
	profile, _ := cmd.Flags().GetString(cpuProfileFlag)
	stop, err := startCPUProfile(profile, log)
	if err != nil {
		return cfg, nil, nil, err
	}
	return cfg, log, stop, nil
}

func runHeadless(cmd *cobra.Command, _ []string) error {
	cfg, log, stopProfile, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stopProfile()

	backend, err := spectral.NewBackend(spectral.Kind(cfg.Backend), cfg.Grid(), cfg.Params(), log)
	if err != nil {
		return err
	}
	defer backend.Close()
	backendFields(log, backend).WithFields(logrus.Fields{"n": cfg.N, "dt": cfg.Dt}).Info("backend ready")

	w0, err := spectral.InitialField(cfg.Grid(), cfg.InitOptions())
	if err != nil {
		return err
	}
	writer, err := frames.NewWriter(cfg.WriterOptions())
	if err != nil {
		return err
	}
	defer writer.Close()

	spin := spinner.New(spinner.CharSets[spinnerCharSet], spinnerInterval, spinner.WithWriter(os.Stderr))
	if cfg.Diagnostics || log.IsLevelEnabled(logrus.DebugLevel) {
		// log lines and spinner frames share stderr
		spin.Disable()
	}
	dumps, err := cfg.Fields()
	if err != nil {
		return err
	}
	runner, err := sim.NewRunner(backend, writer, sim.Options{
		Grid:        cfg.Grid(),
		Steps:       cfg.Steps,
		FrameEvery:  cfg.FrameEvery,
		Plots:       cfg.Plots,
		Diagnostics: cfg.Diagnostics,
		ZeroMean:    cfg.ZeroMean,
		DumpFields:  dumps,
		PlotDir:     cfg.OutDir,
		Progress: func(done, total int) {
			spin.Lock()
			spin.Suffix = fmt.Sprintf(" step %d/%d", done, total)
			spin.Unlock()
		},
	}, log)
	if err != nil {
		return err
	}

	v := valve.New()
	ctx, cancel := context.WithCancel(v.Context())
	defer cancel()
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		log.Warn("received termination request, finishing the current frame")
		go func() {
			if err := v.Shutdown(shutdownGrace); errors.Is(err, valve.ErrTimedout) {
				log.Warn("shutdown grace period expired, cancelling")
				cancel()
			}
		}()
		select {
		case <-sigChan:
			log.Warn("second termination request, cancelling")
			cancel()
		case <-ctx.Done():
		}
	}()

	spin.Start()
	sum, err := runner.Run(ctx, w0)
	spin.Stop()
	if err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"steps":             sum.Steps,
		"frames":            sum.Frames,
		"elapsed":           sum.Elapsed,
		"enstrophy_initial": sum.InitialEnstrophy,
		"enstrophy_final":   sum.FinalEnstrophy,
		"stopped":           sum.Stopped,
	}).Info("run complete")
	return nil
}

// backendFields names the backend and, for devices, the device in use.
func backendFields(log logrus.FieldLogger, b spectral.Backend) *logrus.Entry {
	fields := logrus.Fields{"backend": b.Name()}
	if d, ok := b.(interface{ DeviceName() string }); ok {
		fields["device"] = d.DeviceName()
	}
	return log.WithFields(fields)
}

func runViewer(cmd *cobra.Command, _ []string) error {
	cfg, log, stopProfile, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stopProfile()

	backend, err := spectral.NewBackend(spectral.Kind(cfg.Backend), cfg.Grid(), cfg.Params(), log)
	if err != nil {
		return err
	}
	defer backend.Close()
	backendFields(log, backend).Info("backend ready")

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return err
	}
	g, err := newGame(cfg, backend, log)
	if err != nil {
		return err
	}
	ebiten.SetWindowSize(cfg.N*cfg.Scale, cfg.N*cfg.Scale)
	ebiten.SetWindowTitle(fmt.Sprintf("vortex %d×%d (%s)", cfg.N, cfg.N, backend.Name()))
	ebiten.SetTPS(int(defaultTPS))
	return ebiten.RunGame(g)
}

func listDevices(cmd *cobra.Command, _ []string) error {
	devices, err := spectral.ListDevices()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(devices) == 0 {
		fmt.Fprintln(out, "no OpenCL devices found")
		return nil
	}
	for i, d := range devices {
		fmt.Fprintf(out, "%d: %s / %s (%s, %d compute units, %d MiB)\n",
			i, d.Platform, d.Name, d.Type, d.ComputeUnits, d.GlobalMem>>20)
	}
	return nil
}
