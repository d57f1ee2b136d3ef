package main

import (
	"fmt"
	"os"
	"runtime/pprof"
	"sync"

	"github.com/sirupsen/logrus"
)

// startCPUProfile records a pprof CPU profile into path until the returned
// stop function runs. An empty path disables profiling.
func startCPUProfile(path string, log logrus.FieldLogger) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cpu profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("cpu profile: %w", err)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			pprof.StopCPUProfile()
			if err := f.Close(); err != nil {
				log.WithError(err).Warn("closing cpu profile")
				return
			}
			log.WithField("path", path).Info("cpu profile written")
		})
	}, nil
}
