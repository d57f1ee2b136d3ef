// Package config holds the run settings shared by the vortex commands.
//
// Values are layered: built-in defaults, then a YAML file, then VORTEX_*
// environment variables (optionally loaded from a .env file), then command
// line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"vortex/frames"
	"vortex/spectral"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VORTEX_"

// PathEnv names the YAML file when no path is given explicitly.
const PathEnv = EnvPrefix + "CONFIG"

// Config describes one simulation run.
type Config struct {
	N         int     `yaml:"n"`
	Length    float64 `yaml:"length"`
	Dt        float64 `yaml:"dt"`
	Viscosity float64 `yaml:"viscosity"`
	Steps     int     `yaml:"steps"`
	Backend   string  `yaml:"backend"`
	Workers   int     `yaml:"workers"`

	Init     string  `yaml:"init"`
	Seed     int64   `yaml:"seed"`
	NoiseAmp float64 `yaml:"noise_amp"`
	Octaves  int     `yaml:"octaves"`
	Radius   float64 `yaml:"radius"`
	ZeroMean bool    `yaml:"zero_mean"`

	OutDir      string `yaml:"out_dir"`
	DumpFields  string `yaml:"dump_fields"`
	Format      string `yaml:"format"`
	FrameEvery  int    `yaml:"frame_every"`
	Plots       bool   `yaml:"plots"`
	Diagnostics bool   `yaml:"diagnostics"`
	LogLevel    string `yaml:"log_level"`

	// viewer
	Scale         int `yaml:"scale"`
	StepsPerFrame int `yaml:"steps_per_frame"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		N:             1024,
		Length:        spectral.DefaultLength,
		Dt:            0.05,
		Steps:         200,
		Backend:       string(spectral.KindAuto),
		Init:          string(spectral.InitTaylorGreen),
		Seed:          1,
		NoiseAmp:      0.01,
		OutDir:        "plot",
		Format:        string(frames.FormatPNG),
		FrameEvery:    10,
		Plots:         true,
		LogLevel:      "info",
		Scale:         1,
		StepsPerFrame: 1,
	}
}

// Load builds a Config from defaults, the YAML file at path (or $VORTEX_CONFIG
// when path is empty) and VORTEX_* environment variables. A .env file in the
// working directory is read first if present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, key := range Keys() {
		name := EnvPrefix + strings.ToUpper(key)
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := c.Set(key, v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) fields() map[string]any {
	return map[string]any{
		"n":               &c.N,
		"length":          &c.Length,
		"dt":              &c.Dt,
		"viscosity":       &c.Viscosity,
		"steps":           &c.Steps,
		"backend":         &c.Backend,
		"workers":         &c.Workers,
		"init":            &c.Init,
		"seed":            &c.Seed,
		"noise_amp":       &c.NoiseAmp,
		"octaves":         &c.Octaves,
		"radius":          &c.Radius,
		"zero_mean":       &c.ZeroMean,
		"out_dir":         &c.OutDir,
		"dump_fields":     &c.DumpFields,
		"format":          &c.Format,
		"frame_every":     &c.FrameEvery,
		"plots":           &c.Plots,
		"diagnostics":     &c.Diagnostics,
		"log_level":       &c.LogLevel,
		"scale":           &c.Scale,
		"steps_per_frame": &c.StepsPerFrame,
	}
}

// Keys lists the setting names accepted by Set, sorted.
func Keys() []string {
	var c Config
	keys := make([]string, 0, 22)
	for k := range c.fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set parses value into the setting named key. Dashes in key are treated
// as underscores so flag names work unchanged.
func (c *Config) Set(key, value string) error {
	key = strings.ReplaceAll(strings.ToLower(key), "-", "_")
	p, ok := c.fields()[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	var err error
	switch p := p.(type) {
	case *int:
		*p, err = strconv.Atoi(value)
	case *int64:
		*p, err = strconv.ParseInt(value, 10, 64)
	case *float64:
		*p, err = strconv.ParseFloat(value, 64)
	case *bool:
		*p, err = strconv.ParseBool(value)
	case *string:
		*p = value
	}
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := c.Grid().Validate(); err != nil {
		return err
	}
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Steps < 0 {
		return fmt.Errorf("steps must be non-negative, got %d", c.Steps)
	}
	if c.FrameEvery < 1 {
		return fmt.Errorf("frame_every must be at least 1, got %d", c.FrameEvery)
	}
	if c.Scale < 1 || c.StepsPerFrame < 1 {
		return fmt.Errorf("scale and steps_per_frame must be at least 1")
	}
	if c.NoiseAmp < 0 {
		return fmt.Errorf("noise_amp must be non-negative, got %g", c.NoiseAmp)
	}
	if _, err := spectral.ParseKind(c.Backend); err != nil {
		return err
	}
	if _, err := spectral.ParseInitial(c.Init); err != nil {
		return err
	}
	if _, err := frames.ParseFormat(c.Format); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.Fields(); err != nil {
		return err
	}
	return nil
}

// Fields parses dump_fields, a comma separated list of field names such as
// "psi,ux,uy". "all" selects every field.
func (c Config) Fields() ([]spectral.Field, error) {
	var out []spectral.Field
	for _, name := range strings.Split(c.DumpFields, ",") {
		name = strings.TrimSpace(name)
		switch name {
		case "":
			continue
		case "all":
			return spectral.AllFields(), nil
		}
		f, err := spectral.ParseField(name)
		if err != nil {
			return nil, fmt.Errorf("dump_fields: %w", err)
		}
		out = append(out, f)
	}
	return out, nil
}

// ApplyFlags copies every flag the user set on fs into c, skipping the
// named flags. Flags left at their defaults do not override file or
// environment settings.
func (c *Config) ApplyFlags(fs *pflag.FlagSet, skip ...string) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil || slices.Contains(skip, f.Name) {
			return
		}
		err = c.Set(f.Name, f.Value.String())
	})
	return err
}

// Grid returns the simulation grid.
func (c Config) Grid() spectral.Grid {
	return spectral.Grid{N: c.N, L: c.Length}
}

// Params returns the time stepping parameters.
func (c Config) Params() spectral.Params {
	return spectral.Params{Dt: c.Dt, Viscosity: c.Viscosity, Workers: c.Workers}
}

// InitOptions returns the initial condition settings.
func (c Config) InitOptions() spectral.InitOptions {
	return spectral.InitOptions{
		Kind:     spectral.Initial(c.Init),
		Seed:     c.Seed,
		NoiseAmp: c.NoiseAmp,
		Octaves:  c.Octaves,
		Radius:   c.Radius,
	}
}

// WriterOptions returns the frame output settings.
func (c Config) WriterOptions() frames.WriterOptions {
	return frames.WriterOptions{
		Dir:    c.OutDir,
		Format: frames.Format(strings.ToLower(c.Format)),
		N:      c.N,
		Length: c.Length,
	}
}
