// Package config holds the run configuration of the primesieve command.
//
// A configuration starts from Default, is optionally overlaid by a YAML
// file, and is finally overridden by explicitly set command-line flags.
//
//	bound: 100000
//	device: gpu
//	kernel: primesKernel
//	factor: 32
//	timeout: 30s
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/primesieve"
	"github.com/gogpu/primesieve/accel"
)

// DefaultBound is the bound used when none is configured.
const DefaultBound = 100000

// Config errors.
var (
	ErrInvalidBound   = errors.New("config: bound out of range")
	ErrInvalidTimeout = errors.New("config: timeout must be positive")
	ErrInvalidMap     = errors.New("config: map width must be positive")
	ErrInvalidFactor  = errors.New("config: factor out of range")
)

// Config is one run of the command.
type Config struct {
	// Bound is N: primes strictly below it are counted.
	Bound int `yaml:"bound"`

	// Device selects a registered device. Empty selects automatically.
	Device string `yaml:"device,omitempty"`

	// Kernel is a WGSL file that replaces the embedded marking program,
	// relative to the working directory.
	Kernel string `yaml:"kernel,omitempty"`

	// Factor is the concurrency factor of the partition.
	Factor uint32 `yaml:"factor"`

	// Timeout bounds each wait for the device.
	Timeout time.Duration `yaml:"timeout"`

	// Map, when set, is the path of a PNG rendering of the marked sieve.
	Map string `yaml:"map,omitempty"`

	// MapWidth is the width of the PNG in pixels.
	MapWidth int `yaml:"map_width"`

	// Verbose enables logging and the summary report.
	Verbose bool `yaml:"verbose"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Bound:    DefaultBound,
		Factor:   accel.DefaultFactor,
		Timeout:  accel.DefaultTimeout,
		MapWidth: 1024,
	}
}

// Load reads a YAML configuration from path on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	switch {
	case c.Bound < 0 || uint64(c.Bound) > primesieve.MaxBound:
		return fmt.Errorf("%w: %d", ErrInvalidBound, c.Bound)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, c.Timeout)
	case c.Map != "" && c.MapWidth <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidMap, c.MapWidth)
	}
	return nil
}

// ParseFactor converts a command-line factor to the configured width.
// Zero keeps its meaning of the default factor.
func ParseFactor(v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidFactor, v)
	}
	return uint32(v), nil
}

// Options converts the configuration into primesieve options.
func (c Config) Options() []primesieve.Option {
	opts := []primesieve.Option{
		primesieve.WithDevice(c.Device),
		primesieve.WithFactor(c.Factor),
		primesieve.WithTimeout(c.Timeout),
	}
	if c.Kernel != "" {
		opts = append(opts, primesieve.WithKernelFile(c.Kernel))
	}
	return opts
}
