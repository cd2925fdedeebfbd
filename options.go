package primesieve

import (
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/primesieve/accel"
	"github.com/gogpu/primesieve/kernel"
)

// Option configures a Session or a Count.
//
// Example:
//
//	res, err := primesieve.Count(1_000_000,
//	    primesieve.WithDevice("host"),
//	    primesieve.WithFactor(16))
type Option func(*options)

type options struct {
	device       string
	kernelSource string
	kernelFile   string
	factor       uint32
	timeout      time.Duration
	provider     gpucontext.DeviceProvider
}

func defaultOptions() options {
	return options{
		factor:  accel.DefaultFactor,
		timeout: accel.DefaultTimeout,
	}
}

// WithDevice selects a registered device by name ("gpu", "host").
// An empty name restores automatic selection.
func WithDevice(name string) Option {
	return func(o *options) {
		o.device = name
	}
}

// WithKernelSource replaces the embedded marking program with src.
// The source must define the sieveOfEratosthenes entry point and must not
// declare WORKGROUP_SIZE.
func WithKernelSource(src string) Option {
	return func(o *options) {
		o.kernelSource = src
		o.kernelFile = ""
	}
}

// WithKernelFile reads the marking program from path, relative to the
// working directory, when the session is created.
func WithKernelFile(path string) Option {
	return func(o *options) {
		o.kernelFile = path
		o.kernelSource = ""
	}
}

// WithFactor sets the concurrency factor: the local work-group size is the
// device maximum divided by factor and the global size is local*factor.
// Zero selects the default of 32.
func WithFactor(factor uint32) Option {
	return func(o *options) {
		if factor == 0 {
			factor = accel.DefaultFactor
		}
		o.factor = factor
	}
}

// WithTimeout bounds each wait for the device. Zero selects the default.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d <= 0 {
			d = accel.DefaultTimeout
		}
		o.timeout = d
	}
}

// WithDeviceProvider runs the gpu device on a device owned by the host
// application instead of creating one. The provider must also expose
// HalDevice() and HalQueue(); devices that cannot use it ignore it.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// source resolves the kernel program.
func (o *options) source() (string, error) {
	switch {
	case o.kernelFile != "":
		return kernel.Load(o.kernelFile)
	case o.kernelSource != "":
		if err := kernel.CheckEntryPoint(o.kernelSource); err != nil {
			return "", err
		}
		return o.kernelSource, nil
	default:
		return kernel.Default, nil
	}
}

func (o *options) config(src string) accel.Config {
	cfg := accel.Config{
		KernelSource: src,
		Factor:       o.factor,
		Timeout:      o.timeout,
		Logger:       Logger(),
	}
	if o.provider != nil {
		cfg.Provider = o.provider
	}
	return cfg
}
