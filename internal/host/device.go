// Package host provides an accelerator device that runs the marking kernel
// on the host CPU.
//
// The device keeps its own copies of the seed and sieve buffers, exactly as
// a discrete accelerator would, and executes kernel invocations in work
// groups on a worker pool. Each group runs its Local invocations in order;
// groups run concurrently.
package host

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/primesieve/accel"
	"github.com/gogpu/primesieve/internal/parallel"
	"github.com/gogpu/primesieve/kernel"
)

// Name is the registry name of the host device.
const Name = "host"

func init() {
	accel.Register(Name, func(cfg accel.Config) (accel.Device, error) {
		return Open(cfg)
	})
}

// Device is an accelerator backed by goroutines.
type Device struct {
	pool   *parallel.WorkerPool
	limits accel.Limits
	logger *slog.Logger

	seeds []uint32
	sieve []byte

	allocated bool
	closed    bool
}

var _ accel.Device = (*Device)(nil)

// Open creates a host device. The kernel source is checked for the marking
// entry point; execution always uses kernel.Invoke, so a custom source is
// reported with a warning and otherwise ignored.
func Open(cfg accel.Config) (*Device, error) {
	src := cfg.KernelSource
	if src == "" {
		src = kernel.Default
	}
	if err := kernel.CheckEntryPoint(src); err != nil {
		return nil, fmt.Errorf("host: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// Report the same work-group limits a WebGPU device guarantees so the
	// default partition matches the gpu device.
	lim := gputypes.DefaultLimits()
	d := &Device{
		pool: parallel.NewWorkerPool(runtime.GOMAXPROCS(0)),
		limits: accel.Limits{
			MaxWorkgroupSize: lim.MaxComputeWorkgroupSizeX,
			MaxWorkgroups:    lim.MaxComputeWorkgroupsPerDimension,
			MaxElements:      math.MaxUint32,
		},
		logger: logger,
	}
	if src != kernel.Default {
		logger.Warn("host: custom kernel source is checked but not executed, running the built-in marking kernel")
	}
	logger.Info("host: device opened", "workers", d.pool.Workers())
	return d, nil
}

// Name returns "host".
func (d *Device) Name() string { return Name }

// Info describes the host processor.
func (d *Device) Info() accel.Info {
	return accel.Info{
		Name:       fmt.Sprintf("%s/%s (%d workers)", runtime.GOOS, runtime.GOARCH, d.pool.Workers()),
		Backend:    Name,
		DeviceType: gputypes.DeviceTypeCPU,
	}
}

// Limits reports the device capabilities.
func (d *Device) Limits() accel.Limits { return d.limits }

// Allocate creates the device-side buffers.
func (d *Device) Allocate(seedCount, n int) error {
	switch {
	case d.closed:
		return accel.ErrClosed
	case d.allocated:
		return accel.ErrAlreadyAllocated
	case n < 0 || seedCount < 0:
		return fmt.Errorf("host: negative buffer size (seeds=%d, n=%d)", seedCount, n)
	case uint64(n) > d.limits.MaxElements:
		return fmt.Errorf("%w: %d > %d", accel.ErrBoundTooLarge, n, d.limits.MaxElements)
	}
	d.seeds = make([]uint32, seedCount)
	d.sieve = make([]byte, n)
	d.allocated = true
	d.logger.Debug("host: buffers allocated", "seeds", seedCount, "sieve_bytes", n)
	return nil
}

// Upload copies the host arrays into the device buffers.
func (d *Device) Upload(seeds []uint32, sieve []byte) error {
	if err := d.ready(); err != nil {
		return err
	}
	if len(seeds) != len(d.seeds) || len(sieve) != len(d.sieve) {
		return fmt.Errorf("%w: seeds %d/%d, sieve %d/%d", accel.ErrSizeMismatch,
			len(seeds), len(d.seeds), len(sieve), len(d.sieve))
	}
	copy(d.seeds, seeds)
	copy(d.sieve, sieve)
	return nil
}

// Dispatch runs the kernel over [0, n). Each work group executes its
// invocations sequentially; the call returns after all groups finished.
func (d *Device) Dispatch(p accel.Partition, n uint32) error {
	if err := d.ready(); err != nil {
		return err
	}
	if err := p.Validate(d.limits); err != nil {
		return err
	}
	if uint64(n) > uint64(len(d.sieve)) {
		return fmt.Errorf("%w: n=%d, buffer holds %d", accel.ErrSizeMismatch, n, len(d.sieve))
	}

	seeds, sieve, local, stride := d.seeds, d.sieve, p.Local, p.Global
	d.logger.Debug("host: dispatch", "n", n, "partition", p.String(), "groups", p.Groups())
	return d.pool.RunGroups(int(p.Groups()), func(group int) {
		base := uint32(group) * local //nolint:gosec // group < Groups() fits uint32
		for l := range local {
			kernel.Invoke(seeds, sieve, n, base+l, stride)
		}
	})
}

// Download copies the sieve buffer into dst.
func (d *Device) Download(dst []byte) error {
	if err := d.ready(); err != nil {
		return err
	}
	if len(dst) != len(d.sieve) {
		return fmt.Errorf("%w: dst %d, buffer %d", accel.ErrSizeMismatch, len(dst), len(d.sieve))
	}
	copy(dst, d.sieve)
	return nil
}

// Close stops the worker pool and drops the buffers.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.pool.Close()
	d.seeds = nil
	d.sieve = nil
	d.allocated = false
	return nil
}

func (d *Device) ready() error {
	if d.closed {
		return accel.ErrClosed
	}
	if !d.allocated {
		return accel.ErrNotAllocated
	}
	return nil
}
