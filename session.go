package primesieve

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/primesieve/accel"

	// The host device is always available as a fallback.
	_ "github.com/gogpu/primesieve/internal/host"
)

// Partition is the work-group layout of a dispatch.
type Partition = accel.Partition

// preferredDevices is the automatic selection order.
var preferredDevices = []string{"gpu", "host"}

// Session owns one device with its compiled marking program and its
// allocated seed and sieve buffers.
//
// A Session is not safe for concurrent use. Every method blocks until the
// device has finished.
type Session struct {
	dev       accel.Device
	n         int
	seedCount int
	partition Partition
	logger    *slog.Logger
	closed    bool
}

// NewSession prepares a device for a sieve of n flags and seedCount seed
// primes. It reads the kernel source, opens exactly one device (which
// compiles the program), checks n against the device limits, allocates both
// buffers and derives the partition from the concurrency factor.
//
// On failure everything acquired so far is released and a *StageError is
// returned.
func NewSession(n, seedCount int, opts ...Option) (*Session, error) {
	if err := checkBound(n); err != nil {
		return nil, err
	}
	if seedCount < 0 {
		return nil, &StageError{Stage: StageAllocate, Err: fmt.Errorf("negative seed count %d", seedCount)}
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	src, err := o.source()
	if err != nil {
		return nil, &StageError{Stage: StageKernel, Err: err}
	}

	logger := Logger()
	dev, err := openDevice(&o, src, n, logger)
	if err != nil {
		return nil, &StageError{Stage: StageOpen, Device: o.device, Err: err}
	}

	s := &Session{dev: dev, n: n, seedCount: seedCount, logger: logger}
	lim := dev.Limits()
	s.partition = accel.NewPartition(lim.MaxWorkgroupSize, o.factor)
	if err := s.partition.Validate(lim); err != nil {
		s.release()
		return nil, s.fail(StageOpen, err)
	}
	if uint64(n) > lim.MaxElements {
		s.release()
		return nil, s.fail(StageAllocate, fmt.Errorf("%w: %d flags > %d", accel.ErrBoundTooLarge, n, lim.MaxElements))
	}
	if err := dev.Allocate(seedCount, n); err != nil {
		s.release()
		return nil, s.fail(StageAllocate, err)
	}

	info := dev.Info()
	logger.Info("primesieve: session ready",
		"device", dev.Name(), "adapter", info.Name, "backend", info.Backend,
		"n", n, "seeds", seedCount, "partition", s.partition.String())
	return s, nil
}

// openDevice opens the named device, or the first preferred device that
// opens and can hold n flags when no name is given.
func openDevice(o *options, src string, n int, logger *slog.Logger) (accel.Device, error) {
	cfg := o.config(src)
	if o.device != "" {
		return accel.Open(o.device, cfg)
	}

	var errs []error
	for _, name := range preferredDevices {
		if !accel.IsRegistered(name) {
			continue
		}
		dev, err := accel.Open(name, cfg)
		if err == nil {
			if lim := dev.Limits(); uint64(n) > lim.MaxElements {
				_ = dev.Close()
				err = fmt.Errorf("%w: %s holds %d flags, need %d", accel.ErrBoundTooLarge, name, lim.MaxElements, n)
				logger.Warn("primesieve: bound exceeds device capacity, trying next", "device", name, "n", n)
				errs = append(errs, err)
				continue
			}
			return dev, nil
		}
		// A broken kernel fails the same way on every device.
		if !errors.Is(err, accel.ErrNoDevice) {
			return nil, err
		}
		logger.Warn("primesieve: device not available, trying next", "device", name, "err", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: none registered", accel.ErrNoDevice)
	}
	return nil, errors.Join(errs...)
}

// Run marks the working array: Upload, Dispatch, Download. When Run
// returns nil, sieve holds the result of one complete marking pass.
func (s *Session) Run(sieve []byte, seeds []uint32) error {
	if err := s.Upload(sieve, seeds); err != nil {
		return err
	}
	if err := s.Dispatch(); err != nil {
		return err
	}
	return s.Download(sieve)
}

// Upload copies the working array and the seed primes to the device.
func (s *Session) Upload(sieve []byte, seeds []uint32) error {
	if err := s.dev.Upload(seeds, sieve); err != nil {
		return s.fail(StageUpload, err)
	}
	return nil
}

// Dispatch runs the marking kernel over [0, N) with the session partition.
func (s *Session) Dispatch() error {
	return s.DispatchWith(s.partition)
}

// DispatchWith runs the marking kernel over [0, N) with partition p.
// The marking result does not depend on p.
func (s *Session) DispatchWith(p Partition) error {
	if err := s.dev.Dispatch(p, uint32(s.n)); err != nil { //nolint:gosec // n <= MaxBound checked in NewSession
		return s.fail(StageDispatch, err)
	}
	return nil
}

// Download copies the device sieve into the working array.
func (s *Session) Download(sieve []byte) error {
	if err := s.dev.Download(sieve); err != nil {
		return s.fail(StageDownload, err)
	}
	return nil
}

// Partition returns the default partition of the session.
func (s *Session) Partition() Partition { return s.partition }

// Device returns the name of the open device.
func (s *Session) Device() string { return s.dev.Name() }

// DeviceInfo describes the hardware behind the session.
func (s *Session) DeviceInfo() accel.Info { return s.dev.Info() }

// Bound returns N.
func (s *Session) Bound() int { return s.n }

// Close releases the device. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.release()
}

func (s *Session) release() error {
	s.closed = true
	if err := s.dev.Close(); err != nil {
		s.logger.Warn("primesieve: device release failed", "device", s.dev.Name(), "err", err)
		return err
	}
	return nil
}

func (s *Session) fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Device: s.dev.Name(), Err: err}
}

// NewWorkingArray returns n flags, all set to candidate.
func NewWorkingArray(n int) []byte {
	sieve := make([]byte, n)
	for i := range sieve {
		sieve[i] = 1
	}
	return sieve
}
