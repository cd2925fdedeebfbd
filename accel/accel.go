// Package accel defines the accelerator device contract used by the sieve
// dispatcher.
//
// A Device owns two device-resident buffers (seed primes and sieve flags)
// and a compiled marking program. Every operation blocks until the device
// has finished with it, so the caller observes a strict order:
//
//	Allocate -> Upload -> Dispatch -> Download -> Close
//
// Devices are created by name through the registry. Implementations register
// themselves from init functions:
//
//	import _ "github.com/gogpu/primesieve/gpu" // registers "gpu"
package accel

import (
	"log/slog"
	"time"

	"github.com/gogpu/gputypes"
)

// Info describes the hardware behind a Device.
type Info struct {
	// Name is the adapter name (e.g., "NVIDIA GeForce RTX 3080").
	Name string

	// Backend is the API in use ("vulkan", "noop", "host").
	Backend string

	// DeviceType is the adapter type as reported by the backend.
	DeviceType gputypes.DeviceType
}

// Limits are the device capabilities the dispatcher needs.
type Limits struct {
	// MaxWorkgroupSize is the largest local size of one work group.
	MaxWorkgroupSize uint32

	// MaxWorkgroups is the largest number of work groups in one dispatch.
	MaxWorkgroups uint32

	// MaxElements is the largest sieve the device can hold, in flags.
	MaxElements uint64
}

// Config is passed to a Factory when a device is opened.
type Config struct {
	// KernelSource is the WGSL marking program, without WORKGROUP_SIZE.
	KernelSource string

	// Factor divides MaxWorkgroupSize to obtain the default local size.
	Factor uint32

	// Timeout bounds a single wait for device completion. Zero selects
	// DefaultTimeout.
	Timeout time.Duration

	// Provider optionally supplies an existing device owned by the host
	// application. Devices that cannot use it ignore it.
	Provider any

	// Logger receives device diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// DefaultFactor is the concurrency factor applied to the hardware work-group
// maximum when no factor is configured.
const DefaultFactor = 32

// DefaultTimeout bounds how long a device waits for one submission.
const DefaultTimeout = 30 * time.Second

// Device is one accelerator session's view of the hardware.
//
// Devices are not safe for concurrent use; the dispatcher drives them from
// a single goroutine.
type Device interface {
	// Name returns the registry name of the device (e.g., "gpu", "host").
	Name() string

	// Info describes the selected adapter.
	Info() Info

	// Limits reports the device capabilities.
	Limits() Limits

	// Allocate creates the seed buffer (seedCount words, read-only to the
	// kernel) and the sieve buffer (n flags, read-write). It may be called
	// once per device.
	Allocate(seedCount, n int) error

	// Upload copies seeds and sieve into the device buffers and returns
	// once the device holds a consistent snapshot.
	Upload(seeds []uint32, sieve []byte) error

	// Dispatch runs the marking kernel over [0, n) with partition p and
	// returns when every invocation has retired.
	Dispatch(p Partition, n uint32) error

	// Download copies the sieve buffer into dst and returns when the copy
	// is complete.
	Download(dst []byte) error

	// Close releases every device resource. It is safe to call more than
	// once.
	Close() error
}
