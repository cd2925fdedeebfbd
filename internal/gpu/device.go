//go:build !nogpu

package gpu

import (
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/primesieve/accel"
	"github.com/gogpu/primesieve/kernel"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Name is the registry name of the GPU device.
const Name = "gpu"

func init() {
	accel.Register(Name, func(cfg accel.Config) (accel.Device, error) {
		return Open(cfg)
	})
	accel.RegisterLogger(Name, setLogger)
}

// instanceCreator is the part of a HAL backend needed to reach an adapter.
type instanceCreator interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// halProvider is implemented by device providers that expose HAL objects.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// Device runs the marking kernel as a wgpu/hal compute pipeline.
//
// The sieve is held on the GPU as one u32 word per flag: WGSL storage
// buffers have no byte type, and word-sized stores keep every clear a
// plain write with no read-modify-write of neighboring flags.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	external bool // device and queue belong to a provider; never destroyed here

	info    accel.Info
	limits  accel.Limits
	factor  uint32
	timeout time.Duration
	source  string

	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  map[uint32]*pipeline // keyed by work-group size

	bufs      *buffers
	seedCount int
	n         int
	closed    bool
}

var _ accel.Device = (*Device)(nil)

// Open selects a GPU adapter on the Vulkan backend, or uses the device of
// cfg.Provider when one is given, and compiles the marking program for the
// default partition.
func Open(cfg accel.Config) (*Device, error) {
	if cfg.Logger != nil {
		setLogger(cfg.Logger)
	}
	if cfg.Provider != nil {
		return openShared(cfg)
	}
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", accel.ErrNoDevice)
	}
	return openBackend(backend, "vulkan", cfg)
}

// openBackend creates an instance on backend and opens the preferred adapter.
func openBackend(backend instanceCreator, backendName string, cfg accel.Config) (*Device, error) {
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", accel.ErrNoDevice, err)
	}
	d := newDevice(cfg)
	d.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		_ = d.Close()
		return nil, fmt.Errorf("%w: no GPU adapters found", accel.ErrNoDevice)
	}
	selected := selectAdapter(adapters)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("%w: open device: %w", accel.ErrNoDevice, err)
	}
	d.device = openDev.Device
	d.queue = openDev.Queue
	d.info = accel.Info{
		Name:       selected.Info.Name,
		Backend:    backendName,
		DeviceType: selected.Info.DeviceType,
	}

	if err := d.init(); err != nil {
		_ = d.Close()
		return nil, err
	}
	slogger().Info("gpu: adapter selected", "adapter", d.info.Name, "backend", backendName)
	return d, nil
}

// openShared wraps the device and queue of an external provider.
func openShared(cfg accel.Config) (*Device, error) {
	hp, ok := cfg.Provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HAL types", accel.ErrNoDevice)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", accel.ErrNoDevice)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", accel.ErrNoDevice)
	}

	d := newDevice(cfg)
	d.device = device
	d.queue = queue
	d.external = true
	d.info = accel.Info{Name: "shared", Backend: "provider"}
	if err := d.init(); err != nil {
		_ = d.Close()
		return nil, err
	}
	slogger().Info("gpu: using shared device")
	return d, nil
}

func newDevice(cfg accel.Config) *Device {
	src := cfg.KernelSource
	if src == "" {
		src = kernel.Default
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = accel.DefaultTimeout
	}
	return &Device{
		factor:    cfg.Factor,
		timeout:   timeout,
		source:    src,
		pipelines: make(map[uint32]*pipeline),
	}
}

// selectAdapter prefers a discrete GPU, then an integrated one, then
// whatever the backend listed first.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// init derives the limits and compiles the pipeline for the default
// partition so that compile errors surface when the device is opened.
func (d *Device) init() error {
	lim := gputypes.DefaultLimits()
	maxElements := lim.MaxStorageBufferBindingSize / 4
	if maxElements > math.MaxUint32 {
		maxElements = math.MaxUint32
	}
	d.limits = accel.Limits{
		MaxWorkgroupSize: lim.MaxComputeWorkgroupSizeX,
		MaxWorkgroups:    lim.MaxComputeWorkgroupsPerDimension,
		MaxElements:      uint64(maxElements),
	}

	if err := kernel.CheckEntryPoint(d.source); err != nil {
		return fmt.Errorf("gpu: %w", err)
	}
	if err := d.createLayouts(); err != nil {
		return err
	}
	p := accel.NewPartition(d.limits.MaxWorkgroupSize, d.factor)
	if _, err := d.pipelineFor(p.Local); err != nil {
		return err
	}
	return nil
}

// Name returns "gpu".
func (d *Device) Name() string { return Name }

// Info describes the selected adapter.
func (d *Device) Info() accel.Info { return d.info }

// Limits reports the device capabilities.
func (d *Device) Limits() accel.Limits { return d.limits }

// Allocate creates the seed, sieve, staging and parameter buffers and the
// bind group that ties them to the kernel bindings.
func (d *Device) Allocate(seedCount, n int) error {
	switch {
	case d.closed:
		return accel.ErrClosed
	case d.bufs != nil:
		return accel.ErrAlreadyAllocated
	case n < 0 || seedCount < 0:
		return fmt.Errorf("gpu: negative buffer size (seeds=%d, n=%d)", seedCount, n)
	case uint64(n) > d.limits.MaxElements:
		return fmt.Errorf("%w: %d flags > %d", accel.ErrBoundTooLarge, n, d.limits.MaxElements)
	}

	bufs, err := d.createBuffers(seedCount, n)
	if err != nil {
		return err
	}
	d.bufs = bufs
	d.seedCount = seedCount
	d.n = n
	slogger().Debug("gpu: buffers allocated",
		"seeds", seedCount, "sieve_bytes", bufs.sieveSize, "staging_bytes", bufs.sieveSize)
	return nil
}

// Upload writes the seed primes and the sieve flags to the device. Queue
// writes are ordered before any later submission on the same queue.
func (d *Device) Upload(seeds []uint32, sieve []byte) error {
	if err := d.ready(); err != nil {
		return err
	}
	if len(seeds) != d.seedCount || len(sieve) != d.n {
		return fmt.Errorf("%w: seeds %d/%d, sieve %d/%d", accel.ErrSizeMismatch,
			len(seeds), d.seedCount, len(sieve), d.n)
	}
	if len(seeds) > 0 {
		d.queue.WriteBuffer(d.bufs.seeds, 0, packWords(seeds))
	}
	if len(sieve) > 0 {
		d.queue.WriteBuffer(d.bufs.sieve, 0, packFlags(sieve))
	}
	return nil
}

// Dispatch runs the kernel over [0, n) and waits for the fence.
func (d *Device) Dispatch(p accel.Partition, n uint32) error {
	if err := d.ready(); err != nil {
		return err
	}
	if err := p.Validate(d.limits); err != nil {
		return err
	}
	if uint64(n) > uint64(d.n) {
		return fmt.Errorf("%w: n=%d, buffer holds %d", accel.ErrSizeMismatch, n, d.n)
	}
	pl, err := d.pipelineFor(p.Local)
	if err != nil {
		return err
	}

	d.queue.WriteBuffer(d.bufs.params, 0, kernel.PackParams(n, uint32(d.seedCount), p.Global)) //nolint:gosec // seed count <= 6543
	slogger().Debug("gpu: dispatch", "n", n, "partition", p.String(), "groups", p.Groups())

	return d.submit("sieve_dispatch", func(encoder hal.CommandEncoder) {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "sieve_pass"})
		pass.SetPipeline(pl.compute)
		pass.SetBindGroup(0, d.bufs.bindGroup, nil)
		pass.Dispatch(p.Groups(), 1, 1)
		pass.End()
	})
}

// Download copies the sieve buffer through the staging buffer into dst.
func (d *Device) Download(dst []byte) error {
	if err := d.ready(); err != nil {
		return err
	}
	if len(dst) != d.n {
		return fmt.Errorf("%w: dst %d, buffer %d", accel.ErrSizeMismatch, len(dst), d.n)
	}
	if d.n == 0 {
		return nil
	}

	size := d.bufs.sieveSize
	err := d.submit("sieve_readback", func(encoder hal.CommandEncoder) {
		encoder.CopyBufferToBuffer(d.bufs.sieve, d.bufs.staging, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: size},
		})
	})
	if err != nil {
		return err
	}

	readback := make([]byte, size)
	if err := d.queue.ReadBuffer(d.bufs.staging, 0, readback); err != nil {
		return fmt.Errorf("gpu: readback: %w", err)
	}
	unpackFlags(readback, dst)
	return nil
}

// submit records one command buffer, submits it and blocks on its fence.
func (d *Device) submit(label string, record func(hal.CommandEncoder)) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}
	record(encoder)
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	fenceOK, err := d.device.Wait(fence, 1, d.timeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("gpu: wait for %s (timeout %v): ok=%v err=%w", label, d.timeout, fenceOK, err)
	}
	return nil
}

// Close destroys every resource the device created, in reverse order of
// creation. A shared device and queue are left to their provider.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	if d.device != nil {
		d.destroyBuffers()
		d.destroyPipelines()
	}
	if !d.external {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
	return nil
}

func (d *Device) ready() error {
	if d.closed {
		return accel.ErrClosed
	}
	if d.bufs == nil {
		return accel.ErrNotAllocated
	}
	return nil
}
