//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/primesieve/kernel"
)

// buffers are the device-resident resources of one allocation.
type buffers struct {
	seeds     hal.Buffer
	sieve     hal.Buffer
	staging   hal.Buffer
	params    hal.Buffer
	bindGroup hal.BindGroup

	seedSize  uint64
	sieveSize uint64
}

// createBuffers allocates the buffers for seedCount seeds and n flags.
// Zero-sized bindings are invalid, so empty arrays get one padding word.
func (d *Device) createBuffers(seedCount, n int) (*buffers, error) {
	b := &buffers{
		seedSize:  uint64(max(seedCount, 1)) * 4,
		sieveSize: uint64(max(n, 1)) * 4,
	}

	var err error
	create := func(label string, size uint64, usage gputypes.BufferUsage) hal.Buffer {
		if err != nil {
			return nil
		}
		var buf hal.Buffer
		buf, err = d.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
		if err != nil {
			err = fmt.Errorf("gpu: create %s buffer (%d bytes): %w", label, size, err)
			return nil
		}
		return buf
	}

	b.seeds = create("sieve_seeds", b.seedSize, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	b.sieve = create("sieve_flags", b.sieveSize,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
	b.staging = create("sieve_staging", b.sieveSize, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	b.params = create("sieve_params", kernel.ParamsSize, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		d.releaseBuffers(b)
		return nil, err
	}

	b.bindGroup, err = d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "sieve_bind", Layout: d.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: kernel.BindingSeeds, Resource: gputypes.BufferBinding{Buffer: b.seeds.NativeHandle(), Offset: 0, Size: b.seedSize}},
			{Binding: kernel.BindingSieve, Resource: gputypes.BufferBinding{Buffer: b.sieve.NativeHandle(), Offset: 0, Size: b.sieveSize}},
			{Binding: kernel.BindingParams, Resource: gputypes.BufferBinding{Buffer: b.params.NativeHandle(), Offset: 0, Size: kernel.ParamsSize}},
		},
	})
	if err != nil {
		d.releaseBuffers(b)
		return nil, fmt.Errorf("gpu: create bind group: %w", err)
	}
	return b, nil
}

func (d *Device) destroyBuffers() {
	if d.bufs == nil {
		return
	}
	d.releaseBuffers(d.bufs)
	d.bufs = nil
}

func (d *Device) releaseBuffers(b *buffers) {
	if b.bindGroup != nil {
		d.device.DestroyBindGroup(b.bindGroup)
	}
	for _, buf := range []hal.Buffer{b.params, b.staging, b.sieve, b.seeds} {
		if buf != nil {
			d.device.DestroyBuffer(buf)
		}
	}
}

// packWords serializes seeds as little-endian u32 words.
func packWords(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// packFlags widens each flag byte to a little-endian u32 word.
func packFlags(flags []byte) []byte {
	out := make([]byte, len(flags)*4)
	for i, f := range flags {
		out[i*4] = f
	}
	return out
}

// unpackFlags narrows u32 words back to flag bytes. Words only ever hold
// an uploaded byte or 0, so the low byte is the whole value.
func unpackFlags(words []byte, dst []byte) {
	for i := range dst {
		dst[i] = uint8(binary.LittleEndian.Uint32(words[i*4:]) & 0xFF) //nolint:gosec // masked to 8 bits
	}
}
