//go:build !nogpu

// Package gpu registers the "gpu" accelerator device.
//
// The device runs the marking kernel as a WebGPU compute shader through the
// Pure Go wgpu HAL (Vulkan backend). If no adapter can be opened, automatic
// device selection falls back to the host device.
//
// Usage:
//
//	import _ "github.com/gogpu/primesieve/gpu" // enable GPU marking
package gpu

import (
	gpuimpl "github.com/gogpu/primesieve/internal/gpu"
)

// Name is the registry name of the GPU device.
const Name = gpuimpl.Name
