//go:build !nogpu

// Package gpu implements the "gpu" accelerator device on gogpu/wgpu.
//
// The device uses the Pure Go wgpu HAL (zero CGO) with the Vulkan backend.
// The marking kernel is compiled from WGSL to SPIR-V with naga and run as a
// single compute pipeline:
//
//	Upload:   queue.WriteBuffer(seeds), queue.WriteBuffer(sieve)
//	Dispatch: params -> compute pass (Groups x 1 x 1) -> submit -> fence wait
//	Download: copy sieve -> staging -> submit -> fence wait -> ReadBuffer
//
// Every step blocks, so the sieve buffer is never observed half-marked.
//
// Build with -tags nogpu to leave the package (and the Vulkan backend) out.
package gpu
