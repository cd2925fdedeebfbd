//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/primesieve/kernel"
)

// pipeline is the marking program compiled for one work-group size.
type pipeline struct {
	shader  hal.ShaderModule
	compute hal.ComputePipeline
}

// createLayouts creates the bind group layout shared by every pipeline:
// seeds (read-only storage), sieve (storage), params (uniform).
func (d *Device) createLayouts() error {
	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "sieve_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: kernel.BindingSeeds, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: kernel.BindingSieve, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: kernel.BindingParams, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create bind group layout: %w", err)
	}
	d.bindLayout = bindLayout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "sieve_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{d.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("gpu: create pipeline layout: %w", err)
	}
	d.pipeLayout = pipeLayout
	return nil
}

// pipelineFor returns the pipeline for work-group size local, compiling it
// on first use. WGSL fixes the work-group size at compile time, so every
// distinct local size needs its own shader module.
func (d *Device) pipelineFor(local uint32) (*pipeline, error) {
	if p, ok := d.pipelines[local]; ok {
		return p, nil
	}

	src, err := kernel.Specialize(d.source, local)
	if err != nil {
		return nil, err
	}
	spirv, err := kernel.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("gpu: work-group size %d: %w", local, err)
	}

	label := fmt.Sprintf("sieve_wg%d", local)
	shader, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create shader module %s: %w", label, err)
	}

	compute, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   label + "_pipeline",
		Layout:  d.pipeLayout,
		Compute: hal.ComputeState{Module: shader, EntryPoint: kernel.EntryPoint},
	})
	if err != nil {
		d.device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create compute pipeline %s: %w", label, err)
	}

	p := &pipeline{shader: shader, compute: compute}
	d.pipelines[local] = p
	slogger().Debug("gpu: pipeline compiled", "workgroup_size", local, "spirv_words", len(spirv))
	return p, nil
}

func (d *Device) destroyPipelines() {
	for local, p := range d.pipelines {
		if p.compute != nil {
			d.device.DestroyComputePipeline(p.compute)
		}
		if p.shader != nil {
			d.device.DestroyShaderModule(p.shader)
		}
		delete(d.pipelines, local)
	}
	if d.pipeLayout != nil {
		d.device.DestroyPipelineLayout(d.pipeLayout)
		d.pipeLayout = nil
	}
	if d.bindLayout != nil {
		d.device.DestroyBindGroupLayout(d.bindLayout)
		d.bindLayout = nil
	}
}
