//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pixelgen/camera"
	"github.com/gogpu/pixelgen/grid"
	"github.com/gogpu/pixelgen/shader"
)

// computeStage owns the pixel and parameter buffers and the compute pipeline
// that fills the first from the second.
//
// Bind group 0:
//
//	binding 0: pixel buffer (storage, read_write)
//	binding 1: parameter buffer (uniform)
type computeStage struct {
	device hal.Device
	grid   grid.Grid

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	pixels    hal.Buffer
	params    hal.Buffer
	bindGroup hal.BindGroup
}

func newComputeStage(device hal.Device, g grid.Grid, p shader.Program) (*computeStage, error) {
	s := &computeStage{device: device, grid: g}
	if err := s.createPipeline(p); err != nil {
		s.destroy()
		return nil, err
	}
	if err := s.createBuffers(); err != nil {
		s.destroy()
		return nil, err
	}
	return s, nil
}

func (s *computeStage) createPipeline(p shader.Program) error {
	module, err := s.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  p.Label,
		Source: hal.ShaderSource{WGSL: p.Source},
	})
	if err != nil {
		return fmt.Errorf("compile %s shader: %w", p.Label, err)
	}
	s.shader = module

	bindLayout, err := s.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "pixelgen_compute_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: shader.BindingPixels, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: shader.BindingCamera, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		},
	})
	if err != nil {
		return fmt.Errorf("create compute bind group layout: %w", err)
	}
	s.bindLayout = bindLayout

	pipeLayout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "pixelgen_compute_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{s.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline layout: %w", err)
	}
	s.pipeLayout = pipeLayout

	pipeline, err := s.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "pixelgen_" + p.Label, Layout: s.pipeLayout,
		Compute: hal.ComputeState{Module: s.shader, EntryPoint: p.EntryPoint},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	s.pipeline = pipeline
	return nil
}

func (s *computeStage) createBuffers() error {
	size := s.grid.ByteSize()

	pixels, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "pixelgen_pixels", Size: size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create pixel buffer (%d bytes): %w", size, err)
	}
	s.pixels = pixels

	params, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "pixelgen_camera", Size: camera.GPUSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create parameter buffer: %w", err)
	}
	s.params = params

	bg, err := s.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "pixelgen_compute_bind", Layout: s.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: shader.BindingPixels, Resource: gputypes.BufferBinding{Buffer: s.pixels.NativeHandle(), Offset: 0, Size: size}},
			{Binding: shader.BindingCamera, Resource: gputypes.BufferBinding{Buffer: s.params.NativeHandle(), Offset: 0, Size: camera.GPUSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create compute bind group: %w", err)
	}
	s.bindGroup = bg
	return nil
}

// record encodes the dispatch: one workgroup per pixel.
func (s *computeStage) record(encoder hal.CommandEncoder) {
	x, y, z := s.grid.Workgroups()
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "pixelgen_compute"})
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, s.bindGroup, nil)
	pass.Dispatch(x, y, z)
	pass.End()
}

func (s *computeStage) destroy() {
	if s.device == nil {
		return
	}
	if s.bindGroup != nil {
		s.device.DestroyBindGroup(s.bindGroup)
		s.bindGroup = nil
	}
	if s.params != nil {
		s.device.DestroyBuffer(s.params)
		s.params = nil
	}
	if s.pixels != nil {
		s.device.DestroyBuffer(s.pixels)
		s.pixels = nil
	}
	if s.pipeline != nil {
		s.device.DestroyComputePipeline(s.pipeline)
		s.pipeline = nil
	}
	if s.pipeLayout != nil {
		s.device.DestroyPipelineLayout(s.pipeLayout)
		s.pipeLayout = nil
	}
	if s.bindLayout != nil {
		s.device.DestroyBindGroupLayout(s.bindLayout)
		s.bindLayout = nil
	}
	if s.shader != nil {
		s.device.DestroyShaderModule(s.shader)
		s.shader = nil
	}
}
