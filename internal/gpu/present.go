//go:build !nogpu

package gpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/pixelgen/grid"
)

//go:embed shaders/present.wgsl
var presentShaderSource string

// presentUniformSize is the size of the Frame uniform: grid and surface
// extents as two vec2<u32>.
const presentUniformSize = 16

// presentBridge copies the pixel buffer into a surface image. Pixel (r, c)
// of the image reads cell r*W+c; a surface of another size samples the
// buffer with nearest-neighbor scaling.
//
// Bind group 0:
//
//	binding 0: pixel buffer (storage, read)
//	binding 1: Frame uniform
type presentBridge struct {
	device hal.Device
	queue  hal.Queue
	grid   grid.Grid
	format gputypes.TextureFormat

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline

	uniform   hal.Buffer
	bindGroup hal.BindGroup

	// surface extent last written to the uniform
	surfaceW, surfaceH uint32
}

func newPresentBridge(device hal.Device, queue hal.Queue, g grid.Grid, format gputypes.TextureFormat, pixels hal.Buffer) (*presentBridge, error) {
	b := &presentBridge{device: device, queue: queue, grid: g, format: format}
	if err := b.createPipeline(); err != nil {
		b.destroy()
		return nil, err
	}
	if err := b.createBindings(pixels); err != nil {
		b.destroy()
		return nil, err
	}
	return b, nil
}

func (b *presentBridge) createPipeline() error {
	module, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "pixelgen_present",
		Source: hal.ShaderSource{WGSL: presentShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile present shader: %w", err)
	}
	b.shader = module

	bindLayout, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "pixelgen_present_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create present bind group layout: %w", err)
	}
	b.bindLayout = bindLayout

	pipeLayout, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "pixelgen_present_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{b.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create present pipeline layout: %w", err)
	}
	b.pipeLayout = pipeLayout

	pipeline, err := b.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "pixelgen_present_pipeline",
		Layout: b.pipeLayout,
		Vertex: hal.VertexState{
			Module:     b.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     b.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: b.format, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create present pipeline: %w", err)
	}
	b.pipeline = pipeline
	return nil
}

func (b *presentBridge) createBindings(pixels hal.Buffer) error {
	uniform, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "pixelgen_present_frame", Size: presentUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create present uniform: %w", err)
	}
	b.uniform = uniform

	bg, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "pixelgen_present_bind",
		Layout: b.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: pixels.NativeHandle(), Offset: 0, Size: b.grid.ByteSize()}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: b.uniform.NativeHandle(), Offset: 0, Size: presentUniformSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create present bind group: %w", err)
	}
	b.bindGroup = bg
	return nil
}

// frameUniform encodes the Frame uniform for a surface of w x h.
func frameUniform(g grid.Grid, w, h uint32) []byte {
	buf := make([]byte, presentUniformSize)
	binary.LittleEndian.PutUint32(buf[0:], g.Width())
	binary.LittleEndian.PutUint32(buf[4:], g.Height())
	binary.LittleEndian.PutUint32(buf[8:], w)
	binary.LittleEndian.PutUint32(buf[12:], h)
	return buf
}

// prepare uploads the surface extent when it changed since the last frame.
func (b *presentBridge) prepare(w, h uint32) error {
	if w == b.surfaceW && h == b.surfaceH {
		return nil
	}
	if err := b.queue.WriteBuffer(b.uniform, 0, frameUniform(b.grid, w, h)); err != nil {
		return fmt.Errorf("write present extent %dx%d: %w", w, h, err)
	}
	b.surfaceW, b.surfaceH = w, h
	return nil
}

// record encodes the present pass into view.
func (b *presentBridge) record(encoder hal.CommandEncoder, view hal.TextureView) {
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "pixelgen_present_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	rp.SetPipeline(b.pipeline)
	rp.SetBindGroup(0, b.bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()
}

func (b *presentBridge) destroy() {
	if b.device == nil {
		return
	}
	if b.bindGroup != nil {
		b.device.DestroyBindGroup(b.bindGroup)
		b.bindGroup = nil
	}
	if b.uniform != nil {
		b.device.DestroyBuffer(b.uniform)
		b.uniform = nil
	}
	if b.pipeline != nil {
		b.device.DestroyRenderPipeline(b.pipeline)
		b.pipeline = nil
	}
	if b.pipeLayout != nil {
		b.device.DestroyPipelineLayout(b.pipeLayout)
		b.pipeLayout = nil
	}
	if b.bindLayout != nil {
		b.device.DestroyBindGroupLayout(b.bindLayout)
		b.bindLayout = nil
	}
	if b.shader != nil {
		b.device.DestroyShaderModule(b.shader)
		b.shader = nil
	}
}
