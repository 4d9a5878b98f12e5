//go:build !nogpu

// Package gpu is the wgpu HAL backend for pixelgen.
//
// A Device owns two GPU buffers and two pipelines:
//
//   - the pixel buffer: W*H packed RGBA cells, written by the compute stage
//   - the parameter buffer: the 16-byte camera uniform
//   - the compute pipeline: one workgroup per pixel, dispatched (W, H, 1)
//   - the present pipeline: a fullscreen pass that reads the pixel buffer
//     with row stride W and writes the surface image
//
// Every frame is one command buffer: compute pass, then present pass,
// submitted without waiting. At most one frame is in flight: RenderFrame
// polls the queue until the previous frame's submission index completes
// before recording the next one.
//
// The device is either opened standalone (Open) or shared with a gogpu
// window through its provider (FromProvider).
package gpu
