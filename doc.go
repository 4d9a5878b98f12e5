// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package pixelgen generates one color per pixel with a compute shader and
// shows the result in a window.
//
// # Overview
//
// A Generator owns a fixed-resolution pixel grid (one packed RGBA word per
// cell), a camera uniform, and a compute program that fills the grid every
// frame. Each frame dispatches one workgroup per pixel and then hands the
// grid to the surface, so that cell r*W+c lands at image pixel (r, c).
//
// # Quick Start
//
//	cfg := pixelgen.DefaultConfig().WithSize(256, 256)
//	gen, err := pixelgen.New(cfg, backend, surface)
//	if err != nil {
//		return err
//	}
//	defer gen.Close()
//
//	_ = gen.Update(0.1) // rotate the camera
//	_ = gen.RenderFrame()
//
// # Backends
//
// The Backend interface has two implementations:
//   - internal/gpu: WebGPU compute and present passes on gogpu/wgpu HAL
//   - internal/software: a CPU reference that runs the same program per cell
//
// # Input
//
// Package control maps window events (close, resize, key presses, redraw
// requests) to effects on a Generator. The command cmd/pixelgen wires it to
// a gogpu window where Q and E turn the camera.
//
// # Logging
//
// pixelgen is silent by default. SetLogger installs an slog.Logger that is
// shared with every live backend.
package pixelgen
