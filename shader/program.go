// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package shader defines the pixel programs run by the compute stage.
//
// A Program pairs a WGSL compute entry point with a host reference function
// computing the same color. The WGSL side is what the GPU backend compiles;
// the host side drives the software backend and the tests.
//
// Every program uses the same binding layout:
//
//	@group(0) @binding(0) var<storage, read_write> pixels: array<u32>;
//	@group(0) @binding(1) var<uniform> camera: Camera; // vec3<f32> + pad
//
// and is dispatched with one workgroup per pixel.
package shader

import (
	_ "embed"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/naga"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/pixelgen/grid"
)

//go:embed fill.wgsl
var fillSource string

//go:embed direction.wgsl
var directionSource string

// Binding slots shared by every program.
const (
	BindingPixels uint32 = 0
	BindingCamera uint32 = 1
)

// Magenta is the opaque magenta sentinel written by Fill, packed as
// little-endian RGBA (bytes FF 00 FF FF).
const Magenta uint32 = 0xFFFF00FF

// ErrInvalidProgram is returned by Validate when a program cannot be used.
var ErrInvalidProgram = errors.New("shader: invalid program")

// Func computes the packed RGBA color of pixel (x, y) in g for the given
// camera direction.
type Func func(x, y uint32, g grid.Grid, dir f32.Vec3) uint32

// Program is a pluggable pixel shading function.
type Program struct {
	// Label names the program in GPU object labels and logs.
	Label string

	// EntryPoint is the WGSL compute entry point.
	EntryPoint string

	// Source is the WGSL module.
	Source string

	// Shade is the host reference implementation of Source.
	Shade Func
}

// Fill writes Magenta to every pixel and ignores the camera.
var Fill = Program{
	Label:      "fill",
	EntryPoint: "cs_main",
	Source:     fillSource,
	Shade: func(_, _ uint32, _ grid.Grid, _ f32.Vec3) uint32 {
		return Magenta
	},
}

// Direction shades each pixel by the angle between its view ray and the
// camera direction, so turning the camera sweeps the gradient sideways.
var Direction = Program{
	Label:      "direction",
	EntryPoint: "cs_main",
	Source:     directionSource,
	Shade:      shadeDirection,
}

// Programs lists the built-in programs by label.
var Programs = map[string]Program{
	Fill.Label:      Fill,
	Direction.Label: Direction,
}

func shadeDirection(x, y uint32, g grid.Grid, dir f32.Vec3) uint32 {
	w, h := float64(g.Width()), float64(g.Height())
	u := (float64(x)+0.5)/w*2 - 1
	v := 1 - (float64(y)+0.5)/h*2

	rx, ry, rz := 1.0, u*w/h, v
	n := math.Sqrt(rx*rx + ry*ry + rz*rz)
	rx, ry, rz = rx/n, ry/n, rz/n

	dot := rx*float64(dir[0]) + ry*float64(dir[1]) + rz*float64(dir[2])
	facing := clamp01(dot*0.5 + 0.5)
	height := clamp01(v*0.5 + 0.5)
	return PackRGBA(unorm8(facing), unorm8(height), unorm8(1-facing), 255)
}

// PackRGBA packs 8-bit channels into a pixel buffer cell, red in the low byte.
func PackRGBA(r, g, b, a uint8) uint32 {
	return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24
}

// UnpackRGBA is the inverse of PackRGBA.
func UnpackRGBA(c uint32) (r, g, b, a uint8) {
	return uint8(c), uint8(c >> 8), uint8(c >> 16), uint8(c >> 24) //nolint:gosec // masked by truncation
}

// unorm8 matches WGSL pack4x8unorm rounding.
func unorm8(v float64) uint8 {
	return uint8(math.Floor(0.5 + 255*clamp01(v))) //nolint:gosec // clamped to [0, 255]
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Run executes the host reference over the whole grid, writing one cell per
// pixel into dst. dst must hold at least g.Cells() cells.
func (p Program) Run(g grid.Grid, dir f32.Vec3, dst []uint32) error {
	if err := g.CheckCapacity(uint64(len(dst)) * grid.CellSize); err != nil {
		return err
	}
	for y := uint32(0); y < g.Height(); y++ {
		for x := uint32(0); x < g.Width(); x++ {
			dst[g.Index(x, y)] = p.Shade(x, y, g, dir)
		}
	}
	return nil
}

// Validate checks that the program is complete and that its WGSL compiles.
func (p Program) Validate() error {
	switch {
	case p.EntryPoint == "":
		return fmt.Errorf("%w: %q has no entry point", ErrInvalidProgram, p.Label)
	case p.Shade == nil:
		return fmt.Errorf("%w: %q has no host reference", ErrInvalidProgram, p.Label)
	case p.Source == "":
		return fmt.Errorf("%w: %q has no WGSL source", ErrInvalidProgram, p.Label)
	}
	if _, err := naga.Compile(p.Source); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidProgram, p.Label, err)
	}
	return nil
}
